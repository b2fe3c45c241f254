package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/constants"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/logging"
	"github.com/yukikurage/tasko/internal/policy"
	"github.com/yukikurage/tasko/internal/services"
	"github.com/yukikurage/tasko/internal/storage"
)

// respondError maps a service error onto the API error envelope. Anything
// unrecognised is logged and reported as a 500 without leaking details.
func respondError(c *gin.Context, err error) {
	var denial *policy.Denial
	if errors.As(err, &denial) {
		apierrors.Forbidden(c, denial.Error())
		return
	}

	var transition *policy.TransitionError
	if errors.As(err, &transition) {
		apierrors.InvalidTransition(c, transition.Error(), policy.NextStatuses(transition.From))
		return
	}

	switch {
	case errors.Is(err, errInvalidField):
		apierrors.BadRequest(c, err.Error())

	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrInvitationNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrConversationNotFound):
		apierrors.NotFound(c, capitalize(err.Error()))

	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))

	case errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrInvalidProjectStatus),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleEmpty),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidSort),
		errors.Is(err, services.ErrAssigneeNotMember),
		errors.Is(err, services.ErrTeamNotInProject),
		errors.Is(err, services.ErrEmailRequired),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrNoParticipants),
		errors.Is(err, services.ErrMessageEmpty),
		errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks),
		errors.Is(err, services.ErrAITooManyTasks),
		errors.Is(err, storage.ErrNotImage):
		apierrors.BadRequest(c, capitalize(err.Error()))

	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrAlreadyMember):
		apierrors.Conflict(c, capitalize(err.Error()))

	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c, capitalize(err.Error()))

	case errors.Is(err, services.ErrAvatarTooLarge):
		apierrors.PayloadTooLarge(c, fmt.Sprintf("Avatar must be at most %d bytes", constants.MaxAvatarBytes))

	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, "AI service is not configured. Please set OPENAI_API_KEY environment variable.")

	default:
		logging.LogError("request", err, logrus.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		})
		apierrors.InternalError(c, "")
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
