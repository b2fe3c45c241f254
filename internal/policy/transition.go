package policy

import (
	"fmt"

	"github.com/yukikurage/tasko/internal/models"
)

// TransitionError reports a status change the workflow does not allow.
type TransitionError struct {
	From models.TaskStatus
	To   models.TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot move a task from %s to %s", e.From, e.To)
}

// review -> in_progress is "request changes"; completed -> pending is "reopen".
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusPending:    {models.TaskStatusInProgress},
	models.TaskStatusInProgress: {models.TaskStatusReview},
	models.TaskStatusReview:     {models.TaskStatusCompleted, models.TaskStatusInProgress},
	models.TaskStatusCompleted:  {models.TaskStatusPending},
}

// CanTransition returns nil if a task may move from one status to another.
// Writing the current status again is always allowed.
func CanTransition(from, to models.TaskStatus) error {
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from models.TaskStatus) []models.TaskStatus {
	next := transitions[from]
	out := make([]models.TaskStatus, len(next))
	copy(out, next)
	return out
}
