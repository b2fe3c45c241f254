package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTeamNotFound    = errors.New("team not found")
)

// Resolver looks up a caller's role from the membership tables. Nothing is
// cached: every call reads the current rows.
type Resolver struct{}

// ProjectRole returns the project and the user's role in it. The owner is
// always an admin; other users need an accepted membership. An empty role
// means the user is not a member.
func (Resolver) ProjectRole(ctx context.Context, store repository.Store, projectID, userID uint64) (*models.Project, models.ProjectRole, error) {
	project, err := store.Projects().FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrProjectNotFound
		}
		return nil, "", fmt.Errorf("failed to find project: %w", err)
	}

	if project.OwnerID == userID {
		return project, models.ProjectRoleAdmin, nil
	}

	member, err := store.Projects().FindMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return project, "", nil
		}
		return nil, "", fmt.Errorf("failed to find project member: %w", err)
	}
	if member.Status != models.MembershipAccepted {
		return project, "", nil
	}

	return project, member.Role, nil
}

// TeamRole returns the team and the user's role in it, or an empty role when
// the user has no membership row.
func (Resolver) TeamRole(ctx context.Context, store repository.Store, teamID, userID uint64) (*models.Team, models.TeamRole, error) {
	team, err := store.Teams().FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrTeamNotFound
		}
		return nil, "", fmt.Errorf("failed to find team: %w", err)
	}

	member, err := store.Teams().FindMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return team, "", nil
		}
		return nil, "", fmt.Errorf("failed to find team member: %w", err)
	}

	return team, member.Role, nil
}

// isProjectMember reports whether userID may hold tasks in the project.
func isProjectMember(ctx context.Context, store repository.Store, project *models.Project, userID uint64) (bool, error) {
	if project.OwnerID == userID {
		return true, nil
	}
	member, err := store.Projects().FindMember(ctx, project.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.Status == models.MembershipAccepted, nil
}

func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
