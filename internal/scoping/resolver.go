// Package scoping computes manager visibility: the transitive set of
// users reporting to a manager, directly or through intermediate
// managers.
package scoping

import (
	"context"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// Directory is the user read interface the resolver traverses.
type Directory interface {
	ListByManager(ctx context.Context, managerID int64) ([]*models.User, error)
}

// Resolver walks the manager hierarchy breadth-first. The hierarchy is
// not guaranteed to be a tree: pathological data may contain cycles, so
// every discovered identity is visited at most once.
type Resolver struct {
	users  Directory
	logger *zap.Logger
}

// NewResolver creates a new scoping resolver
func NewResolver(users Directory, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:  users,
		logger: logger,
	}
}

// SubordinatesOf returns the transitive subordinate set of a user. A
// user with no reports gets an empty set. The traversal is bounded by
// the number of distinct users and terminates even under cyclic
// manager references.
func (r *Resolver) SubordinatesOf(ctx context.Context, userID int64) (map[int64]bool, error) {
	subordinates := make(map[int64]bool)
	queue := []int64{userID}

	for len(queue) > 0 {
		managerID := queue[0]
		queue = queue[1:]

		reports, err := r.users.ListByManager(ctx, managerID)
		if err != nil {
			return nil, err
		}

		for _, report := range reports {
			if report.ID == userID || subordinates[report.ID] {
				continue
			}
			subordinates[report.ID] = true
			queue = append(queue, report.ID)
		}
	}

	return subordinates, nil
}

// CanActOn reports whether the actor may see or act on expenses
// submitted by submitterID. Admins have full company authority,
// managers cover themselves and their transitive reports, employees
// only themselves. Visibility and approval authority follow the same
// rule.
func (r *Resolver) CanActOn(ctx context.Context, actor *models.User, submitterID int64) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleManager:
		if submitterID == actor.ID {
			return true, nil
		}
		subordinates, err := r.SubordinatesOf(ctx, actor.ID)
		if err != nil {
			return false, err
		}
		return subordinates[submitterID], nil
	default:
		return submitterID == actor.ID, nil
	}
}
