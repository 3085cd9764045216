package scoping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finwork/expenseflow/internal/models"
)

// mapDirectory serves reports from an in-memory manager -> reports map.
type mapDirectory map[int64][]int64

func (d mapDirectory) ListByManager(_ context.Context, managerID int64) ([]*models.User, error) {
	var users []*models.User
	for _, id := range d[managerID] {
		users = append(users, &models.User{ID: id, ManagerID: &managerID})
	}
	return users, nil
}

func TestSubordinatesOf(t *testing.T) {
	// 1 manages 2 and 3; 2 manages 4
	resolver := NewResolver(mapDirectory{
		1: {2, 3},
		2: {4},
	}, zap.NewNop())

	subs, err := resolver.SubordinatesOf(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{2: true, 3: true, 4: true}, subs)
}

func TestSubordinatesOfLeaf(t *testing.T) {
	resolver := NewResolver(mapDirectory{}, zap.NewNop())

	subs, err := resolver.SubordinatesOf(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubordinatesOfTerminatesOnCycle(t *testing.T) {
	// 1 manages 2, 2 manages 1: pathological but must not loop forever
	resolver := NewResolver(mapDirectory{
		1: {2},
		2: {1},
	}, zap.NewNop())

	subs, err := resolver.SubordinatesOf(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{2: true}, subs)
}

func TestCanActOn(t *testing.T) {
	resolver := NewResolver(mapDirectory{
		10: {11},
		11: {12},
	}, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name        string
		actor       *models.User
		submitterID int64
		want        bool
	}{
		{"admin sees anyone", &models.User{ID: 1, Role: models.RoleAdmin}, 99, true},
		{"manager sees self", &models.User{ID: 10, Role: models.RoleManager}, 10, true},
		{"manager sees direct report", &models.User{ID: 10, Role: models.RoleManager}, 11, true},
		{"manager sees transitive report", &models.User{ID: 10, Role: models.RoleManager}, 12, true},
		{"manager blind outside subtree", &models.User{ID: 10, Role: models.RoleManager}, 99, false},
		{"employee sees self", &models.User{ID: 12, Role: models.RoleEmployee}, 12, true},
		{"employee blind to peers", &models.User{ID: 12, Role: models.RoleEmployee}, 11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.CanActOn(ctx, tt.actor, tt.submitterID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
