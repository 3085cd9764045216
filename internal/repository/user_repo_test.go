package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwork/expenseflow/internal/models"
)

func TestUserCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	managerID := f.seedUser(t, companyID, models.RoleManager, nil)
	userID := f.seedUser(t, companyID, models.RoleEmployee, &managerID)

	user, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, user.Role)
	require.NotNil(t, user.ManagerID)
	assert.Equal(t, managerID, *user.ManagerID)

	manager, err := f.users.GetByID(ctx, managerID)
	require.NoError(t, err)
	assert.Nil(t, manager.ManagerID)
}

func TestUserGetByIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserPartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	userID := f.seedUser(t, companyID, models.RoleEmployee, nil)
	before, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)

	// Only the role is set; email and name must survive
	require.NoError(t, f.users.Update(ctx, &models.User{ID: userID, Role: models.RoleManager}, false))

	after, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, after.Role)
	assert.Equal(t, before.Email, after.Email)
	assert.Equal(t, before.FullName, after.FullName)
}

func TestUserUpdateClearsManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	managerID := f.seedUser(t, companyID, models.RoleManager, nil)
	userID := f.seedUser(t, companyID, models.RoleEmployee, &managerID)

	require.NoError(t, f.users.Update(ctx, &models.User{ID: userID, ManagerID: nil}, true))

	user, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, user.ManagerID)
}

func TestUserListByManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	managerID := f.seedUser(t, companyID, models.RoleManager, nil)
	r1 := f.seedUser(t, companyID, models.RoleEmployee, &managerID)
	r2 := f.seedUser(t, companyID, models.RoleEmployee, &managerID)
	f.seedUser(t, companyID, models.RoleEmployee, nil)

	reports, err := f.users.ListByManager(ctx, managerID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, r1, reports[0].ID)
	assert.Equal(t, r2, reports[1].ID)
}

func TestUserListIDsByCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	other := f.seedCompany(t)
	u1 := f.seedUser(t, companyID, models.RoleEmployee, nil)
	u2 := f.seedUser(t, other, models.RoleEmployee, nil)

	ids, err := f.users.ListIDsByCompany(ctx, companyID)
	require.NoError(t, err)
	assert.True(t, ids[u1])
	assert.False(t, ids[u2])
}
