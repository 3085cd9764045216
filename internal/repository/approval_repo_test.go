package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwork/expenseflow/internal/models"
)

func TestAssignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	submitter := f.seedUser(t, companyID, models.RoleEmployee, nil)
	approver := f.seedUser(t, companyID, models.RoleManager, nil)
	expenseID := f.seedExpense(t, companyID, submitter)

	first, err := f.approvals.Assign(ctx, nil, expenseID, approver)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionPending, first.Decision)

	second, err := f.approvals.Assign(ctx, nil, expenseID, approver)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	approvals, err := f.approvals.ListByExpense(ctx, expenseID)
	require.NoError(t, err)
	assert.Len(t, approvals, 1)
}

func TestAssignPreservesDecidedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	submitter := f.seedUser(t, companyID, models.RoleEmployee, nil)
	approver := f.seedUser(t, companyID, models.RoleManager, nil)
	expenseID := f.seedExpense(t, companyID, submitter)

	_, err := f.approvals.Assign(ctx, nil, expenseID, approver)
	require.NoError(t, err)
	_, err = f.approvals.RecordDecision(ctx, nil, expenseID, approver, models.DecisionApproved, "ok")
	require.NoError(t, err)

	// Re-assigning must not reset the decision back to pending
	again, err := f.approvals.Assign(ctx, nil, expenseID, approver)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, again.Decision)
}

func TestRecordDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	submitter := f.seedUser(t, companyID, models.RoleEmployee, nil)
	approver := f.seedUser(t, companyID, models.RoleManager, nil)
	expenseID := f.seedExpense(t, companyID, submitter)

	_, err := f.approvals.Assign(ctx, nil, expenseID, approver)
	require.NoError(t, err)

	approval, err := f.approvals.RecordDecision(ctx, nil, expenseID, approver, models.DecisionRejected, "missing receipt")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, approval.Decision)
	assert.Equal(t, "missing receipt", approval.Comments)
	require.NotNil(t, approval.ActedAt)
}

func TestRecordDecisionTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	submitter := f.seedUser(t, companyID, models.RoleEmployee, nil)
	approver := f.seedUser(t, companyID, models.RoleManager, nil)
	expenseID := f.seedExpense(t, companyID, submitter)

	_, err := f.approvals.Assign(ctx, nil, expenseID, approver)
	require.NoError(t, err)
	_, err = f.approvals.RecordDecision(ctx, nil, expenseID, approver, models.DecisionApproved, "")
	require.NoError(t, err)

	_, err = f.approvals.RecordDecision(ctx, nil, expenseID, approver, models.DecisionRejected, "")
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	// The original decision stands
	approvals, err := f.approvals.ListByExpense(ctx, expenseID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.DecisionApproved, approvals[0].Decision)
}

func TestRecordDecisionWithoutAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := f.seedCompany(t)
	submitter := f.seedUser(t, companyID, models.RoleEmployee, nil)
	approver := f.seedUser(t, companyID, models.RoleManager, nil)
	expenseID := f.seedExpense(t, companyID, submitter)

	_, err := f.approvals.RecordDecision(ctx, nil, expenseID, approver, models.DecisionApproved, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordDecisionRejectsInvalidValue(t *testing.T) {
	f := newFixture(t)
	companyID := f.seedCompany(t)
	submitter := f.seedUser(t, companyID, models.RoleEmployee, nil)
	expenseID := f.seedExpense(t, companyID, submitter)

	_, err := f.approvals.RecordDecision(context.Background(), nil, expenseID, submitter, "maybe", "")
	assert.Error(t, err)
}
