package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwork/expenseflow/internal/models"
)

func approval(approverID int64, decision string) *models.Approval {
	a := &models.Approval{
		ExpenseID:  1,
		ApproverID: approverID,
		Decision:   decision,
	}
	if decision != models.DecisionPending {
		now := time.Now()
		a.ActedAt = &now
	}
	return a
}

func pendingExpense() *models.Expense {
	return &models.Expense{ID: 1, CompanyID: 1, Status: models.StatusPending}
}

func seqConfig(ids ...int64) *models.FlowConfig {
	return &models.FlowConfig{Sequence: ids}
}

func TestRejectionVeto(t *testing.T) {
	tests := []struct {
		name      string
		approvals []*models.Approval
		fires     bool
	}{
		{
			name:      "single rejection vetoes",
			approvals: []*models.Approval{approval(2, models.DecisionApproved), approval(3, models.DecisionRejected)},
			fires:     true,
		},
		{
			name:      "no rejection",
			approvals: []*models.Approval{approval(2, models.DecisionApproved), approval(3, models.DecisionPending)},
			fires:     false,
		},
		{
			name:      "no approvals at all",
			approvals: nil,
			fires:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rejectionVeto(pendingExpense(), tt.approvals, nil)
			if !tt.fires {
				assert.Nil(t, out)
				return
			}
			require.NotNil(t, out)
			assert.Equal(t, models.StatusRejected, out.Status)
			assert.Equal(t, models.ReasonPolicyEvaluation, out.Reason)
		})
	}
}

func TestRejectionPrecedesPercentage(t *testing.T) {
	// percentage 0.5 with one approved and one rejected would satisfy
	// the ratio, but the veto runs first
	half := 0.5
	cfg := &models.FlowConfig{Rules: models.FlowRules{Percentage: &half}}
	approvals := []*models.Approval{
		approval(2, models.DecisionApproved),
		approval(3, models.DecisionRejected),
	}

	out := evaluateRules(pendingExpense(), approvals, cfg)
	require.NotNil(t, out)
	assert.Equal(t, models.StatusRejected, out.Status)
	assert.Equal(t, models.ReasonPolicyEvaluation, out.Reason)
}

func TestSpecificApprover(t *testing.T) {
	specific := int64(7)
	cfg := &models.FlowConfig{
		Sequence: []int64{2, 7},
		Rules:    models.FlowRules{Specific: &specific},
	}

	t.Run("exact approver finalizes", func(t *testing.T) {
		out := specificApprover(pendingExpense(), []*models.Approval{approval(7, models.DecisionApproved)}, cfg)
		require.NotNil(t, out)
		assert.Equal(t, models.StatusApproved, out.Status)
		assert.Equal(t, models.ReasonSpecificApprover, out.Reason)
	})

	t.Run("other approver never satisfies the rule", func(t *testing.T) {
		out := specificApprover(pendingExpense(), []*models.Approval{approval(2, models.DecisionApproved)}, cfg)
		assert.Nil(t, out)
	})

	t.Run("pending decision by specific approver does not fire", func(t *testing.T) {
		out := specificApprover(pendingExpense(), []*models.Approval{approval(7, models.DecisionPending)}, cfg)
		assert.Nil(t, out)
	})

	t.Run("rule absent", func(t *testing.T) {
		out := specificApprover(pendingExpense(), []*models.Approval{approval(7, models.DecisionApproved)}, seqConfig(7))
		assert.Nil(t, out)
	})
}

func TestPercentageThreshold(t *testing.T) {
	half := 0.5
	cfg := &models.FlowConfig{Rules: models.FlowRules{Percentage: &half}}

	tests := []struct {
		name      string
		approvals []*models.Approval
		fires     bool
	}{
		{
			name:      "no acted approvals cannot fire",
			approvals: []*models.Approval{approval(2, models.DecisionPending)},
			fires:     false,
		},
		{
			name:      "ratio exactly at threshold fires",
			approvals: []*models.Approval{approval(2, models.DecisionApproved), approval(3, models.DecisionRejected)},
			fires:     true,
		},
		{
			name: "ratio below threshold waits",
			approvals: []*models.Approval{
				approval(2, models.DecisionApproved),
				approval(3, models.DecisionRejected),
				approval(4, models.DecisionRejected),
			},
			fires: false,
		},
		{
			name:      "pending approvals excluded from the ratio",
			approvals: []*models.Approval{approval(2, models.DecisionApproved), approval(3, models.DecisionPending)},
			fires:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := percentageThreshold(pendingExpense(), tt.approvals, cfg)
			if !tt.fires {
				assert.Nil(t, out)
				return
			}
			require.NotNil(t, out)
			assert.Equal(t, models.StatusApproved, out.Status)
			assert.Equal(t, models.ReasonPercentageRule, out.Reason)
		})
	}
}

func TestSequentialChain(t *testing.T) {
	cfg := seqConfig(10, 20, 30)

	t.Run("empty registry assigns first approver", func(t *testing.T) {
		out := sequentialChain(pendingExpense(), nil, cfg)
		require.NotNil(t, out)
		assert.Equal(t, int64(10), out.NextApprover)
		assert.Empty(t, out.Status)
	})

	t.Run("first approved assigns second, not third", func(t *testing.T) {
		out := sequentialChain(pendingExpense(), []*models.Approval{approval(10, models.DecisionApproved)}, cfg)
		require.NotNil(t, out)
		assert.Equal(t, int64(20), out.NextApprover)
	})

	t.Run("waiting on pending approver is a no-op", func(t *testing.T) {
		approvals := []*models.Approval{
			approval(10, models.DecisionApproved),
			approval(20, models.DecisionApproved),
			approval(30, models.DecisionPending),
		}
		assert.Nil(t, sequentialChain(pendingExpense(), approvals, cfg))
	})

	t.Run("all approved finalizes", func(t *testing.T) {
		approvals := []*models.Approval{
			approval(10, models.DecisionApproved),
			approval(20, models.DecisionApproved),
			approval(30, models.DecisionApproved),
		}
		out := sequentialChain(pendingExpense(), approvals, cfg)
		require.NotNil(t, out)
		assert.Equal(t, models.StatusApproved, out.Status)
		assert.Equal(t, models.ReasonSequentialApproval, out.Reason)
	})

	t.Run("order comes from the sequence, not row order", func(t *testing.T) {
		// rows listed out of order; 20 still comes before 30
		approvals := []*models.Approval{approval(10, models.DecisionApproved)}
		out := sequentialChain(pendingExpense(), approvals, seqConfig(10, 20, 30))
		require.NotNil(t, out)
		assert.Equal(t, int64(20), out.NextApprover)
	})

	t.Run("empty sequence never fires", func(t *testing.T) {
		assert.Nil(t, sequentialChain(pendingExpense(), nil, seqConfig()))
	})
}

func TestEvaluateRulesWithoutConfig(t *testing.T) {
	// Rejection veto applies even when the tenant has no flow
	out := evaluateRules(pendingExpense(), []*models.Approval{approval(2, models.DecisionRejected)}, nil)
	require.NotNil(t, out)
	assert.Equal(t, models.StatusRejected, out.Status)

	// Anything else is a no-op without a flow
	assert.Nil(t, evaluateRules(pendingExpense(), []*models.Approval{approval(2, models.DecisionApproved)}, nil))
}
