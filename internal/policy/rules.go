package policy

import "github.com/finwork/expenseflow/internal/models"

// Outcome is the single action a rule asks the evaluator to perform.
// Exactly one of the two forms is populated: a finalization (Status +
// Reason) or an assignment (NextApprover > 0).
type Outcome struct {
	Status       string
	Reason       string
	NextApprover int64
}

// A rule inspects the expense, its approvals and the (possibly nil)
// flow configuration and returns a non-nil Outcome when it fires.
// Rules are pure: they never touch storage.
type rule func(expense *models.Expense, approvals []*models.Approval, cfg *models.FlowConfig) *Outcome

// orderedRules is the fixed precedence chain. The first rule returning
// a non-nil outcome wins and later rules are not consulted, even if
// they would also match. Adding a rule kind means inserting a function
// at the right precedence slot.
var orderedRules = []rule{
	rejectionVeto,
	specificApprover,
	percentageThreshold,
	sequentialChain,
}

// evaluateRules runs the precedence chain and returns the winning
// outcome, or nil when no rule fires.
func evaluateRules(expense *models.Expense, approvals []*models.Approval, cfg *models.FlowConfig) *Outcome {
	for _, r := range orderedRules {
		if out := r(expense, approvals, cfg); out != nil {
			return out
		}
	}
	return nil
}

// rejectionVeto rejects the expense as soon as any recorded approval is
// a rejection, regardless of sequence position or other rules. It is
// the only rule that runs without a flow configuration.
func rejectionVeto(_ *models.Expense, approvals []*models.Approval, _ *models.FlowConfig) *Outcome {
	for _, a := range approvals {
		if a.Decision == models.DecisionRejected {
			return &Outcome{
				Status: models.StatusRejected,
				Reason: models.ReasonPolicyEvaluation,
			}
		}
	}
	return nil
}

// specificApprover approves the expense when the configured approver
// has approved. Approvals by anyone else never satisfy this rule.
func specificApprover(_ *models.Expense, approvals []*models.Approval, cfg *models.FlowConfig) *Outcome {
	if cfg == nil || !cfg.HasSpecificRule() {
		return nil
	}
	for _, a := range approvals {
		if a.ApproverID == *cfg.Rules.Specific && a.Decision == models.DecisionApproved {
			return &Outcome{
				Status: models.StatusApproved,
				Reason: models.ReasonSpecificApprover,
			}
		}
	}
	return nil
}

// percentageThreshold approves the expense when the approved share of
// acted (non-pending) approvals reaches the configured fraction. With
// no acted approvals the rule cannot fire.
func percentageThreshold(_ *models.Expense, approvals []*models.Approval, cfg *models.FlowConfig) *Outcome {
	if cfg == nil || !cfg.HasPercentageRule() {
		return nil
	}

	var acted, approved int
	for _, a := range approvals {
		if a.Decision == models.DecisionPending {
			continue
		}
		acted++
		if a.Decision == models.DecisionApproved {
			approved++
		}
	}

	if acted == 0 {
		return nil
	}
	if float64(approved)/float64(acted) >= *cfg.Rules.Percentage {
		return &Outcome{
			Status: models.StatusApproved,
			Reason: models.ReasonPercentageRule,
		}
	}
	return nil
}

// sequentialChain is the fallback rule driven by the configured
// approver sequence. Approver order is authoritative from the
// configuration, never from approval row order. It either approves
// (every sequence approver has approved), assigns the first approver
// with no row at all (lazy one-ahead assignment), or waits.
func sequentialChain(_ *models.Expense, approvals []*models.Approval, cfg *models.FlowConfig) *Outcome {
	if cfg == nil || len(cfg.Sequence) == 0 {
		return nil
	}

	byApprover := make(map[int64]*models.Approval, len(approvals))
	for _, a := range approvals {
		byApprover[a.ApproverID] = a
	}

	allApproved := true
	for _, id := range cfg.Sequence {
		a, ok := byApprover[id]
		if !ok {
			return &Outcome{NextApprover: id}
		}
		if a.Decision != models.DecisionApproved {
			allApproved = false
		}
	}

	if allApproved {
		return &Outcome{
			Status: models.StatusApproved,
			Reason: models.ReasonSequentialApproval,
		}
	}

	// Every sequence approver has a row but at least one is still
	// pending: wait for its decision.
	return nil
}
