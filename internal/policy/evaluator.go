package policy

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/finwork/expenseflow/internal/models"
	"github.com/finwork/expenseflow/internal/repository"
	"github.com/finwork/expenseflow/pkg/database"
	"go.uber.org/zap"
)

// Evaluator is the approval policy state machine. Each invocation reads
// the expense, its approvals and the company flow, applies the rule
// precedence chain and performs at most one mutation: finalize the
// expense or assign the next approver. Every mutation persists together
// with its audit entry in one transaction.
type Evaluator struct {
	db           *database.DB
	expenseRepo  *repository.ExpenseRepository
	approvalRepo *repository.ApprovalRepository
	flowRepo     *repository.FlowRepository
	userRepo     *repository.UserRepository
	auditRepo    *repository.AuditLogRepository
	logger       *zap.Logger

	// Per-expense serialization: concurrent triggers against the same
	// expense would otherwise race to finalize or to assign the next
	// approver. Different expenses evaluate independently.
	locks sync.Map // expense id -> *sync.Mutex
}

// NewEvaluator creates a new policy evaluator
func NewEvaluator(
	db *database.DB,
	expenseRepo *repository.ExpenseRepository,
	approvalRepo *repository.ApprovalRepository,
	flowRepo *repository.FlowRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditLogRepository,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		db:           db,
		expenseRepo:  expenseRepo,
		approvalRepo: approvalRepo,
		flowRepo:     flowRepo,
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		logger:       logger,
	}
}

// Evaluate runs one evaluation cycle for the expense. Re-evaluating a
// terminal expense is an explicit no-op, never an error. A missing
// expense returns repository.ErrNotFound.
func (e *Evaluator) Evaluate(ctx context.Context, expenseID int64) error {
	mu := e.lockFor(expenseID)
	mu.Lock()
	defer mu.Unlock()

	expense, err := e.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return err
	}

	// Terminal short-circuit: no mutation, no audit entry
	if models.IsTerminalStatus(expense.Status) {
		return nil
	}

	approvals, err := e.approvalRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		return err
	}

	cfg, err := e.loadConfig(ctx, expense)
	if err != nil {
		return err
	}

	outcome := evaluateRules(expense, approvals, cfg)
	if outcome == nil {
		// Nothing to do: unconfigured tenant, or waiting on a pending
		// approver
		return nil
	}

	if outcome.NextApprover > 0 {
		return e.assignApprover(ctx, expense, outcome.NextApprover)
	}
	return e.finalize(ctx, expense, outcome)
}

// loadConfig fetches and parses the company flow. A missing flow is the
// unconfigured-tenant state and yields a nil config; the rejection veto
// still applies without one. Sequence entries naming identities outside
// the company are operator mistakes: they are dropped with a warning
// rather than crashing or blocking the chain.
func (e *Evaluator) loadConfig(ctx context.Context, expense *models.Expense) (*models.FlowConfig, error) {
	flow, err := e.flowRepo.GetByCompany(ctx, expense.CompanyID)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := models.ParseFlowConfig(flow.Config)
	if err != nil {
		return nil, fmt.Errorf("company %d flow: %w", expense.CompanyID, err)
	}

	if len(cfg.Sequence) == 0 {
		return cfg, nil
	}

	known, err := e.userRepo.ListIDsByCompany(ctx, expense.CompanyID)
	if err != nil {
		return nil, err
	}

	filtered := cfg.Sequence[:0]
	for _, id := range cfg.Sequence {
		if !known[id] {
			e.logger.Warn("Dropping unknown approver from flow sequence",
				zap.Int64("company_id", expense.CompanyID),
				zap.Int64("approver_id", id))
			continue
		}
		filtered = append(filtered, id)
	}
	cfg.Sequence = filtered

	return cfg, nil
}

// finalize transitions the expense to a terminal status and appends the
// matching audit entry, atomically.
func (e *Evaluator) finalize(ctx context.Context, expense *models.Expense, outcome *Outcome) error {
	action := models.ActionExpenseApproved
	if outcome.Status == models.StatusRejected {
		action = models.ActionExpenseRejected
	}

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.expenseRepo.UpdateStatus(ctx, tx, expense.ID, outcome.Status); err != nil {
			return err
		}
		_, err := e.auditRepo.Record(ctx, tx, expense.ID, nil, action,
			map[string]string{"reason": outcome.Reason})
		return err
	})
	if err != nil {
		return err
	}

	e.logger.Info("Expense finalized",
		zap.Int64("expense_id", expense.ID),
		zap.String("status", outcome.Status),
		zap.String("reason", outcome.Reason))
	return nil
}

// assignApprover lazily materializes the next pending approval in the
// sequence and audits the assignment, atomically.
func (e *Evaluator) assignApprover(ctx context.Context, expense *models.Expense, approverID int64) error {
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.approvalRepo.Assign(ctx, tx, expense.ID, approverID); err != nil {
			return err
		}
		_, err := e.auditRepo.Record(ctx, tx, expense.ID, nil, models.ActionApprovalAssigned,
			map[string]int64{"approver_id": approverID})
		return err
	})
	if err != nil {
		return err
	}

	e.logger.Info("Approver assigned",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("approver_id", approverID))
	return nil
}

func (e *Evaluator) lockFor(expenseID int64) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(expenseID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
