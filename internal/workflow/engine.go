// Package workflow exposes the approval engine to the service layer:
// expense lifecycle triggers, decision recording and the audit trail.
package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finwork/expenseflow/internal/models"
	"github.com/finwork/expenseflow/internal/policy"
	"github.com/finwork/expenseflow/internal/repository"
	"github.com/finwork/expenseflow/internal/scoping"
	"github.com/finwork/expenseflow/pkg/database"
	"go.uber.org/zap"
)

// Engine ties the policy evaluator, the approval registry, the audit
// ledger and the scoping resolver together behind the two lifecycle
// triggers. Exactly one evaluation cycle runs synchronously per
// trigger; there is no background polling.
type Engine struct {
	db           *database.DB
	evaluator    *policy.Evaluator
	resolver     *scoping.Resolver
	expenseRepo  *repository.ExpenseRepository
	approvalRepo *repository.ApprovalRepository
	auditRepo    *repository.AuditLogRepository
	logger       *zap.Logger
}

// NewEngine creates a new workflow engine
func NewEngine(
	db *database.DB,
	evaluator *policy.Evaluator,
	resolver *scoping.Resolver,
	expenseRepo *repository.ExpenseRepository,
	approvalRepo *repository.ApprovalRepository,
	auditRepo *repository.AuditLogRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:           db,
		evaluator:    evaluator,
		resolver:     resolver,
		expenseRepo:  expenseRepo,
		approvalRepo: approvalRepo,
		auditRepo:    auditRepo,
		logger:       logger,
	}
}

// SubmitExpense persists a new expense with its creation audit entry
// and runs the first evaluation cycle, which assigns the first
// sequential approver when the company flow has one.
func (e *Engine) SubmitExpense(ctx context.Context, expense *models.Expense) error {
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.expenseRepo.Create(ctx, tx, expense); err != nil {
			return err
		}
		_, err := e.auditRepo.Record(ctx, tx, expense.ID, &expense.SubmitterID,
			models.ActionExpenseCreated, map[string]string{
				"amount":   fmt.Sprintf("%.2f", expense.Amount),
				"currency": expense.CurrencyCode,
			})
		return err
	})
	if err != nil {
		return err
	}

	e.logger.Info("Expense submitted",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("submitter_id", expense.SubmitterID))

	return e.OnExpenseCreated(ctx, expense.ID)
}

// OnExpenseCreated must be called once, synchronously, after an expense
// row is durably created.
func (e *Engine) OnExpenseCreated(ctx context.Context, expenseID int64) error {
	return e.evaluator.Evaluate(ctx, expenseID)
}

// OnApprovalDecision records an approver's decision against their
// pending assignment, audits it, and triggers evaluation. The decision
// and its audit entry persist atomically before evaluation runs.
func (e *Engine) OnApprovalDecision(ctx context.Context, expenseID, approverID int64, decision, comments string) error {
	if !models.IsValidDecision(decision) {
		return fmt.Errorf("invalid decision: %s", decision)
	}

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.approvalRepo.RecordDecision(ctx, tx, expenseID, approverID, decision, comments); err != nil {
			return err
		}
		_, err := e.auditRepo.Record(ctx, tx, expenseID, &approverID,
			models.ActionApprovalDecision, map[string]string{
				"decision": decision,
				"comments": comments,
			})
		return err
	})
	if err != nil {
		return err
	}

	e.logger.Info("Approval decision recorded",
		zap.Int64("expense_id", expenseID),
		zap.Int64("approver_id", approverID),
		zap.String("decision", decision))

	return e.evaluator.Evaluate(ctx, expenseID)
}

// AuditTrail returns the expense's audit entries, newest first.
func (e *Engine) AuditTrail(ctx context.Context, expenseID int64) ([]*models.AuditLog, error) {
	if _, err := e.expenseRepo.GetByID(ctx, expenseID); err != nil {
		return nil, err
	}
	return e.auditRepo.ListByExpense(ctx, expenseID)
}

// Subordinates returns the transitive subordinate set of a user for
// the authorization layer's scoping checks.
func (e *Engine) Subordinates(ctx context.Context, userID int64) (map[int64]bool, error) {
	return e.resolver.SubordinatesOf(ctx, userID)
}
