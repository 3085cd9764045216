package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// ApprovalRepository is the approval registry: one row per
// (expense, approver) pair that has been assigned.
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Assign creates a pending approval for the (expense, approver) pair.
// Assignment is idempotent: if a row already exists it is returned
// unchanged, whatever its decision state.
func (r *ApprovalRepository) Assign(ctx context.Context, tx *sql.Tx, expenseID, approverID int64) (*models.Approval, error) {
	existing, err := r.get(ctx, tx, expenseID, approverID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	query := `
		INSERT INTO approvals (expense_id, approver_id, decision)
		VALUES (?, ?, ?)
	`

	var result sql.Result
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, expenseID, approverID, models.DecisionPending)
	} else {
		result, err = r.db.ExecContext(ctx, query, expenseID, approverID, models.DecisionPending)
	}
	if err != nil {
		r.logger.Error("Failed to assign approval",
			zap.Int64("expense_id", expenseID),
			zap.Int64("approver_id", approverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to assign approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &models.Approval{
		ID:         id,
		ExpenseID:  expenseID,
		ApproverID: approverID,
		Decision:   models.DecisionPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RecordDecision moves a pending approval to a terminal decision.
// Returns ErrNotFound when no row exists for the pair and
// ErrAlreadyDecided when the row has already left pending: a decision
// is recorded at most once, never overwritten.
func (r *ApprovalRepository) RecordDecision(ctx context.Context, tx *sql.Tx, expenseID, approverID int64, decision, comments string) (*models.Approval, error) {
	if !models.IsValidDecision(decision) {
		return nil, fmt.Errorf("invalid decision: %s", decision)
	}

	approval, err := r.get(ctx, tx, expenseID, approverID)
	if err != nil {
		return nil, err
	}
	if approval.Decision != models.DecisionPending {
		return nil, fmt.Errorf("approval %d: %w", approval.ID, ErrAlreadyDecided)
	}

	actedAt := time.Now().UTC()
	query := `
		UPDATE approvals
		SET decision = ?, comments = ?, acted_at = ?
		WHERE id = ? AND decision = 'pending'
	`

	var result sql.Result
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, decision, comments, actedAt, approval.ID)
	} else {
		result, err = r.db.ExecContext(ctx, query, decision, comments, actedAt, approval.ID)
	}
	if err != nil {
		r.logger.Error("Failed to record decision",
			zap.Int64("approval_id", approval.ID),
			zap.String("decision", decision),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// Lost a race with another decision on the same row
		return nil, fmt.Errorf("approval %d: %w", approval.ID, ErrAlreadyDecided)
	}

	approval.Decision = decision
	approval.Comments = comments
	approval.ActedAt = &actedAt
	return approval, nil
}

// ListByExpense retrieves all approvals for an expense regardless of
// decision state. Row order carries no meaning; callers derive approver
// order from the flow configuration.
func (r *ApprovalRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*models.Approval, error) {
	query := `
		SELECT id, expense_id, approver_id, decision, comments, acted_at, created_at
		FROM approvals
		WHERE expense_id = ?
	`

	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*models.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}

	return approvals, rows.Err()
}

func (r *ApprovalRepository) get(ctx context.Context, tx *sql.Tx, expenseID, approverID int64) (*models.Approval, error) {
	query := `
		SELECT id, expense_id, approver_id, decision, comments, acted_at, created_at
		FROM approvals
		WHERE expense_id = ? AND approver_id = ?
	`

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, expenseID, approverID)
	} else {
		row = r.db.QueryRowContext(ctx, query, expenseID, approverID)
	}

	approval, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get approval",
			zap.Int64("expense_id", expenseID),
			zap.Int64("approver_id", approverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	return approval, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApproval(s rowScanner) (*models.Approval, error) {
	var approval models.Approval
	var actedAt sql.NullTime

	err := s.Scan(
		&approval.ID,
		&approval.ExpenseID,
		&approval.ApproverID,
		&approval.Decision,
		&approval.Comments,
		&actedAt,
		&approval.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan approval: %w", err)
	}

	if actedAt.Valid {
		approval.ActedAt = &actedAt.Time
	}
	return &approval, nil
}
