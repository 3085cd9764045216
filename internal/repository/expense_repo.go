package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// ExpenseRepository handles expense database operations
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new expense in pending status
func (r *ExpenseRepository) Create(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	query := `
		INSERT INTO expenses (
			company_id, submitter_id, amount, currency_code,
			amount_converted, description, status, receipt_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if expense.Status == "" {
		expense.Status = models.StatusPending
	}

	var result sql.Result
	var err error

	args := []interface{}{
		expense.CompanyID,
		expense.SubmitterID,
		expense.Amount,
		expense.CurrencyCode,
		expense.AmountConverted,
		expense.Description,
		expense.Status,
		expense.ReceiptPath,
	}

	if tx != nil {
		result, err = tx.ExecContext(ctx, query, args...)
	} else {
		result, err = r.db.ExecContext(ctx, query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create expense", zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*models.Expense, error) {
	query := `
		SELECT id, company_id, submitter_id, amount, currency_code,
			amount_converted, description, status, receipt_path,
			created_at, updated_at
		FROM expenses
		WHERE id = ?
	`

	var expense models.Expense
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&expense.ID,
		&expense.CompanyID,
		&expense.SubmitterID,
		&expense.Amount,
		&expense.CurrencyCode,
		&expense.AmountConverted,
		&expense.Description,
		&expense.Status,
		&expense.ReceiptPath,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return &expense, nil
}

// UpdateStatus transitions an expense to a new status. The caller is
// responsible for status monotonicity; the WHERE clause additionally
// refuses to move an expense out of a terminal status.
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	query := `
		UPDATE expenses
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.ExecContext(ctx, query, status, id)
	} else {
		result, err = r.db.ExecContext(ctx, query, status, id)
	}

	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update expense status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}

	return nil
}

// ListFilter narrows the expense listing
type ListFilter struct {
	Status       string  // empty means all statuses
	SubmitterIDs []int64 // nil means all submitters in the company
}

// ListByCompany retrieves company expenses newest first, optionally
// filtered by status and submitter set. The submitter name is joined in
// for display.
func (r *ExpenseRepository) ListByCompany(ctx context.Context, companyID int64, filter ListFilter) ([]*models.Expense, error) {
	query := `
		SELECT e.id, e.company_id, e.submitter_id, e.amount, e.currency_code,
			e.amount_converted, e.description, e.status, e.receipt_path,
			u.full_name, e.created_at, e.updated_at
		FROM expenses e
		JOIN users u ON u.id = e.submitter_id
		WHERE e.company_id = ?
	`
	args := []interface{}{companyID}

	if filter.Status != "" {
		query += " AND e.status = ?"
		args = append(args, filter.Status)
	}

	if filter.SubmitterIDs != nil {
		if len(filter.SubmitterIDs) == 0 {
			return nil, nil
		}
		query += " AND e.submitter_id IN (?" + strings.Repeat(",?", len(filter.SubmitterIDs)-1) + ")"
		for _, id := range filter.SubmitterIDs {
			args = append(args, id)
		}
	}

	query += " ORDER BY e.created_at DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		var expense models.Expense
		err := rows.Scan(
			&expense.ID,
			&expense.CompanyID,
			&expense.SubmitterID,
			&expense.Amount,
			&expense.CurrencyCode,
			&expense.AmountConverted,
			&expense.Description,
			&expense.Status,
			&expense.ReceiptPath,
			&expense.SubmitterName,
			&expense.CreatedAt,
			&expense.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, &expense)
	}

	return expenses, rows.Err()
}
