package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// AuditLogRepository is the append-only audit ledger. Entries are never
// updated or deleted.
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends one entry to the expense's audit trail. actorID is nil
// for system-initiated actions. details may be any serializable value;
// nil is recorded as an empty object.
func (r *AuditLogRepository) Record(ctx context.Context, tx *sql.Tx, expenseID int64, actorID *int64, action string, details interface{}) (*models.AuditLog, error) {
	payload := "{}"
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit details: %w", err)
		}
		payload = string(raw)
	}

	query := `
		INSERT INTO audit_logs (expense_id, actor_id, action, details)
		VALUES (?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.ExecContext(ctx, query, expenseID, actorID, action, payload)
	} else {
		result, err = r.db.ExecContext(ctx, query, expenseID, actorID, action, payload)
	}

	if err != nil {
		r.logger.Error("Failed to record audit entry",
			zap.Int64("expense_id", expenseID),
			zap.String("action", action),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &models.AuditLog{
		ID:        id,
		ExpenseID: expenseID,
		ActorID:   actorID,
		Action:    action,
		Details:   payload,
	}, nil
}

// ListByExpense retrieves the audit trail for an expense, newest first.
func (r *AuditLogRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*models.AuditLog, error) {
	query := `
		SELECT id, expense_id, actor_id, action, details, created_at
		FROM audit_logs
		WHERE expense_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var actorID sql.NullInt64

		err := rows.Scan(
			&entry.ID,
			&entry.ExpenseID,
			&actorID,
			&entry.Action,
			&entry.Details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if actorID.Valid {
			entry.ActorID = &actorID.Int64
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
