package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// FlowRepository handles approval flow configuration storage. Each
// company has at most one flow.
type FlowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlowRepository creates a new flow repository
func NewFlowRepository(db *sql.DB, logger *zap.Logger) *FlowRepository {
	return &FlowRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCompany retrieves the company's flow, or ErrNotFound when the
// tenant has no flow configured.
func (r *FlowRepository) GetByCompany(ctx context.Context, companyID int64) (*models.ApprovalFlow, error) {
	query := `
		SELECT id, company_id, config, created_by, created_at
		FROM approval_flows
		WHERE company_id = ?
	`

	var flow models.ApprovalFlow
	err := r.db.QueryRowContext(ctx, query, companyID).Scan(
		&flow.ID,
		&flow.CompanyID,
		&flow.Config,
		&flow.CreatedBy,
		&flow.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get flow", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	return &flow, nil
}

// Upsert creates the company flow or replaces its configuration. The
// config must already be validated; this layer stores it verbatim.
func (r *FlowRepository) Upsert(ctx context.Context, flow *models.ApprovalFlow) error {
	query := `
		INSERT INTO approval_flows (company_id, config, created_by)
		VALUES (?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			config = excluded.config,
			created_by = excluded.created_by
	`

	if _, err := r.db.ExecContext(ctx, query, flow.CompanyID, flow.Config, flow.CreatedBy); err != nil {
		r.logger.Error("Failed to upsert flow", zap.Int64("company_id", flow.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to upsert flow: %w", err)
	}

	// LastInsertId is stale on the update path, so read the row id back
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM approval_flows WHERE company_id = ?", flow.CompanyID).Scan(&flow.ID)
	if err != nil {
		return fmt.Errorf("failed to read back flow id: %w", err)
	}
	return nil
}
