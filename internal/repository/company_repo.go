package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// CompanyRepository handles company database operations
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new company
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (name, country_code, currency_code)
		VALUES (?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, company.Name, company.CountryCode, company.CurrencyCode)
	if err != nil {
		r.logger.Error("Failed to create company", zap.String("name", company.Name), zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	company.ID = id
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	query := `
		SELECT id, name, country_code, currency_code, created_at
		FROM companies
		WHERE id = ?
	`

	var company models.Company
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.CountryCode,
		&company.CurrencyCode,
		&company.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}
