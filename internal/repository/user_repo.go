package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finwork/expenseflow/internal/models"
	"go.uber.org/zap"
)

// UserRepository handles user database operations
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (company_id, email, full_name, role, manager_id)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.CompanyID,
		user.Email,
		user.FullName,
		user.Role,
		user.ManagerID,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, company_id, email, full_name, role, manager_id, created_at
		FROM users
		WHERE id = ?
	`

	user, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update applies partial changes to a user. Zero-valued fields are left
// untouched; ManagerID is applied whenever setManager is true so a
// manager reference can be cleared.
func (r *UserRepository) Update(ctx context.Context, user *models.User, setManager bool) error {
	query := `
		UPDATE users
		SET email = COALESCE(NULLIF(?, ''), email),
			full_name = COALESCE(NULLIF(?, ''), full_name),
			role = COALESCE(NULLIF(?, ''), role)
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, user.Email, user.FullName, user.Role, user.ID); err != nil {
		r.logger.Error("Failed to update user", zap.Int64("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}

	if setManager {
		if _, err := r.db.ExecContext(ctx,
			"UPDATE users SET manager_id = ? WHERE id = ?", user.ManagerID, user.ID); err != nil {
			r.logger.Error("Failed to update user manager", zap.Int64("id", user.ID), zap.Error(err))
			return fmt.Errorf("failed to update user manager: %w", err)
		}
	}

	return nil
}

// ListByCompany retrieves all users of a company
func (r *UserRepository) ListByCompany(ctx context.Context, companyID int64) ([]*models.User, error) {
	query := `
		SELECT id, company_id, email, full_name, role, manager_id, created_at
		FROM users
		WHERE company_id = ?
		ORDER BY id
	`
	return r.list(ctx, query, companyID)
}

// ListByManager retrieves the direct reports of a manager
func (r *UserRepository) ListByManager(ctx context.Context, managerID int64) ([]*models.User, error) {
	query := `
		SELECT id, company_id, email, full_name, role, manager_id, created_at
		FROM users
		WHERE manager_id = ?
		ORDER BY id
	`
	return r.list(ctx, query, managerID)
}

// ListIDsByCompany retrieves the set of user identities in a company,
// used to screen flow configurations against unknown approvers.
func (r *UserRepository) ListIDsByCompany(ctx context.Context, companyID int64) (map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM users WHERE company_id = ?", companyID)
	if err != nil {
		r.logger.Error("Failed to list user ids", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *UserRepository) list(ctx context.Context, query string, arg int64) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) scanOne(s rowScanner) (*models.User, error) {
	var user models.User
	var managerID sql.NullInt64

	err := s.Scan(
		&user.ID,
		&user.CompanyID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&managerID,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if managerID.Valid {
		user.ManagerID = &managerID.Int64
	}
	return &user, nil
}
