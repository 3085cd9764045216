package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finwork/expenseflow/internal/models"
	"github.com/finwork/expenseflow/pkg/database"
)

// fixture is the shared per-test database with seed helpers. Every test
// gets its own file-backed sqlite instance under t.TempDir.
type fixture struct {
	db      *database.DB
	logger  *zap.Logger
	userSeq int

	companies *CompanyRepository
	users     *UserRepository
	expenses  *ExpenseRepository
	approvals *ApprovalRepository
	flows     *FlowRepository
	audits    *AuditLogRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations("../../migrations"))

	return &fixture{
		db:        db,
		logger:    logger,
		companies: NewCompanyRepository(db.DB, logger),
		users:     NewUserRepository(db.DB, logger),
		expenses:  NewExpenseRepository(db.DB, logger),
		approvals: NewApprovalRepository(db.DB, logger),
		flows:     NewFlowRepository(db.DB, logger),
		audits:    NewAuditLogRepository(db.DB, logger),
	}
}

func (f *fixture) seedCompany(t *testing.T) int64 {
	t.Helper()
	company := &models.Company{Name: "Acme", CountryCode: "US", CurrencyCode: "USD"}
	require.NoError(t, f.companies.Create(context.Background(), company))
	return company.ID
}

func (f *fixture) seedUser(t *testing.T, companyID int64, role string, managerID *int64) int64 {
	t.Helper()
	f.userSeq++
	user := &models.User{
		CompanyID: companyID,
		Email:     fmt.Sprintf("user%d@acme.test", f.userSeq),
		FullName:  fmt.Sprintf("User %d", f.userSeq),
		Role:      role,
		ManagerID: managerID,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user.ID
}

func (f *fixture) seedExpense(t *testing.T, companyID, submitterID int64) int64 {
	t.Helper()
	expense := &models.Expense{
		CompanyID:       companyID,
		SubmitterID:     submitterID,
		Amount:          42.00,
		CurrencyCode:    "USD",
		AmountConverted: 42.00,
		Description:     "office supplies",
	}
	require.NoError(t, f.expenses.Create(context.Background(), nil, expense))
	return expense.ID
}
