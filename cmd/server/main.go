package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/finwork/expenseflow/internal/config"
	httpserver "github.com/finwork/expenseflow/internal/interfaces/http"
	"github.com/finwork/expenseflow/internal/policy"
	"github.com/finwork/expenseflow/internal/report"
	"github.com/finwork/expenseflow/internal/repository"
	"github.com/finwork/expenseflow/internal/scoping"
	"github.com/finwork/expenseflow/internal/workflow"
	"github.com/finwork/expenseflow/pkg/database"
	"github.com/finwork/expenseflow/pkg/utils"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense approval workflow service",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	companyRepo := repository.NewCompanyRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	flowRepo := repository.NewFlowRepository(db.DB, logger)
	auditRepo := repository.NewAuditLogRepository(db.DB, logger)

	// Core
	evaluator := policy.NewEvaluator(db, expenseRepo, approvalRepo, flowRepo, userRepo, auditRepo, logger)
	resolver := scoping.NewResolver(userRepo, logger)
	engine := workflow.NewEngine(db, evaluator, resolver, expenseRepo, approvalRepo, auditRepo, logger)
	exporter := report.NewExporter(logger)

	// HTTP layer
	handlers := httpserver.NewHandlers(engine, resolver, exporter, userRepo, companyRepo, expenseRepo, flowRepo, logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
