package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finwork/expenseflow/internal/models"
	"github.com/finwork/expenseflow/internal/report"
	"github.com/finwork/expenseflow/internal/repository"
	"github.com/finwork/expenseflow/internal/scoping"
	"github.com/finwork/expenseflow/internal/workflow"
	"github.com/finwork/expenseflow/pkg/utils"
)

const userKey = "current_user"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine      *workflow.Engine
	resolver    *scoping.Resolver
	exporter    *report.Exporter
	userRepo    *repository.UserRepository
	companyRepo *repository.CompanyRepository
	expenseRepo *repository.ExpenseRepository
	flowRepo    *repository.FlowRepository
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine *workflow.Engine,
	resolver *scoping.Resolver,
	exporter *report.Exporter,
	userRepo *repository.UserRepository,
	companyRepo *repository.CompanyRepository,
	expenseRepo *repository.ExpenseRepository,
	flowRepo *repository.FlowRepository,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:      engine,
		resolver:    resolver,
		exporter:    exporter,
		userRepo:    userRepo,
		companyRepo: companyRepo,
		expenseRepo: expenseRepo,
		flowRepo:    flowRepo,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RequireUser resolves the calling user from the X-User-ID header.
// Authentication itself lives outside this service; upstream is
// expected to have verified the identity it forwards.
func (h *Handlers) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "missing or invalid X-User-ID header"})
			return
		}

		user, err := h.userRepo.GetByID(c.Request.Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "user not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Error: "internal error"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"status": "healthy", "service": "expenseflow"}})
}

// SubmitExpenseRequest is the body of POST /api/v1/expenses
type SubmitExpenseRequest struct {
	Amount       float64 `json:"amount" binding:"required"`
	CurrencyCode string  `json:"currency_code" binding:"required"`
	Description  string  `json:"description" binding:"required"`
	ReceiptPath  string  `json:"receipt_path"`
}

// SubmitExpense handles POST /api/v1/expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	user := currentUser(c)

	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if err := utils.ValidateAmount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if err := utils.ValidateCurrencyCode(req.CurrencyCode); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	company, err := h.companyRepo.GetByID(c.Request.Context(), user.CompanyID)
	if err != nil {
		h.fail(c, err)
		return
	}

	expense := &models.Expense{
		CompanyID:    user.CompanyID,
		SubmitterID:  user.ID,
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
		// Conversion is a 1:1 pass-through; rate accuracy is owned by a
		// future integration
		AmountConverted: convertAmount(req.Amount, req.CurrencyCode, company.CurrencyCode),
		Description:     req.Description,
		ReceiptPath:     req.ReceiptPath,
	}

	if err := h.engine.SubmitExpense(c.Request.Context(), expense); err != nil {
		h.fail(c, err)
		return
	}

	// Re-read: the first evaluation cycle may have already moved it
	created, err := h.expenseRepo.GetByID(c.Request.Context(), expense.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListExpenses handles GET /api/v1/expenses with role-based scoping:
// admins see the whole company, managers their reports and themselves,
// employees only themselves.
func (h *Handlers) ListExpenses(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	filter := repository.ListFilter{Status: c.Query("status")}
	if filter.Status != "" && filter.Status != models.StatusPending && !models.IsTerminalStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid status filter"})
		return
	}

	switch user.Role {
	case models.RoleAdmin:
		// full company visibility
	case models.RoleManager:
		subordinates, err := h.resolver.SubordinatesOf(ctx, user.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		ids := make([]int64, 0, len(subordinates)+1)
		ids = append(ids, user.ID)
		for id := range subordinates {
			ids = append(ids, id)
		}
		filter.SubmitterIDs = ids
	default:
		filter.SubmitterIDs = []int64{user.ID}
	}

	if raw := c.Query("user_id"); raw != "" {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Error: "invalid user_id"})
			return
		}
		allowed, err := h.resolver.CanActOn(ctx, user, uid)
		if err != nil {
			h.fail(c, err)
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, Response{Error: "access denied"})
			return
		}
		filter.SubmitterIDs = []int64{uid}
	}

	expenses, err := h.expenseRepo.ListByCompany(ctx, user.CompanyID, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// DecideExpenseRequest is the body of POST /api/v1/expenses/:id/decision
type DecideExpenseRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comments string `json:"comments"`
}

// DecideExpense handles POST /api/v1/expenses/:id/decision
func (h *Handlers) DecideExpense(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	expenseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid expense id"})
		return
	}

	var req DecideExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if !models.IsValidDecision(req.Decision) {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid decision"})
		return
	}

	expense, err := h.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if expense.CompanyID != user.CompanyID {
		c.JSON(http.StatusForbidden, Response{Error: "access denied"})
		return
	}
	if user.Role == models.RoleEmployee {
		c.JSON(http.StatusForbidden, Response{Error: "access denied"})
		return
	}

	allowed, err := h.resolver.CanActOn(ctx, user, expense.SubmitterID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, Response{Error: "access denied"})
		return
	}

	err = h.engine.OnApprovalDecision(ctx, expenseID, user.ID, req.Decision, req.Comments)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusForbidden, Response{Error: "no pending approval for this user"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	updated, err := h.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// GetAuditTrail handles GET /api/v1/expenses/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	expenseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid expense id"})
		return
	}

	expense, err := h.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if expense.CompanyID != user.CompanyID {
		c.JSON(http.StatusForbidden, Response{Error: "access denied"})
		return
	}

	trail, err := h.engine.AuditTrail(ctx, expenseID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: trail})
}

// ExportExpenses handles GET /api/v1/expenses/export (admin only)
func (h *Handlers) ExportExpenses(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	if user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Error: "admin access required"})
		return
	}

	company, err := h.companyRepo.GetByID(ctx, user.CompanyID)
	if err != nil {
		h.fail(c, err)
		return
	}

	expenses, err := h.expenseRepo.ListByCompany(ctx, user.CompanyID, repository.ListFilter{})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := h.exporter.Write(c.Writer, company, expenses); err != nil {
		h.logger.Error("Failed to export expenses", zap.Error(err))
	}
}

// FlowRequest is the body of PUT /api/v1/flows
type FlowRequest struct {
	Config models.FlowConfig `json:"config"`
}

// PutFlow handles PUT /api/v1/flows (admin only): creates or replaces
// the company's approval flow after validating the configuration.
func (h *Handlers) PutFlow(c *gin.Context) {
	user := currentUser(c)

	if user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Error: "admin access required"})
		return
	}

	var req FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if err := req.Config.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	raw, err := encodeFlowConfig(&req.Config)
	if err != nil {
		h.fail(c, err)
		return
	}

	flow := &models.ApprovalFlow{
		CompanyID: user.CompanyID,
		Config:    raw,
		CreatedBy: user.ID,
	}
	if err := h.flowRepo.Upsert(c.Request.Context(), flow); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: flow})
}

// GetFlow handles GET /api/v1/flows (admin only)
func (h *Handlers) GetFlow(c *gin.Context) {
	user := currentUser(c)

	if user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Error: "admin access required"})
		return
	}

	flow, err := h.flowRepo.GetByCompany(c.Request.Context(), user.CompanyID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusOK, Response{Success: true, Data: nil})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: flow})
}

// CreateUserRequest is the body of POST /api/v1/users
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required"`
	FullName  string `json:"full_name" binding:"required"`
	Role      string `json:"role" binding:"required"`
	ManagerID *int64 `json:"manager_id"`
}

// CreateUser handles POST /api/v1/users (admin only)
func (h *Handlers) CreateUser(c *gin.Context) {
	user := currentUser(c)

	if user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Error: "admin access required"})
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if !models.IsValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid role"})
		return
	}
	if req.ManagerID != nil {
		if err := h.checkSameCompany(c, *req.ManagerID, user.CompanyID); err != nil {
			return
		}
	}

	created := &models.User{
		CompanyID: user.CompanyID,
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      req.Role,
		ManagerID: req.ManagerID,
	}
	if err := h.userRepo.Create(c.Request.Context(), created); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	user := currentUser(c)

	users, err := h.userRepo.ListByCompany(c.Request.Context(), user.CompanyID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// UpdateUserRequest is the body of PATCH /api/v1/users/:id
type UpdateUserRequest struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	ManagerID *int64 `json:"manager_id"`
	// SetManager distinguishes "clear the manager" from "leave it"
	SetManager bool `json:"set_manager"`
}

// UpdateUser handles PATCH /api/v1/users/:id (admin only)
func (h *Handlers) UpdateUser(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	if user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Error: "admin access required"})
		return
	}

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid user id"})
		return
	}

	target, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil || target.CompanyID != user.CompanyID {
		c.JSON(http.StatusNotFound, Response{Error: "user not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if req.Role != "" && !models.IsValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid role"})
		return
	}
	if req.Email != "" {
		if err := utils.ValidateEmail(req.Email); err != nil {
			c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
			return
		}
	}
	if req.SetManager && req.ManagerID != nil {
		if err := h.checkSameCompany(c, *req.ManagerID, user.CompanyID); err != nil {
			return
		}
	}

	target.Email = req.Email
	target.FullName = req.FullName
	target.Role = req.Role
	if req.SetManager {
		target.ManagerID = req.ManagerID
	}

	if err := h.userRepo.Update(ctx, target, req.SetManager); err != nil {
		h.fail(c, err)
		return
	}

	updated, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// GetSubordinates handles GET /api/v1/users/:id/subordinates
func (h *Handlers) GetSubordinates(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid user id"})
		return
	}

	// Only admins may inspect someone else's scope
	if targetID != user.ID && user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Error: "access denied"})
		return
	}

	target, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil || target.CompanyID != user.CompanyID {
		c.JSON(http.StatusNotFound, Response{Error: "user not found"})
		return
	}

	subordinates, err := h.engine.Subordinates(ctx, targetID)
	if err != nil {
		h.fail(c, err)
		return
	}

	ids := make([]int64, 0, len(subordinates))
	for id := range subordinates {
		ids = append(ids, id)
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"user_id": targetID, "subordinate_ids": ids}})
}

func (h *Handlers) checkSameCompany(c *gin.Context, userID, companyID int64) error {
	target, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && target.CompanyID != companyID) {
		c.JSON(http.StatusNotFound, Response{Error: "manager not found in company"})
		return fmt.Errorf("manager not in company")
	}
	if err != nil {
		h.fail(c, err)
		return err
	}
	return nil
}

// fail maps domain errors to HTTP responses
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Error: "not found"})
	case errors.Is(err, repository.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, Response{Error: "approval already decided"})
	case errors.Is(err, models.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: "internal error"})
	}
}

func encodeFlowConfig(cfg *models.FlowConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode flow config: %w", err)
	}
	return string(raw), nil
}

// convertAmount converts between currencies. Conversion is currently a
// 1:1 pass-through regardless of currency pair.
func convertAmount(amount float64, _, _ string) float64 {
	return amount
}
