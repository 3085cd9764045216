package models

import "time"

// Company is the tenant boundary. Every user, expense and approval flow
// belongs to exactly one company.
type Company struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CountryCode  string    `json:"country_code"`
	CurrencyCode string    `json:"currency_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is a company member. ManagerID is nil for users at the top of the
// reporting chain. The manager graph is not guaranteed to be acyclic.
type User struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"` // admin, manager, employee
	ManagerID *int64    `json:"manager_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Expense is a single reimbursement submission. Status only ever moves
// pending -> approved or pending -> rejected, and only the policy
// evaluator moves it. Expenses are never hard-deleted.
type Expense struct {
	ID              int64     `json:"id"`
	CompanyID       int64     `json:"company_id"`
	SubmitterID     int64     `json:"submitter_id"`
	Amount          float64   `json:"amount"`
	CurrencyCode    string    `json:"currency_code"`
	AmountConverted float64   `json:"amount_converted"`
	Description     string    `json:"description"`
	Status          string    `json:"status"` // pending, approved, rejected
	ReceiptPath     string    `json:"receipt_path,omitempty"`
	SubmitterName   string    `json:"submitter_name,omitempty"` // joined, not stored
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Approval is one assignment of an expense to an approver. At most one
// row exists per (expense, approver) pair, and its decision moves at
// most once from pending to a terminal value.
type Approval struct {
	ID         int64      `json:"id"`
	ExpenseID  int64      `json:"expense_id"`
	ApproverID int64      `json:"approver_id"`
	Decision   string     `json:"decision"` // pending, approved, rejected
	Comments   string     `json:"comments,omitempty"`
	ActedAt    *time.Time `json:"acted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ApprovalFlow is the per-company approval policy. Config is the raw
// JSON document, parsed on demand by ParseFlowConfig.
type ApprovalFlow struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Config    string    `json:"config"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog is one immutable entry in the per-expense audit trail.
// ActorID is nil for actions taken by the policy evaluator itself.
type AuditLog struct {
	ID        int64     `json:"id"`
	ExpenseID int64     `json:"expense_id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"` // JSON blob
	CreatedAt time.Time `json:"created_at"`
}

// Expense status constants
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Approval decision constants
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// User role constants
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// Audit action constants
const (
	ActionExpenseCreated   = "expense_created"
	ActionApprovalAssigned = "approval_assigned"
	ActionApprovalDecision = "approval_decision"
	ActionExpenseApproved  = "expense_approved"
	ActionExpenseRejected  = "expense_rejected"
)

// Finalization reason constants, recorded in audit details
const (
	ReasonPolicyEvaluation   = "policy_evaluation"
	ReasonSpecificApprover   = "specific_approver"
	ReasonPercentageRule     = "percentage_rule"
	ReasonSequentialApproval = "sequential_approval"
)

// IsTerminalStatus reports whether an expense status permits no further
// transitions.
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// IsValidDecision reports whether the value is a terminal approval
// decision an approver may record.
func IsValidDecision(decision string) bool {
	return decision == DecisionApproved || decision == DecisionRejected
}

// IsValidRole reports whether the value is a recognized user role.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleEmployee
}
