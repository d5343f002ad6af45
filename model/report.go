package model

import "time"

// Deadline issue kinds.
const (
	DeadlineExpired     = "expired"
	DeadlineApproaching = "approaching"
)

// Requirement partition labels.
const (
	RequirementCompleted = "completed"
	RequirementRejected  = "rejected"
	RequirementPending   = "pending"
)

// Risk severities.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// Risk kinds.
const (
	RiskDeadlineExpired     = "deadline_expired"
	RiskDeadlineApproaching = "deadline_approaching"
	RiskRejections          = "rejections"
	RiskGoLive              = "go_live"
)

// RequirementSummary is the recomputed per-requirement tally.
type RequirementSummary struct {
	RequirementID    string `json:"requirement_id" yaml:"requirement_id"`
	ApprovalType     string `json:"approval_type" yaml:"approval_type"`
	Status           string `json:"status" yaml:"status"`
	MinimumApprovals int    `json:"minimum_approvals" yaml:"minimum_approvals"`
	Approved         int    `json:"approved" yaml:"approved"`
	Rejected         int    `json:"rejected" yaml:"rejected"`
	Pending          int    `json:"pending" yaml:"pending"`
	Total            int    `json:"total" yaml:"total"`
}

// WorkflowStatusView is the status summary of one workflow.
type WorkflowStatusView struct {
	WorkflowID            string               `json:"workflow_id" yaml:"workflow_id"`
	ProjectName           string               `json:"project_name" yaml:"project_name"`
	Description           string               `json:"description" yaml:"description"`
	Status                ApprovalStatus       `json:"status" yaml:"status"`
	Progress              float64              `json:"progress" yaml:"progress"`
	CreatedAt             time.Time            `json:"created_at" yaml:"created_at"`
	TargetDate            time.Time            `json:"target_date" yaml:"target_date"`
	DaysToTarget          int                  `json:"days_to_target" yaml:"days_to_target"`
	TotalRequirements     int                  `json:"total_requirements" yaml:"total_requirements"`
	CompletedRequirements []string             `json:"completed_requirements" yaml:"completed_requirements"`
	PendingRequirements   []string             `json:"pending_requirements" yaml:"pending_requirements"`
	RejectedRequirements  []string             `json:"rejected_requirements" yaml:"rejected_requirements"`
	ApprovalSummary       []RequirementSummary `json:"approval_summary" yaml:"approval_summary"`
	Escalations           int                  `json:"escalations" yaml:"escalations"`
}

// DeadlineIssue flags a non-completed requirement whose deadline has passed or
// is close.
type DeadlineIssue struct {
	RequirementID string    `json:"requirement_id" yaml:"requirement_id"`
	Description   string    `json:"description" yaml:"description"`
	Kind          string    `json:"kind" yaml:"kind"`
	Deadline      time.Time `json:"deadline" yaml:"deadline"`
	Priority      string    `json:"priority" yaml:"priority"`
	DaysRemaining int       `json:"days_remaining" yaml:"days_remaining"`
	DaysOverdue   int       `json:"days_overdue,omitempty" yaml:"days_overdue,omitempty"`
}

// NextAction is a pending requirement whose prerequisites are all completed.
type NextAction struct {
	RequirementID      string    `json:"requirement_id" yaml:"requirement_id"`
	ApprovalType       string    `json:"approval_type" yaml:"approval_type"`
	Description        string    `json:"description" yaml:"description"`
	Deadline           time.Time `json:"deadline" yaml:"deadline"`
	Priority           string    `json:"priority" yaml:"priority"`
	DaysRemaining      int       `json:"days_remaining" yaml:"days_remaining"`
	AwaitingDecisionBy []string  `json:"awaiting_decision_by" yaml:"awaiting_decision_by"`
}

// RiskIndicator is a derived signal surfaced for operator attention.
type RiskIndicator struct {
	Kind          string `json:"kind" yaml:"kind"`
	Severity      string `json:"severity" yaml:"severity"`
	Description   string `json:"description" yaml:"description"`
	RequirementID string `json:"requirement_id,omitempty" yaml:"requirement_id,omitempty"`
}

// StakeholderStatus is the per-stakeholder slice of the dashboard.
type StakeholderStatus struct {
	Name               string     `json:"name" yaml:"name"`
	Role               string     `json:"role" yaml:"role"`
	PendingApprovals   int        `json:"pending_approvals" yaml:"pending_approvals"`
	CompletedApprovals int        `json:"completed_approvals" yaml:"completed_approvals"`
	LastActivity       *time.Time `json:"last_activity" yaml:"last_activity"`
}

// TimelineEntry is one requirement on the deadline-sorted timeline.
type TimelineEntry struct {
	RequirementID string    `json:"requirement_id" yaml:"requirement_id"`
	Description   string    `json:"description" yaml:"description"`
	Deadline      time.Time `json:"deadline" yaml:"deadline"`
	Status        string    `json:"status" yaml:"status"`
	Priority      string    `json:"priority" yaml:"priority"`
	Dependencies  []string  `json:"dependencies" yaml:"dependencies"`
}

// Dashboard is the full read model exported by reports.
type Dashboard struct {
	Overview          WorkflowStatusView           `json:"overview" yaml:"overview"`
	StakeholderStatus map[string]StakeholderStatus `json:"stakeholder_status" yaml:"stakeholder_status"`
	Timeline          []TimelineEntry              `json:"timeline" yaml:"timeline"`
	NextActions       []NextAction                 `json:"next_actions" yaml:"next_actions"`
	RiskIndicators    []RiskIndicator              `json:"risk_indicators" yaml:"risk_indicators"`
}
