package model

import (
	"slices"
	"time"
)

// ApprovalStatus is the state of a single decision record, and (restricted to
// pending, under_review, approved and rejected) the overall workflow status.
type ApprovalStatus string

// Decision record states.
const (
	StatusPending               ApprovalStatus = "pending"
	StatusUnderReview           ApprovalStatus = "under_review"
	StatusApproved              ApprovalStatus = "approved"
	StatusRejected              ApprovalStatus = "rejected"
	StatusConditionallyApproved ApprovalStatus = "conditionally_approved"
	StatusEscalated             ApprovalStatus = "escalated"
	StatusExpired               ApprovalStatus = "expired"
)

// IsTerminal reports whether no further transition is possible from s.
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusConditionallyApproved, StatusEscalated, StatusExpired:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	return s == StatusPending || s == StatusUnderReview || s.IsTerminal()
}

// Requirement priority labels.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// ApprovalRequirement is a named approval gate. Templates are immutable once
// the catalog is built; each workflow holds its own copy.
type ApprovalRequirement struct {
	ID                    string    `json:"id" yaml:"id"`
	ApprovalType          string    `json:"approval_type" yaml:"approval_type"`
	RequiredRoles         []string  `json:"required_roles" yaml:"required_roles"`
	MinimumApprovals      int       `json:"minimum_approvals" yaml:"minimum_approvals"`
	Description           string    `json:"description" yaml:"description"`
	RequiredDocumentation []string  `json:"required_documentation,omitempty" yaml:"required_documentation,omitempty"`
	Deadline              time.Time `json:"deadline" yaml:"deadline"`
	Priority              string    `json:"priority" yaml:"priority"`
	Dependencies          []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Clone returns a deep copy of the requirement.
func (r ApprovalRequirement) Clone() ApprovalRequirement {
	r.RequiredRoles = slices.Clone(r.RequiredRoles)
	r.RequiredDocumentation = slices.Clone(r.RequiredDocumentation)
	r.Dependencies = slices.Clone(r.Dependencies)
	return r
}

// StakeholderApproval is one stakeholder's decision record for a
// requirement's approval type.
type StakeholderApproval struct {
	ID              string         `json:"id" yaml:"id"`
	StakeholderID   string         `json:"stakeholder_id" yaml:"stakeholder_id"`
	StakeholderRole string         `json:"stakeholder_role" yaml:"stakeholder_role"`
	ApprovalType    string         `json:"approval_type" yaml:"approval_type"`
	Status          ApprovalStatus `json:"status" yaml:"status"`
	SubmittedAt     *time.Time     `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty" yaml:"reviewed_at,omitempty"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty" yaml:"decided_at,omitempty"`
	Comments        string         `json:"comments,omitempty" yaml:"comments,omitempty"`
	Conditions      []string       `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Signature       string         `json:"signature,omitempty" yaml:"signature,omitempty"`
	Origin          string         `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// LastActivity returns the most recent timestamp recorded on the record.
func (a StakeholderApproval) LastActivity() *time.Time {
	var last *time.Time
	for _, ts := range []*time.Time{a.SubmittedAt, a.ReviewedAt, a.DecidedAt} {
		if ts != nil && (last == nil || ts.After(*last)) {
			last = ts
		}
	}
	return last
}

// Clone returns a deep copy of the record.
func (a StakeholderApproval) Clone() StakeholderApproval {
	a.Conditions = slices.Clone(a.Conditions)
	a.SubmittedAt = cloneTime(a.SubmittedAt)
	a.ReviewedAt = cloneTime(a.ReviewedAt)
	a.DecidedAt = cloneTime(a.DecidedAt)
	return a
}

// EscalationEntry is one audit-logged deadline extension.
type EscalationEntry struct {
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
	RequirementID string    `json:"requirement_id" yaml:"requirement_id"`
	Reason        string    `json:"reason" yaml:"reason"`
}

// ApprovalWorkflow is the aggregate root: one instantiated approval process
// over a requirement set.
type ApprovalWorkflow struct {
	ID                    string                `json:"id"`
	ProjectName           string                `json:"project_name"`
	Description           string                `json:"description"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	TargetDate            time.Time             `json:"target_date"`
	Status                ApprovalStatus        `json:"status"`
	Requirements          []ApprovalRequirement `json:"requirements"`
	Approvals             []StakeholderApproval `json:"approvals"`
	Progress              float64               `json:"progress"`
	CompletedRequirements []string              `json:"completed_requirements"`
	PendingRequirements   []string              `json:"pending_requirements"`
	RejectedRequirements  []string              `json:"rejected_requirements"`
	EscalationHistory     []EscalationEntry     `json:"escalation_history"`
	Version               int                   `json:"version"`
}

// Requirement returns a pointer into the workflow's requirement copy.
func (w *ApprovalWorkflow) Requirement(id string) (*ApprovalRequirement, bool) {
	for i := range w.Requirements {
		if w.Requirements[i].ID == id {
			return &w.Requirements[i], true
		}
	}
	return nil, false
}

// Approval returns a pointer to the record keyed by (stakeholder, approval type).
func (w *ApprovalWorkflow) Approval(stakeholderID, approvalType string) (*StakeholderApproval, bool) {
	for i := range w.Approvals {
		a := &w.Approvals[i]
		if a.StakeholderID == stakeholderID && a.ApprovalType == approvalType {
			return a, true
		}
	}
	return nil, false
}

// IsCompleted reports whether the requirement is in the completed partition.
func (w *ApprovalWorkflow) IsCompleted(requirementID string) bool {
	return slices.Contains(w.CompletedRequirements, requirementID)
}

// Clone returns a deep copy of the workflow. Mutations on the copy never
// affect the original.
func (w ApprovalWorkflow) Clone() ApprovalWorkflow {
	reqs := make([]ApprovalRequirement, len(w.Requirements))
	for i, r := range w.Requirements {
		reqs[i] = r.Clone()
	}
	w.Requirements = reqs

	approvals := make([]StakeholderApproval, len(w.Approvals))
	for i, a := range w.Approvals {
		approvals[i] = a.Clone()
	}
	w.Approvals = approvals

	w.CompletedRequirements = slices.Clone(w.CompletedRequirements)
	w.PendingRequirements = slices.Clone(w.PendingRequirements)
	w.RejectedRequirements = slices.Clone(w.RejectedRequirements)
	w.EscalationHistory = slices.Clone(w.EscalationHistory)
	return w
}

// WorkflowSummary is a lightweight representation used in list views.
type WorkflowSummary struct {
	ID          string         `json:"id"`
	ProjectName string         `json:"project_name"`
	Status      ApprovalStatus `json:"status"`
	Progress    float64        `json:"progress"`
	CreatedAt   time.Time      `json:"created_at"`
	TargetDate  time.Time      `json:"target_date"`
}

// WorkflowFilters are optional filters for listing workflows.
type WorkflowFilters struct {
	Status ApprovalStatus
	Limit  int
	Offset int
}

// StakeholderProfile describes the single holder of a role.
type StakeholderProfile struct {
	ID                      string          `json:"id" yaml:"id"`
	Name                    string          `json:"name" yaml:"name"`
	Role                    string          `json:"role" yaml:"role"`
	Title                   string          `json:"title,omitempty" yaml:"title,omitempty"`
	Department              string          `json:"department,omitempty" yaml:"department,omitempty"`
	Email                   string          `json:"email,omitempty" yaml:"email,omitempty"`
	Phone                   string          `json:"phone,omitempty" yaml:"phone,omitempty"`
	ApprovalTypes           []string        `json:"approval_types,omitempty" yaml:"approval_types,omitempty"`
	NotificationPreferences map[string]bool `json:"notification_preferences,omitempty" yaml:"notification_preferences,omitempty"`
	EscalationChain         []string        `json:"escalation_chain,omitempty" yaml:"escalation_chain,omitempty"`
	DelegateID              string          `json:"delegate_id,omitempty" yaml:"delegate_id,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
