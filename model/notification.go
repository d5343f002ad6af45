package model

import "time"

// Notification kinds.
const (
	NotificationReviewRequested = "review_requested"
	NotificationEscalated       = "escalated"
)

// Notification is handed to the out-of-band notifier. It carries a snapshot;
// the notifier must not assume it reflects later workflow state.
type Notification struct {
	Kind          string               `json:"kind"`
	WorkflowID    string               `json:"workflow_id"`
	ProjectName   string               `json:"project_name"`
	RequirementID string               `json:"requirement_id,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Recipient     StakeholderProfile   `json:"recipient"`
	Approval      *StakeholderApproval `json:"approval,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
