// Package notify delivers approval notifications over an out-of-band channel.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/signoff/model"
)

// Message is the serialised form of a notification. Trace carries the W3C
// trace context of the operation that produced it.
type Message struct {
	Kind           string                     `json:"kind"`
	WorkflowID     string                     `json:"workflow_id"`
	ProjectName    string                     `json:"project_name"`
	RequirementID  string                     `json:"requirement_id,omitempty"`
	Reason         string                     `json:"reason,omitempty"`
	RecipientID    string                     `json:"recipient_id"`
	RecipientName  string                     `json:"recipient_name"`
	RecipientEmail string                     `json:"recipient_email,omitempty"`
	Approval       *model.StakeholderApproval `json:"approval,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	Trace          map[string]string          `json:"trace,omitempty"`
}

// NewMessage flattens a notification into its wire form.
func NewMessage(n model.Notification, trace map[string]string) Message {
	return Message{
		Kind:           n.Kind,
		WorkflowID:     n.WorkflowID,
		ProjectName:    n.ProjectName,
		RequirementID:  n.RequirementID,
		Reason:         n.Reason,
		RecipientID:    n.Recipient.ID,
		RecipientName:  n.Recipient.Name,
		RecipientEmail: n.Recipient.Email,
		Approval:       n.Approval,
		CreatedAt:      n.CreatedAt,
		Trace:          trace,
	}
}

// LogNotifier writes notifications to a zap logger. It never fails.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, note model.Notification) error {
	fields := []zap.Field{
		zap.String("kind", note.Kind),
		zap.String("workflow_id", note.WorkflowID),
		zap.String("recipient_id", note.Recipient.ID),
		zap.String("recipient_email", note.Recipient.Email),
	}
	if note.RequirementID != "" {
		fields = append(fields, zap.String("requirement_id", note.RequirementID))
	}
	if note.Reason != "" {
		fields = append(fields, zap.String("reason", note.Reason))
	}
	n.logger.Info("notification", fields...)
	return nil
}

// Nop discards every notification.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, model.Notification) error { return nil }
