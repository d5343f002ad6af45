package approval

import (
	"context"

	"github.com/pitabwire/signoff/model"
)

// WorkflowStore persists approval workflow aggregates.
type WorkflowStore interface {
	// Create persists a new workflow. Returns CONFLICT if the ID is taken.
	Create(ctx context.Context, wf model.ApprovalWorkflow) error

	// Get retrieves a workflow by ID. Returns NOT_FOUND if it doesn't exist.
	Get(ctx context.Context, workflowID string) (model.ApprovalWorkflow, error)

	// Update persists an updated workflow with optimistic locking.
	// The version must match the current stored version. Returns CONFLICT if
	// the version has changed. On success the stored version is incremented.
	Update(ctx context.Context, wf model.ApprovalWorkflow) error

	// List returns workflows ordered by creation time, newest first,
	// optionally filtered by overall status.
	List(ctx context.Context, filters model.WorkflowFilters) ([]model.ApprovalWorkflow, error)

	// Delete removes a workflow.
	Delete(ctx context.Context, workflowID string) error
}
