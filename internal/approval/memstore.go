package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pitabwire/signoff/model"
)

// MemoryWorkflowStore is an in-memory WorkflowStore. Workflows are deep
// copied on the way in and out so callers never share state with the store.
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]model.ApprovalWorkflow
}

// NewMemoryWorkflowStore creates a new in-memory workflow store.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		workflows: make(map[string]model.ApprovalWorkflow),
	}
}

// Create persists a new workflow.
func (s *MemoryWorkflowStore) Create(_ context.Context, wf model.ApprovalWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[wf.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("workflow %q already exists", wf.ID))
	}
	s.workflows[wf.ID] = wf.Clone()
	return nil
}

// Get retrieves a workflow by ID.
func (s *MemoryWorkflowStore) Get(_ context.Context, workflowID string) (model.ApprovalWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, exists := s.workflows[workflowID]
	if !exists {
		return model.ApprovalWorkflow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	return wf.Clone(), nil
}

// Update persists an updated workflow with optimistic locking.
func (s *MemoryWorkflowStore) Update(_ context.Context, wf model.ApprovalWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.workflows[wf.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("workflow %q not found", wf.ID))
	}
	if existing.Version != wf.Version {
		return model.NewConflictError(
			fmt.Sprintf("workflow %q version conflict (expected %d, got %d)", wf.ID, wf.Version, existing.Version),
		)
	}

	stored := wf.Clone()
	stored.Version++
	s.workflows[wf.ID] = stored
	return nil
}

// List returns workflows newest first.
func (s *MemoryWorkflowStore) List(_ context.Context, filters model.WorkflowFilters) ([]model.ApprovalWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.ApprovalWorkflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		if filters.Status != "" && wf.Status != filters.Status {
			continue
		}
		result = append(result, wf)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return []model.ApprovalWorkflow{}, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(result) {
		result = result[:filters.Limit]
	}

	for i := range result {
		result[i] = result[i].Clone()
	}
	return result, nil
}

// Delete removes a workflow.
func (s *MemoryWorkflowStore) Delete(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflowID]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("workflow %q not found", workflowID))
	}
	delete(s.workflows, workflowID)
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryWorkflowStore) HealthCheck(context.Context) error { return nil }

// Len returns the number of stored workflows. For testing.
func (s *MemoryWorkflowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows)
}
