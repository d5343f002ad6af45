package catalog

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pitabwire/signoff/model"
)

// snapshot is an immutable, validated catalog.
type snapshot struct {
	requirements []model.ApprovalRequirement
	byID         map[string]int
	checksum     string
}

// Registry is a read-optimized, thread-safe holder of the current catalog.
// It uses atomic pointer swap for lock-free concurrent reads. Replacing the
// catalog never affects workflows that were already created from it.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry validates reqs and creates a Registry from them.
func NewRegistry(reqs []model.ApprovalRequirement) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(reqs); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates reqs and atomically swaps the registry contents.
func (r *Registry) Replace(reqs []model.ApprovalRequirement) error {
	if verrs := Validate(reqs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return fmt.Errorf("catalog: %w", errors.Join(errs...))
	}

	s := &snapshot{
		requirements: make([]model.ApprovalRequirement, len(reqs)),
		byID:         make(map[string]int, len(reqs)),
	}
	parts := make([]string, 0, len(reqs))
	for i, req := range reqs {
		s.requirements[i] = req.Clone()
		s.byID[req.ID] = i
		parts = append(parts, fmt.Sprintf("%s|%s|%d|%s|%s",
			req.ID, req.ApprovalType, req.MinimumApprovals,
			strings.Join(req.RequiredRoles, ","), req.Deadline.Format(time.RFC3339)))
	}
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(parts, ";"))))

	r.snap.Store(s)
	return nil
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Snapshot returns a deep copy of every requirement, in catalog order.
func (r *Registry) Snapshot() []model.ApprovalRequirement {
	s := r.current()
	out := make([]model.ApprovalRequirement, len(s.requirements))
	for i, req := range s.requirements {
		out[i] = req.Clone()
	}
	return out
}

// Get returns a copy of the requirement with the given ID.
func (r *Registry) Get(id string) (model.ApprovalRequirement, bool) {
	s := r.current()
	i, ok := s.byID[id]
	if !ok {
		return model.ApprovalRequirement{}, false
	}
	return s.requirements[i].Clone(), true
}

// Len returns the number of requirements.
func (r *Registry) Len() int {
	return len(r.current().requirements)
}

// Checksum identifies the current catalog contents.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
