package catalog

import (
	"fmt"

	"github.com/pitabwire/signoff/model"
)

// VError describes a single validation error in a catalog.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var validPriorities = map[string]bool{
	model.PriorityCritical: true,
	model.PriorityHigh:     true,
	model.PriorityMedium:   true,
	model.PriorityLow:      true,
}

// Validate checks requirement templates structurally and referentially.
// Approval types must be unique across the catalog: decision records are
// matched to requirements by type, so a shared type would merge two
// requirements' approval pools.
func Validate(reqs []model.ApprovalRequirement) []VError {
	var errs []VError

	ids := make(map[string]int, len(reqs))
	types := make(map[string]string, len(reqs))

	for i, r := range reqs {
		prefix := fmt.Sprintf("requirements[%d]", i)

		if r.ID == "" {
			errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
		} else if prev, dup := ids[r.ID]; dup {
			errs = append(errs, VError{
				Path:    prefix + ".id",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("id %q already defined at requirements[%d]", r.ID, prev),
			})
		} else {
			ids[r.ID] = i
		}

		if r.ApprovalType == "" {
			errs = append(errs, VError{Path: prefix + ".approval_type", Code: "REQUIRED", Message: "approval_type is required"})
		} else if owner, dup := types[r.ApprovalType]; dup {
			errs = append(errs, VError{
				Path:    prefix + ".approval_type",
				Code:    "SHARED_APPROVAL_TYPE",
				Message: fmt.Sprintf("approval_type %q already used by %q", r.ApprovalType, owner),
			})
		} else {
			types[r.ApprovalType] = r.ID
		}

		errs = append(errs, validateRoles(prefix, r)...)

		if r.Deadline.IsZero() {
			errs = append(errs, VError{Path: prefix + ".deadline", Code: "REQUIRED", Message: "deadline or due_in is required"})
		}
		if r.Priority != "" && !validPriorities[r.Priority] {
			errs = append(errs, VError{Path: prefix + ".priority", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid priority %q", r.Priority)})
		}
	}

	for i, r := range reqs {
		for j, dep := range r.Dependencies {
			path := fmt.Sprintf("requirements[%d].dependencies[%d]", i, j)
			if dep == r.ID {
				errs = append(errs, VError{Path: path, Code: "SELF_REFERENCE", Message: "requirement cannot depend on itself"})
				continue
			}
			if _, ok := ids[dep]; !ok {
				errs = append(errs, VError{Path: path, Code: "REF_NOT_FOUND", Message: fmt.Sprintf("requirement %q not found", dep)})
			}
		}
	}

	if cycle := findCycle(reqs); cycle != "" {
		errs = append(errs, VError{Path: "requirements", Code: "DEPENDENCY_CYCLE", Message: fmt.Sprintf("dependency cycle through %q", cycle)})
	}

	return errs
}

func validateRoles(prefix string, r model.ApprovalRequirement) []VError {
	var errs []VError

	if len(r.RequiredRoles) == 0 {
		return []VError{{Path: prefix + ".required_roles", Code: "REQUIRED", Message: "at least one required role is needed"}}
	}

	seen := make(map[string]bool, len(r.RequiredRoles))
	for j, role := range r.RequiredRoles {
		if role == "" {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.required_roles[%d]", prefix, j), Code: "REQUIRED", Message: "role is empty"})
			continue
		}
		if seen[role] {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.required_roles[%d]", prefix, j), Code: "DUPLICATE", Message: fmt.Sprintf("role %q listed twice", role)})
		}
		seen[role] = true
	}

	if r.MinimumApprovals < 1 || r.MinimumApprovals > len(r.RequiredRoles) {
		errs = append(errs, VError{
			Path:    prefix + ".minimum_approvals",
			Code:    "RANGE",
			Message: fmt.Sprintf("minimum_approvals must be 1-%d", len(r.RequiredRoles)),
		})
	}
	return errs
}

// findCycle returns the id of a requirement on a dependency cycle, or "".
func findCycle(reqs []model.ApprovalRequirement) string {
	deps := make(map[string][]string, len(reqs))
	for _, r := range reqs {
		deps[r.ID] = r.Dependencies
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(reqs))

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, d := range deps[id] {
			if d == id {
				continue
			}
			if _, known := deps[d]; !known {
				continue
			}
			if c := visit(d); c != "" {
				return c
			}
		}
		state[id] = done
		return ""
	}

	for _, r := range reqs {
		if c := visit(r.ID); c != "" {
			return c
		}
	}
	return ""
}
