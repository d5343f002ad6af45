// Package catalog loads, validates and serves the immutable set of approval
// requirement templates that every new workflow is seeded from.
package catalog

import (
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/signoff/model"
)

// File is the on-disk shape of a requirement catalog.
type File struct {
	Requirements []RequirementSpec `yaml:"requirements"`
}

// RequirementSpec is a requirement as written in YAML. Exactly one of
// Deadline or DueIn should be set; DueIn is resolved against the load time.
type RequirementSpec struct {
	ID                    string        `yaml:"id"`
	ApprovalType          string        `yaml:"approval_type"`
	RequiredRoles         []string      `yaml:"required_roles"`
	MinimumApprovals      int           `yaml:"minimum_approvals"`
	Description           string        `yaml:"description"`
	RequiredDocumentation []string      `yaml:"required_documentation"`
	Deadline              *time.Time    `yaml:"deadline"`
	DueIn                 time.Duration `yaml:"due_in"`
	Priority              string        `yaml:"priority"`
	Dependencies          []string      `yaml:"dependencies"`
}

// Loaded is the result of parsing a catalog file.
type Loaded struct {
	Requirements []model.ApprovalRequirement
	Checksum     string
	SourceFile   string
}

// Loader parses catalog YAML files.
type Loader struct {
	now func() time.Time
}

// NewLoader creates a Loader that resolves relative deadlines against now.
func NewLoader(now func() time.Time) *Loader {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Loader{now: now}
}

// LoadFile reads and parses a single catalog file and computes its SHA-256
// checksum. The result is not validated; pass it through Validate.
func (l *Loader) LoadFile(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, fmt.Errorf("reading %s: %w", path, err)
	}

	reqs, err := l.Parse(data)
	if err != nil {
		return Loaded{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	return Loaded{
		Requirements: reqs,
		Checksum:     fmt.Sprintf("%x", sha256.Sum256(data)),
		SourceFile:   path,
	}, nil
}

// Parse converts raw YAML into requirement templates.
func (l *Loader) Parse(data []byte) ([]model.ApprovalRequirement, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	now := l.now()
	reqs := make([]model.ApprovalRequirement, 0, len(f.Requirements))
	for _, s := range f.Requirements {
		r := model.ApprovalRequirement{
			ID:                    s.ID,
			ApprovalType:          s.ApprovalType,
			RequiredRoles:         s.RequiredRoles,
			MinimumApprovals:      s.MinimumApprovals,
			Description:           s.Description,
			RequiredDocumentation: s.RequiredDocumentation,
			Priority:              s.Priority,
			Dependencies:          s.Dependencies,
		}
		switch {
		case s.Deadline != nil:
			r.Deadline = s.Deadline.UTC()
		case s.DueIn > 0:
			r.Deadline = now.Add(s.DueIn)
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}
