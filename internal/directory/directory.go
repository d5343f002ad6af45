// Package directory maps approval roles to the single stakeholder profile
// that holds each role.
package directory

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/signoff/model"
)

// Directory is an immutable role -> profile index. Duplicate roles or
// stakeholder ids are rejected at construction, so every lookup has at most
// one match.
type Directory struct {
	byRole map[string]model.StakeholderProfile
	byID   map[string]model.StakeholderProfile
	order  []string
}

// New builds a Directory from profiles.
func New(profiles []model.StakeholderProfile) (*Directory, error) {
	d := &Directory{
		byRole: make(map[string]model.StakeholderProfile, len(profiles)),
		byID:   make(map[string]model.StakeholderProfile, len(profiles)),
		order:  make([]string, 0, len(profiles)),
	}

	for i, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("directory: profiles[%d]: id is required", i)
		}
		if p.Role == "" {
			return nil, fmt.Errorf("directory: profiles[%d]: role is required", i)
		}
		if prev, dup := d.byRole[p.Role]; dup {
			return nil, fmt.Errorf("directory: role %q already held by %q", p.Role, prev.ID)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("directory: stakeholder id %q registered twice", p.ID)
		}
		d.byRole[p.Role] = p
		d.byID[p.ID] = p
		d.order = append(d.order, p.ID)
	}

	return d, nil
}

// ByRole returns the profile holding role.
func (d *Directory) ByRole(role string) (model.StakeholderProfile, bool) {
	p, ok := d.byRole[role]
	return p, ok
}

// ByID returns the profile with the given stakeholder id.
func (d *Directory) ByID(id string) (model.StakeholderProfile, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// All returns every profile in registration order.
func (d *Directory) All() []model.StakeholderProfile {
	out := make([]model.StakeholderProfile, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// MissingRoles returns the roles from the list with no profile, sorted.
func (d *Directory) MissingRoles(roles []string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, r := range roles {
		if _, ok := d.byRole[r]; !ok && !seen[r] {
			missing = append(missing, r)
			seen[r] = true
		}
	}
	sort.Strings(missing)
	return missing
}

type file struct {
	Stakeholders []model.StakeholderProfile `yaml:"stakeholders"`
}

// LoadFile reads a YAML directory file and builds a Directory from it.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return New(f.Stakeholders)
}
