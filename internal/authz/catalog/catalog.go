// Package catalog holds the static role → permission-set table and the
// annotation-type → minimum-permission-set mapping. Definitions are embedded
// at build time; the catalog is immutable after construction and safe for
// concurrent readers.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"authzd/internal/authz/model"
)

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownAnnotation = errors.New("unknown annotation type")
)

// roleRank orders the predefined tiers for HighestRole. Unknown roles rank
// lowest.
var roleRank = map[string]int{
	model.RoleFreeUser:       1,
	model.RolePremiumUser:    2,
	model.RoleEnterpriseUser: 3,
	model.RoleAdmin:          4,
}

type Catalog struct {
	roles       map[string]*model.RoleDefinition
	annotations map[model.AnnotationType][]model.Permission
}

// New loads the embedded definitions.
func New() (*Catalog, error) {
	loader := NewLoader()

	roles, err := loader.LoadRoles()
	if err != nil {
		return nil, fmt.Errorf("failed to load role definitions: %w", err)
	}

	annotations, err := loader.LoadAnnotations()
	if err != nil {
		return nil, fmt.Errorf("failed to load annotation mapping: %w", err)
	}

	return &Catalog{roles: roles, annotations: annotations}, nil
}

// Role returns the definition for name, or ErrUnknownRole.
func (c *Catalog) Role(name string) (*model.RoleDefinition, error) {
	def, ok := c.roles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return def, nil
}

// HasRole reports whether name is a defined role.
func (c *Catalog) HasRole(name string) bool {
	_, ok := c.roles[name]
	return ok
}

// Roles returns all defined role names, sorted.
func (c *Catalog) Roles() []string {
	names := make([]string, 0, len(c.roles))
	for name := range c.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredPermissions returns the minimum permission set for an annotation
// type, or ErrUnknownAnnotation. The returned slice must not be mutated.
func (c *Catalog) RequiredPermissions(at model.AnnotationType) ([]model.Permission, error) {
	perms, ok := c.annotations[at]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnnotation, at)
	}
	return perms, nil
}

// HighestRole returns the highest-ranked of the given roles under the
// predefined tier ordering, or "" when the list is empty.
func (c *Catalog) HighestRole(roles []string) string {
	best := ""
	bestRank := -1
	for _, r := range roles {
		if rank := roleRank[r]; rank > bestRank {
			best = r
			bestRank = rank
		}
	}
	return best
}

// TotalPermissions counts the permission entries across all roles.
func (c *Catalog) TotalPermissions() int {
	n := 0
	for _, def := range c.roles {
		n += len(def.Permissions)
	}
	return n
}
