// Package academic holds the per-document-type collaboration constraints.
package academic

import (
	"errors"
	"fmt"

	"studyhub/api/internal/rbac"
)

// ErrUnknownDocumentType means the document carries a type with no constraint
// row. Callers must treat this as a hard stop: proceeding would allow
// unconstrained collaboration.
var ErrUnknownDocumentType = errors.New("unknown document type")

// Constraint describes the collaboration rules for one document type.
type Constraint struct {
	MaxCollaborators  int
	AllowedRoles      []rbac.Role
	DefaultExpiryDays int // 0 = collaboration access never expires
	Description       string
}

var constraints = map[string]Constraint{
	"assignment": {
		MaxCollaborators:  5,
		AllowedRoles:      []rbac.Role{rbac.RoleOwner, rbac.RoleEditor},
		DefaultExpiryDays: 30,
		Description:       "Group assignment collaboration",
	},
	"paper": {
		MaxCollaborators:  3,
		AllowedRoles:      []rbac.Role{rbac.RoleOwner, rbac.RoleEditor, rbac.RoleViewer},
		DefaultExpiryDays: 90,
		Description:       "Academic paper collaboration",
	},
	"notes": {
		MaxCollaborators:  10,
		AllowedRoles:      []rbac.Role{rbac.RoleOwner, rbac.RoleViewer},
		DefaultExpiryDays: 0,
		Description:       "Study notes sharing",
	},
}

// ConstraintsFor returns the constraint row for a document type.
func ConstraintsFor(documentType string) (Constraint, error) {
	c, ok := constraints[documentType]
	if !ok {
		return Constraint{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, documentType)
	}
	return c, nil
}

// RoleAllowed reports whether a collaborator role is permitted for the type.
func (c Constraint) RoleAllowed(role rbac.Role) bool {
	for _, allowed := range c.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// AllowedRoleNames returns the allowed roles as strings, most privileged first.
func (c Constraint) AllowedRoleNames() []string {
	names := make([]string, len(c.AllowedRoles))
	for i, role := range c.AllowedRoles {
		names[i] = string(role)
	}
	return names
}

// KnownTypes lists every document type that has a constraint row.
func KnownTypes() []string {
	return []string{"assignment", "paper", "notes"}
}
