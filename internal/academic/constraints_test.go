package academic

import (
	"errors"
	"testing"

	"studyhub/api/internal/rbac"
)

func TestConstraintsFor(t *testing.T) {
	cases := []struct {
		docType    string
		maxCollabs int
		expiryDays int
	}{
		{docType: "assignment", maxCollabs: 5, expiryDays: 30},
		{docType: "paper", maxCollabs: 3, expiryDays: 90},
		{docType: "notes", maxCollabs: 10, expiryDays: 0},
	}

	for _, tc := range cases {
		t.Run(tc.docType, func(t *testing.T) {
			c, err := ConstraintsFor(tc.docType)
			if err != nil {
				t.Fatalf("ConstraintsFor(%q): %v", tc.docType, err)
			}
			if c.MaxCollaborators != tc.maxCollabs {
				t.Fatalf("MaxCollaborators = %d, want %d", c.MaxCollaborators, tc.maxCollabs)
			}
			if c.DefaultExpiryDays != tc.expiryDays {
				t.Fatalf("DefaultExpiryDays = %d, want %d", c.DefaultExpiryDays, tc.expiryDays)
			}
		})
	}
}

func TestConstraintsForUnknownTypeIsHardStop(t *testing.T) {
	_, err := ConstraintsFor("thesis")
	if !errors.Is(err, ErrUnknownDocumentType) {
		t.Fatalf("expected ErrUnknownDocumentType, got %v", err)
	}
}

func TestRoleAllowed(t *testing.T) {
	assignment, err := ConstraintsFor("assignment")
	if err != nil {
		t.Fatal(err)
	}
	if !assignment.RoleAllowed(rbac.RoleEditor) {
		t.Fatal("editor should be allowed on assignment")
	}
	if assignment.RoleAllowed(rbac.RoleViewer) {
		t.Fatal("viewer should not be allowed on assignment")
	}

	notes, err := ConstraintsFor("notes")
	if err != nil {
		t.Fatal(err)
	}
	if notes.RoleAllowed(rbac.RoleEditor) {
		t.Fatal("editor should not be allowed on notes")
	}
	if !notes.RoleAllowed(rbac.RoleViewer) {
		t.Fatal("viewer should be allowed on notes")
	}
}

func TestKnownTypesAllHaveConstraints(t *testing.T) {
	for _, docType := range KnownTypes() {
		if _, err := ConstraintsFor(docType); err != nil {
			t.Fatalf("%q listed as known but has no constraints: %v", docType, err)
		}
	}
}
