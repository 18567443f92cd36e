package app

import (
	"context"
	"testing"
)

func TestCreateDocumentDefaultsAndSnapshot(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")

	payload, err := svc.CreateDocument(context.Background(), sessionFor(owner), DocumentInput{
		Title:        "  Week 3 notes  ",
		Content:      "osmosis",
		DocumentType: "notes",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if payload["title"] != "Week 3 notes" {
		t.Fatalf("expected trimmed title, got %v", payload["title"])
	}
	if payload["accessMode"] != "private" {
		t.Fatalf("expected default private access mode, got %v", payload["accessMode"])
	}

	docID, _ := payload["id"].(string)
	versions := fs.versions[docID]
	if len(versions) != 1 || versions[0].Version != 1 {
		t.Fatalf("expected a version 1 snapshot, got %v", versions)
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")

	cases := []struct {
		name string
		in   DocumentInput
		code string
	}{
		{"missing title", DocumentInput{DocumentType: "notes"}, "VALIDATION_ERROR"},
		{"unknown type", DocumentInput{Title: "x", DocumentType: "thesis"}, "UNKNOWN_DOCUMENT_TYPE"},
		{"bad access mode", DocumentInput{Title: "x", DocumentType: "notes", AccessMode: "secret"}, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		_, err := svc.CreateDocument(context.Background(), sessionFor(owner), tc.in)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if code := domainCode(t, err); code != tc.code {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.code, code)
		}
	}
}

func TestUpdateDocumentSnapshotsOnContentChange(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")

	created, err := svc.CreateDocument(context.Background(), sessionFor(owner), DocumentInput{
		Title:        "Draft",
		Content:      "v1",
		DocumentType: "paper",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	docID, _ := created["id"].(string)

	if _, err := svc.UpdateDocument(context.Background(), sessionFor(owner), docID, DocumentInput{
		Content: "v2",
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := len(fs.versions[docID]); got != 2 {
		t.Fatalf("expected 2 snapshots after content edit, got %d", got)
	}

	// A tag-only edit does not snapshot.
	if _, err := svc.UpdateDocument(context.Background(), sessionFor(owner), docID, DocumentInput{
		Tags: []string{"biology"},
	}); err != nil {
		t.Fatalf("tag update: %v", err)
	}
	if got := len(fs.versions[docID]); got != 2 {
		t.Fatalf("expected snapshot count unchanged for tag edit, got %d", got)
	}

	v, err := svc.GetVersion(context.Background(), sessionFor(owner), docID, 1)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if v["content"] != "v1" {
		t.Fatalf("expected original content in version 1, got %v", v["content"])
	}
}

func TestUpdateDocumentTypeIsImmutable(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")
	doc := seedDocument(fs, "doc-1", owner.ID, "paper", "private")

	_, err := svc.UpdateDocument(context.Background(), sessionFor(owner), doc.ID, DocumentInput{
		DocumentType: "notes",
	})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestAccessModeChangeIsOwnerOnly(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")
	editor := seedUser(fs, "usr-2", "Noa", "noa@example.edu", "student")
	doc := seedDocument(fs, "doc-1", owner.ID, "assignment", "private")

	token := enableAndInvite(t, svc, fs, owner, doc.ID, "noa@example.edu", "editor")
	if _, err := svc.AcceptInvitation(context.Background(), sessionFor(editor), token); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Editors may write content but not flip the document public.
	_, err := svc.UpdateDocument(context.Background(), sessionFor(editor), doc.ID, DocumentInput{
		AccessMode: "public",
	})
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}

	if _, err := svc.UpdateDocument(context.Background(), sessionFor(editor), doc.ID, DocumentInput{
		Content: "editor contribution",
	}); err != nil {
		t.Fatalf("editor content update: %v", err)
	}
}

func TestListDocumentsVisibility(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")
	other := seedUser(fs, "usr-2", "Noa", "noa@example.edu", "student")
	seedDocument(fs, "doc-own", owner.ID, "notes", "private")
	seedDocument(fs, "doc-pub", owner.ID, "notes", "public")
	seedDocument(fs, "doc-hidden", owner.ID, "paper", "private")

	payload, err := svc.ListDocuments(context.Background(), sessionFor(other))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	docs, _ := payload["documents"].([]map[string]any)
	if len(docs) != 1 {
		t.Fatalf("expected only the public document, got %d", len(docs))
	}
	if docs[0]["id"] != "doc-pub" {
		t.Fatalf("expected doc-pub, got %v", docs[0]["id"])
	}
}

func TestDeleteDocumentRequiresDeletePermission(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	owner := seedUser(fs, "usr-1", "Mina", "mina@example.edu", "student")
	editor := seedUser(fs, "usr-2", "Noa", "noa@example.edu", "student")
	doc := seedDocument(fs, "doc-1", owner.ID, "assignment", "private")

	token := enableAndInvite(t, svc, fs, owner, doc.ID, "noa@example.edu", "editor")
	if _, err := svc.AcceptInvitation(context.Background(), sessionFor(editor), token); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := svc.DeleteDocument(context.Background(), sessionFor(editor), doc.ID)
	if code := domainCode(t, err); code != "INSUFFICIENT_PERMISSION" {
		t.Fatalf("expected INSUFFICIENT_PERMISSION, got %s", code)
	}

	if _, err := svc.DeleteDocument(context.Background(), sessionFor(owner), doc.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, ok := fs.documents[doc.ID]; ok {
		t.Fatalf("expected document removed")
	}
}
