package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"studyhub/api/internal/academic"
	"studyhub/api/internal/rbac"
	"studyhub/api/internal/search"
	"studyhub/api/internal/store"
	"studyhub/api/internal/util"
)

// DocumentInput carries the writable document fields from a request body.
type DocumentInput struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	DocumentType string   `json:"documentType"`
	AccessMode   string   `json:"accessMode"`
	Tags         []string `json:"tags"`
}

func validAccessMode(mode string) bool {
	return mode == "private" || mode == "public"
}

// CreateDocument stores a new document owned by the caller and snapshots it
// as version 1.
func (s *Service) CreateDocument(ctx context.Context, session Session, in DocumentInput) (map[string]any, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, errValidation("Title is required")
	}
	if _, err := academic.ConstraintsFor(in.DocumentType); err != nil {
		return nil, errUnknownDocumentType(in.DocumentType)
	}
	if in.AccessMode == "" {
		in.AccessMode = "private"
	}
	if !validAccessMode(in.AccessMode) {
		return nil, errValidation("Access mode must be private or public")
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	doc := store.Document{
		ID:           util.NewID("doc"),
		OwnerID:      session.UserID,
		Title:        in.Title,
		Content:      in.Content,
		DocumentType: in.DocumentType,
		AccessMode:   in.AccessMode,
		Tags:         in.Tags,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.snapshotVersion(ctx, doc, session.UserID); err != nil {
		return nil, err
	}
	s.reindexDocument(ctx, doc.ID)

	return s.documentPayload(ctx, session, doc.ID)
}

// ListDocuments returns every document visible to the caller: owned, public,
// collaborated on, or shared through a group.
func (s *Service) ListDocuments(ctx context.Context, session Session) (map[string]any, error) {
	docs, err := s.store.ListDocumentsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentSummary(doc))
	}
	return map[string]any{"documents": items, "total": len(items)}, nil
}

// GetDocument returns a single document if the caller may read it.
func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.documentPayload(ctx, session, documentID)
}

// UpdateDocument applies edits and snapshots a new version when the content
// changed. The document type is fixed at creation.
func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, in DocumentInput) (map[string]any, error) {
	doc, role, err := s.authorize(ctx, documentID, session, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if in.DocumentType != "" && in.DocumentType != doc.DocumentType {
		return nil, errValidation("Document type cannot be changed")
	}
	if in.AccessMode != "" {
		if !validAccessMode(in.AccessMode) {
			return nil, errValidation("Access mode must be private or public")
		}
		if in.AccessMode != doc.AccessMode && role != rbac.RoleOwner && role != rbac.RoleAdmin {
			return nil, errForbidden("Only the document owner can change the access mode")
		}
		doc.AccessMode = in.AccessMode
	}

	contentChanged := false
	if in.Title != "" && strings.TrimSpace(in.Title) != doc.Title {
		doc.Title = strings.TrimSpace(in.Title)
		contentChanged = true
	}
	if in.Content != "" && in.Content != doc.Content {
		doc.Content = in.Content
		contentChanged = true
	}
	if in.Tags != nil {
		doc.Tags = in.Tags
	}

	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	if contentChanged {
		if err := s.snapshotVersion(ctx, doc, session.UserID); err != nil {
			return nil, err
		}
	}
	s.reindexDocument(ctx, doc.ID)

	return s.documentPayload(ctx, session, doc.ID)
}

// DeleteDocument removes a document along with its stored file and search
// index entry.
func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionDelete)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.DeleteDocument(doc.ID)
	}
	if s.filestore != nil && doc.FileKey != "" {
		if err := s.filestore.Delete(ctx, doc.FileKey); err != nil {
			// The row is gone; an orphaned object just takes space.
			log.Printf("files: delete %s: %v", doc.FileKey, err)
		}
	}

	return map[string]any{"documentId": doc.ID, "deleted": true}, nil
}

// AttachFile stores an uploaded file for the document in object storage.
func (s *Service) AttachFile(ctx context.Context, session Session, documentID, fileName, mimeType string, size int64, r io.Reader) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if s.filestore == nil {
		return nil, errValidation("File storage is not configured")
	}
	if fileName == "" {
		return nil, errValidation("File name is required")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := doc.ID + "/" + util.NewID("file")
	if err := s.filestore.Put(ctx, key, r, size, mimeType); err != nil {
		return nil, err
	}
	if old := doc.FileKey; old != "" && old != key {
		_ = s.filestore.Delete(ctx, old)
	}
	if err := s.store.UpdateDocumentFile(ctx, doc.ID, key, fileName, mimeType, size); err != nil {
		return nil, err
	}

	return map[string]any{
		"documentId": doc.ID,
		"fileName":   fileName,
		"fileSize":   size,
		"mimeType":   mimeType,
	}, nil
}

// FileDownloadURL returns a short-lived presigned URL for the document's
// attached file.
func (s *Service) FileDownloadURL(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if s.filestore == nil || doc.FileKey == "" {
		return nil, errNotFound("File")
	}

	url, err := s.filestore.PresignedGetURL(ctx, doc.FileKey, doc.FileName, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"url":      url,
		"fileName": doc.FileName,
		"mimeType": doc.MimeType,
	}, nil
}

// ListVersions returns the version history of a document, newest first.
func (s *Service) ListVersions(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead)
	if err != nil {
		return nil, err
	}

	versions, err := s.store.ListDocumentVersions(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, map[string]any{
			"version":   v.Version,
			"title":     v.Title,
			"editedBy":  v.EditedByName,
			"createdAt": v.CreatedAt,
		})
	}
	return map[string]any{"documentId": doc.ID, "versions": items}, nil
}

// GetVersion returns one historical snapshot including its content.
func (s *Service) GetVersion(ctx context.Context, session Session, documentID string, version int) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead)
	if err != nil {
		return nil, err
	}

	v, err := s.store.GetDocumentVersion(ctx, doc.ID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Version")
		}
		return nil, err
	}
	return map[string]any{
		"documentId": doc.ID,
		"version":    v.Version,
		"title":      v.Title,
		"content":    v.Content,
		"editedBy":   v.EditedByName,
		"createdAt":  v.CreatedAt,
	}, nil
}

// Search runs a scoped full-text search across documents and discussions.
func (s *Service) Search(ctx context.Context, session Session, q search.Query) (map[string]any, error) {
	if s.search == nil {
		return nil, errValidation("Search is not configured")
	}
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, errValidation("Search query is required")
	}
	q.UserID = session.UserID
	if q.Limit <= 0 || q.Limit > 50 {
		q.Limit = 20
	}

	resp := s.search.Search(q)
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}

func (s *Service) snapshotVersion(ctx context.Context, doc store.Document, editorID string) error {
	return s.store.InsertDocumentVersion(ctx, store.DocumentVersion{
		ID:         util.NewID("ver"),
		DocumentID: doc.ID,
		Title:      doc.Title,
		Content:    doc.Content,
		EditedBy:   editorID,
	})
}

func (s *Service) documentPayload(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Document")
		}
		return nil, err
	}

	payload := documentSummary(doc)
	payload["content"] = doc.Content

	role, err := s.ResolveAccess(ctx, doc, session)
	if err == nil {
		payload["myRole"] = string(role)
	}
	return payload, nil
}

func documentSummary(doc store.Document) map[string]any {
	payload := map[string]any{
		"id":                   doc.ID,
		"ownerId":              doc.OwnerID,
		"ownerName":            doc.OwnerName,
		"title":                doc.Title,
		"documentType":         doc.DocumentType,
		"accessMode":           doc.AccessMode,
		"tags":                 doc.Tags,
		"collaborationEnabled": doc.CollaborationEnabled,
		"createdAt":            doc.CreatedAt,
		"updatedAt":            doc.UpdatedAt,
	}
	if doc.CollaborationExpiresAt != nil {
		payload["collaborationExpiresAt"] = doc.CollaborationExpiresAt
	}
	if doc.FileKey != "" {
		payload["fileName"] = doc.FileName
		payload["fileSize"] = doc.FileSize
		payload["mimeType"] = doc.MimeType
	}
	return payload
}

func searchRecord(doc store.Document, allowedUserIDs []string) search.DocumentRecord {
	allowed := append([]string{doc.OwnerID}, allowedUserIDs...)
	return search.DocumentRecord{
		ID:             doc.ID,
		Title:          doc.Title,
		Content:        doc.Content,
		DocumentType:   doc.DocumentType,
		AccessMode:     doc.AccessMode,
		OwnerID:        doc.OwnerID,
		Tags:           doc.Tags,
		AllowedUserIDs: allowed,
	}
}

func discussionSearchRecord(d store.Discussion, authorName string, doc store.Document, allowedUserIDs []string) search.DiscussionRecord {
	allowed := append([]string{doc.OwnerID}, allowedUserIDs...)
	return search.DiscussionRecord{
		ID:             d.ID,
		Content:        d.Content,
		AuthorName:     authorName,
		DocumentID:     d.DocumentID,
		AccessMode:     doc.AccessMode,
		OwnerID:        doc.OwnerID,
		AllowedUserIDs: allowed,
	}
}
