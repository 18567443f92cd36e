package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"studyhub/api/internal/academic"
	"studyhub/api/internal/auth"
	"studyhub/api/internal/email"
	"studyhub/api/internal/rbac"
	"studyhub/api/internal/store"
	"studyhub/api/internal/util"
)

// ResolveAccess determines the effective role a user holds on a document.
//
// Resolution order: platform admins and the owner bypass everything; then a
// collaborator entry is consulted, checking per-type expiry against the join
// date; then public documents grant the viewer role; then a standing access
// grant (study-group shares) grants viewer. Anything else is denied.
func (s *Service) ResolveAccess(ctx context.Context, doc store.Document, session Session) (rbac.Role, error) {
	if session.IsAdmin() {
		return rbac.RoleAdmin, nil
	}
	if doc.OwnerID == session.UserID {
		return rbac.RoleOwner, nil
	}

	collab, err := s.store.GetCollaborator(ctx, doc.ID, session.UserID)
	if err == nil {
		constraint, cErr := academic.ConstraintsFor(doc.DocumentType)
		if cErr != nil {
			return "", errUnknownDocumentType(doc.DocumentType)
		}
		if constraint.DefaultExpiryDays > 0 {
			expiresAt := collab.AddedAt.Add(time.Duration(constraint.DefaultExpiryDays) * 24 * time.Hour)
			if time.Now().After(expiresAt) {
				// The membership row is kept; the owner can refresh it by
				// re-enabling collaboration.
				return "", errCollaborationExpired(doc.DocumentType)
			}
		}
		return rbac.Role(collab.Role), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	if doc.AccessMode == "public" {
		return rbac.RoleViewer, nil
	}

	granted, err := s.store.HasAccessGrant(ctx, doc.ID, session.UserID)
	if err != nil {
		return "", err
	}
	if granted {
		return rbac.RoleViewer, nil
	}

	return "", errForbidden("")
}

// authorize loads the document and checks that the session may perform the
// action on it.
func (s *Service) authorize(ctx context.Context, documentID string, session Session, action rbac.Action) (store.Document, rbac.Role, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, "", errNotFound("Document")
		}
		return store.Document{}, "", err
	}

	role, err := s.ResolveAccess(ctx, doc, session)
	if err != nil {
		return store.Document{}, "", err
	}
	if !rbac.Can(role, action) {
		return store.Document{}, "", errInsufficientPermission(string(role), string(action))
	}
	return doc, role, nil
}

// EnableCollaboration turns collaboration on for a document. Owner only and
// idempotent. The owner is seeded as the first collaborator entry, so the
// per-type limit counts the owner.
func (s *Service) EnableCollaboration(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, err := s.ownedDocument(ctx, documentID, session)
	if err != nil {
		return nil, err
	}

	constraint, err := academic.ConstraintsFor(doc.DocumentType)
	if err != nil {
		return nil, errUnknownDocumentType(doc.DocumentType)
	}

	if !doc.CollaborationEnabled {
		var expiresAt *time.Time
		if constraint.DefaultExpiryDays > 0 {
			t := time.Now().Add(time.Duration(constraint.DefaultExpiryDays) * 24 * time.Hour)
			expiresAt = &t
		}
		if err := s.store.SetCollaborationEnabled(ctx, doc.ID, true, expiresAt); err != nil {
			return nil, err
		}
		doc.CollaborationEnabled = true
		doc.CollaborationExpiresAt = expiresAt
	}

	if err := s.store.AddCollaborator(ctx, store.Collaborator{
		DocumentID: doc.ID,
		UserID:     doc.OwnerID,
		Role:       string(rbac.RoleOwner),
		AddedBy:    session.UserID,
	}); err != nil {
		return nil, err
	}

	return s.collaborationPayload(ctx, doc)
}

// DisableCollaboration turns collaboration off and clears every collaborator,
// pending invitation, and access grant.
func (s *Service) DisableCollaboration(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, err := s.ownedDocument(ctx, documentID, session)
	if err != nil {
		return nil, err
	}

	if err := s.store.ClearCollaboration(ctx, doc.ID); err != nil {
		return nil, err
	}
	if err := s.store.SetCollaborationEnabled(ctx, doc.ID, false, nil); err != nil {
		return nil, err
	}
	s.reindexDocument(ctx, doc.ID)

	return map[string]any{
		"documentId":           doc.ID,
		"collaborationEnabled": false,
	}, nil
}

// Invite issues a signed invitation for a user to join a document with a
// role. The invitation does not touch the collaborator set; only accepting
// it does.
func (s *Service) Invite(ctx context.Context, session Session, documentID, inviteeEmail, roleName, message string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionInvite)
	if err != nil {
		return nil, err
	}
	if !doc.CollaborationEnabled {
		return nil, errForbidden("Collaboration is not enabled on this document")
	}

	constraint, err := academic.ConstraintsFor(doc.DocumentType)
	if err != nil {
		return nil, errUnknownDocumentType(doc.DocumentType)
	}

	role := rbac.Role(roleName)
	if !rbac.Valid(role) || !constraint.RoleAllowed(role) || role == rbac.RoleOwner {
		return nil, errInvalidRole(roleName, doc.DocumentType, constraint.AllowedRoleNames())
	}

	invitee, err := s.store.GetUserByEmail(ctx, inviteeEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("User")
		}
		return nil, err
	}
	if invitee.ID == doc.OwnerID {
		return nil, errAlreadyCollaborator()
	}
	if _, err := s.store.GetCollaborator(ctx, doc.ID, invitee.ID); err == nil {
		return nil, errAlreadyCollaborator()
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	pending, err := s.store.HasPendingInvitation(ctx, doc.ID, invitee.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, errValidation("An invitation for this user is already pending")
	}

	count, err := s.store.CountCollaborators(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if count >= constraint.MaxCollaborators {
		return nil, errCollaboratorLimit(doc.DocumentType, constraint.MaxCollaborators)
	}

	expiresAt := time.Now().Add(s.cfg.InviteTTL)
	token, err := auth.IssueInviteToken([]byte(s.cfg.JWTSecret), auth.InviteClaims{
		DocumentID:    doc.ID,
		InvitedUserID: invitee.ID,
		Role:          string(role),
		InvitedBy:     session.UserID,
	}, expiresAt)
	if err != nil {
		return nil, err
	}

	invitation := store.Invitation{
		ID:         util.NewID("inv"),
		DocumentID: doc.ID,
		UserID:     invitee.ID,
		Role:       string(role),
		InvitedBy:  session.UserID,
		TokenHash:  auth.HashToken(token),
		ExpiresAt:  expiresAt,
	}
	if err := s.store.InsertInvitation(ctx, invitation); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"invitationId": invitation.ID,
		"documentId":   doc.ID,
		"userId":       invitee.ID,
		"role":         string(role),
		"expiresAt":    expiresAt,
	}

	if s.SMTPConfigured() {
		data := email.InvitationData{
			UserName:      invitee.Name,
			InviterName:   session.UserName,
			DocumentTitle: doc.Title,
			Role:          string(role),
			Message:       strings.TrimSpace(message),
			AcceptURL:     s.cfg.AppBaseURL + "/collaborate/accept/" + token,
			RejectURL:     s.cfg.AppBaseURL + "/collaborate/reject/" + token,
		}
		go func() {
			if err := s.mailer.SendInvitationEmail(invitee.Email, data); err != nil {
				log.Printf("email: send invitation to %s: %v", invitee.Email, err)
			}
		}()
	} else {
		// Dev bypass: surface the token when no mail can go out.
		payload["token"] = token
	}

	return payload, nil
}

// AcceptInvitation redeems an invitation token for the calling user. The
// collaborator limit is re-validated at accept time inside a serialized
// check-and-insert, so concurrent accepts cannot breach it.
func (s *Service) AcceptInvitation(ctx context.Context, session Session, token string) (map[string]any, error) {
	claims, invitation, err := s.redeemableInvitation(ctx, session, token)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.GetDocument(ctx, claims.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Document")
		}
		return nil, err
	}
	if !doc.CollaborationEnabled {
		return nil, errForbidden("Collaboration is not enabled on this document")
	}

	constraint, err := academic.ConstraintsFor(doc.DocumentType)
	if err != nil {
		return nil, errUnknownDocumentType(doc.DocumentType)
	}

	err = s.store.AddCollaboratorWithinLimit(ctx, store.Collaborator{
		DocumentID: doc.ID,
		UserID:     session.UserID,
		Role:       claims.Role,
		AddedBy:    claims.InvitedBy,
	}, constraint.MaxCollaborators)
	switch {
	case errors.Is(err, store.ErrAlreadyCollaborator):
		return nil, errAlreadyCollaborator()
	case errors.Is(err, store.ErrCollaboratorLimit):
		return nil, errCollaboratorLimit(doc.DocumentType, constraint.MaxCollaborators)
	case errors.Is(err, sql.ErrNoRows):
		return nil, errNotFound("Document")
	case err != nil:
		return nil, err
	}

	if err := s.store.DeleteInvitation(ctx, invitation.ID); err != nil {
		return nil, err
	}
	s.reindexDocument(ctx, doc.ID)

	return map[string]any{
		"documentId": doc.ID,
		"userId":     session.UserID,
		"role":       claims.Role,
	}, nil
}

// RejectInvitation declines an invitation; the pending entry is removed and
// the collaborator set stays untouched.
func (s *Service) RejectInvitation(ctx context.Context, session Session, token string) (map[string]any, error) {
	claims, invitation, err := s.redeemableInvitation(ctx, session, token)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteInvitation(ctx, invitation.ID); err != nil {
		return nil, err
	}

	return map[string]any{
		"documentId": claims.DocumentID,
		"rejected":   true,
	}, nil
}

// redeemableInvitation verifies an invitation token cryptographically, checks
// it was issued to the caller, and confirms the pending entry still exists
// (disable clears it, which voids tokens that are otherwise still valid).
func (s *Service) redeemableInvitation(ctx context.Context, session Session, token string) (auth.InviteClaims, store.Invitation, error) {
	claims, err := auth.ParseInviteToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return auth.InviteClaims{}, store.Invitation{}, errTokenExpired()
		}
		return auth.InviteClaims{}, store.Invitation{}, errTokenInvalid()
	}
	if claims.InvitedUserID != session.UserID {
		return auth.InviteClaims{}, store.Invitation{}, errTokenMismatch()
	}

	invitation, err := s.store.GetInvitationByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.InviteClaims{}, store.Invitation{}, errTokenInvalid()
		}
		return auth.InviteClaims{}, store.Invitation{}, err
	}
	return claims, invitation, nil
}

// ListCollaboration returns the collaborator roster and pending invitations.
func (s *Service) ListCollaboration(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return s.collaborationPayload(ctx, doc)
}

// RemoveCollaborator removes a user from the document. The owner entry can
// never be removed.
func (s *Service) RemoveCollaborator(ctx context.Context, session Session, documentID, userID string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	if userID == doc.OwnerID {
		return nil, errCannotRemoveOwner()
	}

	if err := s.store.RemoveCollaborator(ctx, doc.ID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Collaborator")
		}
		return nil, err
	}
	s.reindexDocument(ctx, doc.ID)

	return map[string]any{
		"documentId": doc.ID,
		"userId":     userID,
		"removed":    true,
	}, nil
}

// UpdateCollaboratorRole changes a collaborator's role in place. The join
// date is untouched, so the expiry clock keeps running. The owner's role can
// never change.
func (s *Service) UpdateCollaboratorRole(ctx context.Context, session Session, documentID, userID, roleName string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	if userID == doc.OwnerID {
		return nil, errCannotChangeOwnerRole()
	}

	constraint, err := academic.ConstraintsFor(doc.DocumentType)
	if err != nil {
		return nil, errUnknownDocumentType(doc.DocumentType)
	}

	role := rbac.Role(roleName)
	if !rbac.Valid(role) || !constraint.RoleAllowed(role) || role == rbac.RoleOwner {
		return nil, errInvalidRole(roleName, doc.DocumentType, constraint.AllowedRoleNames())
	}

	if err := s.store.UpdateCollaboratorRole(ctx, doc.ID, userID, string(role)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Collaborator")
		}
		return nil, err
	}

	return map[string]any{
		"documentId": doc.ID,
		"userId":     userID,
		"role":       string(role),
	}, nil
}

// DocumentPermissions reports the caller's resolved role and action set on a
// document.
func (s *Service) DocumentPermissions(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Document")
		}
		return nil, err
	}

	role, err := s.ResolveAccess(ctx, doc, session)
	if err != nil {
		return nil, err
	}

	actions := rbac.Permissions(role)
	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}

	return map[string]any{
		"documentId":  doc.ID,
		"role":        string(role),
		"permissions": names,
	}, nil
}

func (s *Service) ownedDocument(ctx context.Context, documentID string, session Session) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, errNotFound("Document")
		}
		return store.Document{}, err
	}
	if doc.OwnerID != session.UserID && !session.IsAdmin() {
		return store.Document{}, errForbidden("Only the document owner can manage collaboration")
	}
	return doc, nil
}

func (s *Service) collaborationPayload(ctx context.Context, doc store.Document) (map[string]any, error) {
	collaborators, err := s.store.ListCollaborators(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	invitations, err := s.store.ListPendingInvitations(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	constraint, err := academic.ConstraintsFor(doc.DocumentType)
	if err != nil {
		return nil, errUnknownDocumentType(doc.DocumentType)
	}

	collabItems := make([]map[string]any, 0, len(collaborators))
	for _, c := range collaborators {
		collabItems = append(collabItems, map[string]any{
			"userId":  c.UserID,
			"name":    c.UserName,
			"email":   c.UserEmail,
			"role":    c.Role,
			"addedAt": c.AddedAt,
		})
	}

	inviteItems := make([]map[string]any, 0, len(invitations))
	for _, inv := range invitations {
		inviteItems = append(inviteItems, map[string]any{
			"invitationId": inv.ID,
			"userId":       inv.UserID,
			"name":         inv.UserName,
			"email":        inv.UserEmail,
			"role":         inv.Role,
			"invitedBy":    inv.InvitedByName,
			"expiresAt":    inv.ExpiresAt,
		})
	}

	payload := map[string]any{
		"documentId":           doc.ID,
		"collaborationEnabled": doc.CollaborationEnabled,
		"documentType":         doc.DocumentType,
		"maxCollaborators":     constraint.MaxCollaborators,
		"allowedRoles":         constraint.AllowedRoleNames(),
		"collaborators":        collabItems,
		"pendingInvitations":   inviteItems,
	}
	if doc.CollaborationExpiresAt != nil {
		payload["collaborationExpiresAt"] = doc.CollaborationExpiresAt
	}
	return payload, nil
}

// allowedUserIDs returns the user ids holding an access grant on a document.
func (s *Service) allowedUserIDs(ctx context.Context, documentID string) ([]string, error) {
	grants, err := s.store.ListAccessGrants(ctx, documentID)
	if err != nil {
		return nil, err
	}
	allowed := make([]string, 0, len(grants))
	for _, g := range grants {
		allowed = append(allowed, g.UserID)
	}
	return allowed, nil
}

// reindexDocument refreshes the access fields in the search index after a
// collaboration change. Discussion records denormalize the same fields, so
// every thread and reply on the document is refreshed alongside it.
func (s *Service) reindexDocument(ctx context.Context, documentID string) {
	if s.search == nil {
		return
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return
	}
	allowed, err := s.allowedUserIDs(ctx, documentID)
	if err != nil {
		return
	}
	s.search.IndexDocument(searchRecord(doc, allowed))

	threads, err := s.store.ListDiscussions(ctx, documentID)
	if err != nil {
		return
	}
	for _, d := range threads {
		s.search.IndexDiscussion(discussionSearchRecord(d, d.AuthorName, doc, allowed))
		replies, err := s.store.ListReplies(ctx, d.ID)
		if err != nil {
			continue
		}
		for _, reply := range replies {
			s.search.IndexDiscussion(discussionSearchRecord(reply, reply.AuthorName, doc, allowed))
		}
	}
}
