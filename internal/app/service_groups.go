package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"studyhub/api/internal/rbac"
	"studyhub/api/internal/store"
	"studyhub/api/internal/util"
)

// maxGroupMembers caps a study group, owner included.
const maxGroupMembers = 10

// CreateDiscussion posts a comment on a document, optionally as a reply to an
// existing thread.
func (s *Service) CreateDiscussion(ctx context.Context, session Session, documentID, content string, parentID *string) (map[string]any, error) {
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionComment)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("Comment content is required")
	}
	if parentID != nil {
		parent, err := s.store.GetDiscussion(ctx, *parentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errNotFound("Discussion")
			}
			return nil, err
		}
		if parent.DocumentID != documentID {
			return nil, errValidation("Parent discussion belongs to another document")
		}
		if parent.ParentID != nil {
			// One level of nesting only; replying to a reply joins its thread.
			parentID = parent.ParentID
		}
	}

	d := store.Discussion{
		ID:         util.NewID("dis"),
		DocumentID: documentID,
		ParentID:   parentID,
		AuthorID:   session.UserID,
		Content:    content,
	}
	if err := s.store.InsertDiscussion(ctx, d); err != nil {
		return nil, err
	}
	if s.search != nil {
		allowed, _ := s.allowedUserIDs(ctx, doc.ID)
		s.search.IndexDiscussion(discussionSearchRecord(d, session.UserName, doc, allowed))
	}

	return map[string]any{
		"id":         d.ID,
		"documentId": d.DocumentID,
		"parentId":   d.ParentID,
		"content":    d.Content,
		"authorId":   session.UserID,
		"authorName": session.UserName,
	}, nil
}

// ListDiscussions returns top-level threads for a document with reply counts
// and reaction tallies.
func (s *Service) ListDiscussions(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead); err != nil {
		return nil, err
	}

	threads, err := s.store.ListDiscussions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(threads))
	for _, d := range threads {
		item, err := s.discussionPayload(ctx, d)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return map[string]any{"documentId": documentID, "discussions": items}, nil
}

// ListReplies returns the replies of one thread in posting order.
func (s *Service) ListReplies(ctx context.Context, session Session, discussionID string) (map[string]any, error) {
	parent, err := s.readableDiscussion(ctx, session, discussionID)
	if err != nil {
		return nil, err
	}

	replies, err := s.store.ListReplies(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(replies))
	for _, d := range replies {
		item, err := s.discussionPayload(ctx, d)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return map[string]any{"discussionId": parent.ID, "replies": items}, nil
}

// ToggleReaction adds an emoji reaction for the caller, or removes it if
// already present.
func (s *Service) ToggleReaction(ctx context.Context, session Session, discussionID, emoji string) (map[string]any, error) {
	if _, err := s.readableDiscussion(ctx, session, discussionID); err != nil {
		return nil, err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, errValidation("Emoji is required")
	}

	added, err := s.store.ToggleReaction(ctx, discussionID, session.UserID, emoji)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ListReactionCounts(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	tally := make(map[string]int, len(counts))
	for _, c := range counts {
		tally[c.Emoji] = c.Count
	}
	return map[string]any{
		"discussionId": discussionID,
		"emoji":        emoji,
		"added":        added,
		"reactions":    tally,
	}, nil
}

// ResolveDiscussion marks a thread resolved or unresolved. Only the thread
// author or someone with manage rights on the document may do it.
func (s *Service) ResolveDiscussion(ctx context.Context, session Session, discussionID string, resolved bool) (map[string]any, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Discussion")
		}
		return nil, err
	}
	if d.ParentID != nil {
		return nil, errValidation("Only top-level discussions can be resolved")
	}

	if d.AuthorID != session.UserID {
		if _, _, err := s.authorize(ctx, d.DocumentID, session, rbac.ActionManage); err != nil {
			return nil, err
		}
	} else if _, _, err := s.authorize(ctx, d.DocumentID, session, rbac.ActionRead); err != nil {
		return nil, err
	}

	if err := s.store.SetDiscussionResolved(ctx, discussionID, resolved); err != nil {
		return nil, err
	}
	return map[string]any{"discussionId": discussionID, "resolved": resolved}, nil
}

// CreateStudyGroup creates a group owned by the caller; the owner is its
// first member.
func (s *Service) CreateStudyGroup(ctx context.Context, session Session, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("Group name is required")
	}

	g := store.StudyGroup{
		ID:          util.NewID("grp"),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     session.UserID,
	}
	if err := s.store.InsertStudyGroup(ctx, g); err != nil {
		return nil, err
	}
	return s.groupPayload(ctx, g.ID)
}

// ListStudyGroups returns the groups the caller belongs to.
func (s *Service) ListStudyGroups(ctx context.Context, session Session) (map[string]any, error) {
	groups, err := s.store.ListStudyGroupsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		items = append(items, groupSummary(g))
	}
	return map[string]any{"groups": items, "total": len(items)}, nil
}

// GetStudyGroup returns group details and its member roster. Members only.
func (s *Service) GetStudyGroup(ctx context.Context, session Session, groupID string) (map[string]any, error) {
	if err := s.requireGroupMember(ctx, groupID, session); err != nil {
		return nil, err
	}
	return s.groupPayload(ctx, groupID)
}

// UpdateStudyGroup renames a group or changes its description. Owner only.
func (s *Service) UpdateStudyGroup(ctx context.Context, session Session, groupID, name, description string) (map[string]any, error) {
	g, err := s.store.GetStudyGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Study group")
		}
		return nil, err
	}
	if g.OwnerID != session.UserID && !session.IsAdmin() {
		return nil, errForbidden("Only the group owner can update the group")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("Group name is required")
	}
	if err := s.store.UpdateStudyGroup(ctx, groupID, name, strings.TrimSpace(description)); err != nil {
		return nil, err
	}
	return s.groupPayload(ctx, groupID)
}

// JoinStudyGroup adds the caller to a group. The member cap is checked inside
// a serialized check-and-insert, so concurrent joins cannot breach it.
func (s *Service) JoinStudyGroup(ctx context.Context, session Session, groupID string) (map[string]any, error) {
	if _, err := s.store.GetStudyGroup(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Study group")
		}
		return nil, err
	}

	err := s.store.AddGroupMemberWithinLimit(ctx, store.GroupMember{
		GroupID: groupID,
		UserID:  session.UserID,
		Role:    "member",
	}, maxGroupMembers)
	switch {
	case errors.Is(err, store.ErrAlreadyMember):
		return nil, errValidation("You are already a member of this group")
	case errors.Is(err, store.ErrMemberLimit):
		return nil, errForbidden("This study group is full")
	case errors.Is(err, sql.ErrNoRows):
		return nil, errNotFound("Study group")
	case err != nil:
		return nil, err
	}

	return map[string]any{"groupId": groupID, "joined": true}, nil
}

// LeaveStudyGroup removes the caller from a group. The owner cannot leave;
// they delete the group instead.
func (s *Service) LeaveStudyGroup(ctx context.Context, session Session, groupID string) (map[string]any, error) {
	g, err := s.store.GetStudyGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Study group")
		}
		return nil, err
	}
	if g.OwnerID == session.UserID {
		return nil, errForbidden("The group owner cannot leave; delete the group instead")
	}

	if err := s.store.RemoveGroupMember(ctx, groupID, session.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Membership")
		}
		return nil, err
	}
	return map[string]any{"groupId": groupID, "left": true}, nil
}

// DeleteStudyGroup removes a group and its shares. Owner only.
func (s *Service) DeleteStudyGroup(ctx context.Context, session Session, groupID string) (map[string]any, error) {
	g, err := s.store.GetStudyGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Study group")
		}
		return nil, err
	}
	if g.OwnerID != session.UserID && !session.IsAdmin() {
		return nil, errForbidden("Only the group owner can delete the group")
	}

	if err := s.store.DeleteStudyGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return map[string]any{"groupId": groupID, "deleted": true}, nil
}

// ShareDocument shares a document with a study group. The sharer must be a
// group member with read access to the document; current members receive a
// standing access grant.
func (s *Service) ShareDocument(ctx context.Context, session Session, groupID, documentID string) (map[string]any, error) {
	if err := s.requireGroupMember(ctx, groupID, session); err != nil {
		return nil, err
	}
	doc, _, err := s.authorize(ctx, documentID, session, rbac.ActionRead)
	if err != nil {
		return nil, err
	}

	if err := s.store.ShareDocumentWithGroup(ctx, store.SharedDocument{
		GroupID:    groupID,
		DocumentID: doc.ID,
		SharedBy:   session.UserID,
	}); err != nil {
		return nil, err
	}

	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID == doc.OwnerID {
			continue
		}
		if err := s.store.GrantAccess(ctx, store.AccessGrant{
			DocumentID: doc.ID,
			UserID:     m.UserID,
			GrantedBy:  session.UserID,
		}); err != nil {
			return nil, err
		}
	}
	s.reindexDocument(ctx, doc.ID)

	return map[string]any{
		"groupId":    groupID,
		"documentId": doc.ID,
		"shared":     true,
	}, nil
}

// ListGroupDocuments returns the documents shared with a group. Members only.
func (s *Service) ListGroupDocuments(ctx context.Context, session Session, groupID string) (map[string]any, error) {
	if err := s.requireGroupMember(ctx, groupID, session); err != nil {
		return nil, err
	}

	shares, err := s.store.ListGroupDocuments(ctx, groupID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(shares))
	for _, sh := range shares {
		items = append(items, map[string]any{
			"documentId":   sh.DocumentID,
			"title":        sh.Title,
			"documentType": sh.DocumentType,
			"sharedBy":     sh.SharedByName,
			"sharedAt":     sh.SharedAt,
		})
	}
	return map[string]any{"groupId": groupID, "documents": items}, nil
}

func (s *Service) requireGroupMember(ctx context.Context, groupID string, session Session) error {
	if session.IsAdmin() {
		return nil
	}
	member, err := s.store.IsGroupMember(ctx, groupID, session.UserID)
	if err != nil {
		return err
	}
	if !member {
		return errForbidden("You are not a member of this group")
	}
	return nil
}

// readableDiscussion loads a discussion and checks read access on its
// document.
func (s *Service) readableDiscussion(ctx context.Context, session Session, discussionID string) (store.Discussion, error) {
	d, err := s.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Discussion{}, errNotFound("Discussion")
		}
		return store.Discussion{}, err
	}
	if _, _, err := s.authorize(ctx, d.DocumentID, session, rbac.ActionRead); err != nil {
		return store.Discussion{}, err
	}
	return d, nil
}

func (s *Service) discussionPayload(ctx context.Context, d store.Discussion) (map[string]any, error) {
	counts, err := s.store.ListReactionCounts(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	tally := make(map[string]int, len(counts))
	for _, c := range counts {
		tally[c.Emoji] = c.Count
	}
	item := map[string]any{
		"id":         d.ID,
		"documentId": d.DocumentID,
		"content":    d.Content,
		"authorId":   d.AuthorID,
		"authorName": d.AuthorName,
		"resolved":   d.Resolved,
		"createdAt":  d.CreatedAt,
		"reactions":  tally,
	}
	if d.ParentID == nil {
		item["replyCount"] = d.ReplyCount
	} else {
		item["parentId"] = *d.ParentID
	}
	return item, nil
}

func (s *Service) groupPayload(ctx context.Context, groupID string) (map[string]any, error) {
	g, err := s.store.GetStudyGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Study group")
		}
		return nil, err
	}
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	memberItems := make([]map[string]any, 0, len(members))
	for _, m := range members {
		memberItems = append(memberItems, map[string]any{
			"userId":   m.UserID,
			"name":     m.UserName,
			"email":    m.UserEmail,
			"role":     m.Role,
			"joinedAt": m.JoinedAt,
		})
	}

	payload := groupSummary(g)
	payload["members"] = memberItems
	return payload, nil
}

func groupSummary(g store.StudyGroup) map[string]any {
	return map[string]any{
		"id":          g.ID,
		"name":        g.Name,
		"description": g.Description,
		"ownerId":     g.OwnerID,
		"ownerName":   g.OwnerName,
		"memberCount": g.MemberCount,
		"maxMembers":  maxGroupMembers,
		"createdAt":   g.CreatedAt,
	}
}
