package app

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"studyhub/api/internal/authpw"
	"studyhub/api/internal/config"
	"studyhub/api/internal/store"
)

// fakeStore is an in-memory dataStore. The mutex serializes the guarded
// check-and-insert paths the same way the row lock does in Postgres.
type fakeStore struct {
	mu sync.Mutex

	users         map[string]store.User
	documents     map[string]store.Document
	collaborators map[string]map[string]store.Collaborator
	invitations   map[string]store.Invitation
	grants        map[string]map[string]store.AccessGrant
	versions      map[string][]store.DocumentVersion
	discussions   map[string]store.Discussion
	reactions     map[string]map[string]map[string]bool
	groups        map[string]store.StudyGroup
	members       map[string]map[string]store.GroupMember
	groupDocs     map[string][]store.SharedDocument
	refresh       map[string]refreshEntry
	revokedJTIs   map[string]time.Time
}

type refreshEntry struct {
	userID    string
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]store.User{},
		documents:     map[string]store.Document{},
		collaborators: map[string]map[string]store.Collaborator{},
		invitations:   map[string]store.Invitation{},
		grants:        map[string]map[string]store.AccessGrant{},
		versions:      map[string][]store.DocumentVersion{},
		discussions:   map[string]store.Discussion{},
		reactions:     map[string]map[string]map[string]bool{},
		groups:        map[string]store.StudyGroup{},
		members:       map[string]map[string]store.GroupMember{},
		groupDocs:     map[string][]store.SharedDocument{},
		refresh:       map[string]refreshEntry{},
		revokedJTIs:   map[string]time.Time{},
	}
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			InviteTTL:  7 * 24 * time.Hour,
		},
		store:    fs,
		accounts: authpw.NewService(fs),
	}
}

func seedUser(fs *fakeStore, id, name, email, role string) store.User {
	user := store.User{ID: id, Name: name, Email: email, Role: role, CreatedAt: time.Now()}
	fs.users[id] = user
	return user
}

func seedDocument(fs *fakeStore, id, ownerID, documentType, accessMode string) store.Document {
	doc := store.Document{
		ID:           id,
		OwnerID:      ownerID,
		Title:        "Doc " + id,
		Content:      "content",
		DocumentType: documentType,
		AccessMode:   accessMode,
		Tags:         []string{},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	fs.documents[id] = doc
	return doc
}

func sessionFor(user store.User) Session {
	return Session{
		UserID:   user.ID,
		UserName: user.Name,
		Email:    user.Email,
		Role:     user.Role,
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// ── users ──

func (f *fakeStore) InsertUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateUserProfile(_ context.Context, userID, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.Name = name
	user.Email = email
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SaveResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.ResetTokenHash = tokenHash
	user.ResetExpiresAt = &expiresAt
	f.users[userID] = user
	return nil
}

func (f *fakeStore) GetUserByResetToken(_ context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ResetTokenHash == tokenHash && user.ResetExpiresAt != nil && user.ResetExpiresAt.After(time.Now()) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

// ── sessions ──

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = refreshEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.refresh[tokenHash]
	if !ok || entry.expiresAt.Before(time.Now()) {
		return store.User{}, sql.ErrNoRows
	}
	user, ok := f.users[entry.userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedJTIs[jti] = exp
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revokedJTIs[jti]
	return ok, nil
}

// ── documents ──

func (f *fakeStore) GetDocument(_ context.Context, documentID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	if owner, ok := f.users[doc.OwnerID]; ok {
		doc.OwnerName = owner.Name
	}
	return doc, nil
}

func (f *fakeStore) InsertDocument(_ context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateDocument(_ context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.documents[item.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Title = item.Title
	existing.Content = item.Content
	existing.AccessMode = item.AccessMode
	existing.Tags = item.Tags
	existing.UpdatedAt = time.Now()
	f.documents[item.ID] = existing
	return nil
}

func (f *fakeStore) UpdateDocumentFile(_ context.Context, documentID, fileKey, fileName, mimeType string, fileSize int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return sql.ErrNoRows
	}
	doc.FileKey = fileKey
	doc.FileName = fileName
	doc.MimeType = mimeType
	doc.FileSize = fileSize
	f.documents[documentID] = doc
	return nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[documentID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.documents, documentID)
	delete(f.collaborators, documentID)
	delete(f.grants, documentID)
	delete(f.versions, documentID)
	return nil
}

func (f *fakeStore) ListDocumentsForUser(_ context.Context, userID string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Document
	for _, doc := range f.documents {
		visible := doc.OwnerID == userID || doc.AccessMode == "public"
		if !visible {
			if _, ok := f.collaborators[doc.ID][userID]; ok {
				visible = true
			}
		}
		if !visible {
			if _, ok := f.grants[doc.ID][userID]; ok {
				visible = true
			}
		}
		if visible {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertDocumentVersion(_ context.Context, v store.DocumentVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.Version = len(f.versions[v.DocumentID]) + 1
	v.CreatedAt = time.Now()
	if editor, ok := f.users[v.EditedBy]; ok {
		v.EditedByName = editor.Name
	}
	f.versions[v.DocumentID] = append(f.versions[v.DocumentID], v)
	return nil
}

func (f *fakeStore) ListDocumentVersions(_ context.Context, documentID string) ([]store.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.versions[documentID]
	out := make([]store.DocumentVersion, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
	}
	return out, nil
}

func (f *fakeStore) GetDocumentVersion(_ context.Context, documentID string, version int) (store.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[documentID] {
		if v.Version == version {
			return v, nil
		}
	}
	return store.DocumentVersion{}, sql.ErrNoRows
}

// ── collaboration ──

func (f *fakeStore) SetCollaborationEnabled(_ context.Context, documentID string, enabled bool, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return sql.ErrNoRows
	}
	doc.CollaborationEnabled = enabled
	doc.CollaborationExpiresAt = expiresAt
	f.documents[documentID] = doc
	return nil
}

func (f *fakeStore) ListCollaborators(_ context.Context, documentID string) ([]store.Collaborator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Collaborator
	for _, c := range f.collaborators[documentID] {
		if user, ok := f.users[c.UserID]; ok {
			c.UserName = user.Name
			c.UserEmail = user.Email
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) GetCollaborator(_ context.Context, documentID, userID string) (store.Collaborator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collaborators[documentID][userID]
	if !ok {
		return store.Collaborator{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) CountCollaborators(_ context.Context, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collaborators[documentID]), nil
}

func (f *fakeStore) AddCollaboratorWithinLimit(_ context.Context, c store.Collaborator, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[c.DocumentID]; !ok {
		return sql.ErrNoRows
	}
	if _, ok := f.collaborators[c.DocumentID][c.UserID]; ok {
		return store.ErrAlreadyCollaborator
	}
	if len(f.collaborators[c.DocumentID]) >= limit {
		return store.ErrCollaboratorLimit
	}
	f.addCollaboratorLocked(c)
	return nil
}

func (f *fakeStore) AddCollaborator(_ context.Context, c store.Collaborator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collaborators[c.DocumentID][c.UserID]; ok {
		return nil
	}
	f.addCollaboratorLocked(c)
	return nil
}

func (f *fakeStore) addCollaboratorLocked(c store.Collaborator) {
	if c.AddedAt.IsZero() {
		c.AddedAt = time.Now()
	}
	if f.collaborators[c.DocumentID] == nil {
		f.collaborators[c.DocumentID] = map[string]store.Collaborator{}
	}
	f.collaborators[c.DocumentID][c.UserID] = c
	if f.grants[c.DocumentID] == nil {
		f.grants[c.DocumentID] = map[string]store.AccessGrant{}
	}
	f.grants[c.DocumentID][c.UserID] = store.AccessGrant{
		DocumentID: c.DocumentID,
		UserID:     c.UserID,
		GrantedBy:  c.AddedBy,
		GrantedAt:  time.Now(),
	}
}

func (f *fakeStore) UpdateCollaboratorRole(_ context.Context, documentID, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collaborators[documentID][userID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Role = role
	f.collaborators[documentID][userID] = c
	return nil
}

func (f *fakeStore) RemoveCollaborator(_ context.Context, documentID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collaborators[documentID][userID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.collaborators[documentID], userID)
	delete(f.grants[documentID], userID)
	return nil
}

func (f *fakeStore) ClearCollaboration(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collaborators, documentID)
	delete(f.grants, documentID)
	for id, inv := range f.invitations {
		if inv.DocumentID == documentID {
			delete(f.invitations, id)
		}
	}
	return nil
}

func (f *fakeStore) InsertInvitation(_ context.Context, inv store.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.invitations {
		if existing.DocumentID == inv.DocumentID && existing.UserID == inv.UserID &&
			!existing.ExpiresAt.After(time.Now()) {
			delete(f.invitations, id)
		}
	}
	inv.CreatedAt = time.Now()
	f.invitations[inv.ID] = inv
	return nil
}

func (f *fakeStore) GetInvitationByTokenHash(_ context.Context, tokenHash string) (store.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.TokenHash == tokenHash {
			return inv, nil
		}
	}
	return store.Invitation{}, sql.ErrNoRows
}

func (f *fakeStore) HasPendingInvitation(_ context.Context, documentID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.DocumentID == documentID && inv.UserID == userID && inv.ExpiresAt.After(time.Now()) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListPendingInvitations(_ context.Context, documentID string) ([]store.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Invitation
	for _, inv := range f.invitations {
		if inv.DocumentID != documentID {
			continue
		}
		if user, ok := f.users[inv.UserID]; ok {
			inv.UserName = user.Name
			inv.UserEmail = user.Email
		}
		if inviter, ok := f.users[inv.InvitedBy]; ok {
			inv.InvitedByName = inviter.Name
		}
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeStore) DeleteInvitation(_ context.Context, invitationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.invitations, invitationID)
	return nil
}

func (f *fakeStore) HasAccessGrant(_ context.Context, documentID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.grants[documentID][userID]
	return ok, nil
}

func (f *fakeStore) GrantAccess(_ context.Context, grant store.AccessGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grants[grant.DocumentID] == nil {
		f.grants[grant.DocumentID] = map[string]store.AccessGrant{}
	}
	grant.GrantedAt = time.Now()
	f.grants[grant.DocumentID][grant.UserID] = grant
	return nil
}

func (f *fakeStore) RevokeAccess(_ context.Context, documentID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants[documentID], userID)
	return nil
}

func (f *fakeStore) ListAccessGrants(_ context.Context, documentID string) ([]store.AccessGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AccessGrant
	for _, g := range f.grants[documentID] {
		out = append(out, g)
	}
	return out, nil
}

// ── discussions ──

func (f *fakeStore) InsertDiscussion(_ context.Context, d store.Discussion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	f.discussions[d.ID] = d
	return nil
}

func (f *fakeStore) GetDiscussion(_ context.Context, discussionID string) (store.Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discussions[discussionID]
	if !ok {
		return store.Discussion{}, sql.ErrNoRows
	}
	if author, ok := f.users[d.AuthorID]; ok {
		d.AuthorName = author.Name
	}
	return d, nil
}

func (f *fakeStore) ListDiscussions(_ context.Context, documentID string) ([]store.Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Discussion
	for _, d := range f.discussions {
		if d.DocumentID != documentID || d.ParentID != nil {
			continue
		}
		for _, reply := range f.discussions {
			if reply.ParentID != nil && *reply.ParentID == d.ID {
				d.ReplyCount++
			}
		}
		if author, ok := f.users[d.AuthorID]; ok {
			d.AuthorName = author.Name
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) ListReplies(_ context.Context, discussionID string) ([]store.Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Discussion
	for _, d := range f.discussions {
		if d.ParentID == nil || *d.ParentID != discussionID {
			continue
		}
		if author, ok := f.users[d.AuthorID]; ok {
			d.AuthorName = author.Name
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) SetDiscussionResolved(_ context.Context, discussionID string, resolved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discussions[discussionID]
	if !ok {
		return sql.ErrNoRows
	}
	d.Resolved = resolved
	f.discussions[discussionID] = d
	return nil
}

func (f *fakeStore) ToggleReaction(_ context.Context, discussionID, userID, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactions[discussionID] == nil {
		f.reactions[discussionID] = map[string]map[string]bool{}
	}
	if f.reactions[discussionID][emoji] == nil {
		f.reactions[discussionID][emoji] = map[string]bool{}
	}
	if f.reactions[discussionID][emoji][userID] {
		delete(f.reactions[discussionID][emoji], userID)
		return false, nil
	}
	f.reactions[discussionID][emoji][userID] = true
	return true, nil
}

func (f *fakeStore) ListReactionCounts(_ context.Context, discussionID string) ([]store.DiscussionReactionCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.DiscussionReactionCount
	for emoji, userSet := range f.reactions[discussionID] {
		if len(userSet) == 0 {
			continue
		}
		out = append(out, store.DiscussionReactionCount{
			DiscussionID: discussionID,
			Emoji:        emoji,
			Count:        len(userSet),
		})
	}
	return out, nil
}

// ── study groups ──

func (f *fakeStore) InsertStudyGroup(_ context.Context, g store.StudyGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	f.groups[g.ID] = g
	f.members[g.ID] = map[string]store.GroupMember{
		g.OwnerID: {GroupID: g.ID, UserID: g.OwnerID, Role: "owner", JoinedAt: time.Now()},
	}
	return nil
}

func (f *fakeStore) UpdateStudyGroup(_ context.Context, groupID, name, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return sql.ErrNoRows
	}
	g.Name = name
	g.Description = description
	g.UpdatedAt = time.Now()
	f.groups[groupID] = g
	return nil
}

func (f *fakeStore) GetStudyGroup(_ context.Context, groupID string) (store.StudyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return store.StudyGroup{}, sql.ErrNoRows
	}
	g.MemberCount = len(f.members[groupID])
	if owner, ok := f.users[g.OwnerID]; ok {
		g.OwnerName = owner.Name
	}
	return g, nil
}

func (f *fakeStore) ListStudyGroupsForUser(_ context.Context, userID string) ([]store.StudyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.StudyGroup
	for id, g := range f.groups {
		if _, ok := f.members[id][userID]; !ok {
			continue
		}
		g.MemberCount = len(f.members[id])
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeStore) GetGroupMember(_ context.Context, groupID, userID string) (store.GroupMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[groupID][userID]
	if !ok {
		return store.GroupMember{}, sql.ErrNoRows
	}
	return m, nil
}

func (f *fakeStore) ListGroupMembers(_ context.Context, groupID string) ([]store.GroupMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.GroupMember
	for _, m := range f.members[groupID] {
		if user, ok := f.users[m.UserID]; ok {
			m.UserName = user.Name
			m.UserEmail = user.Email
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) AddGroupMemberWithinLimit(_ context.Context, m store.GroupMember, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[m.GroupID]; !ok {
		return sql.ErrNoRows
	}
	if _, ok := f.members[m.GroupID][m.UserID]; ok {
		return store.ErrAlreadyMember
	}
	if len(f.members[m.GroupID]) >= limit {
		return store.ErrMemberLimit
	}
	m.JoinedAt = time.Now()
	if f.members[m.GroupID] == nil {
		f.members[m.GroupID] = map[string]store.GroupMember{}
	}
	f.members[m.GroupID][m.UserID] = m
	return nil
}

func (f *fakeStore) RemoveGroupMember(_ context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[groupID][userID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeStore) DeleteStudyGroup(_ context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[groupID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.groups, groupID)
	delete(f.members, groupID)
	delete(f.groupDocs, groupID)
	return nil
}

func (f *fakeStore) ShareDocumentWithGroup(_ context.Context, share store.SharedDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.groupDocs[share.GroupID] {
		if existing.DocumentID == share.DocumentID {
			return nil
		}
	}
	share.SharedAt = time.Now()
	f.groupDocs[share.GroupID] = append(f.groupDocs[share.GroupID], share)
	return nil
}

func (f *fakeStore) ListGroupDocuments(_ context.Context, groupID string) ([]store.SharedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.SharedDocument
	for _, share := range f.groupDocs[groupID] {
		if doc, ok := f.documents[share.DocumentID]; ok {
			share.Title = doc.Title
			share.DocumentType = doc.DocumentType
		}
		if sharer, ok := f.users[share.SharedBy]; ok {
			share.SharedByName = sharer.Name
		}
		out = append(out, share)
	}
	return out, nil
}

func (f *fakeStore) IsGroupMember(_ context.Context, groupID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[groupID][userID]
	return ok, nil
}
