package app

import (
	"context"
	"time"

	"studyhub/api/internal/auth"
	"studyhub/api/internal/authpw"
	"studyhub/api/internal/config"
	"studyhub/api/internal/email"
	"studyhub/api/internal/files"
	"studyhub/api/internal/search"
	"studyhub/api/internal/store"
	"studyhub/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// IsAdmin reports whether the session belongs to a platform administrator.
func (s Session) IsAdmin() bool {
	return s.Role == "admin"
}

type dataStore interface {
	Ping(ctx context.Context) error

	InsertUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	UpdateUserProfile(context.Context, string, string, string) error
	UpdateUserPassword(context.Context, string, string) error
	SaveResetToken(context.Context, string, string, time.Time) error
	GetUserByResetToken(context.Context, string) (store.User, error)

	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) error
	UpdateDocument(context.Context, store.Document) error
	UpdateDocumentFile(context.Context, string, string, string, string, int64) error
	DeleteDocument(context.Context, string) error
	ListDocumentsForUser(context.Context, string) ([]store.Document, error)
	InsertDocumentVersion(context.Context, store.DocumentVersion) error
	ListDocumentVersions(context.Context, string) ([]store.DocumentVersion, error)
	GetDocumentVersion(context.Context, string, int) (store.DocumentVersion, error)

	SetCollaborationEnabled(context.Context, string, bool, *time.Time) error
	ListCollaborators(context.Context, string) ([]store.Collaborator, error)
	GetCollaborator(context.Context, string, string) (store.Collaborator, error)
	CountCollaborators(context.Context, string) (int, error)
	AddCollaborator(context.Context, store.Collaborator) error
	AddCollaboratorWithinLimit(context.Context, store.Collaborator, int) error
	UpdateCollaboratorRole(context.Context, string, string, string) error
	RemoveCollaborator(context.Context, string, string) error
	ClearCollaboration(context.Context, string) error
	InsertInvitation(context.Context, store.Invitation) error
	GetInvitationByTokenHash(context.Context, string) (store.Invitation, error)
	HasPendingInvitation(context.Context, string, string) (bool, error)
	ListPendingInvitations(context.Context, string) ([]store.Invitation, error)
	DeleteInvitation(context.Context, string) error
	HasAccessGrant(context.Context, string, string) (bool, error)
	GrantAccess(context.Context, store.AccessGrant) error
	RevokeAccess(context.Context, string, string) error
	ListAccessGrants(context.Context, string) ([]store.AccessGrant, error)

	InsertDiscussion(context.Context, store.Discussion) error
	GetDiscussion(context.Context, string) (store.Discussion, error)
	ListDiscussions(context.Context, string) ([]store.Discussion, error)
	ListReplies(context.Context, string) ([]store.Discussion, error)
	SetDiscussionResolved(context.Context, string, bool) error
	ToggleReaction(context.Context, string, string, string) (bool, error)
	ListReactionCounts(context.Context, string) ([]store.DiscussionReactionCount, error)

	InsertStudyGroup(context.Context, store.StudyGroup) error
	GetStudyGroup(context.Context, string) (store.StudyGroup, error)
	UpdateStudyGroup(ctx context.Context, groupID, name, description string) error
	ListStudyGroupsForUser(context.Context, string) ([]store.StudyGroup, error)
	GetGroupMember(context.Context, string, string) (store.GroupMember, error)
	ListGroupMembers(context.Context, string) ([]store.GroupMember, error)
	AddGroupMemberWithinLimit(context.Context, store.GroupMember, int) error
	RemoveGroupMember(context.Context, string, string) error
	DeleteStudyGroup(context.Context, string) error
	ShareDocumentWithGroup(context.Context, store.SharedDocument) error
	ListGroupDocuments(context.Context, string) ([]store.SharedDocument, error)
	IsGroupMember(context.Context, string, string) (bool, error)
}

// sessionCache is the Redis-backed refresh-token and revocation cache.
// The service falls back to Postgres when it is absent.
type sessionCache interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionCache
	accounts  *authpw.Service
	mailer    *email.Service
	search    *search.Service
	filestore *files.Storage
}

func New(cfg config.Config, dataStore *store.PostgresStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		accounts: authpw.NewService(dataStore),
	}
}

// WithSessionCache attaches the Redis session cache.
func (s *Service) WithSessionCache(cache sessionCache) *Service {
	s.sessions = cache
	return s
}

// WithMailer attaches the SMTP mailer.
func (s *Service) WithMailer(mailer *email.Service) *Service {
	s.mailer = mailer
	return s
}

// WithSearch attaches the search facade.
func (s *Service) WithSearch(svc *search.Service) *Service {
	s.search = svc
	return s
}

// WithFileStorage attaches the object store for attachments.
func (s *Service) WithFileStorage(storage *files.Storage) *Service {
	s.filestore = storage
	return s
}

// Accounts exposes the email/password account service to the HTTP layer.
func (s *Service) Accounts() *authpw.Service {
	return s.accounts
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap runs startup work that needs the full stack: reindexing the
// search engine from Postgres.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (Session, error) {
	user, err := s.accounts.Register(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Login verifies credentials and issues a session.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.accounts.Authenticate(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// session is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)

	user, err := s.lookupRefresh(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.revokeRefresh(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueSessionToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, user.Role, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh, err := util.NewToken()
	if err != nil {
		return Session{}, err
	}
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.saveRefresh(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseSessionToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	revoked, err := s.isAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.revokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.revokeRefresh(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) saveRefresh(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	if s.sessions != nil {
		if err := s.sessions.SaveRefreshSession(ctx, tokenHash, user, expiresAt); err == nil {
			return nil
		}
	}
	return s.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (s *Service) lookupRefresh(ctx context.Context, tokenHash string) (store.User, error) {
	if s.sessions != nil {
		if user, err := s.sessions.LookupRefreshSession(ctx, tokenHash); err == nil {
			return user, nil
		}
	}
	return s.store.LookupRefreshSession(ctx, tokenHash)
}

func (s *Service) revokeRefresh(ctx context.Context, tokenHash string) error {
	if s.sessions != nil {
		_ = s.sessions.RevokeRefreshSession(ctx, tokenHash)
	}
	return s.store.RevokeRefreshSession(ctx, tokenHash)
}

func (s *Service) revokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if s.sessions != nil {
		_ = s.sessions.RevokeAccessToken(ctx, jti, exp)
	}
	return s.store.RevokeAccessToken(ctx, jti, exp)
}

func (s *Service) isAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if s.sessions != nil {
		if revoked, err := s.sessions.IsAccessTokenRevoked(ctx, jti); err == nil {
			if revoked {
				return true, nil
			}
		}
	}
	return s.store.IsAccessTokenRevoked(ctx, jti)
}

// Profile returns the account payload for the session user.
func (s *Service) Profile(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

// UpdateProfile changes the session user's name and email.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, emailAddr string) (map[string]any, error) {
	user, err := s.accounts.UpdateProfile(ctx, userID, name, emailAddr)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

// RequestPasswordReset issues a reset token and emails it. When SMTP is not
// configured the raw token is returned for the dev bypass.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (devToken string, err error) {
	user, token, err := s.accounts.RequestPasswordReset(ctx, emailAddr)
	if err != nil || token == "" {
		return "", err
	}

	if s.SMTPConfigured() {
		resetURL := s.cfg.AppBaseURL + "/reset-password?token=" + token
		go func() {
			_ = s.mailer.SendPasswordResetEmail(user.Email, user.Name, resetURL)
		}()
		return "", nil
	}
	return token, nil
}

// ChangePassword verifies the current password and sets a new one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.accounts.ChangePassword(ctx, userID, current, next)
}

// ResetPassword completes a password reset using an emailed token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.accounts.ResetPassword(ctx, token, newPassword)
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	}
}
