package store

import "time"

type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           string
	ResetTokenHash string
	ResetExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Document struct {
	ID                     string
	OwnerID                string
	Title                  string
	Content                string
	DocumentType           string
	AccessMode             string
	Tags                   []string
	CollaborationEnabled   bool
	CollaborationExpiresAt *time.Time
	FileKey                string
	FileName               string
	FileSize               int64
	MimeType               string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	// Joined fields for API responses
	OwnerName string
}

type Collaborator struct {
	DocumentID string
	UserID     string
	Role       string
	AddedBy    string
	AddedAt    time.Time
	// Joined fields for API responses
	UserName  string
	UserEmail string
}

type Invitation struct {
	ID         string
	DocumentID string
	UserID     string
	Role       string
	InvitedBy  string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	// Joined fields for API responses
	UserName      string
	UserEmail     string
	InvitedByName string
}

type AccessGrant struct {
	DocumentID string
	UserID     string
	GrantedBy  string
	GrantedAt  time.Time
}

type DocumentVersion struct {
	ID         string
	DocumentID string
	Version    int
	Title      string
	Content    string
	EditedBy   string
	CreatedAt  time.Time
	// Joined fields for API responses
	EditedByName string
}

type Discussion struct {
	ID         string
	DocumentID string
	ParentID   *string
	AuthorID   string
	Content    string
	Resolved   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Joined fields for API responses
	AuthorName string
	ReplyCount int
}

type DiscussionReactionCount struct {
	DiscussionID string
	Emoji        string
	Count        int
}

type StudyGroup struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Joined fields for API responses
	OwnerName   string
	MemberCount int
}

type GroupMember struct {
	GroupID  string
	UserID   string
	Role     string
	JoinedAt time.Time
	// Joined fields for API responses
	UserName  string
	UserEmail string
}

type SharedDocument struct {
	GroupID    string
	DocumentID string
	SharedBy   string
	SharedAt   time.Time
	// Joined fields for API responses
	Title        string
	DocumentType string
	SharedByName string
}
