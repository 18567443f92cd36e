package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyCollaborator = errors.New("already a collaborator")
	ErrCollaboratorLimit   = errors.New("collaborator limit reached")
	ErrAlreadyMember       = errors.New("already a member")
	ErrMemberLimit         = errors.New("member limit reached")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, name, email string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET name=$2, email=$3, updated_at=NOW() WHERE id=$1
	`, userID, name, email)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, reset_token_hash=NULL, reset_expires_at=NULL, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash=$2, reset_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByResetToken(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE reset_token_hash=$1 AND reset_expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Name, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

const documentColumns = `
	d.id, d.owner_id, d.title, d.content, d.document_type, d.access_mode, d.tags,
	d.collaboration_enabled, d.collaboration_expires_at,
	d.file_key, d.file_name, d.file_size, d.mime_type,
	d.created_at, d.updated_at, u.name
`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	var tags []byte
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.Content, &item.DocumentType, &item.AccessMode, &tags,
		&item.CollaborationEnabled, &item.CollaborationExpiresAt,
		&item.FileKey, &item.FileName, &item.FileSize, &item.MimeType,
		&item.CreatedAt, &item.UpdatedAt, &item.OwnerName,
	)
	if err != nil {
		return Document{}, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return Document{}, fmt.Errorf("decode document tags: %w", err)
		}
	}
	return item, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d JOIN users u ON u.id = d.owner_id
		WHERE d.id=$1
	`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("encode document tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, title, content, document_type, access_mode, tags, collaboration_expires_at, file_key, file_name, file_size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, item.ID, item.OwnerID, item.Title, item.Content, item.DocumentType, item.AccessMode, tags,
		item.CollaborationExpiresAt, item.FileKey, item.FileName, item.FileSize, item.MimeType)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, item Document) error {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("encode document tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents
		SET title=$2, content=$3, access_mode=$4, tags=$5, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Content, item.AccessMode, tags)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentFile(ctx context.Context, documentID, fileKey, fileName, mimeType string, fileSize int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET file_key=$2, file_name=$3, mime_type=$4, file_size=$5, updated_at=NOW() WHERE id=$1
	`, documentID, fileKey, fileName, mimeType, fileSize)
	if err != nil {
		return fmt.Errorf("update document file: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// ListDocumentsForUser returns documents the user owns, collaborates on, or
// that are public.
func (s *PostgresStore) ListDocumentsForUser(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d JOIN users u ON u.id = d.owner_id
		WHERE d.owner_id = $1
			OR d.access_mode = 'public'
			OR EXISTS(SELECT 1 FROM collaborators c WHERE c.document_id = d.id AND c.user_id = $1)
			OR EXISTS(SELECT 1 FROM document_access a WHERE a.document_id = d.id AND a.user_id = $1)
		ORDER BY d.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertDocumentVersion(ctx context.Context, v DocumentVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, version, title, content, edited_by)
		VALUES ($1, $2, (SELECT COALESCE(MAX(version), 0) + 1 FROM document_versions WHERE document_id=$2), $3, $4, $5)
	`, v.ID, v.DocumentID, v.Title, v.Content, v.EditedBy)
	if err != nil {
		return fmt.Errorf("insert document version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocumentVersions(ctx context.Context, documentID string) ([]DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.document_id, v.version, v.title, v.content, v.edited_by, v.created_at, u.name
		FROM document_versions v JOIN users u ON u.id = v.edited_by
		WHERE v.document_id=$1
		ORDER BY v.version DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentVersion, 0)
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Version, &v.Title, &v.Content, &v.EditedBy, &v.CreatedAt, &v.EditedByName); err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocumentVersion(ctx context.Context, documentID string, version int) (DocumentVersion, error) {
	var v DocumentVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT v.id, v.document_id, v.version, v.title, v.content, v.edited_by, v.created_at, u.name
		FROM document_versions v JOIN users u ON u.id = v.edited_by
		WHERE v.document_id=$1 AND v.version=$2
	`, documentID, version).Scan(&v.ID, &v.DocumentID, &v.Version, &v.Title, &v.Content, &v.EditedBy, &v.CreatedAt, &v.EditedByName)
	if err != nil {
		return DocumentVersion{}, err
	}
	return v, nil
}
