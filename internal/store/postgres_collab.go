package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *PostgresStore) SetCollaborationEnabled(ctx context.Context, documentID string, enabled bool, expiresAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET collaboration_enabled=$2, collaboration_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, documentID, enabled, expiresAt)
	if err != nil {
		return fmt.Errorf("set collaboration enabled: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCollaborators(ctx context.Context, documentID string) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, c.user_id, c.role, c.added_by, c.added_at, u.name, u.email
		FROM collaborators c JOIN users u ON u.id = c.user_id
		WHERE c.document_id=$1
		ORDER BY c.added_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	items := make([]Collaborator, 0)
	for rows.Next() {
		var c Collaborator
		if err := rows.Scan(&c.DocumentID, &c.UserID, &c.Role, &c.AddedBy, &c.AddedAt, &c.UserName, &c.UserEmail); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCollaborator(ctx context.Context, documentID, userID string) (Collaborator, error) {
	var c Collaborator
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, user_id, role, added_by, added_at
		FROM collaborators WHERE document_id=$1 AND user_id=$2
	`, documentID, userID).Scan(&c.DocumentID, &c.UserID, &c.Role, &c.AddedBy, &c.AddedAt)
	if err != nil {
		return Collaborator{}, err
	}
	return c, nil
}

func (s *PostgresStore) CountCollaborators(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collaborators WHERE document_id=$1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count collaborators: %w", err)
	}
	return n, nil
}

// AddCollaboratorWithinLimit inserts a collaborator only while the document
// holds fewer than limit collaborator rows. The document row is locked for
// the duration of the check-and-insert, so two concurrent accepts against the
// same document serialize and the count can never pass the limit. Returns
// ErrAlreadyCollaborator or ErrCollaboratorLimit when the insert is refused.
func (s *PostgresStore) AddCollaboratorWithinLimit(ctx context.Context, c Collaborator, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add collaborator: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var documentID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id=$1 FOR UPDATE`, c.DocumentID).Scan(&documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock document: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM collaborators WHERE document_id=$1 AND user_id=$2)
	`, c.DocumentID, c.UserID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check collaborator: %w", err)
	}
	if exists {
		return ErrAlreadyCollaborator
	}

	var count int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM collaborators WHERE document_id=$1`, c.DocumentID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count collaborators: %w", err)
	}
	if count >= limit {
		return ErrCollaboratorLimit
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collaborators (document_id, user_id, role, added_by)
		VALUES ($1, $2, $3, $4)
	`, c.DocumentID, c.UserID, c.Role, c.AddedBy); err != nil {
		return fmt.Errorf("insert collaborator: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_access (document_id, user_id, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, user_id) DO NOTHING
	`, c.DocumentID, c.UserID, c.AddedBy); err != nil {
		return fmt.Errorf("grant access: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add collaborator: %w", err)
	}
	return nil
}

// AddCollaborator inserts without the limit guard. Used for the owner row
// when collaboration is first enabled.
func (s *PostgresStore) AddCollaborator(ctx context.Context, c Collaborator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collaborators (document_id, user_id, role, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, user_id) DO NOTHING
	`, c.DocumentID, c.UserID, c.Role, c.AddedBy)
	if err != nil {
		return fmt.Errorf("add collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCollaboratorRole(ctx context.Context, documentID, userID, role string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE collaborators SET role=$3 WHERE document_id=$1 AND user_id=$2
	`, documentID, userID, role)
	if err != nil {
		return fmt.Errorf("update collaborator role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) RemoveCollaborator(ctx context.Context, documentID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collaborators WHERE document_id=$1 AND user_id=$2`, documentID, userID)
	if err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM document_access WHERE document_id=$1 AND user_id=$2`, documentID, userID)
	if err != nil {
		return fmt.Errorf("revoke access: %w", err)
	}
	return nil
}

// ClearCollaboration removes every collaborator, pending invitation, and
// access grant for a document. Used when the owner disables collaboration.
func (s *PostgresStore) ClearCollaboration(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear collaboration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, query := range []string{
		`DELETE FROM collaborators WHERE document_id=$1`,
		`DELETE FROM invitations WHERE document_id=$1`,
		`DELETE FROM document_access WHERE document_id=$1`,
	} {
		if _, err := tx.ExecContext(ctx, query, documentID); err != nil {
			return fmt.Errorf("clear collaboration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear collaboration: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertInvitation(ctx context.Context, inv Invitation) error {
	// A lapsed invitation still occupies the (document, user) slot; clear it
	// so the user can be invited again.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations WHERE document_id=$1 AND user_id=$2 AND expires_at <= NOW()
	`, inv.DocumentID, inv.UserID)
	if err != nil {
		return fmt.Errorf("clear lapsed invitation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invitations (id, document_id, user_id, role, invited_by, token_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.DocumentID, inv.UserID, inv.Role, inv.InvitedBy, inv.TokenHash, inv.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (Invitation, error) {
	var inv Invitation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, user_id, role, invited_by, token_hash, expires_at, created_at
		FROM invitations WHERE token_hash=$1
	`, tokenHash).Scan(&inv.ID, &inv.DocumentID, &inv.UserID, &inv.Role, &inv.InvitedBy, &inv.TokenHash, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return Invitation{}, err
	}
	return inv, nil
}

func (s *PostgresStore) HasPendingInvitation(ctx context.Context, documentID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM invitations WHERE document_id=$1 AND user_id=$2 AND expires_at > NOW())
	`, documentID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending invitation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListPendingInvitations(ctx context.Context, documentID string) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.document_id, i.user_id, i.role, i.invited_by, i.expires_at, i.created_at,
			u.name, u.email, b.name
		FROM invitations i
		JOIN users u ON u.id = i.user_id
		JOIN users b ON b.id = i.invited_by
		WHERE i.document_id=$1 AND i.expires_at > NOW()
		ORDER BY i.created_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	items := make([]Invitation, 0)
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.DocumentID, &inv.UserID, &inv.Role, &inv.InvitedBy, &inv.ExpiresAt, &inv.CreatedAt,
			&inv.UserName, &inv.UserEmail, &inv.InvitedByName); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteInvitation(ctx context.Context, invitationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id=$1`, invitationID)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasAccessGrant(ctx context.Context, documentID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM document_access WHERE document_id=$1 AND user_id=$2)
	`, documentID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check access grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GrantAccess(ctx context.Context, grant AccessGrant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_access (document_id, user_id, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, user_id) DO NOTHING
	`, grant.DocumentID, grant.UserID, grant.GrantedBy)
	if err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccess(ctx context.Context, documentID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_access WHERE document_id=$1 AND user_id=$2`, documentID, userID)
	if err != nil {
		return fmt.Errorf("revoke access: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAccessGrants(ctx context.Context, documentID string) ([]AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, user_id, granted_by, granted_at
		FROM document_access WHERE document_id=$1
		ORDER BY granted_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	items := make([]AccessGrant, 0)
	for rows.Next() {
		var g AccessGrant
		if err := rows.Scan(&g.DocumentID, &g.UserID, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access grants: %w", err)
	}
	return items, nil
}
