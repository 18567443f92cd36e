package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) InsertDiscussion(ctx context.Context, d Discussion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discussions (id, document_id, parent_id, author_id, content)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.DocumentID, d.ParentID, d.AuthorID, d.Content)
	if err != nil {
		return fmt.Errorf("insert discussion: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDiscussion(ctx context.Context, discussionID string) (Discussion, error) {
	var d Discussion
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.document_id, d.parent_id, d.author_id, d.content, d.resolved, d.created_at, d.updated_at, u.name
		FROM discussions d JOIN users u ON u.id = d.author_id
		WHERE d.id=$1
	`, discussionID).Scan(&d.ID, &d.DocumentID, &d.ParentID, &d.AuthorID, &d.Content, &d.Resolved, &d.CreatedAt, &d.UpdatedAt, &d.AuthorName)
	if err != nil {
		return Discussion{}, err
	}
	return d, nil
}

// ListDiscussions returns top-level threads for a document with reply counts.
func (s *PostgresStore) ListDiscussions(ctx context.Context, documentID string) ([]Discussion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.document_id, d.parent_id, d.author_id, d.content, d.resolved, d.created_at, d.updated_at, u.name,
			(SELECT COUNT(*) FROM discussions r WHERE r.parent_id = d.id)
		FROM discussions d JOIN users u ON u.id = d.author_id
		WHERE d.document_id=$1 AND d.parent_id IS NULL
		ORDER BY d.created_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}
	defer rows.Close()

	items := make([]Discussion, 0)
	for rows.Next() {
		var d Discussion
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.ParentID, &d.AuthorID, &d.Content, &d.Resolved, &d.CreatedAt, &d.UpdatedAt, &d.AuthorName, &d.ReplyCount); err != nil {
			return nil, fmt.Errorf("scan discussion: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discussions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListReplies(ctx context.Context, discussionID string) ([]Discussion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.document_id, d.parent_id, d.author_id, d.content, d.resolved, d.created_at, d.updated_at, u.name
		FROM discussions d JOIN users u ON u.id = d.author_id
		WHERE d.parent_id=$1
		ORDER BY d.created_at ASC
	`, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	items := make([]Discussion, 0)
	for rows.Next() {
		var d Discussion
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.ParentID, &d.AuthorID, &d.Content, &d.Resolved, &d.CreatedAt, &d.UpdatedAt, &d.AuthorName); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetDiscussionResolved(ctx context.Context, discussionID string, resolved bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discussions SET resolved=$2, updated_at=NOW() WHERE id=$1
	`, discussionID, resolved)
	if err != nil {
		return fmt.Errorf("resolve discussion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ToggleReaction(ctx context.Context, discussionID, userID, emoji string) (added bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM discussion_reactions WHERE discussion_id=$1 AND user_id=$2 AND emoji=$3
	`, discussionID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO discussion_reactions (discussion_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (discussion_id, user_id, emoji) DO NOTHING
	`, discussionID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListReactionCounts(ctx context.Context, discussionID string) ([]DiscussionReactionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT discussion_id, emoji, COUNT(*)
		FROM discussion_reactions
		WHERE discussion_id=$1
		GROUP BY discussion_id, emoji
		ORDER BY emoji
	`, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	items := make([]DiscussionReactionCount, 0)
	for rows.Next() {
		var rc DiscussionReactionCount
		if err := rows.Scan(&rc.DiscussionID, &rc.Emoji, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		items = append(items, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertStudyGroup(ctx context.Context, g StudyGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO study_groups (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
	`, g.ID, g.Name, g.Description, g.OwnerID); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, 'owner')
	`, g.ID, g.OwnerID); err != nil {
		return fmt.Errorf("insert group owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert group: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStudyGroup(ctx context.Context, groupID, name, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE study_groups SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, groupID, name, description)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetStudyGroup(ctx context.Context, groupID string) (StudyGroup, error) {
	var g StudyGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id, g.name, g.description, g.owner_id, g.created_at, g.updated_at, u.name,
			(SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id)
		FROM study_groups g JOIN users u ON u.id = g.owner_id
		WHERE g.id=$1
	`, groupID).Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt, &g.OwnerName, &g.MemberCount)
	if err != nil {
		return StudyGroup{}, err
	}
	return g, nil
}

func (s *PostgresStore) ListStudyGroupsForUser(ctx context.Context, userID string) ([]StudyGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.description, g.owner_id, g.created_at, g.updated_at, u.name,
			(SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id)
		FROM study_groups g
		JOIN users u ON u.id = g.owner_id
		JOIN group_members me ON me.group_id = g.id AND me.user_id = $1
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	items := make([]StudyGroup, 0)
	for rows.Next() {
		var g StudyGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt, &g.OwnerName, &g.MemberCount); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetGroupMember(ctx context.Context, groupID, userID string) (GroupMember, error) {
	var m GroupMember
	err := s.db.QueryRowContext(ctx, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members WHERE group_id=$1 AND user_id=$2
	`, groupID, userID).Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		return GroupMember{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.group_id, m.user_id, m.role, m.joined_at, u.name, u.email
		FROM group_members m JOIN users u ON u.id = m.user_id
		WHERE m.group_id=$1
		ORDER BY m.joined_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	items := make([]GroupMember, 0)
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return items, nil
}

// AddGroupMemberWithinLimit mirrors the collaborator limit guard: the group
// row is locked while membership is counted and inserted.
func (s *PostgresStore) AddGroupMemberWithinLimit(ctx context.Context, m GroupMember, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add member: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var groupID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM study_groups WHERE id=$1 FOR UPDATE`, m.GroupID).Scan(&groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock group: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)
	`, m.GroupID, m.UserID).Scan(&exists); err != nil {
		return fmt.Errorf("check member: %w", err)
	}
	if exists {
		return ErrAlreadyMember
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id=$1`, m.GroupID).Scan(&count); err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if count >= limit {
		return ErrMemberLimit
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
	`, m.GroupID, m.UserID, m.Role); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteStudyGroup(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM study_groups WHERE id=$1`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (s *PostgresStore) ShareDocumentWithGroup(ctx context.Context, share SharedDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_documents (group_id, document_id, shared_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, document_id) DO NOTHING
	`, share.GroupID, share.DocumentID, share.SharedBy)
	if err != nil {
		return fmt.Errorf("share document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGroupDocuments(ctx context.Context, groupID string) ([]SharedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gd.group_id, gd.document_id, gd.shared_by, gd.shared_at, d.title, d.document_type, u.name
		FROM group_documents gd
		JOIN documents d ON d.id = gd.document_id
		JOIN users u ON u.id = gd.shared_by
		WHERE gd.group_id=$1
		ORDER BY gd.shared_at DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group documents: %w", err)
	}
	defer rows.Close()

	items := make([]SharedDocument, 0)
	for rows.Next() {
		var sd SharedDocument
		if err := rows.Scan(&sd.GroupID, &sd.DocumentID, &sd.SharedBy, &sd.SharedAt, &sd.Title, &sd.DocumentType, &sd.SharedByName); err != nil {
			return nil, fmt.Errorf("scan group document: %w", err)
		}
		items = append(items, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group member: %w", err)
	}
	return exists, nil
}
