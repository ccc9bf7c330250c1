package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/voiceqa/pkg/models"
)

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrNotFound       = errors.New("comment not found")
	ErrHasReplies     = errors.New("comment has replies")
	ErrParentMismatch = errors.New("parent comment belongs to a different entity")
)

// Storage persists comment threads and their mention records
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new storage instance
func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// ListThread returns the full reply tree for one entity: a flat
// created_at-ordered read of every comment plus its mentions, assembled into
// the nested shape clients render directly.
func (s *Storage) ListThread(ctx context.Context, entityType, entityID string) ([]*models.Comment, error) {
	query := `
	SELECT c.id, c.entity_type, c.entity_id, c.parent_comment_id, c.author_id,
	       u.display_name, u.avatar_url, c.content, c.is_edited, c.created_at, c.updated_at
	FROM comments c
	JOIN users u ON u.id = c.author_id
	WHERE c.entity_type = $1 AND c.entity_id = $2
	ORDER BY c.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var flat []*models.Comment
	var ids []string
	for rows.Next() {
		var c models.Comment
		var parentID sql.NullString
		var avatarURL sql.NullString
		err := rows.Scan(
			&c.ID, &c.EntityType, &c.EntityID, &parentID, &c.AuthorID,
			&c.AuthorName, &avatarURL, &c.Content, &c.IsEdited, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if parentID.Valid {
			c.ParentCommentID = &parentID.String
		}
		c.AvatarURL = avatarURL.String
		c.Mentions = []models.Mention{}
		c.Replies = []*models.Comment{}

		flat = append(flat, &c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	if err := s.attachMentions(ctx, flat, ids); err != nil {
		return nil, err
	}

	return BuildTree(flat), nil
}

// attachMentions loads the mention records for a batch of comments in one
// query, joining users so display data stays current.
func (s *Storage) attachMentions(ctx context.Context, flat []*models.Comment, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
	SELECT cm.comment_id, cm.user_id, u.display_name, u.email, u.avatar_url
	FROM comment_mentions cm
	JOIN users u ON u.id = cm.user_id
	WHERE cm.comment_id = ANY($1)
	ORDER BY cm.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load mentions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Comment, len(flat))
	for _, c := range flat {
		byID[c.ID] = c
	}

	for rows.Next() {
		var commentID string
		var m models.Mention
		var avatarURL sql.NullString
		if err := rows.Scan(&commentID, &m.UserID, &m.DisplayName, &m.Email, &avatarURL); err != nil {
			return fmt.Errorf("failed to scan mention: %w", err)
		}
		m.AvatarURL = avatarURL.String
		if c, ok := byID[commentID]; ok {
			c.Mentions = append(c.Mentions, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating mentions: %w", err)
	}
	return nil
}

// GetComment returns a single comment without its replies.
func (s *Storage) GetComment(ctx context.Context, commentID string) (*models.Comment, error) {
	query := `
	SELECT c.id, c.entity_type, c.entity_id, c.parent_comment_id, c.author_id,
	       u.display_name, u.avatar_url, c.content, c.is_edited, c.created_at, c.updated_at
	FROM comments c
	JOIN users u ON u.id = c.author_id
	WHERE c.id = $1
	`

	var c models.Comment
	var parentID sql.NullString
	var avatarURL sql.NullString
	err := s.db.QueryRowContext(ctx, query, commentID).Scan(
		&c.ID, &c.EntityType, &c.EntityID, &parentID, &c.AuthorID,
		&c.AuthorName, &avatarURL, &c.Content, &c.IsEdited, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	if parentID.Valid {
		c.ParentCommentID = &parentID.String
	}
	c.AvatarURL = avatarURL.String
	c.Mentions = []models.Mention{}
	c.Replies = []*models.Comment{}

	if err := s.attachMentions(ctx, []*models.Comment{&c}, []string{c.ID}); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateComment inserts a new comment (or reply) with its mention records.
// A reply's parent must exist and belong to the same entity.
func (s *Storage) CreateComment(ctx context.Context, req models.CreateCommentRequest, author models.User) (*models.Comment, error) {
	if req.ParentCommentID != nil {
		parent, err := s.GetComment(ctx, *req.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.EntityType != req.EntityType || parent.EntityID != req.EntityID {
			return nil, ErrParentMismatch
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	commentID := uuid.NewString()
	var createdAt, updatedAt time.Time
	err = tx.QueryRowContext(ctx, `
		INSERT INTO comments (id, entity_type, entity_id, parent_comment_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, commentID, req.EntityType, req.EntityID, req.ParentCommentID, author.ID, req.Content).Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if err := insertMentions(ctx, tx, commentID, req.Mentions); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.GetComment(ctx, commentID)
}

// UpdateComment replaces a comment's content and mention set, marking it
// edited. The mention rows are rewritten wholesale; partial diffs are not
// worth the bookkeeping at comment sizes.
func (s *Storage) UpdateComment(ctx context.Context, commentID string, req models.UpdateCommentRequest) (*models.Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE comments
		SET content = $1, is_edited = TRUE, updated_at = NOW()
		WHERE id = $2
	`, req.Content, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM comment_mentions WHERE comment_id = $1`, commentID); err != nil {
		return nil, fmt.Errorf("failed to clear mentions: %w", err)
	}
	if err := insertMentions(ctx, tx, commentID, req.Mentions); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.GetComment(ctx, commentID)
}

// DeleteComment removes a comment. Without force, a comment that has replies
// is refused; with force, the whole subtree goes via the FK cascade.
func (s *Storage) DeleteComment(ctx context.Context, commentID string, force bool) (bool, error) {
	if !force {
		var replyCount int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM comments WHERE parent_comment_id = $1`, commentID,
		).Scan(&replyCount)
		if err != nil {
			return false, fmt.Errorf("failed to count replies: %w", err)
		}
		if replyCount > 0 {
			return false, ErrHasReplies
		}
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, ErrNotFound
	}
	return true, nil
}

// insertMentions writes the mention rows for a comment, silently skipping
// user ids that don't resolve to an account and duplicate user ids.
func insertMentions(ctx context.Context, tx *sql.Tx, commentID string, mentions []models.Mention) error {
	for _, m := range mentions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comment_mentions (comment_id, user_id, created_at)
			SELECT $1, id, NOW() FROM users WHERE id = $2
			ON CONFLICT (comment_id, user_id) DO NOTHING
		`, commentID, m.UserID)
		if err != nil {
			return fmt.Errorf("failed to insert mention: %w", err)
		}
	}
	return nil
}
