package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"threadboard/internal/model"
	"threadboard/internal/thread"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

const commentColumns = `
	id, post_id, user_id, parent_id, content, group_num, sequence, depth,
	children_num, created_at, updated_at
`

func (r *commentRepository) GetByID(ctx context.Context, tx *sqlx.Tx, postID, commentID int64) (*model.Comment, error) {
	query := tx.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE id = ? AND post_id = ?`)

	var c model.Comment
	err := tx.GetContext(ctx, &c, query, commentID, postID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

// GetOwned is GetByID restricted to comments written by userID. Someone
// else's comment reads as not found.
func (r *commentRepository) GetOwned(ctx context.Context, tx *sqlx.Tx, postID, commentID, userID int64) (*model.Comment, error) {
	query := tx.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE id = ? AND post_id = ? AND user_id = ?`)

	var c model.Comment
	err := tx.GetContext(ctx, &c, query, commentID, postID, userID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owned comment: %w", err)
	}
	return &c, nil
}

// CountByPost returns the number of comments on a post.
func (r *commentRepository) CountByPost(ctx context.Context, postID int64) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM comments WHERE post_id = ?`), postID)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return total, nil
}

// ListByPost returns one page of a post's comments in display order.
func (r *commentRepository) ListByPost(ctx context.Context, postID int64, limit, offset int) ([]model.CommentWithAuthor, error) {
	query := r.db.Rebind(`
		SELECT c.id, c.post_id, c.user_id, c.parent_id, c.content, c.group_num, c.sequence,
		       c.depth, c.children_num, c.created_at, c.updated_at,
		       u.id AS "author.id", u.nickname AS "author.nickname"
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ?
		ORDER BY c.group_num, c.sequence
		LIMIT ? OFFSET ?
	`)

	comments := []model.CommentWithAuthor{}
	if err := r.db.SelectContext(ctx, &comments, query, postID, limit, offset); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// ListGroup returns every comment of one group in sequence order.
func (r *commentRepository) ListGroup(ctx context.Context, postID int64, group int) ([]model.Comment, error) {
	query := r.db.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE post_id = ? AND group_num = ? ORDER BY sequence`)

	comments := []model.Comment{}
	if err := r.db.SelectContext(ctx, &comments, query, postID, group); err != nil {
		return nil, fmt.Errorf("list group: %w", err)
	}
	return comments, nil
}

// LockThread takes a transaction-scoped advisory lock on Postgres. Other
// drivers serialise writers on their own and get no lock.
func (r *commentRepository) LockThread(ctx context.Context, tx *sqlx.Tx, postID int64, group int) error {
	if tx.DriverName() != "postgres" {
		return nil
	}
	key := fmt.Sprintf("comments:%d:%d", postID, group)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock thread %s: %w", key, err)
	}
	return nil
}

func (r *commentRepository) MaxGroup(ctx context.Context, tx *sqlx.Tx, postID int64) (int, error) {
	var maxGroup int
	err := tx.GetContext(ctx, &maxGroup, tx.Rebind(`SELECT COALESCE(MAX(group_num), 0) FROM comments WHERE post_id = ?`), postID)
	if err != nil {
		return 0, fmt.Errorf("max group: %w", err)
	}
	return maxGroup, nil
}

func (r *commentRepository) GroupStats(ctx context.Context, tx *sqlx.Tx, postID int64, group int) (thread.Stats, error) {
	query := tx.Rebind(`
		SELECT COUNT(*) AS count,
		       COALESCE(SUM(children_num), 0) AS children_sum,
		       COALESCE(MAX(depth), 0) AS max_depth
		FROM comments
		WHERE post_id = ? AND group_num = ?
	`)

	var row struct {
		Count       int `db:"count"`
		ChildrenSum int `db:"children_sum"`
		MaxDepth    int `db:"max_depth"`
	}
	if err := tx.GetContext(ctx, &row, query, postID, group); err != nil {
		return thread.Stats{}, fmt.Errorf("group stats: %w", err)
	}
	return thread.Stats{Count: row.Count, ChildrenNumSum: row.ChildrenSum, MaxDepth: row.MaxDepth}, nil
}

func (r *commentRepository) SubtreeBoundary(ctx context.Context, tx *sqlx.Tx, postID int64, group, seq, depth int) (int, error) {
	query := tx.Rebind(`
		SELECT MIN(sequence)
		FROM comments
		WHERE post_id = ? AND group_num = ? AND sequence > ? AND depth <= ?
	`)

	var boundary sql.NullInt64
	if err := tx.GetContext(ctx, &boundary, query, postID, group, seq, depth); err != nil {
		return 0, fmt.Errorf("subtree boundary: %w", err)
	}
	if !boundary.Valid {
		return 0, nil
	}
	return int(boundary.Int64), nil
}

// InsertAt moves every row at or after shiftFrom one position down, then
// inserts c at c.Sequence. A zero shiftFrom inserts without moving rows.
func (r *commentRepository) InsertAt(ctx context.Context, tx *sqlx.Tx, c *model.Comment, shiftFrom int) error {
	if shiftFrom > 0 {
		shift := tx.Rebind(`
			UPDATE comments SET sequence = sequence + 1
			WHERE post_id = ? AND group_num = ? AND sequence >= ?
		`)
		if _, err := tx.ExecContext(ctx, shift, c.PostID, c.Group, shiftFrom); err != nil {
			return fmt.Errorf("shift sequences: %w", err)
		}
	}

	query := tx.Rebind(`
		INSERT INTO comments (post_id, user_id, parent_id, content, group_num, sequence, depth, children_num, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		RETURNING id
	`)
	err := tx.QueryRowxContext(ctx, query,
		c.PostID, c.UserID, c.ParentID, c.Content, c.Group, c.Sequence, c.Depth, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// RemoveRange deletes the rows of span and closes the gap behind it.
func (r *commentRepository) RemoveRange(ctx context.Context, tx *sqlx.Tx, postID int64, group int, span thread.Span) (int64, error) {
	del := tx.Rebind(`
		DELETE FROM comments
		WHERE post_id = ? AND group_num = ? AND sequence BETWEEN ? AND ?
	`)
	result, err := tx.ExecContext(ctx, del, postID, group, span.First, span.Last)
	if err != nil {
		return 0, fmt.Errorf("delete comments: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	if deleted != int64(span.Size()) {
		return deleted, fmt.Errorf("%w: removed %d rows for span %d..%d", thread.ErrOrderConflict, deleted, span.First, span.Last)
	}

	shift := tx.Rebind(`
		UPDATE comments SET sequence = sequence - ?
		WHERE post_id = ? AND group_num = ? AND sequence > ?
	`)
	if _, err := tx.ExecContext(ctx, shift, span.Size(), postID, group, span.Last); err != nil {
		return deleted, fmt.Errorf("close sequence gap: %w", err)
	}
	return deleted, nil
}

func (r *commentRepository) IncrementChildren(ctx context.Context, tx *sqlx.Tx, commentID int64, delta int) error {
	query := tx.Rebind(`UPDATE comments SET children_num = children_num + ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query, delta, commentID); err != nil {
		return fmt.Errorf("update children count: %w", err)
	}
	return nil
}

// UpdateContent rewrites a comment's text. Only the owner can update; anything
// else is reported as not found.
func (r *commentRepository) UpdateContent(ctx context.Context, postID, commentID, userID int64, content string, at time.Time) error {
	query := r.db.Rebind(`
		UPDATE comments SET content = ?, updated_at = ?
		WHERE id = ? AND post_id = ? AND user_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, content, at, commentID, postID, userID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrCommentNotFound
	}
	return nil
}
