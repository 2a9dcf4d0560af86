package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"threadboard/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

const postWithAuthorColumns = `
	p.id, p.user_id, p.category_id, p.title, p.content, p.view_count, p.created_at,
	c.name AS category,
	u.id AS "author.id", u.nickname AS "author.nickname"
`

const postJoins = `
	FROM posts p
	JOIN users u ON u.id = p.user_id
	JOIN categories c ON c.id = p.category_id
`

// Create inserts a post. Images are attached separately with AddImages.
func (r *postRepository) Create(ctx context.Context, tx *sqlx.Tx, post *model.Post) error {
	query := tx.Rebind(`
		INSERT INTO posts (user_id, category_id, title, content, view_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		RETURNING id
	`)
	err := tx.QueryRowxContext(ctx, query, post.UserID, post.CategoryID, post.Title, post.Content, post.CreatedAt).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// AddImages inserts image rows in order, filling in their ids.
func (r *postRepository) AddImages(ctx context.Context, tx *sqlx.Tx, postID int64, images []model.PostImage) error {
	query := tx.Rebind(`
		INSERT INTO post_images (post_id, url, object_key, position)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	for i := range images {
		images[i].PostID = postID
		images[i].Position = i
		err := tx.QueryRowxContext(ctx, query, postID, images[i].URL, images[i].ObjectKey, i).Scan(&images[i].ID)
		if err != nil {
			return fmt.Errorf("insert image %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves a single post with its author.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.PostWithAuthor, error) {
	query := r.db.Rebind(`SELECT ` + postWithAuthorColumns + postJoins + `WHERE p.id = ?`)

	var post model.PostWithAuthor
	err := r.db.GetContext(ctx, &post, query, postID)
	if err == sql.ErrNoRows {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) GetImages(ctx context.Context, postID int64) ([]model.PostImage, error) {
	query := r.db.Rebind(`
		SELECT id, post_id, url, object_key, position
		FROM post_images
		WHERE post_id = ?
		ORDER BY position
	`)

	images := []model.PostImage{}
	if err := r.db.SelectContext(ctx, &images, query, postID); err != nil {
		return nil, fmt.Errorf("get post images: %w", err)
	}
	return images, nil
}

// postWhere renders the filter as a WHERE clause with its arguments.
func postWhere(f model.PostFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.CategoryID != nil {
		conds = append(conds, "p.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Keyword != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Keyword)) + "%"
		title := `LOWER(p.title) LIKE ? ESCAPE '\'`
		writer := `LOWER(u.nickname) LIKE ? ESCAPE '\'`
		switch f.Criteria {
		case model.CriteriaTitle:
			conds = append(conds, title)
			args = append(args, pattern)
		case model.CriteriaWriter:
			conds = append(conds, writer)
			args = append(args, pattern)
		default:
			conds = append(conds, "("+title+" OR "+writer+")")
			args = append(args, pattern, pattern)
		}
	}
	if f.Since != nil {
		conds = append(conds, "p.created_at >= ?")
		args = append(args, *f.Since)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Count returns the number of posts matching the filter.
func (r *postRepository) Count(ctx context.Context, filter model.PostFilter) (int, error) {
	where, args := postWhere(filter)
	query := r.db.Rebind(`SELECT COUNT(*)` + postJoins + where)

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return total, nil
}

// List returns one page of posts matching the filter. Popular listings are
// ordered by views, the rest newest first.
func (r *postRepository) List(ctx context.Context, filter model.PostFilter, limit, offset int) ([]model.PostWithAuthor, error) {
	where, args := postWhere(filter)
	order := ` ORDER BY p.created_at DESC, p.id DESC`
	if filter.Popular {
		order = ` ORDER BY p.view_count DESC, p.created_at DESC, p.id DESC`
	}
	query := r.db.Rebind(`SELECT ` + postWithAuthorColumns + postJoins + where + order + ` LIMIT ? OFFSET ?`)

	posts := []model.PostWithAuthor{}
	if err := r.db.SelectContext(ctx, &posts, query, append(args, limit, offset)...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Update rewrites the text of a post owned by post.UserID.
func (r *postRepository) Update(ctx context.Context, tx *sqlx.Tx, post *model.Post) error {
	query := tx.Rebind(`UPDATE posts SET title = ?, content = ? WHERE id = ? AND user_id = ?`)
	result, err := tx.ExecContext(ctx, query, post.Title, post.Content, post.ID, post.UserID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

// ReplaceImages swaps the post's image rows for images and returns the rows
// that were removed.
func (r *postRepository) ReplaceImages(ctx context.Context, tx *sqlx.Tx, postID int64, images []model.PostImage) ([]model.PostImage, error) {
	old := []model.PostImage{}
	query := tx.Rebind(`
		SELECT id, post_id, url, object_key, position
		FROM post_images
		WHERE post_id = ?
		ORDER BY position
	`)
	if err := tx.SelectContext(ctx, &old, query, postID); err != nil {
		return nil, fmt.Errorf("get post images: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM post_images WHERE post_id = ?`), postID); err != nil {
		return nil, fmt.Errorf("delete post images: %w", err)
	}
	if err := r.AddImages(ctx, tx, postID, images); err != nil {
		return nil, err
	}
	return old, nil
}

func (r *postRepository) IncrementViewCount(ctx context.Context, postID int64) error {
	query := r.db.Rebind(`UPDATE posts SET view_count = view_count + 1 WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, postID); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// Delete removes a post owned by userID. Comments and image rows cascade.
func (r *postRepository) Delete(ctx context.Context, postID, userID int64) error {
	query := r.db.Rebind(`DELETE FROM posts WHERE id = ? AND user_id = ?`)
	result, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) Exists(ctx context.Context, postID int64) (bool, error) {
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, postID); err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}
