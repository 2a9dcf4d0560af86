package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"threadboard/internal/model"
	"threadboard/internal/thread"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type PostRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, post *model.Post) error
	AddImages(ctx context.Context, tx *sqlx.Tx, postID int64, images []model.PostImage) error
	GetByID(ctx context.Context, postID int64) (*model.PostWithAuthor, error)
	GetImages(ctx context.Context, postID int64) ([]model.PostImage, error)
	Count(ctx context.Context, filter model.PostFilter) (int, error)
	List(ctx context.Context, filter model.PostFilter, limit, offset int) ([]model.PostWithAuthor, error)
	Update(ctx context.Context, tx *sqlx.Tx, post *model.Post) error
	ReplaceImages(ctx context.Context, tx *sqlx.Tx, postID int64, images []model.PostImage) ([]model.PostImage, error)
	IncrementViewCount(ctx context.Context, postID int64) error
	Delete(ctx context.Context, postID, userID int64) error
	// Exists checks if a post exists
	Exists(ctx context.Context, postID int64) (bool, error)
}

type CategoryRepository interface {
	GetByName(ctx context.Context, name string) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
}

// CommentRepository stores comments in (group, sequence) order. Methods taking
// a tx must run after LockThread on the same group.
type CommentRepository interface {
	GetByID(ctx context.Context, tx *sqlx.Tx, postID, commentID int64) (*model.Comment, error)
	GetOwned(ctx context.Context, tx *sqlx.Tx, postID, commentID, userID int64) (*model.Comment, error)
	CountByPost(ctx context.Context, postID int64) (int, error)
	ListByPost(ctx context.Context, postID int64, limit, offset int) ([]model.CommentWithAuthor, error)
	ListGroup(ctx context.Context, postID int64, group int) ([]model.Comment, error)

	// LockThread serialises writers of one group of a post until tx ends.
	// Group 0 locks group allocation for the whole post.
	LockThread(ctx context.Context, tx *sqlx.Tx, postID int64, group int) error
	MaxGroup(ctx context.Context, tx *sqlx.Tx, postID int64) (int, error)
	GroupStats(ctx context.Context, tx *sqlx.Tx, postID int64, group int) (thread.Stats, error)
	// SubtreeBoundary returns the first sequence after seq with depth <= depth,
	// or 0 when the subtree runs to the end of the group.
	SubtreeBoundary(ctx context.Context, tx *sqlx.Tx, postID int64, group, seq, depth int) (int, error)

	InsertAt(ctx context.Context, tx *sqlx.Tx, c *model.Comment, shiftFrom int) error
	RemoveRange(ctx context.Context, tx *sqlx.Tx, postID int64, group int, span thread.Span) (int64, error)
	IncrementChildren(ctx context.Context, tx *sqlx.Tx, commentID int64, delta int) error
	UpdateContent(ctx context.Context, postID, commentID, userID int64, content string, at time.Time) error
}
