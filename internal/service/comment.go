package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"threadboard/internal/cache"
	"threadboard/internal/model"
	"threadboard/internal/repository"
	"threadboard/internal/thread"
)

// CommentService keeps each post's comments in threaded display order.
// Every write runs in one transaction holding the lock of the group it
// touches, so reads of the group's shape and the row moves they imply
// cannot interleave with another writer.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	db          *sqlx.DB
	pageCache   cache.CommentPageCache
	log         *zap.Logger
	now         func() time.Time
}

// NewCommentService wires the service. pageCache may be nil.
func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	db *sqlx.DB,
	pageCache cache.CommentPageCache,
	log *zap.Logger,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		db:          db,
		pageCache:   pageCache,
		log:         log.Named("comment"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a top-level comment, or a reply when req.ParentID is set.
func (s *CommentService) Create(ctx context.Context, postID, authorID int64, req model.CreateCommentRequest) (*model.Comment, error) {
	if req.ParentID == nil {
		return s.CreateTopLevel(ctx, postID, authorID, req.Content)
	}
	return s.CreateReply(ctx, postID, authorID, req.Content, *req.ParentID)
}

// CreateTopLevel opens a new group at the end of the post.
func (s *CommentService) CreateTopLevel(ctx context.Context, postID, authorID int64, content string) (*model.Comment, error) {
	content, err := validateComment(content)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// group 0 guards group allocation for the whole post
	if err := s.commentRepo.LockThread(ctx, tx, postID, 0); err != nil {
		return nil, err
	}
	maxGroup, err := s.commentRepo.MaxGroup(ctx, tx, postID)
	if err != nil {
		return nil, err
	}
	group := thread.NextGroup(maxGroup)
	if err := s.commentRepo.LockThread(ctx, tx, postID, group); err != nil {
		return nil, err
	}

	now := s.now()
	comment := &model.Comment{
		PostID:    postID,
		UserID:    authorID,
		Content:   content,
		Group:     group,
		Sequence:  1,
		Depth:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.commentRepo.InsertAt(ctx, tx, comment, 0); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.invalidate(ctx, postID)
	s.log.Info("comment created",
		zap.Int64("post_id", postID), zap.Int64("comment_id", comment.ID), zap.Int("group", group))
	return comment, nil
}

// CreateReply places a reply to parentID inside the parent's group.
func (s *CommentService) CreateReply(ctx context.Context, postID, authorID int64, content string, parentID int64) (*model.Comment, error) {
	content, err := validateComment(content)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	parent, err := s.lockComment(ctx, tx, postID, func() (*model.Comment, error) {
		return s.commentRepo.GetByID(ctx, tx, postID, parentID)
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.commentRepo.GroupStats(ctx, tx, postID, parent.Group)
	if err != nil {
		return nil, err
	}
	placement, err := thread.PlanReply(parent.Node(), stats)
	if err != nil {
		s.log.Warn("reply placement rejected",
			zap.Int64("post_id", postID), zap.Int64("parent_id", parentID),
			zap.Int("group", parent.Group), zap.Int("count", stats.Count), zap.Error(err))
		return nil, err
	}

	now := s.now()
	comment := &model.Comment{
		PostID:    postID,
		UserID:    authorID,
		ParentID:  &parent.ID,
		Content:   content,
		Group:     parent.Group,
		Sequence:  placement.Sequence,
		Depth:     placement.Depth,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.commentRepo.InsertAt(ctx, tx, comment, placement.ShiftFrom); err != nil {
		return nil, err
	}
	if err := s.commentRepo.IncrementChildren(ctx, tx, parent.ID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.invalidate(ctx, postID)
	s.log.Info("reply created",
		zap.Int64("post_id", postID), zap.Int64("comment_id", comment.ID), zap.Int64("parent_id", parentID),
		zap.Int("group", comment.Group), zap.Int("sequence", comment.Sequence), zap.Stringer("rule", placement.Rule))
	return comment, nil
}

// List returns one page of the post's comments in display order. viewerID
// marks the viewer's own comments and may be nil.
func (s *CommentService) List(ctx context.Context, postID int64, req model.PageRequest, viewerID *int64) (*model.Page[model.CommentView], error) {
	req = model.NewPageRequest(req.PageNo, req.PageSize)
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}

	page, err := s.loadPage(ctx, postID, req)
	if err != nil {
		return nil, err
	}

	views := make([]model.CommentView, len(page.Items))
	for i := range page.Items {
		views[i] = page.Items[i].View(viewerID)
	}
	return model.NewPage(req, page.Total, views), nil
}

func (s *CommentService) loadPage(ctx context.Context, postID int64, req model.PageRequest) (*cache.CommentPage, error) {
	var version int64
	if s.pageCache != nil {
		cached, v, err := s.pageCache.Lookup(ctx, postID, req)
		if err != nil {
			s.log.Warn("comment cache lookup failed", zap.Int64("post_id", postID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
		version = v
	}

	total, err := s.commentRepo.CountByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !req.InRange(total) {
		return nil, model.ErrPageOutOfRange
	}
	items, err := s.commentRepo.ListByPost(ctx, postID, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}

	page := &cache.CommentPage{Total: total, Items: items}
	if s.pageCache != nil {
		if err := s.pageCache.Store(ctx, postID, version, req, page); err != nil {
			s.log.Warn("comment cache store failed", zap.Int64("post_id", postID), zap.Error(err))
		}
	}
	return page, nil
}

// Update rewrites the content of a comment owned by ownerID. Position never
// changes.
func (s *CommentService) Update(ctx context.Context, postID, commentID, ownerID int64, content string) error {
	content, err := validateComment(content)
	if err != nil {
		return err
	}

	if err := s.commentRepo.UpdateContent(ctx, postID, commentID, ownerID, content, s.now()); err != nil {
		return err
	}

	s.invalidate(ctx, postID)
	s.log.Info("comment updated", zap.Int64("post_id", postID), zap.Int64("comment_id", commentID))
	return nil
}

// Delete removes a comment owned by ownerID together with its whole subtree
// and closes the gap in its group.
func (s *CommentService) Delete(ctx context.Context, postID, commentID, ownerID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := s.lockComment(ctx, tx, postID, func() (*model.Comment, error) {
		return s.commentRepo.GetOwned(ctx, tx, postID, commentID, ownerID)
	})
	if err != nil {
		return err
	}

	stats, err := s.commentRepo.GroupStats(ctx, tx, postID, target.Group)
	if err != nil {
		return err
	}
	boundary, err := s.commentRepo.SubtreeBoundary(ctx, tx, postID, target.Group, target.Sequence, target.Depth)
	if err != nil {
		return err
	}
	span, err := thread.SubtreeSpan(target.Node(), boundary, stats.Count)
	if err != nil {
		s.log.Error("subtree span rejected",
			zap.Int64("post_id", postID), zap.Int64("comment_id", commentID),
			zap.Int("group", target.Group), zap.Int("boundary", boundary), zap.Error(err))
		return err
	}

	removed, err := s.commentRepo.RemoveRange(ctx, tx, postID, target.Group, span)
	if err != nil {
		return err
	}
	if target.ParentID != nil {
		if err := s.commentRepo.IncrementChildren(ctx, tx, *target.ParentID, -1); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.invalidate(ctx, postID)
	s.log.Info("comment deleted",
		zap.Int64("post_id", postID), zap.Int64("comment_id", commentID),
		zap.Int("group", target.Group), zap.Int64("removed", removed))
	return nil
}

// lockComment loads a comment to learn its group, locks the group and loads
// the comment again, since its sequence may have moved before the lock.
func (s *CommentService) lockComment(ctx context.Context, tx *sqlx.Tx, postID int64, load func() (*model.Comment, error)) (*model.Comment, error) {
	c, err := load()
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.LockThread(ctx, tx, postID, c.Group); err != nil {
		return nil, err
	}
	return load()
}

func (s *CommentService) ensurePost(ctx context.Context, postID int64) error {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return fmt.Errorf("check post exists: %w", err)
	}
	if !exists {
		return model.ErrPostNotFound
	}
	return nil
}

// invalidate runs after commit; a failure only leaves pages to expire.
func (s *CommentService) invalidate(ctx context.Context, postID int64) {
	if s.pageCache == nil {
		return
	}
	if err := s.pageCache.Invalidate(ctx, postID); err != nil {
		s.log.Warn("comment cache invalidate failed", zap.Int64("post_id", postID), zap.Error(err))
	}
}

func validateComment(content string) (string, error) {
	content, n := cleanText(content)
	if n == 0 {
		return "", model.ErrContentRequired
	}
	if n > model.MaxCommentLength {
		return "", model.ErrContentTooLong
	}
	return content, nil
}
