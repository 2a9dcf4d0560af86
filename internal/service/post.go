package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"threadboard/internal/model"
	"threadboard/internal/repository"
)

type PostService struct {
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	db           *sqlx.DB
	images       ImageStore
	log          *zap.Logger
	now          func() time.Time
}

// NewPostService wires the service. images may be nil, which rejects posts
// that carry uploads.
func NewPostService(
	postRepo repository.PostRepository,
	categoryRepo repository.CategoryRepository,
	db *sqlx.DB,
	images ImageStore,
	log *zap.Logger,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		db:           db,
		images:       images,
		log:          log.Named("post"),
		now:          time.Now,
	}
}

// Create uploads the images, then stores the post and its image rows in one
// transaction. Uploaded objects are removed again if anything fails.
func (s *PostService) Create(ctx context.Context, userID int64, req model.CreatePostRequest, files []*multipart.FileHeader) (*model.PostDetail, error) {
	title, content, err := s.validatePost(req.Title, req.Content, files)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, model.ErrCategoryRequired
	}
	category, err := s.categoryRepo.GetByName(ctx, strings.TrimSpace(req.Category))
	if err != nil {
		return nil, err
	}

	images := make([]model.PostImage, 0, len(files))
	committed := false
	defer func() {
		if !committed {
			s.removeObjects(images)
		}
	}()

	if err := s.uploadAll(ctx, files, &images); err != nil {
		return nil, err
	}

	post := &model.Post{
		UserID:     userID,
		CategoryID: category.ID,
		Title:      title,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.postRepo.Create(ctx, tx, post); err != nil {
		return nil, err
	}
	if err := s.postRepo.AddImages(ctx, tx, post.ID, images); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	s.log.Info("post created", zap.Int64("post_id", post.ID), zap.Int("images", len(images)))
	return &model.PostDetail{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Category:  category.Name,
		CreatedAt: post.CreatedAt,
		User:      model.UserSummary{ID: userID},
		Images:    images,
		IsMyPost:  true,
	}, nil
}

// Update rewrites a post owned by userID and replaces its images with files.
// The old image objects are deleted once the change is committed.
func (s *PostService) Update(ctx context.Context, postID, userID int64, req model.UpdatePostRequest, files []*multipart.FileHeader) error {
	title, content, err := s.validatePost(req.Title, req.Content, files)
	if err != nil {
		return err
	}

	images := make([]model.PostImage, 0, len(files))
	committed := false
	defer func() {
		if !committed {
			s.removeObjects(images)
		}
	}()

	if err := s.uploadAll(ctx, files, &images); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	post := &model.Post{ID: postID, UserID: userID, Title: title, Content: content}
	if err := s.postRepo.Update(ctx, tx, post); err != nil {
		return err
	}
	old, err := s.postRepo.ReplaceImages(ctx, tx, postID, images)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	s.removeObjects(old)
	s.log.Info("post updated", zap.Int64("post_id", postID), zap.Int("images", len(images)), zap.Int("replaced", len(old)))
	return nil
}

// validatePost checks the text and upload count shared by create and update,
// returning the cleaned title and content.
func (s *PostService) validatePost(rawTitle, rawContent string, files []*multipart.FileHeader) (string, string, error) {
	title, titleLen := cleanText(rawTitle)
	content, contentLen := cleanText(rawContent)
	switch {
	case titleLen == 0:
		return "", "", model.ErrTitleRequired
	case titleLen > model.MaxPostTitleLength:
		return "", "", model.ErrTitleTooLong
	case contentLen == 0:
		return "", "", model.ErrContentRequired
	case contentLen > model.MaxPostContentLength:
		return "", "", model.ErrContentTooLong
	case len(files) > model.MaxPostImages:
		return "", "", model.ErrTooManyImages
	case len(files) > 0 && s.images == nil:
		return "", "", model.ErrMediaDisabled
	}
	return title, content, nil
}

// uploadAll uploads files in order, appending each stored image to images as
// it lands so the caller can clean up after a partial failure.
func (s *PostService) uploadAll(ctx context.Context, files []*multipart.FileHeader, images *[]model.PostImage) error {
	for _, header := range files {
		uploaded, err := s.upload(ctx, header)
		if err != nil {
			return err
		}
		*images = append(*images, model.PostImage{URL: uploaded.URL, ObjectKey: uploaded.Key})
	}
	return nil
}

func (s *PostService) upload(ctx context.Context, header *multipart.FileHeader) (*model.UploadResult, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	return s.images.UploadPostImage(ctx, file, header)
}

// List returns one page of posts matching the query.
func (s *PostService) List(ctx context.Context, req model.PostListRequest) (*model.Page[model.PostSummary], error) {
	page := model.NewPageRequest(req.Page.PageNo, req.Page.PageSize)
	filter, err := s.resolveFilter(ctx, req)
	if err != nil {
		return nil, err
	}

	total, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !page.InRange(total) {
		return nil, model.ErrPageOutOfRange
	}

	posts, err := s.postRepo.List(ctx, filter, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}

	items := make([]model.PostSummary, len(posts))
	for i, p := range posts {
		items[i] = model.PostSummary{
			ID:        p.ID,
			Title:     p.Title,
			Category:  p.Category,
			ViewCount: p.ViewCount,
			CreatedAt: p.CreatedAt,
			User:      p.Author,
		}
	}
	return model.NewPage(page, total, items), nil
}

// resolveFilter validates a listing query and applies its defaults. The
// period only narrows popularity listings.
func (s *PostService) resolveFilter(ctx context.Context, req model.PostListRequest) (model.PostFilter, error) {
	var filter model.PostFilter

	switch req.Sort {
	case "", model.SortRecent:
	case model.SortPopularity:
		filter.Popular = true
	default:
		return filter, fmt.Errorf("%w: unknown sort %q", model.ErrInvalidPostQuery, req.Sort)
	}

	switch req.Period {
	case "", model.PeriodAll, model.PeriodYear, model.PeriodMonth, model.PeriodWeek:
	default:
		return filter, fmt.Errorf("%w: unknown period %q", model.ErrInvalidPostQuery, req.Period)
	}
	if filter.Popular {
		filter.Since = req.Period.Since(s.now().UTC())
	}

	switch req.Criteria {
	case "":
		filter.Criteria = model.CriteriaAll
	case model.CriteriaAll, model.CriteriaTitle, model.CriteriaWriter:
		filter.Criteria = req.Criteria
	default:
		return filter, fmt.Errorf("%w: unknown criteria %q", model.ErrInvalidPostQuery, req.Criteria)
	}

	filter.Keyword = strings.TrimSpace(req.Keyword)
	if filter.Keyword != "" && utf8.RuneCountInString(filter.Keyword) < model.MinKeywordLength {
		return filter, fmt.Errorf("%w: keyword must be at least %d characters", model.ErrInvalidPostQuery, model.MinKeywordLength)
	}

	if name := strings.TrimSpace(req.Category); name != "" {
		category, err := s.categoryRepo.GetByName(ctx, name)
		if err != nil {
			return filter, err
		}
		filter.CategoryID = &category.ID
	}
	return filter, nil
}

// Categories lists every category posts can be filed under.
func (s *PostService) Categories(ctx context.Context) ([]model.Category, error) {
	return s.categoryRepo.List(ctx)
}

// GetByID returns a post with its images and counts the view.
func (s *PostService) GetByID(ctx context.Context, postID int64, viewerID *int64) (*model.PostDetail, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := s.postRepo.IncrementViewCount(ctx, postID); err != nil {
		return nil, err
	}
	post.ViewCount++

	images, err := s.postRepo.GetImages(ctx, postID)
	if err != nil {
		return nil, err
	}

	return &model.PostDetail{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Category:  post.Category,
		ViewCount: post.ViewCount,
		CreatedAt: post.CreatedAt,
		User:      post.Author,
		Images:    images,
		IsMyPost:  viewerID != nil && *viewerID == post.UserID,
	}, nil
}

// Delete removes a post owned by userID along with its comments, then its
// stored images.
func (s *PostService) Delete(ctx context.Context, postID, userID int64) error {
	images, err := s.postRepo.GetImages(ctx, postID)
	if err != nil {
		return err
	}

	if err := s.postRepo.Delete(ctx, postID, userID); err != nil {
		return err
	}

	s.removeObjects(images)
	s.log.Info("post deleted", zap.Int64("post_id", postID))
	return nil
}

// removeObjects deletes image objects, logging failures.
func (s *PostService) removeObjects(images []model.PostImage) {
	if s.images == nil {
		return
	}
	for _, img := range images {
		if err := s.images.DeleteObject(context.Background(), img.ObjectKey); err != nil {
			s.log.Warn("delete image object failed", zap.String("key", img.ObjectKey), zap.Error(err))
		}
	}
}
