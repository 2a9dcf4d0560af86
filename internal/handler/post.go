package handler

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"threadboard/internal/httputil"
	"threadboard/internal/model"
	"threadboard/internal/service"
	"threadboard/internal/transport/http/middleware"
)

type PostHandler struct {
	postService *service.PostService
	log         *zap.Logger
}

func NewPostHandler(postService *service.PostService, log *zap.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		log:         log.Named("post_handler"),
	}
}

// Create handles POST /posts
// Multipart form: title, content, category and up to five "images" files.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if !parsePostForm(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := model.CreatePostRequest{
		Title:    r.FormValue("title"),
		Content:  r.FormValue("content"),
		Category: r.FormValue("category"),
	}

	post, err := h.postService.Create(r.Context(), userID, req, r.MultipartForm.File["images"])
	if err != nil {
		h.writePostError(w, err, "Failed to create post", zap.Int64("user_id", userID))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// Update handles PATCH /posts/{postId}
// Multipart form: title, content and the "images" that replace the current ones.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID, ok := pathID(r, "postId")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	if !parsePostForm(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := model.UpdatePostRequest{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
	}

	if err := h.postService.Update(r.Context(), postID, userID, req, r.MultipartForm.File["images"]); err != nil {
		h.writePostError(w, err, "Failed to update post", zap.Int64("user_id", userID), zap.Int64("post_id", postID))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post updated successfully",
	})
}

// parsePostForm reads a multipart post form, writing the error response and
// returning false when it cannot.
func parsePostForm(w http.ResponseWriter, r *http.Request) bool {
	maxFormSize := int64(model.MaxPostImages)*model.MaxPostImageSizeBytes + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return false
		}
		if strings.Contains(err.Error(), "request body too large") {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Images exceed upload limit")
			return false
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return false
	}
	return true
}

func (h *PostHandler) writePostError(w http.ResponseWriter, err error, message string, fields ...zap.Field) {
	switch {
	case errors.Is(err, model.ErrPostNotFound):
		httputil.WriteNotFound(w, "Post not found")
	case errors.Is(err, model.ErrCategoryNotFound):
		httputil.WriteNotFound(w, "Category not found")
	case errors.Is(err, model.ErrCategoryRequired):
		httputil.WriteBadRequest(w, "Category is required")
	case errors.Is(err, model.ErrTitleRequired):
		httputil.WriteBadRequest(w, "Title is required")
	case errors.Is(err, model.ErrTitleTooLong):
		httputil.WriteBadRequest(w, "Title too long")
	case errors.Is(err, model.ErrContentRequired):
		httputil.WriteBadRequest(w, "Content is required")
	case errors.Is(err, model.ErrContentTooLong):
		httputil.WriteBadRequest(w, "Content too long")
	case errors.Is(err, model.ErrTooManyImages):
		httputil.WriteBadRequest(w, "Too many images (max 5)")
	case errors.Is(err, model.ErrFileTooLarge):
		httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 5MB limit")
	case errors.Is(err, model.ErrInvalidImageType):
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type")
	case errors.Is(err, model.ErrMediaDisabled):
		httputil.WriteBadRequest(w, "Image uploads are not available")
	default:
		h.log.Error(message, append(fields, zap.Error(err))...)
		httputil.WriteInternalError(w, message)
	}
}

// List handles GET /posts?pageNo&pageSize&category&keyword&criteria&sort&period
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	req := model.PostListRequest{
		Page:     page,
		Category: q.Get("category"),
		Keyword:  q.Get("keyword"),
		Criteria: model.PostCriteria(q.Get("criteria")),
		Sort:     model.PostSort(q.Get("sort")),
		Period:   model.PostPeriod(q.Get("period")),
	}

	result, err := h.postService.List(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPageOutOfRange):
			httputil.WriteBadRequestWithCode(w, model.CodePageOutOfRange, "Page out of range")
		case errors.Is(err, model.ErrInvalidPostQuery):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrCategoryNotFound):
			httputil.WriteNotFound(w, "Category not found")
		default:
			h.log.Error("list posts failed", zap.Error(err))
			httputil.WriteInternalError(w, "Failed to get posts")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Categories handles GET /categories
func (h *PostHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.postService.Categories(r.Context())
	if err != nil {
		h.log.Error("list categories failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get categories")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, categories)
}

// GetByID handles GET /posts/{postId}
// Returns a single post with its images and counts the view.
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r, "postId")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	var viewerID *int64
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		viewerID = &id
	}

	post, err := h.postService.GetByID(r.Context(), postID, viewerID)
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		h.log.Error("get post failed", zap.Int64("post_id", postID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{postId}
// Removes a post with its comments (only owner can delete).
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID, ok := pathID(r, "postId")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	if err := h.postService.Delete(r.Context(), postID, userID); err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		h.log.Error("delete post failed", zap.Int64("user_id", userID), zap.Int64("post_id", postID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to delete post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post deleted successfully",
	})
}
