package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"threadboard/internal/httputil"
	"threadboard/internal/model"
	"threadboard/internal/service"
	"threadboard/internal/thread"
	"threadboard/internal/transport/http/middleware"
)

type CommentHandler struct {
	commentService *service.CommentService
	log            *zap.Logger
}

func NewCommentHandler(commentService *service.CommentService, log *zap.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		log:            log.Named("comment_handler"),
	}
}

// Create handles POST /posts/{postId}/comments
// A body without parentId opens a new thread; otherwise it replies.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), postID, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Parent comment not found")
		case errors.Is(err, thread.ErrOrderConflict):
			httputil.WriteConflictWithCode(w, model.CodeOrderConflict, "Reply could not be placed in this thread")
		default:
			h.writeContentError(w, err, "Failed to create comment",
				zap.Int64("user_id", userID), zap.Int64("post_id", postID))
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// List handles GET /posts/{postId}/comments?pageNo&pageSize
// Authentication is optional; it only marks the viewer's own comments.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r, "postId")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	page, err := pageRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var viewerID *int64
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		viewerID = &userID
	}

	result, err := h.commentService.List(r.Context(), postID, page, viewerID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrPageOutOfRange):
			httputil.WriteBadRequestWithCode(w, model.CodePageOutOfRange, "Page out of range")
		default:
			h.log.Error("list comments failed", zap.Int64("post_id", postID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to get comments")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Update handles PATCH /posts/{postId}/comments/{commentId}
// Only the owner can edit; other users get 404.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	commentID, ok := pathID(r, "commentId")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req model.UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.commentService.Update(r.Context(), postID, commentID, userID, req.Content); err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		h.writeContentError(w, err, "Failed to update comment",
			zap.Int64("user_id", userID), zap.Int64("comment_id", commentID))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment updated successfully",
	})
}

// Delete handles DELETE /posts/{postId}/comments/{commentId}
// Removes the comment with all of its replies (only owner can delete).
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	commentID, ok := pathID(r, "commentId")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	if err := h.commentService.Delete(r.Context(), postID, commentID, userID); err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		h.log.Error("delete comment failed",
			zap.Int64("user_id", userID), zap.Int64("comment_id", commentID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to delete comment")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment deleted successfully",
	})
}

func (h *CommentHandler) writeContentError(w http.ResponseWriter, err error, message string, fields ...zap.Field) {
	switch {
	case errors.Is(err, model.ErrContentRequired):
		httputil.WriteBadRequest(w, "Comment content is required")
	case errors.Is(err, model.ErrContentTooLong):
		httputil.WriteBadRequest(w, "Comment content too long")
	default:
		h.log.Error(message, append(fields, zap.Error(err))...)
		httputil.WriteInternalError(w, message)
	}
}
