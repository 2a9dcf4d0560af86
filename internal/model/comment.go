package model

import (
	"errors"
	"time"

	"threadboard/internal/thread"
)

// Comment is one row of a post's flattened reply trees.
// Group, Sequence and Depth place it inside its thread; see package thread.
type Comment struct {
	ID          int64     `db:"id" json:"id"`
	PostID      int64     `db:"post_id" json:"post_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	ParentID    *int64    `db:"parent_id" json:"parent_id,omitempty"`
	Content     string    `db:"content" json:"content"`
	Group       int       `db:"group_num" json:"group"`
	Sequence    int       `db:"sequence" json:"sequence"`
	Depth       int       `db:"depth" json:"depth"`
	ChildrenNum int       `db:"children_num" json:"children_num"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Node returns the positional part of the comment.
func (c *Comment) Node() thread.Node {
	return thread.Node{
		Sequence:    c.Sequence,
		Depth:       c.Depth,
		ChildrenNum: c.ChildrenNum,
	}
}

// Row returns the comment as checked by thread.Check.
func (c *Comment) Row() thread.Row {
	var parentID int64
	if c.ParentID != nil {
		parentID = *c.ParentID
	}
	return thread.Row{ID: c.ID, ParentID: parentID, Node: c.Node()}
}

// IsRoot reports whether the comment opened its group.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// CommentView is a comment as presented to a viewer.
type CommentView struct {
	ID          int64       `json:"id"`
	Content     string      `json:"content"`
	Group       int         `json:"group"`
	Sequence    int         `json:"sequence"`
	Depth       int         `json:"depth"`
	User        UserSummary `json:"user"`
	IsMyComment bool        `json:"isMyComment"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// CommentWithAuthor is a listing row: the comment joined with its author.
type CommentWithAuthor struct {
	Comment
	Author UserSummary `db:"author" json:"author"`
}

// View annotates the row for viewerID (nil for anonymous readers).
func (c *CommentWithAuthor) View(viewerID *int64) CommentView {
	return CommentView{
		ID:          c.ID,
		Content:     c.Content,
		Group:       c.Group,
		Sequence:    c.Sequence,
		Depth:       c.Depth,
		User:        c.Author,
		IsMyComment: viewerID != nil && *viewerID == c.UserID,
		CreatedAt:   c.CreatedAt,
	}
}

// CreateCommentRequest is the request body for creating a comment.
// A nil ParentID opens a new thread.
type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// UpdateCommentRequest is the request body for editing a comment.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// Comment constraints
const (
	MaxCommentLength = 300
)

// CodeOrderConflict is the error code for a reply the thread could not place.
const CodeOrderConflict = "COMMENT_ORDER_CONFLICT"

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrContentRequired = errors.New("content is required")
	ErrContentTooLong  = errors.New("content too long")
)
