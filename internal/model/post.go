package model

import (
	"errors"
	"time"
)

// Category is a board posts are filed under.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Post represents a forum post.
type Post struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"-"`
	CategoryID int64     `db:"category_id" json:"-"`
	Title      string    `db:"title" json:"title"`
	Content    string    `db:"content" json:"content"`
	ViewCount  int       `db:"view_count" json:"viewCount"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// PostImage is one uploaded image attached to a post.
type PostImage struct {
	ID        int64  `db:"id" json:"id"`
	PostID    int64  `db:"post_id" json:"-"`
	URL       string `db:"url" json:"url"`
	ObjectKey string `db:"object_key" json:"-"`
	Position  int    `db:"position" json:"position"`
}

// PostWithAuthor is a listing row: the post joined with its author.
type PostWithAuthor struct {
	Post
	Category string      `db:"category" json:"category"`
	Author   UserSummary `db:"author" json:"user"`
}

// PostSummary is a post as shown in listings.
type PostSummary struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Category  string      `json:"category"`
	ViewCount int         `json:"viewCount"`
	CreatedAt time.Time   `json:"createdAt"`
	User      UserSummary `json:"user"`
}

// PostDetail is a single post with its images, as presented to a viewer.
type PostDetail struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Category  string      `json:"category"`
	ViewCount int         `json:"viewCount"`
	CreatedAt time.Time   `json:"createdAt"`
	User      UserSummary `json:"user"`
	Images    []PostImage `json:"images"`
	IsMyPost  bool        `json:"isMyPost"`
}

// CreatePostRequest holds the text fields of a new post; images travel as uploads.
type CreatePostRequest struct {
	Title    string
	Content  string
	Category string
}

// UpdatePostRequest replaces the text of a post. The uploads sent with it
// replace all of the post's images.
type UpdatePostRequest struct {
	Title   string
	Content string
}

// PostSort orders a post listing.
type PostSort string

const (
	SortRecent     PostSort = "recent"
	SortPopularity PostSort = "popularity"
)

// PostCriteria selects what a keyword is matched against.
type PostCriteria string

const (
	CriteriaAll    PostCriteria = "all"
	CriteriaTitle  PostCriteria = "title"
	CriteriaWriter PostCriteria = "writer"
)

// PostPeriod limits a popularity listing to recent posts.
type PostPeriod string

const (
	PeriodAll   PostPeriod = "all"
	PeriodYear  PostPeriod = "year"
	PeriodMonth PostPeriod = "month"
	PeriodWeek  PostPeriod = "week"
)

// Since returns the earliest creation time the period admits, or nil when
// it admits every post.
func (p PostPeriod) Since(now time.Time) *time.Time {
	var t time.Time
	switch p {
	case PeriodYear:
		t = now.AddDate(-1, 0, 0)
	case PeriodMonth:
		t = now.AddDate(0, -1, 0)
	case PeriodWeek:
		t = now.AddDate(0, 0, -7)
	default:
		return nil
	}
	return &t
}

// PostListRequest is a post listing query as sent by clients. Empty fields
// take their defaults.
type PostListRequest struct {
	Page     PageRequest
	Category string
	Keyword  string
	Criteria PostCriteria
	Sort     PostSort
	Period   PostPeriod
}

// PostFilter is a resolved listing query.
type PostFilter struct {
	CategoryID *int64
	Keyword    string
	Criteria   PostCriteria
	Since      *time.Time
	Popular    bool
}

// Post constraints
const (
	MaxPostTitleLength   = 20
	MaxPostContentLength = 500
	MaxPostImages        = 5
	MinKeywordLength     = 2
)

// Post errors
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title too long")
	ErrTooManyImages = errors.New("too many images")
	ErrMediaDisabled = errors.New("image uploads are not configured")

	ErrCategoryRequired = errors.New("category is required")
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidPostQuery = errors.New("invalid post query")
)
