package model

import "errors"

// Paging defaults
const (
	DefaultPageNo   = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// CodePageOutOfRange is the error code for a page past the last one.
const CodePageOutOfRange = "PAGE_OUT_OF_RANGE"

// ErrPageOutOfRange is returned when a page past the last one is requested.
var ErrPageOutOfRange = errors.New("page out of range")

// PageRequest is a 1-based page request.
type PageRequest struct {
	PageNo   int
	PageSize int
}

// NewPageRequest applies defaults to zero values.
func NewPageRequest(pageNo, pageSize int) PageRequest {
	if pageNo <= 0 {
		pageNo = DefaultPageNo
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return PageRequest{PageNo: pageNo, PageSize: pageSize}
}

func (p PageRequest) Limit() int {
	return p.PageSize
}

// Offset is only meaningful for a request that passed InRange; larger page
// numbers overflow.
func (p PageRequest) Offset() int {
	return (p.PageNo - 1) * p.PageSize
}

// TotalPages returns the number of pages needed for total rows.
func (p PageRequest) TotalPages(total int) int {
	return (total + p.PageSize - 1) / p.PageSize
}

// InRange reports whether the page can be served for total rows. A listing
// with no rows has no pages, so every page is out of range.
func (p PageRequest) InRange(total int) bool {
	return p.PageNo <= p.TotalPages(total)
}

// Page is a page of items with its paging metadata.
type Page[T any] struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalCount  int `json:"totalCount"`
	TotalPage   int `json:"totalPage"`
	Items       []T `json:"items"`
}

// NewPage builds a Page for req out of items and the total row count.
func NewPage[T any](req PageRequest, total int, items []T) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		CurrentPage: req.PageNo,
		PageSize:    req.PageSize,
		TotalCount:  total,
		TotalPage:   req.TotalPages(total),
		Items:       items,
	}
}
