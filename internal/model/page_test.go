package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_InRange(t *testing.T) {
	tests := []struct {
		name  string
		req   PageRequest
		total int
		want  bool
	}{
		{"empty first page", NewPageRequest(1, 10), 0, false},
		{"single row", NewPageRequest(1, 10), 1, true},
		{"second page of one row", NewPageRequest(2, 10), 1, false},
		{"last partial page", NewPageRequest(3, 10), 21, true},
		{"past last page", NewPageRequest(4, 10), 30, false},
		{"exact fit", NewPageRequest(3, 10), 30, true},
		{"huge page number", NewPageRequest(math.MaxInt64/50, 100), 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.InRange(tt.total))
		})
	}
}

func TestPageRequest_OffsetWithinRange(t *testing.T) {
	req := NewPageRequest(3, 10)
	assert.True(t, req.InRange(25))
	assert.Equal(t, 20, req.Offset())
	assert.Equal(t, 10, req.Limit())
}

func TestNewPage(t *testing.T) {
	page := NewPage[int](NewPageRequest(2, 10), 25, nil)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPage)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
