package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageRequest(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		wantPage    int
		wantLimit   int
		wantSkip    int
	}{
		{"defaults", 0, 0, 1, 10, 0},
		{"second page", 2, 10, 2, 10, 10},
		{"negative", -3, -1, 1, 10, 0},
		{"capped", 1, 1000, 1, MaxPageLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewPageRequest(tt.page, tt.limit, 10)
			assert.Equal(t, tt.wantPage, req.Page)
			assert.Equal(t, tt.wantLimit, req.Limit)
			assert.Equal(t, tt.wantSkip, req.Skip())
		})
	}
}

func TestExtractPageRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/global/feed?page=3&limit=5", nil)
	req := ExtractPageRequest(r, 10)
	assert.Equal(t, PageRequest{Page: 3, Limit: 5}, req)

	r = httptest.NewRequest("GET", "/api/global/feed?page=abc", nil)
	assert.Equal(t, PageRequest{Page: 1, Limit: 20}, ExtractPageRequest(r, 20))
}

func TestNewPageHasMore(t *testing.T) {
	first := NewPage(make([]int, 10), 15, NewPageRequest(1, 10, 10))
	assert.True(t, first.HasMore)

	second := NewPage(make([]int, 5), 15, NewPageRequest(2, 10, 10))
	assert.False(t, second.HasMore)

	empty := NewPage[int](nil, 0, NewPageRequest(1, 10, 10))
	assert.NotNil(t, empty.Items)
	assert.False(t, empty.HasMore)
}

func TestWindow(t *testing.T) {
	req := NewPageRequest(2, 10, 10)
	start, end := req.Window(15)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)

	start, end = NewPageRequest(5, 10, 10).Window(15)
	assert.Equal(t, 15, start)
	assert.Equal(t, 15, end)
}
