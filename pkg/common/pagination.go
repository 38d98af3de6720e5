package common

import (
	"net/http"
	"strconv"
)

// MaxPageLimit caps the limit a client may request
const MaxPageLimit = 100

// PageRequest is a page/limit pair as received from a client
type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPageRequest normalises page and limit, substituting defaultLimit for non-positive limits
func NewPageRequest(page, limit, defaultLimit int) PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// ExtractPageRequest reads the page and limit query parameters
func ExtractPageRequest(r *http.Request, defaultLimit int) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return NewPageRequest(page, limit, defaultLimit)
}

// Skip returns the number of records preceding the page
func (p PageRequest) Skip() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a larger ordered result set
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// NewPage builds a page, deriving hasMore from the skip offset and total
func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Total:   total,
		Page:    req.Page,
		Limit:   req.Limit,
		HasMore: req.Skip()+len(items) < total,
	}
}

// Window returns the slice bounds of req over a collection of n elements
func (p PageRequest) Window(n int) (int, int) {
	start := p.Skip()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
