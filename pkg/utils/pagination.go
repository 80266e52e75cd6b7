package utils

import (
	"fmt"
	"strconv"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 50
)

type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

type PageMeta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// ParsePagination reads page and limit query values. Empty values take the
// defaults; limit must be within [1, MaxPageLimit].
func ParsePagination(pageStr, limitStr string) (Pagination, error) {
	p := Pagination{Page: 1, Limit: DefaultPageLimit}

	if pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		p.Page = page
	}

	if limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > MaxPageLimit {
			return p, fmt.Errorf("limit must be between 1 and %d", MaxPageLimit)
		}
		p.Limit = limit
	}

	return p, nil
}

func NewPageMeta(p Pagination, total int64) PageMeta {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageMeta{
		Page:        p.Page,
		Limit:       p.Limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: int64(p.Page*p.Limit) < total,
		HasPrevPage: p.Page > 1,
	}
}

// PageBounds returns the slice window [start, end) for n items.
func PageBounds(p Pagination, n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
