package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaginationDefaults(t *testing.T) {
	p, err := ParsePagination("", "")
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultPageLimit}, p)
}

func TestParsePaginationBounds(t *testing.T) {
	for _, limit := range []string{"0", "51", "-3", "ten"} {
		_, err := ParsePagination("1", limit)
		assert.Error(t, err, "limit=%s", limit)
	}
	for _, page := range []string{"0", "-1", "x"} {
		_, err := ParsePagination(page, "10")
		assert.Error(t, err, "page=%s", page)
	}

	p, err := ParsePagination("3", "50")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Offset())
}

func TestSecondPageOfFifteen(t *testing.T) {
	p := Pagination{Page: 2, Limit: 10}

	start, end := PageBounds(p, 15)
	assert.Equal(t, 5, end-start)

	meta := NewPageMeta(p, 15)
	assert.False(t, meta.HasNextPage)
	assert.True(t, meta.HasPrevPage)
	assert.Equal(t, 2, meta.TotalPages)
}

func TestPageBeyondEnd(t *testing.T) {
	start, end := PageBounds(Pagination{Page: 4, Limit: 10}, 15)
	assert.Equal(t, 0, end-start)

	meta := NewPageMeta(Pagination{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNextPage)
}
