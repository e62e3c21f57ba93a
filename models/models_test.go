package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"postboard/models"
)

func TestSorted(t *testing.T) {
	first := models.Post{Id: 1, Title: "first", CreatedDatetime: "2026-01-01T10:00:00Z"}
	second := models.Post{Id: 2, Title: "second", CreatedDatetime: "2026-01-02T10:00:00Z"}
	third := models.Post{Id: 3, Title: "third", CreatedDatetime: "2026-01-03T10:00:00Z"}

	tests := []struct {
		name     string
		posts    []models.Post
		order    models.SortOrder
		expected []int64
	}{
		{
			name:     "empty",
			posts:    []models.Post{},
			order:    models.SortNewer,
			expected: []int64{},
		},
		{
			name:     "newer puts latest first",
			posts:    []models.Post{first, third, second},
			order:    models.SortNewer,
			expected: []int64{3, 2, 1},
		},
		{
			name:     "older puts earliest first",
			posts:    []models.Post{first, third, second},
			order:    models.SortOlder,
			expected: []int64{1, 2, 3},
		},
		{
			name: "unparseable timestamp sorts as zero time",
			posts: []models.Post{
				first,
				{Id: 9, CreatedDatetime: "not-a-date"},
			},
			order:    models.SortOlder,
			expected: []int64{9, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sorted := models.Sorted(tt.posts, tt.order)

			ids := make([]int64, 0, len(sorted))
			for _, post := range sorted {
				ids = append(ids, post.Id)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestSortedIsStableOnTies(t *testing.T) {
	// Two posts sharing a timestamp keep insertion order in both
	// directions.
	a := models.Post{Id: 1, CreatedDatetime: "2026-01-01T10:00:00Z"}
	b := models.Post{Id: 2, CreatedDatetime: "2026-01-01T10:00:00Z"}

	newer := models.Sorted([]models.Post{a, b}, models.SortNewer)
	assert.Equal(t, int64(1), newer[0].Id)
	assert.Equal(t, int64(2), newer[1].Id)

	older := models.Sorted([]models.Post{a, b}, models.SortOlder)
	assert.Equal(t, int64(1), older[0].Id)
	assert.Equal(t, int64(2), older[1].Id)
}

func TestSortedDoesNotMutateInput(t *testing.T) {
	posts := []models.Post{
		{Id: 1, CreatedDatetime: "2026-01-01T10:00:00Z"},
		{Id: 2, CreatedDatetime: "2026-01-02T10:00:00Z"},
	}

	models.Sorted(posts, models.SortNewer)

	assert.Equal(t, int64(1), posts[0].Id)
	assert.Equal(t, int64(2), posts[1].Id)
}

func TestSortOrderValid(t *testing.T) {
	assert.True(t, models.SortNewer.Valid())
	assert.True(t, models.SortOlder.Valid())
	assert.False(t, models.SortOrder("latest").Valid())
	assert.False(t, models.SortOrder("").Valid())
}
