package models

import (
	"sort"
	"time"
)

// SortOrder enumerates the two supported feed orderings.
type SortOrder string

const (
	// SortNewer orders posts by descending creation time
	SortNewer SortOrder = "newer"
	// SortOlder orders posts by ascending creation time
	SortOlder SortOrder = "older"
)

// AllOrders is the fixed enumeration of sort orders. Cache fan-out always
// iterates this slice, never a dynamic key set.
var AllOrders = []SortOrder{SortNewer, SortOlder}

// Valid reports whether the order is one of the supported values.
func (o SortOrder) Valid() bool {
	return o == SortNewer || o == SortOlder
}

// Post model with key fields from the post
type Post struct {
	Id              int64    `json:"id"`
	Username        string   `json:"username"`
	CreatedDatetime string   `json:"created_datetime"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Likes           int64    `json:"likes"`
	LikedBy         []string `json:"likedBy"`
}

// CreatedAt parses the created_datetime timestamp. Unparseable timestamps
// sort as the zero time.
func (p Post) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339, p.CreatedDatetime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreatePostPayload carries the fields for a new post
type CreatePostPayload struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// UpdatePostPayload carries the editable fields of a post
type UpdatePostPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Sorted returns a copy of posts ordered by created_datetime according to
// order. The sort is stable so posts sharing a timestamp keep their
// insertion order in both directions.
func Sorted(posts []Post, order SortOrder) []Post {
	sorted := make([]Post, len(posts))
	copy(sorted, posts)

	sort.SliceStable(sorted, func(i, j int) bool {
		a := sorted[i].CreatedAt()
		b := sorted[j].CreatedAt()
		if order == SortOlder {
			return a.Before(b)
		}
		return b.Before(a)
	})

	return sorted
}

// CreatePostEvent fired when a new post is created
type CreatePostEvent struct {
	Post Post
}

// UpdatePostEvent fired when a post is updated
type UpdatePostEvent struct {
	Post Post
}

// DeletePostEvent fired when a post is deleted
type DeletePostEvent struct {
	Id int64
}

// LikePostEvent fired when a like is toggled on a post
type LikePostEvent struct {
	Post Post
}
