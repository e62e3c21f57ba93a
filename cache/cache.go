package cache

import (
	"sync"

	"postboard/models"
)

type entry struct {
	posts     []models.Post
	populated bool
}

// ViewCache holds one cached, sorted snapshot of the post collection per
// sort order. An order that has never been fetched is absent, which is
// distinct from an empty list. No sorting happens here; callers supply
// already-sorted sequences.
//
// The cache is shared between concurrent mutation flows, so access is
// guarded by a lock rather than relying on cooperative scheduling.
type ViewCache struct {
	mu      sync.RWMutex
	entries map[models.SortOrder]entry
}

func New() *ViewCache {
	return &ViewCache{
		entries: make(map[models.SortOrder]entry, len(models.AllOrders)),
	}
}

// Get returns the cached sequence for order. The second return value is
// false when the order is absent.
func (c *ViewCache) Get(order models.SortOrder) ([]models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.entries[order]
	if !e.populated {
		return nil, false
	}
	return clonePosts(e.posts), true
}

// Set replaces the cached sequence for order.
func (c *ViewCache) Set(order models.SortOrder, posts []models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[order] = entry{posts: clonePosts(posts), populated: true}
}

// Invalidate marks order absent so the next read triggers a fresh fetch.
func (c *ViewCache) Invalidate(order models.SortOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, order)
}

// ActiveOrders returns the orders that currently hold a cached sequence,
// iterating the fixed enumeration so the result order is deterministic.
func (c *ViewCache) ActiveOrders() []models.SortOrder {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var active []models.SortOrder
	for _, order := range models.AllOrders {
		if c.entries[order].populated {
			active = append(active, order)
		}
	}
	return active
}

func clonePosts(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	dup := make([]models.Post, len(posts))
	copy(dup, posts)
	return dup
}
