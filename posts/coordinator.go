package posts

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"postboard/cache"
	"postboard/models"
)

// RemoteBackend is the request/response contract the coordinator dispatches
// against. It mirrors what a real HTTP posts resource would expose, so a
// network client can later replace the simulated backend.
type RemoteBackend interface {
	FetchPosts(ctx context.Context, order models.SortOrder) ([]models.Post, error)
	CreatePost(ctx context.Context, payload models.CreatePostPayload) (models.Post, error)
	UpdatePost(ctx context.Context, id int64, payload models.UpdatePostPayload) (models.Post, error)
	DeletePost(ctx context.Context, id int64) error
	ToggleLike(ctx context.Context, id int64, username string) (models.Post, error)
}

// Notifier receives an event after every settled mutation so clients can
// re-render from the refreshed cache.
type Notifier interface {
	Broadcast(event interface{})
}

// mutationSnapshot captures the pre-mutation cache contents for every
// active sort order, plus the temporary id of a speculative create. It is
// owned by a single in-flight mutation and discarded once that mutation
// settles.
type mutationSnapshot struct {
	views  map[models.SortOrder][]models.Post
	tempId int64
}

// Coordinator mediates between mutations and the backend: it applies a
// speculative transform to every cached view, dispatches the backend call,
// and on completion either reconciles the caches with the authoritative
// result or restores the snapshot taken before the mutation began.
//
// The mutex serializes the begin and settle segments of concurrent
// mutations but is not held across the backend dispatch. Overlapping
// mutations therefore interleave exactly at the dispatch boundary: a later
// mutation may begin against a cache that already contains an earlier
// mutation's speculative change, and an earlier rollback can discard a
// later speculative change with it. That lost-update window is inherent to
// this optimistic scheme and is left as is.
type Coordinator struct {
	mu       sync.Mutex
	cache    *cache.ViewCache
	backend  RemoteBackend
	notifier Notifier
}

func NewCoordinator(cache *cache.ViewCache, backend RemoteBackend, notifier Notifier) *Coordinator {
	return &Coordinator{
		cache:    cache,
		backend:  backend,
		notifier: notifier,
	}
}

// Fetch returns the cached view for order, fetching and populating it
// first when absent.
func (c *Coordinator) Fetch(ctx context.Context, order models.SortOrder) ([]models.Post, error) {
	if !order.Valid() {
		order = models.SortNewer
	}

	if posts, ok := c.cache.Get(order); ok {
		return posts, nil
	}

	start := time.Now()
	posts, err := c.backend.FetchPosts(ctx, order)
	dispatchDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Set(order, posts)
	c.mu.Unlock()

	return posts, nil
}

// Create speculatively prepends a post with a temporary id to every active
// view, dispatches the backend create, and swaps the temporary post for
// the authoritative one on success.
func (c *Coordinator) Create(ctx context.Context, payload models.CreatePostPayload) (models.Post, error) {
	mutationsTotal.WithLabelValues("create").Inc()

	speculative := models.Post{
		Id:              time.Now().UnixMilli(),
		Username:        payload.Username,
		CreatedDatetime: time.Now().UTC().Format(time.RFC3339),
		Title:           payload.Title,
		Content:         payload.Content,
		Likes:           0,
		LikedBy:         []string{},
	}

	snapshot := c.begin(func(order models.SortOrder, posts []models.Post) []models.Post {
		return models.Sorted(append([]models.Post{speculative}, posts...), order)
	})
	snapshot.tempId = speculative.Id

	start := time.Now()
	post, err := c.backend.CreatePost(ctx, payload)
	dispatchDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	if err != nil {
		c.rollback("create", snapshot)
		return models.Post{}, err
	}

	// Replace the speculative post, matched by its temporary id, with the
	// authoritative one in every active view.
	c.settle(func(order models.SortOrder, posts []models.Post) []models.Post {
		replaced := lo.Map(posts, func(p models.Post, _ int) models.Post {
			if p.Id == snapshot.tempId {
				return post
			}
			return p
		})
		return models.Sorted(replaced, order)
	})

	c.notify(models.CreatePostEvent{Post: post})
	return post, nil
}

// Update speculatively replaces the editable fields in every active view
// before dispatching. The authoritative post is re-applied on success;
// under a single writer it matches the speculative values.
func (c *Coordinator) Update(ctx context.Context, id int64, payload models.UpdatePostPayload) (models.Post, error) {
	mutationsTotal.WithLabelValues("update").Inc()

	snapshot := c.begin(func(order models.SortOrder, posts []models.Post) []models.Post {
		updated := lo.Map(posts, func(p models.Post, _ int) models.Post {
			if p.Id == id {
				p.Title = payload.Title
				p.Content = payload.Content
			}
			return p
		})
		return models.Sorted(updated, order)
	})

	start := time.Now()
	post, err := c.backend.UpdatePost(ctx, id, payload)
	dispatchDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())
	if err != nil {
		c.rollback("update", snapshot)
		return models.Post{}, err
	}

	c.settle(applyAuthoritative(post))

	c.notify(models.UpdatePostEvent{Post: post})
	return post, nil
}

// Delete speculatively removes the post from every active view. Success is
// a confirmation; the views are already correct.
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	mutationsTotal.WithLabelValues("delete").Inc()

	snapshot := c.begin(func(order models.SortOrder, posts []models.Post) []models.Post {
		return lo.Filter(posts, func(p models.Post, _ int) bool {
			return p.Id != id
		})
	})

	start := time.Now()
	err := c.backend.DeletePost(ctx, id)
	dispatchDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	if err != nil {
		c.rollback("delete", snapshot)
		return err
	}

	c.notify(models.DeletePostEvent{Id: id})
	return nil
}

// ToggleLike speculatively flips username's membership in the post's
// likedBy set, adjusting the like counter to match. The authoritative post
// is re-applied on success.
func (c *Coordinator) ToggleLike(ctx context.Context, id int64, username string) (models.Post, error) {
	mutationsTotal.WithLabelValues("toggle_like").Inc()

	snapshot := c.begin(func(order models.SortOrder, posts []models.Post) []models.Post {
		return lo.Map(posts, func(p models.Post, _ int) models.Post {
			if p.Id == id {
				return toggleLike(p, username)
			}
			return p
		})
	})

	start := time.Now()
	post, err := c.backend.ToggleLike(ctx, id, username)
	dispatchDuration.WithLabelValues("toggle_like").Observe(time.Since(start).Seconds())
	if err != nil {
		c.rollback("toggle_like", snapshot)
		return models.Post{}, err
	}

	c.settle(applyAuthoritative(post))

	c.notify(models.LikePostEvent{Post: post})
	return post, nil
}

// begin captures the pre-mutation contents of every active view, then
// replaces each with its speculatively transformed sequence. Orders that
// are not active are invalidated instead of being populated blindly, so
// their next read fetches fresh data. The whole segment runs under the
// coordinator lock.
func (c *Coordinator) begin(transform func(models.SortOrder, []models.Post) []models.Post) *mutationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := &mutationSnapshot{
		views: make(map[models.SortOrder][]models.Post, len(models.AllOrders)),
	}

	active := c.cache.ActiveOrders()
	for _, order := range active {
		posts, _ := c.cache.Get(order)
		snapshot.views[order] = posts
		c.cache.Set(order, transform(order, posts))
	}

	for _, order := range models.AllOrders {
		if !lo.Contains(active, order) {
			c.cache.Invalidate(order)
		}
	}

	return snapshot
}

// settle reconciles every active view with the authoritative result after
// a successful dispatch. Inactive orders are invalidated again, since the
// store has changed under them.
func (c *Coordinator) settle(transform func(models.SortOrder, []models.Post) []models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.cache.ActiveOrders()
	for _, order := range active {
		posts, _ := c.cache.Get(order)
		c.cache.Set(order, transform(order, posts))
	}

	for _, order := range models.AllOrders {
		if !lo.Contains(active, order) {
			c.cache.Invalidate(order)
		}
	}
}

// rollback restores every snapshotted view, discarding the speculative
// change entirely. All-or-nothing: either every order is restored or none
// was touched.
func (c *Coordinator) rollback(kind string, snapshot *mutationSnapshot) {
	rollbacksTotal.WithLabelValues(kind).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	for order, posts := range snapshot.views {
		c.cache.Set(order, posts)
	}

	log.WithFields(log.Fields{
		"mutation": kind,
		"orders":   len(snapshot.views),
	}).Warn("Mutation failed, restored pre-mutation cache state")
}

func (c *Coordinator) notify(event interface{}) {
	if c.notifier != nil {
		c.notifier.Broadcast(event)
	}
}

// applyAuthoritative returns a settle transform that swaps the post with
// the matching id for its authoritative value and re-sorts. The sort key
// is immutable, so re-sorting is a stable no-op; applying the value anyway
// keeps the views correct even if speculative and authoritative state were
// to drift.
func applyAuthoritative(post models.Post) func(models.SortOrder, []models.Post) []models.Post {
	return func(order models.SortOrder, posts []models.Post) []models.Post {
		replaced := lo.Map(posts, func(p models.Post, _ int) models.Post {
			if p.Id == post.Id {
				return post
			}
			return p
		})
		return models.Sorted(replaced, order)
	}
}

// toggleLike flips username's membership in the post's likedBy set without
// sharing slice storage with the input.
func toggleLike(post models.Post, username string) models.Post {
	if lo.Contains(post.LikedBy, username) {
		post.LikedBy = lo.Filter(post.LikedBy, func(u string, _ int) bool {
			return u != username
		})
		post.Likes--
		return post
	}

	liked := make([]string, 0, len(post.LikedBy)+1)
	liked = append(liked, post.LikedBy...)
	post.LikedBy = append(liked, username)
	post.Likes++
	return post
}
