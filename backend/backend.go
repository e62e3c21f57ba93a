package backend

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"postboard/models"
	"postboard/store"
)

// DefaultLatency is the fixed round-trip delay applied to every verb.
const DefaultLatency = 500 * time.Millisecond

// Backend wraps the post store with artificial latency so callers see
// request/response semantics matching a real API. There is no retry logic;
// a failure propagates to the caller once the delay has elapsed.
type Backend struct {
	store *store.PostStore
	delay time.Duration
}

func New(store *store.PostStore, delay time.Duration) *Backend {
	return &Backend{
		store: store,
		delay: delay,
	}
}

// FetchPosts returns the full collection sorted by the requested order.
// The sort is recomputed on every call, never cached here.
func (b *Backend) FetchPosts(ctx context.Context, order models.SortOrder) ([]models.Post, error) {
	if !order.Valid() {
		order = models.SortNewer
	}

	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	posts, err := b.store.ListAll()
	if err != nil {
		return nil, err
	}

	return models.Sorted(posts, order), nil
}

// CreatePost assigns the new post its id and timestamp and inserts it.
func (b *Backend) CreatePost(ctx context.Context, payload models.CreatePostPayload) (models.Post, error) {
	if err := b.wait(ctx); err != nil {
		return models.Post{}, err
	}

	now := time.Now().UTC()
	post := models.Post{
		// Ids are derived from creation time in milliseconds
		Id:              now.UnixMilli(),
		Username:        payload.Username,
		CreatedDatetime: now.Format(time.RFC3339),
		Title:           payload.Title,
		Content:         payload.Content,
		Likes:           0,
		LikedBy:         []string{},
	}

	log.WithFields(log.Fields{
		"id":       post.Id,
		"username": post.Username,
	}).Info("Creating post")

	if err := b.store.Insert(post); err != nil {
		return models.Post{}, err
	}

	return post, nil
}

// UpdatePost replaces the editable fields of the post with the given id.
func (b *Backend) UpdatePost(ctx context.Context, id int64, payload models.UpdatePostPayload) (models.Post, error) {
	if err := b.wait(ctx); err != nil {
		return models.Post{}, err
	}

	return b.store.Replace(id, payload)
}

// DeletePost removes the post with the given id. Deleting an absent id is
// a no-op, never an error.
func (b *Backend) DeletePost(ctx context.Context, id int64) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"id": id,
	}).Info("Deleting post")

	return b.store.Remove(id)
}

// ToggleLike flips username's like on the post with the given id.
func (b *Backend) ToggleLike(ctx context.Context, id int64, username string) (models.Post, error) {
	if err := b.wait(ctx); err != nil {
		return models.Post{}, err
	}

	return b.store.ToggleLike(id, username)
}

// wait blocks for the configured artificial delay or until the context is
// cancelled.
func (b *Backend) wait(ctx context.Context) error {
	if b.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(b.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
