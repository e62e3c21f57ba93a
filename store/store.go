package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"postboard/models"
	"postboard/storage"
)

// ErrNotFound is returned when a mutation targets a post id that is not in
// the store.
var ErrNotFound = errors.New("post not found")

// PostStore persists the post collection as a single serialized list
// under one storage key. Every mutating call writes the full updated
// collection back before returning.
type PostStore struct {
	storage *storage.Storage
}

func NewPostStore(storage *storage.Storage) *PostStore {
	return &PostStore{storage: storage}
}

// ListAll returns every stored post in insertion order.
func (s *PostStore) ListAll() ([]models.Post, error) {
	return s.load()
}

// Insert appends a post to the collection.
func (s *PostStore) Insert(post models.Post) error {
	posts, err := s.load()
	if err != nil {
		return err
	}

	return s.save(append(posts, post))
}

// Replace updates the editable fields of the post with the given id.
// Returns ErrNotFound when no post has that id.
func (s *PostStore) Replace(id int64, payload models.UpdatePostPayload) (models.Post, error) {
	posts, err := s.load()
	if err != nil {
		return models.Post{}, err
	}

	_, index, found := lo.FindIndexOf(posts, func(p models.Post) bool {
		return p.Id == id
	})
	if !found {
		return models.Post{}, fmt.Errorf("replace %d: %w", id, ErrNotFound)
	}

	posts[index].Title = payload.Title
	posts[index].Content = payload.Content

	if err := s.save(posts); err != nil {
		return models.Post{}, err
	}

	return posts[index], nil
}

// Remove deletes the post with the given id. Removing an absent id is a
// no-op.
func (s *PostStore) Remove(id int64) error {
	posts, err := s.load()
	if err != nil {
		return err
	}

	filtered := lo.Filter(posts, func(p models.Post, _ int) bool {
		return p.Id != id
	})

	return s.save(filtered)
}

// ToggleLike flips username's membership in the post's likedBy set and
// adjusts the like counter to match. Returns ErrNotFound when no post has
// that id.
func (s *PostStore) ToggleLike(id int64, username string) (models.Post, error) {
	posts, err := s.load()
	if err != nil {
		return models.Post{}, err
	}

	_, index, found := lo.FindIndexOf(posts, func(p models.Post) bool {
		return p.Id == id
	})
	if !found {
		return models.Post{}, fmt.Errorf("toggle like %d: %w", id, ErrNotFound)
	}

	post := posts[index]
	if lo.Contains(post.LikedBy, username) {
		post.LikedBy = lo.Filter(post.LikedBy, func(u string, _ int) bool {
			return u != username
		})
		post.Likes--
	} else {
		post.LikedBy = append(post.LikedBy, username)
		post.Likes++
	}
	posts[index] = post

	if err := s.save(posts); err != nil {
		return models.Post{}, err
	}

	return post, nil
}

func (s *PostStore) load() ([]models.Post, error) {
	value, ok, err := s.storage.Get(storage.PostsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Post{}, nil
	}

	var posts []models.Post
	if err := json.Unmarshal([]byte(value), &posts); err != nil {
		// Corrupted storage is treated as an empty collection rather than
		// a fatal error, so the board can recover by writing fresh state.
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Malformed post collection in storage, starting empty")
		return []models.Post{}, nil
	}

	return posts, nil
}

func (s *PostStore) save(posts []models.Post) error {
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return s.storage.Put(storage.PostsKey, string(data))
}
