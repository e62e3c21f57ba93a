package store

import (
	"postboard/storage"
)

// UserStore keeps the current display name under its own storage key,
// absent when nobody is signed up.
type UserStore struct {
	storage *storage.Storage
}

func NewUserStore(storage *storage.Storage) *UserStore {
	return &UserStore{storage: storage}
}

// Current returns the stored display name. The second return value is
// false when no name is stored.
func (s *UserStore) Current() (string, bool, error) {
	return s.storage.Get(storage.UsernameKey)
}

// Save stores name as the current display name.
func (s *UserStore) Save(name string) error {
	return s.storage.Put(storage.UsernameKey, name)
}

// Clear removes the stored display name.
func (s *UserStore) Clear() error {
	return s.storage.Delete(storage.UsernameKey)
}
