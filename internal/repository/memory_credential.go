package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sumire/cronboard/internal/domain"
)

// MemoryCredentialStore keeps credentials in process memory.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	users  []domain.Credential
	nextID int64
}

// NewMemoryCredentialStore creates an empty MemoryCredentialStore.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{nextID: 1}
}

// FindByEmail returns the credential registered under email.
func (s *MemoryCredentialStore) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Exists reports whether email is already registered.
func (s *MemoryCredentialStore) Exists(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Insert stores c under the next sequential id.
func (s *MemoryCredentialStore) Insert(_ context.Context, c domain.Credential) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, c.Email) {
			return nil, domain.ErrConflict
		}
	}

	c.ID = s.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.nextID++
	s.users = append(s.users, c)

	stored := c
	return &stored, nil
}

// Len returns the number of stored credentials.
func (s *MemoryCredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
