package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sumire/cronboard/internal/domain"
)

// MemoryIdentityStore keeps identity links in process memory, keyed by provider account.
type MemoryIdentityStore struct {
	mu    sync.RWMutex
	links map[string]domain.IdentityLink
}

// NewMemoryIdentityStore creates an empty MemoryIdentityStore.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{links: make(map[string]domain.IdentityLink)}
}

func linkKey(provider, providerID string) string {
	return provider + "/" + providerID
}

// Link stores link. It replaces any previous owner of the same provider
// account and any account the user had linked for the provider before.
func (s *MemoryIdentityStore) Link(_ context.Context, link domain.IdentityLink) (*domain.IdentityLink, error) {
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, l := range s.links {
		if l.UserID == link.UserID && l.Provider == link.Provider {
			delete(s.links, key)
		}
	}
	s.links[linkKey(link.Provider, link.ProviderID)] = link

	stored := link
	return &stored, nil
}

// FindByUser returns the link of userID for provider.
func (s *MemoryIdentityStore) FindByUser(_ context.Context, userID, provider string) (*domain.IdentityLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.links {
		if l.UserID == userID && l.Provider == provider {
			found := l
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Unlink removes the link of userID for provider.
func (s *MemoryIdentityStore) Unlink(_ context.Context, userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, l := range s.links {
		if l.UserID == userID && l.Provider == provider {
			delete(s.links, key)
			return nil
		}
	}
	return domain.ErrNotFound
}
