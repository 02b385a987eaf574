package repository

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process key-value store. With a TTL it behaves like
// the session-scoped store: each write pushes back the expiry of the scope.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	scopes map[string]map[string]memoryEntry
}

// NewMemoryStore builds a store; ttl <= 0 keeps values until deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, scopes: make(map[string]map[string]memoryEntry)}
}

// Get returns the stored value and whether it exists.
func (s *MemoryStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(scope)[key]
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores the value.
func (s *MemoryStore) Set(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.live(scope)
	if entries == nil {
		entries = make(map[string]memoryEntry)
		s.scopes[scope] = entries
	}
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
		for k, e := range entries {
			e.expiresAt = expiresAt
			entries[k] = e
		}
	}
	entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, scope string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.scopes[scope]
	for _, key := range keys {
		delete(entries, key)
	}
	if len(entries) == 0 {
		delete(s.scopes, scope)
	}
	return nil
}

// Usage counts the populated keys of a scope and their size.
func (s *MemoryStore) Usage(_ context.Context, scope string) (models.StoreUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var usage models.StoreUsage
	for key, entry := range s.live(scope) {
		usage.Items++
		usage.Bytes += len(key) + len(entry.value)
	}
	return usage, nil
}

// Sweep drops every expired scope and reports how many were removed.
// Scopes that are never read again are only reclaimed here.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for scope := range s.scopes {
		if s.live(scope) == nil {
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) live(scope string) map[string]memoryEntry {
	entries := s.scopes[scope]
	if entries == nil || s.ttl <= 0 {
		return entries
	}
	now := s.now()
	for key, entry := range entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(entries, key)
		}
	}
	if len(entries) == 0 {
		delete(s.scopes, scope)
		return nil
	}
	return entries
}
