package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"grocertrack/backend/internal/cart"
)

// CartStore persists in-progress carts between requests. A cart is stored and loaded as
// one whole snapshot; callers own the single-writer discipline.
type CartStore interface {
	Get(ctx context.Context, id string) (*cart.Cart, bool, error)
	Set(ctx context.Context, c *cart.Cart, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCartStore keeps serialised carts in process. Expired entries are dropped lazily.
type MemoryCartStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryCartStore) Get(_ context.Context, id string) (*cart.Cart, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, false, nil
	}

	var c cart.Cart
	if err := json.Unmarshal(entry.payload, &c); err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

func (s *MemoryCartStore) Set(_ context.Context, c *cart.Cart, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}

	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[c.ID] = entry
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
