package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// MemoryStore keeps runs in process memory with a TTL. Suitable for a single
// instance; use the Redis store when running more than one.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	// mu guards run and expiresAt. The store-level RWMutex only protects the
	// entries map; reads return deep copies taken under mu.
	mu        sync.Mutex
	run       *domain.ProcessingRun
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store. ttl <= 0 means runs never
// expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[uuid.UUID]*memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanup()
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, run *domain.ProcessingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[run.ID] = &memoryEntry{
		run:       run.Clone(),
		expiresAt: s.deadline(),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.ProcessingRun, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.RunNotFoundError(id.String())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.expiredLocked() {
		return nil, domain.RunNotFoundError(id.String())
	}
	return entry.run.Clone(), nil
}

func (s *MemoryStore) Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.ProcessingRun) error) (*domain.ProcessingRun, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.RunNotFoundError(id.String())
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.expiredLocked() {
		return nil, domain.RunNotFoundError(id.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// fn works on a copy so a failed mutation leaves the stored run intact.
	candidate := entry.run.Clone()
	if err := fn(candidate); err != nil {
		return nil, err
	}

	entry.run = candidate
	entry.expiresAt = s.deadline()
	return candidate.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) deadline() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.ttl)
}

// expiredLocked reports whether the entry's TTL has elapsed. Callers must
// hold e.mu; expiresAt is only ever accessed under it.
func (e *memoryEntry) expiredLocked() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// cleanup periodically removes expired runs.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, entry := range s.entries {
				entry.mu.Lock()
				gone := entry.expiredLocked()
				entry.mu.Unlock()
				if gone {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
