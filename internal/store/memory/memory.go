// Package memory implements store.Store with an in-process map. It backs the
// "memory" backend used for local development and is the reference
// implementation the other backends are tested against.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// MemoryStore implements store.Store in memory.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	seq      uint64
	maxValue int
}

type memoryEntry struct {
	value []byte
	rev   uint64
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// New returns an empty store. maxValueBytes <= 0 disables the size check.
func New(maxValueBytes int) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), maxValue: maxValueBytes}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return &store.Entry{Key: key, Value: clone(e.value), Revision: formatRev(e.rev)}, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) (store.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(key, value), nil
}

func (s *MemoryStore) Create(ctx context.Context, key string, value []byte) (store.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return "", store.ErrKeyExists
	}
	return s.writeLocked(key, value), nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, value []byte, rev store.Revision) (store.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || formatRev(e.rev) != rev {
		return "", store.ErrRevisionMismatch
	}
	return s.writeLocked(key, value), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return store.ErrKeyNotFound
	}
	delete(s.entries, key)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) writeLocked(key string, value []byte) store.Revision {
	s.seq++
	s.entries[key] = memoryEntry{value: clone(value), rev: s.seq}
	return formatRev(s.seq)
}

func formatRev(n uint64) store.Revision {
	return store.Revision(strconv.FormatUint(n, 10))
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
