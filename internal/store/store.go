// Package store defines the key-value persistence interface the comment list
// is kept in: get, put and delete as hosted edge KV products offer them, plus
// revision-checked writes for read-modify-write.
package store

import (
	"context"
	"errors"
)

// Revision identifies one stored version of a key. It is opaque to callers;
// each backend encodes its own sequence number or entity tag.
type Revision string

// Entry is a value read from the store together with its revision.
type Entry struct {
	Key      string
	Value    []byte
	Revision Revision
}

// Store defines the persistence interface for a single KV namespace.
type Store interface {
	// Get returns ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) (*Entry, error)
	// Put writes unconditionally (last writer wins).
	Put(ctx context.Context, key string, value []byte) (Revision, error)
	// Create writes only if the key is absent, else ErrKeyExists.
	Create(ctx context.Context, key string, value []byte) (Revision, error)
	// Update writes only if the stored revision still equals rev, else ErrRevisionMismatch.
	Update(ctx context.Context, key string, value []byte, rev Revision) (Revision, error)
	// Delete returns ErrKeyNotFound when the key is absent.
	Delete(ctx context.Context, key string) error

	// Lifecycle
	Close() error
}

// Well-known errors shared by all backends.
var (
	ErrKeyNotFound      = errors.New("kv: key not found")
	ErrKeyExists        = errors.New("kv: key already exists")
	ErrRevisionMismatch = errors.New("kv: revision mismatch (concurrent update)")
	ErrValueTooLarge    = errors.New("kv: value exceeds size limit")
)

// IsConflict reports whether err came from a failed conditional write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrKeyExists) || errors.Is(err, ErrRevisionMismatch)
}

// CheckSize returns ErrValueTooLarge when max > 0 and value is bigger.
func CheckSize(value []byte, max int) error {
	if max > 0 && len(value) > max {
		return ErrValueTooLarge
	}
	return nil
}
