// Package natskv implements store.Store on a NATS JetStream key-value bucket.
// The bucket plays the role of the KV namespace and JetStream sequence numbers
// serve as revisions, which gives compare-and-swap writes for free.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// Config describes how to reach the bucket.
type Config struct {
	URL           string        // NATS server URL
	Bucket        string        // KV bucket (namespace); created if missing
	MaxValueBytes int           // 0 = server default
	Timeout       time.Duration // per-operation timeout; 0 = 5s
}

// NATSStore implements store.Store backed by a JetStream KV bucket.
type NATSStore struct {
	conn     *nats.Conn // nil when the caller owns the connection
	kv       jetstream.KeyValue
	maxValue int
	timeout  time.Duration
}

// Compile-time check that NATSStore implements store.Store.
var _ store.Store = (*NATSStore)(nil)

// Open connects to NATS and binds (creating if necessary) the bucket.
func Open(ctx context.Context, cfg Config) (*NATSStore, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("kvcomments"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	s, err := New(ctx, nc, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.conn = nc
	return s, nil
}

// New binds the bucket on an existing connection. Close does not close nc.
func New(ctx context.Context, nc *nats.Conn, cfg Config) (*NATSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("natskv: bucket is required")
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kvCfg := jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "kvcomments comment lists",
		History:     1,
	}
	if cfg.MaxValueBytes > 0 {
		kvCfg.MaxValueSize = int32(cfg.MaxValueBytes)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, kvCfg)
	if err != nil {
		return nil, fmt.Errorf("bind kv bucket %s: %w", cfg.Bucket, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSStore{kv: kv, maxValue: cfg.MaxValueBytes, timeout: timeout}, nil
}

func (s *NATSStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *NATSStore) Get(ctx context.Context, key string) (*store.Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return &store.Entry{Key: key, Value: entry.Value(), Revision: formatRev(entry.Revision())}, nil
}

func (s *NATSStore) Put(ctx context.Context, key string, value []byte) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rev, err := s.kv.Put(ctx, key, value)
	if err != nil {
		return "", fmt.Errorf("kv put %s: %w", key, err)
	}
	return formatRev(rev), nil
}

func (s *NATSStore) Create(ctx context.Context, key string, value []byte) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rev, err := s.kv.Create(ctx, key, value)
	if err != nil {
		if isConflict(err) {
			return "", store.ErrKeyExists
		}
		return "", fmt.Errorf("kv create %s: %w", key, err)
	}
	return formatRev(rev), nil
}

func (s *NATSStore) Update(ctx context.Context, key string, value []byte, rev store.Revision) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	last, err := parseRev(rev)
	if err != nil {
		return "", store.ErrRevisionMismatch
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	next, err := s.kv.Update(ctx, key, value, last)
	if err != nil {
		if isConflict(err) {
			return "", store.ErrRevisionMismatch
		}
		return "", fmt.Errorf("kv update %s: %w", key, err)
	}
	return formatRev(next), nil
}

// Delete removes key. JetStream deletes are tombstones that succeed on absent
// keys, so the key is read first to report ErrKeyNotFound.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return store.ErrKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	if err := s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision())); err != nil {
		if isConflict(err) {
			return store.ErrRevisionMismatch
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Close closes the NATS connection if this store opened it.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func formatRev(n uint64) store.Revision {
	return store.Revision(strconv.FormatUint(n, 10))
}

func parseRev(rev store.Revision) (uint64, error) {
	return strconv.ParseUint(string(rev), 10, 64)
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// isConflict matches the typed errors and, for older servers, the raw
// wrong-last-sequence text.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") ||
		strings.Contains(msg, "10071") ||
		strings.Contains(msg, "key exists")
}
