// Package comments keeps a guestbook's comment list as a single JSON array
// value under one key of a store.Store. Every mutation reads the whole list,
// changes it in memory and writes it back, guarded by a revision check.
package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/alfredjeanlab/kvcomments/internal/idgen"
	"github.com/alfredjeanlab/kvcomments/internal/model"
	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// Policy decides where new comments go and which end is evicted.
type Policy string

const (
	// PolicyNewestFirst inserts at the head; the tail holds the oldest.
	PolicyNewestFirst Policy = "newest-first"
	// PolicyAppend inserts at the tail; the head holds the oldest.
	PolicyAppend Policy = "append"
)

// TimeFormat selects how server-assigned comment times are written.
type TimeFormat string

const (
	// TimeDisplay writes DisplayLayout strings in Options.Location.
	TimeDisplay TimeFormat = "display"
	// TimeEpoch writes Unix milliseconds.
	TimeEpoch TimeFormat = "epoch"
)

// DisplayLayout is the minute-resolution layout used for display times.
const DisplayLayout = "2006/01/02 15:04"

// Default values for Options.
const (
	DefaultKey         = "comment_list"
	DefaultMaxComments = 100
	DefaultCASRetries  = 8
	DefaultBackoff     = 10 * time.Millisecond
)

// Options configures an Adapter. The zero value of each field selects the
// default except where noted.
type Options struct {
	Key             string
	MaxComments     int // 0 keeps every comment
	MaxContentBytes int // 0 disables the content size check
	MaxValueBytes   int // 0 disables the stored list size check
	Policy          Policy
	IDStyle         idgen.Style
	TimeFormat      TimeFormat
	Location        *time.Location

	// CAS enables revision-checked writes. Without it the adapter writes
	// blindly and concurrent mutations may overwrite each other.
	CAS        bool
	CASRetries int
	Backoff    time.Duration

	Now func() time.Time

	// OnConflict is called for every lost CAS race.
	OnConflict func()
	// OnWrite is called with the list length after each successful write.
	OnWrite func(length int)
}

// DefaultOptions returns the options matching the original guestbook.
func DefaultOptions() Options {
	return Options{
		Key:             DefaultKey,
		MaxComments:     DefaultMaxComments,
		MaxContentBytes: model.DefaultMaxContentBytes,
		MaxValueBytes:   model.DefaultMaxValueBytes,
		Policy:          PolicyNewestFirst,
		IDStyle:         idgen.StyleTimestamp,
		TimeFormat:      TimeDisplay,
		CAS:             true,
		CASRetries:      DefaultCASRetries,
	}
}

// NewComment is the caller-provided part of a comment.
type NewComment struct {
	Content string
	Time    *model.CommentTime
}

// Adapter reads and writes the comment list.
type Adapter struct {
	store store.Store
	opts  Options
}

// New returns an Adapter over s.
func New(s store.Store, opts Options) *Adapter {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Policy == "" {
		opts.Policy = PolicyNewestFirst
	}
	if opts.IDStyle == "" {
		opts.IDStyle = idgen.StyleTimestamp
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = TimeDisplay
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Adapter{store: s, opts: opts}
}

// Key returns the store key holding the list.
func (a *Adapter) Key() string { return a.opts.Key }

// FetchList returns the stored comments. An absent key is an empty list.
func (a *Adapter) FetchList(ctx context.Context) ([]model.Comment, error) {
	list, _, _, err := a.read(ctx)
	return list, err
}

// Append validates nc, stores it per the ordering policy and returns the
// comment as stored. Only the length cap evicts comments: when the new list
// would exceed MaxValueBytes the append fails with a *StoreError and the
// stored list is left as it was.
func (a *Adapter) Append(ctx context.Context, nc NewComment) (model.Comment, error) {
	if err := model.ValidateContent(nc.Content, a.opts.MaxContentBytes); err != nil {
		return model.Comment{}, err
	}
	now := a.opts.Now()
	c := model.Comment{Content: strings.TrimSpace(nc.Content), Time: a.commentTime(nc.Time, now)}
	if err := a.checkAlone(c); err != nil {
		return model.Comment{}, err
	}

	err := a.mutate(ctx, func(list []model.Comment) ([]model.Comment, bool, error) {
		id, err := idgen.New(a.opts.IDStyle, now, func(id string) bool { return hasID(list, id) })
		if err != nil {
			return nil, false, err
		}
		c.ID = id
		return a.insert(list, c), true, nil
	})
	if err != nil {
		return model.Comment{}, err
	}
	return c, nil
}

// Delete removes every comment with the given id and reports whether any
// was removed. The list is only written back when it changed.
func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := a.mutate(ctx, func(list []model.Comment) ([]model.Comment, bool, error) {
		kept := make([]model.Comment, 0, len(list))
		for _, c := range list {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		removed = len(kept) != len(list)
		return kept, removed, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Raw returns the value stored under key, reporting whether it exists.
func (a *Adapter) Raw(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := a.store.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "get", Key: key, Err: err}
	}
	return e.Value, true, nil
}

// PutRaw writes value under key unconditionally.
func (a *Adapter) PutRaw(ctx context.Context, key string, value []byte) error {
	if _, err := a.store.Put(ctx, key, value); err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// DeleteRaw removes key, reporting whether it existed.
func (a *Adapter) DeleteRaw(ctx context.Context, key string) (bool, error) {
	err := a.store.Delete(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "delete", Key: key, Err: err}
	}
	return true, nil
}

// mutateFunc returns the new list and whether it differs from the input.
type mutateFunc func([]model.Comment) ([]model.Comment, bool, error)

// mutate runs one read-modify-write cycle, repeating it on CAS conflicts.
// fn may run more than once and must not keep state between calls other
// than its latest result.
func (a *Adapter) mutate(ctx context.Context, fn mutateFunc) error {
	if !a.opts.CAS {
		return a.mutateOnce(ctx, fn)
	}

	b := retry.NewExponential(a.opts.Backoff)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(uint64(max(a.opts.CASRetries, 0)), b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := a.mutateOnce(ctx, fn)
		if store.IsConflict(err) {
			if a.opts.OnConflict != nil {
				a.opts.OnConflict()
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if store.IsConflict(err) {
		return &StoreError{Op: "put", Key: a.opts.Key, Err: fmt.Errorf("gave up after %d retries: %w", a.opts.CASRetries, err)}
	}
	return err
}

func (a *Adapter) mutateOnce(ctx context.Context, fn mutateFunc) error {
	list, rev, exists, err := a.read(ctx)
	if err != nil {
		return err
	}

	next, changed, err := fn(list)
	if err != nil || !changed {
		return err
	}

	value, err := a.encode(next)
	if err != nil {
		return err
	}

	switch {
	case !a.opts.CAS:
		_, err = a.store.Put(ctx, a.opts.Key, value)
	case exists:
		_, err = a.store.Update(ctx, a.opts.Key, value, rev)
	default:
		_, err = a.store.Create(ctx, a.opts.Key, value)
	}
	if store.IsConflict(err) {
		return err
	}
	if err != nil {
		return &StoreError{Op: "put", Key: a.opts.Key, Err: err}
	}

	if a.opts.OnWrite != nil {
		a.opts.OnWrite(len(next))
	}
	return nil
}

func (a *Adapter) read(ctx context.Context) ([]model.Comment, store.Revision, bool, error) {
	e, err := a.store.Get(ctx, a.opts.Key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return []model.Comment{}, "", false, nil
	}
	if err != nil {
		return nil, "", false, &StoreError{Op: "get", Key: a.opts.Key, Err: err}
	}

	list, err := decodeList(e.Value)
	if err != nil {
		return nil, "", false, &DecodeError{Key: a.opts.Key, Err: err}
	}
	return list, e.Revision, true, nil
}

// decodeList parses a stored value. An empty value or JSON null is an empty list.
func decodeList(value []byte) ([]model.Comment, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return []model.Comment{}, nil
	}
	var list []model.Comment
	if err := json.Unmarshal(value, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Comment{}
	}
	return list, nil
}

// encode serializes list. A value over MaxValueBytes is a *StoreError
// wrapping store.ErrValueTooLarge; nothing is written.
func (a *Adapter) encode(list []model.Comment) ([]byte, error) {
	value, err := marshalList(list)
	if err != nil {
		return nil, err
	}
	if err := store.CheckSize(value, a.opts.MaxValueBytes); err != nil {
		return nil, &StoreError{Op: "put", Key: a.opts.Key,
			Err: fmt.Errorf("%w: list of %d comments is %d bytes, limit %d", err, len(list), len(value), a.opts.MaxValueBytes)}
	}
	return value, nil
}

// checkAlone rejects a comment that could not be stored even in an empty
// list, such as one with an oversized client-supplied time.
func (a *Adapter) checkAlone(c model.Comment) error {
	if a.opts.MaxValueBytes <= 0 {
		return nil
	}
	// Stand-in as long as a UUID, the longest id any style produces.
	c.ID = strings.Repeat("0", 36)
	value, err := marshalList([]model.Comment{c})
	if err != nil {
		return err
	}
	if len(value) > a.opts.MaxValueBytes {
		return model.NewValidationError("content",
			fmt.Sprintf("comment is %d bytes as stored, limit %d", len(value), a.opts.MaxValueBytes))
	}
	return nil
}

func marshalList(list []model.Comment) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return nil, fmt.Errorf("encode comment list: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (a *Adapter) insert(list []model.Comment, c model.Comment) []model.Comment {
	var next []model.Comment
	if a.opts.Policy == PolicyAppend {
		next = append(append(make([]model.Comment, 0, len(list)+1), list...), c)
	} else {
		next = append(append(make([]model.Comment, 0, len(list)+1), c), list...)
	}
	if a.opts.MaxComments > 0 && len(next) > a.opts.MaxComments {
		next = a.evictOldest(next, a.opts.MaxComments)
	}
	return next
}

// evictOldest keeps the n newest comments.
func (a *Adapter) evictOldest(list []model.Comment, n int) []model.Comment {
	if a.opts.Policy == PolicyAppend {
		return list[len(list)-n:]
	}
	return list[:n]
}

func (a *Adapter) commentTime(given *model.CommentTime, now time.Time) model.CommentTime {
	if given != nil && !given.IsZero() {
		return *given
	}
	if a.opts.TimeFormat == TimeEpoch {
		return model.EpochTime(now.UnixMilli())
	}
	return model.DisplayTime(now.In(a.opts.Location).Format(DisplayLayout))
}

func hasID(list []model.Comment, id string) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
