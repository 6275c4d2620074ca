package comments

import (
	"errors"
	"fmt"
)

// ErrCommentNotFound is returned by callers that need an error for a delete
// that matched no comment.
var ErrCommentNotFound = errors.New("comment not found")

// DecodeError reports a stored list value that is not a JSON array of comments.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode comment list %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError reports a failed read or write against the KV store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
