// Package client provides the interface the kc CLI uses to talk to a comment
// service and an HTTP/JSON implementation of it.
package client

import (
	"context"

	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// CommentsClient is the interface that all kc client commands use to
// communicate with the comment server.
type CommentsClient interface {
	// Comments
	List(ctx context.Context) ([]model.Comment, error)
	Add(ctx context.Context, req *AddCommentRequest) (*model.Comment, error)
	Delete(ctx context.Context, id string) error

	// Raw KV probes; the server must run with probes enabled.
	ProbeGet(ctx context.Context, key string) ([]byte, error)
	ProbeSet(ctx context.Context, key string, value []byte) error
	ProbeDelete(ctx context.Context, key string) error

	// System
	Health(ctx context.Context) (string, error)

	Close() error
}

// AddCommentRequest is the body of an append. A nil Time lets the server
// stamp the comment.
type AddCommentRequest struct {
	Content string             `json:"content"`
	Time    *model.CommentTime `json:"time,omitempty"`
}
