package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
	"github.com/alfredjeanlab/kvcomments/internal/events"
)

// DefaultBasePath is where the comment routes are mounted.
const DefaultBasePath = "/api/comments"

// Options controls the HTTP surface.
type Options struct {
	Namespace     string // reported in events
	BasePath      string
	AllowOrigin   string
	AuthToken     string // empty disables auth
	ProbesEnabled bool
	MaxBodyBytes  int64 // request body limit; 0 means 4 MiB
}

// CommentServer serves the comment list over HTTP.
type CommentServer struct {
	comments  *comments.Adapter
	publisher events.Publisher
	metrics   *Metrics
	health    *HealthChecker
	opts      Options
	logger    *slog.Logger
}

// NewCommentServer returns a CommentServer backed by the given adapter and
// publisher. metrics and health may be nil.
func NewCommentServer(a *comments.Adapter, p events.Publisher, m *Metrics, h *HealthChecker, opts Options, logger *slog.Logger) *CommentServer {
	if opts.BasePath == "" {
		opts.BasePath = DefaultBasePath
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentServer{
		comments:  a,
		publisher: p,
		metrics:   m,
		health:    h,
		opts:      opts,
		logger:    logger,
	}
}

// publish emits an event. It is best-effort; failures are logged but do not
// fail the request.
func (s *CommentServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
