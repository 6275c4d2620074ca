package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
	"github.com/alfredjeanlab/kvcomments/internal/config"
	"github.com/alfredjeanlab/kvcomments/internal/events"
	"github.com/alfredjeanlab/kvcomments/internal/idgen"
	"github.com/alfredjeanlab/kvcomments/internal/store"
	"github.com/alfredjeanlab/kvcomments/internal/store/memory"
	"github.com/alfredjeanlab/kvcomments/internal/store/natskv"
	"github.com/alfredjeanlab/kvcomments/internal/store/postgres"
	"github.com/alfredjeanlab/kvcomments/internal/store/s3store"
	commentsync "github.com/alfredjeanlab/kvcomments/internal/sync"
)

// App is a fully wired comment service built from a Config.
type App struct {
	Server     *CommentServer
	Adapter    *comments.Adapter
	Store      store.Store
	Publisher  events.Publisher
	Metrics    *Metrics
	Health     *HealthChecker
	GRPCHealth *health.Server

	cfg    *config.Config
	logger *slog.Logger
}

// NewApp opens the configured backend and builds the server around it.
// The caller must Close the returned App.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher
	if cfg.EventsActive() {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		publisher = pub
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		publisher = &events.NoopPublisher{}
		logger.Info("events disabled")
	}

	metrics := NewMetrics()
	adapter := comments.New(st, AdapterOptions(cfg, metrics))
	grpcHealth := health.NewServer()
	checker := NewHealthChecker(adapter, grpcHealth, metrics, cfg.HealthInterval, logger)

	srv := NewCommentServer(adapter, publisher, metrics, checker, Options{
		Namespace:     cfg.Namespace,
		BasePath:      cfg.BasePath,
		AllowOrigin:   cfg.AllowOrigin,
		AuthToken:     cfg.AuthToken,
		ProbesEnabled: cfg.ProbesEnabled,
	}, logger)

	return &App{
		Server:     srv,
		Adapter:    adapter,
		Store:      st,
		Publisher:  publisher,
		Metrics:    metrics,
		Health:     checker,
		GRPCHealth: grpcHealth,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// OpenStore opens the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		st = memory.New(cfg.MaxValueBytes)
	case config.BackendNATS:
		var s *natskv.NATSStore
		s, err = natskv.Open(ctx, natskv.Config{
			URL:           cfg.NATSURL,
			Bucket:        cfg.Namespace,
			MaxValueBytes: cfg.MaxValueBytes,
		})
		st = s
	case config.BackendPostgres:
		var s *postgres.PostgresStore
		s, err = postgres.New(cfg.DatabaseURL, cfg.Namespace, cfg.MaxValueBytes)
		st = s
	case config.BackendS3:
		var s *s3store.S3Store
		s, err = s3store.Open(ctx, s3store.Config{
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			Namespace:     cfg.Namespace,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			MaxValueBytes: cfg.MaxValueBytes,
		})
		st = s
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return st, nil
}

// AdapterOptions translates cfg into comment adapter options. Write and
// conflict hooks feed m when it is non-nil.
func AdapterOptions(cfg *config.Config, m *Metrics) comments.Options {
	opts := comments.Options{
		Key:             cfg.ListKey,
		MaxComments:     cfg.MaxComments,
		MaxContentBytes: cfg.MaxContentBytes,
		MaxValueBytes:   cfg.MaxValueBytes,
		Policy:          comments.Policy(cfg.Policy),
		IDStyle:         idgen.Style(cfg.IDStyle),
		TimeFormat:      comments.TimeFormat(cfg.TimeFormat),
		Location:        cfg.Location(),
		CAS:             cfg.CAS,
		CASRetries:      cfg.CASRetries,
	}
	if m != nil {
		opts.OnConflict = m.CASConflict
		opts.OnWrite = m.ListLength
	}
	return opts
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.Server.NewHTTPHandler()
}

// NewGRPCServer returns a gRPC server exposing the app's health service.
func (a *App) NewGRPCServer() *grpc.Server {
	return NewGRPCServer(a.GRPCHealth, a.cfg.AuthToken, a.logger)
}

// NewSyncScheduler returns a scheduler for the configured export
// destinations, or nil when syncing is disabled or nothing is configured.
// A destination that cannot be created is logged and skipped.
func (a *App) NewSyncScheduler(ctx context.Context) *commentsync.Scheduler {
	cfg := a.cfg
	if cfg.SyncInterval <= 0 {
		return nil
	}

	var dests []commentsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := commentsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			a.logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			a.logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, commentsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		a.logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	label := commentsync.Label{Namespace: cfg.Namespace, Key: a.Adapter.Key()}
	return commentsync.NewScheduler(a.Adapter, label, dests, cfg.SyncInterval, a.logger)
}

// Close releases the publisher and the store.
func (a *App) Close() error {
	if err := a.Publisher.Close(); err != nil {
		a.logger.Error("error closing publisher", "err", err)
	}
	return a.Store.Close()
}
