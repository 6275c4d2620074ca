// Package sync periodically exports the comment list as JSONL to backup
// destinations such as an S3 bucket or a git repository.
package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// Source supplies the comment list to export.
type Source interface {
	FetchList(ctx context.Context) ([]model.Comment, error)
}

// Destination receives each JSONL export.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports on an interval. A destination is only written when the
// export differs from the last payload it accepted.
type Scheduler struct {
	source       Source
	label        Label
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	sent map[int][sha256.Size]byte

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(src Source, label Label, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       src,
		label:        label,
		destinations: destinations,
		interval:     interval,
		logger:       logger.With("namespace", label.Namespace, "key", label.Key),
		sent:         make(map[int][sha256.Size]byte),
	}
}

// Start exports immediately and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the loop and waits for an in-flight export.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("sync incomplete", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce exports the list and writes it to every destination whose last
// accepted payload differs. A failing destination does not stop the others;
// all failures are joined into the returned error.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.source, s.label, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return err
	}
	data := buf.Bytes()
	sum := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	written := 0
	for i, dest := range s.destinations {
		if prev, ok := s.sent[i]; ok && prev == sum {
			continue
		}
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("sync destination write failed", "destination", fmt.Sprintf("%T", dest), "err", err)
			errs = append(errs, fmt.Errorf("destination %d: %w", i, err))
			continue
		}
		s.sent[i] = sum
		written++
	}

	if written > 0 || len(errs) > 0 {
		s.logger.Info("sync completed", "written", written, "failed", len(errs), "bytes", len(data))
	} else {
		s.logger.Debug("sync skipped, export unchanged", "bytes", len(data))
	}
	return errors.Join(errs...)
}
