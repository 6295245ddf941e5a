// Package retention deletes aged artifacts and prunes the frame timeline to
// match what is left on disk.
package retention

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/lookout/internal/hermes"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

const (
	DefaultRetention = 30 * time.Minute
	DefaultInterval  = time.Minute
)

// Publisher emits sweep reports. hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// RunExpirer deletes persisted run records created before cutoff.
// store.Store satisfies it.
type RunExpirer interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Report summarizes one sweep.
type Report struct {
	Cutoff        time.Time `json:"cutoff"`
	FilesDeleted  int       `json:"files_deleted"`
	EntriesPruned int       `json:"entries_pruned"`
	RunsExpired   int64     `json:"runs_expired"`
}

// Sweeper runs the retention cycle on a fixed interval.
type Sweeper struct {
	timeline  *timeline.Store
	areas     []string
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
	events    Publisher
	expirer   RunExpirer

	mu      sync.Mutex // serializes sweeps
	trigger chan struct{}
}

type Option func(*Sweeper)

func WithRetention(d time.Duration) Option { return func(s *Sweeper) { s.retention = d } }

func WithInterval(d time.Duration) Option { return func(s *Sweeper) { s.interval = d } }

func WithClock(now func() time.Time) Option { return func(s *Sweeper) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Sweeper) { s.logger = l } }

func WithPublisher(p Publisher) Option { return func(s *Sweeper) { s.events = p } }

func WithRunExpirer(e RunExpirer) Option { return func(s *Sweeper) { s.expirer = e } }

// New builds a sweeper over the given artifact directories.
func New(tl *timeline.Store, areas []string, opts ...Option) *Sweeper {
	s := &Sweeper{
		timeline:  tl,
		areas:     areas,
		retention: DefaultRetention,
		interval:  DefaultInterval,
		now:       time.Now,
		logger:    slog.Default(),
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately and then on every tick or Trigger until ctx
// is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("retention sweeper started",
		"retention", s.retention.String(),
		"interval", s.interval.String(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
		case <-s.trigger:
		}
	}
}

// Trigger requests an out-of-band sweep from Run. Requests made while one
// is already pending are coalesced.
func (s *Sweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Cutoff is the oldest instant still inside the retention window.
func (s *Sweeper) Cutoff() time.Time {
	return s.now().Add(-s.retention)
}

// SweepOnce runs a single cycle synchronously. It never fails; file system
// errors are logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := Report{Cutoff: s.Cutoff()}
	for _, dir := range s.areas {
		rep.FilesDeleted += s.deleteOlderThan(dir, rep.Cutoff)
	}
	rep.EntriesPruned = s.pruneTimeline(rep.Cutoff)

	if s.expirer != nil {
		n, err := s.expirer.DeleteRunsBefore(ctx, rep.Cutoff)
		if err != nil {
			s.logger.Warn("failed to expire runs", "error", err)
		}
		rep.RunsExpired = n
	}

	if rep.FilesDeleted > 0 || rep.EntriesPruned > 0 || rep.RunsExpired > 0 {
		s.logger.Info("sweep complete",
			"cutoff", rep.Cutoff.UTC().Format(time.RFC3339),
			"files_deleted", rep.FilesDeleted,
			"entries_pruned", rep.EntriesPruned,
			"runs_expired", rep.RunsExpired,
		)
	} else {
		s.logger.Debug("sweep complete, nothing expired")
	}

	if s.events != nil {
		if err := s.events.Publish(hermes.SubjectSweepCompleted, hermes.SweepCompleted{
			Cutoff:        rep.Cutoff.UTC().Format(time.RFC3339),
			FilesDeleted:  rep.FilesDeleted,
			EntriesPruned: rep.EntriesPruned,
			RunsExpired:   rep.RunsExpired,
		}); err != nil {
			s.logger.Warn("failed to publish sweep report", "error", err)
		}
	}
	return rep
}

func (s *Sweeper) deleteOlderThan(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cannot list artifact area", "dir", dir, "error", err)
		}
		return 0
	}

	deleted := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("cannot delete artifact", "path", path, "error", err)
			}
			continue
		}
		deleted++
	}
	return deleted
}

// pruneTimeline drops entries older than cutoff or whose artifact is gone.
// Existence is checked against a snapshot outside the store lock, so frames
// inserted meanwhile are kept.
func (s *Sweeper) pruneTimeline(cutoff time.Time) int {
	cutoffMs := cutoff.UnixMilli()
	pruned := 0
	for _, id := range s.timeline.Sessions() {
		missing := make(map[string]bool)
		for _, f := range s.timeline.Snapshot(id) {
			if f.Timestamp < cutoffMs {
				continue
			}
			if _, err := os.Stat(f.Location); err != nil {
				missing[f.Location] = true
			}
		}
		pruned += s.timeline.Prune(id, func(f timeline.FrameRecord) bool {
			return f.Timestamp >= cutoffMs && !missing[f.Location]
		})
	}
	return pruned
}
