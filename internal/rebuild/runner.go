// Package rebuild re-indexes frames already on disk into the timeline, so a
// restart does not forget the recent visual context.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/lookout/internal/artifacts"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

// Config holds the rebuild configuration.
type Config struct {
	FramesDir string
	SessionID string    // session the recovered frames are indexed under
	Since     time.Time // frames older than this are left for the sweeper
}

// Stats summarizes one rebuild.
type Stats struct {
	Indexed int
	Aged    int
	Skipped int // names that are not <ms>.<ext>
}

// Runner scans the frames area and inserts what it finds.
type Runner struct {
	cfg      Config
	timeline *timeline.Store
	logger   *slog.Logger
}

// NewRunner creates a rebuild runner.
func NewRunner(cfg Config, tl *timeline.Store, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, timeline: tl, logger: logger}
}

// Run executes the rebuild. A missing frames directory is not an error.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	entries, err := os.ReadDir(r.cfg.FramesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("list frames: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	sinceMs := r.cfg.Since.UnixMilli()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ts, ok := artifacts.FrameTimestamp(name)
		if !ok {
			stats.Skipped++
			continue
		}
		if !r.cfg.Since.IsZero() && ts < sinceMs {
			stats.Aged++
			continue
		}
		r.timeline.Insert(r.cfg.SessionID, ts, filepath.Join(r.cfg.FramesDir, name))
		stats.Indexed++
	}

	r.logger.Info("timeline rebuilt",
		"session_id", r.cfg.SessionID,
		"indexed", stats.Indexed,
		"aged", stats.Aged,
		"skipped", stats.Skipped,
	)
	return stats, nil
}
