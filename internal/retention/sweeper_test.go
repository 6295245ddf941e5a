package retention

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/lookout/internal/hermes"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

type areas struct {
	frames, audio, outputs string
}

func newAreas(t *testing.T) areas {
	t.Helper()
	root := t.TempDir()
	a := areas{
		frames:  filepath.Join(root, "frames"),
		audio:   filepath.Join(root, "audios"),
		outputs: filepath.Join(root, "outputs"),
	}
	for _, d := range []string{a.frames, a.audio, a.outputs} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return a
}

func newSweeper(tl *timeline.Store, a areas, opts ...Option) *Sweeper {
	base := []Option{
		WithRetention(30 * time.Minute),
		WithClock(func() time.Time { return now }),
		WithLogger(quietLogger()),
	}
	return New(tl, []string{a.frames, a.audio, a.outputs}, append(base, opts...)...)
}

func TestSweepOnce_DeletesAgedFiles(t *testing.T) {
	a := newAreas(t)
	old := now.Add(-31 * time.Minute)
	fresh := now.Add(-5 * time.Minute)

	oldFrame := writeFile(t, a.frames, "1.jpg", old)
	freshFrame := writeFile(t, a.frames, "2.jpg", fresh)
	oldAudio := writeFile(t, a.audio, "audio_1.m4a", old)
	oldOutput := writeFile(t, a.outputs, "1.mp3", old)
	freshOutput := writeFile(t, a.outputs, "2.mp3", fresh)
	require.NoError(t, os.MkdirAll(filepath.Join(a.frames, "nested"), 0o755))

	rep := newSweeper(timeline.New(), a).SweepOnce(context.Background())

	assert.Equal(t, 3, rep.FilesDeleted)
	assert.Equal(t, now.Add(-30*time.Minute), rep.Cutoff)
	assert.NoFileExists(t, oldFrame)
	assert.NoFileExists(t, oldAudio)
	assert.NoFileExists(t, oldOutput)
	assert.FileExists(t, freshFrame)
	assert.FileExists(t, freshOutput)
	assert.DirExists(t, filepath.Join(a.frames, "nested"))
}

func TestSweepOnce_MissingAreaIsNotAnError(t *testing.T) {
	a := newAreas(t)
	require.NoError(t, os.RemoveAll(a.audio))

	rep := newSweeper(timeline.New(), a).SweepOnce(context.Background())
	assert.Zero(t, rep.FilesDeleted)
}

func TestSweepOnce_PrunesTimeline(t *testing.T) {
	a := newAreas(t)
	tl := timeline.New()
	cutoffMs := now.Add(-30 * time.Minute).UnixMilli()

	// Aged by timestamp, file still fresh on disk.
	agedTS := cutoffMs - 1
	tl.Insert("default", agedTS, writeFile(t, a.frames, fmt.Sprintf("%d.jpg", agedTS), now))

	// Inside the window but its file was removed externally.
	goneTS := cutoffMs + 1000
	gone := writeFile(t, a.frames, fmt.Sprintf("%d.jpg", goneTS), now)
	tl.Insert("default", goneTS, gone)
	require.NoError(t, os.Remove(gone))

	// Exactly at the cutoff and on disk: kept.
	edgeTS := cutoffMs
	tl.Insert("default", edgeTS, writeFile(t, a.frames, fmt.Sprintf("%d.jpg", edgeTS), now))

	keepTS := cutoffMs + 2000
	tl.Insert("other", keepTS, writeFile(t, a.frames, fmt.Sprintf("%d.jpg", keepTS), now))

	rep := newSweeper(tl, a).SweepOnce(context.Background())

	assert.Equal(t, 2, rep.EntriesPruned)
	assert.Equal(t, []timeline.FrameRecord{{Timestamp: edgeTS, Location: filepath.Join(a.frames, fmt.Sprintf("%d.jpg", edgeTS))}}, tl.Snapshot("default"))
	assert.Equal(t, 1, tl.Len("other"))

	for _, id := range tl.Sessions() {
		for _, f := range tl.Snapshot(id) {
			assert.GreaterOrEqual(t, f.Timestamp, cutoffMs)
			assert.FileExists(t, f.Location)
		}
	}
}

func TestSweepOnce_PrunesEntriesWhoseFilesItDeleted(t *testing.T) {
	a := newAreas(t)
	tl := timeline.New()
	ts := now.Add(-10 * time.Minute).UnixMilli()
	// Timestamp is inside the window but the file itself is stale.
	tl.Insert("default", ts, writeFile(t, a.frames, "stale.jpg", now.Add(-time.Hour)))

	rep := newSweeper(tl, a).SweepOnce(context.Background())

	assert.Equal(t, 1, rep.FilesDeleted)
	assert.Equal(t, 1, rep.EntriesPruned)
	assert.Zero(t, tl.Len("default"))
}

type fakeExpirer struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeExpirer) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

type fakePublisher struct {
	subjects []string
	reports  []hermes.SweepCompleted
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.subjects = append(f.subjects, subject)
	if r, ok := data.(hermes.SweepCompleted); ok {
		f.reports = append(f.reports, r)
	}
	return errors.New("broker down")
}

func TestSweepOnce_ExpiresRunsAndPublishes(t *testing.T) {
	a := newAreas(t)
	exp := &fakeExpirer{n: 4}
	pub := &fakePublisher{}

	rep := newSweeper(timeline.New(), a, WithRunExpirer(exp), WithPublisher(pub)).SweepOnce(context.Background())

	assert.Equal(t, int64(4), rep.RunsExpired)
	assert.Equal(t, rep.Cutoff, exp.cutoff)
	assert.Equal(t, []string{hermes.SubjectSweepCompleted}, pub.subjects)
	require.Len(t, pub.reports, 1)
	assert.Equal(t, int64(4), pub.reports[0].RunsExpired)
}

func TestSweepOnce_ExpirerErrorIsSwallowed(t *testing.T) {
	a := newAreas(t)
	exp := &fakeExpirer{err: errors.New("db gone")}

	rep := newSweeper(timeline.New(), a, WithRunExpirer(exp)).SweepOnce(context.Background())
	assert.Zero(t, rep.RunsExpired)
}

func TestRun_SweepsImmediatelyAndStops(t *testing.T) {
	a := newAreas(t)
	old := writeFile(t, a.outputs, "old.mp3", now.Add(-time.Hour))
	s := newSweeper(timeline.New(), a, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(old)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRun_Trigger(t *testing.T) {
	a := newAreas(t)
	s := newSweeper(timeline.New(), a, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Written after the initial sweep has had a chance to run.
	time.Sleep(50 * time.Millisecond)
	late := writeFile(t, a.audio, "late.m4a", now.Add(-time.Hour))
	s.Trigger()
	s.Trigger()

	require.Eventually(t, func() bool {
		_, err := os.Stat(late)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}
