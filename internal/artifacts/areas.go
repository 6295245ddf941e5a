// Package artifacts manages the on-disk areas holding uploaded frames,
// uploaded utterance audio, and synthesized speech.
package artifacts

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Areas locates the three flat artifact directories.
type Areas struct {
	Frames  string
	Audio   string
	Outputs string
}

// NewAreas lays the frame and audio areas out under dataDir.
func NewAreas(dataDir, outputsDir string) Areas {
	return Areas{
		Frames:  filepath.Join(dataDir, "frames"),
		Audio:   filepath.Join(dataDir, "audios"),
		Outputs: outputsDir,
	}
}

// Ensure creates every area that does not exist yet.
func (a Areas) Ensure() error {
	for _, dir := range a.All() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// All returns the areas in sweep order.
func (a Areas) All() []string {
	return []string{a.Frames, a.Audio, a.Outputs}
}

// FramePath is the canonical location of a frame captured at ts.
func (a Areas) FramePath(ts int64) string {
	return filepath.Join(a.Frames, fmt.Sprintf("%d.jpg", ts))
}

// AudioPath is the canonical location of an utterance starting at ts.
func (a Areas) AudioPath(ts int64) string {
	return filepath.Join(a.Audio, fmt.Sprintf("audio_%d.m4a", ts))
}

// OutputPath is where the synthesized speech with the given id is written.
func (a Areas) OutputPath(id string) string {
	return filepath.Join(a.Outputs, id+".mp3")
}

// Save streams r to path, replacing any existing file. The content becomes
// visible under path only once fully written.
func Save(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteFile is Save for an in-memory payload.
func WriteFile(path string, data []byte) error {
	return Save(path, bytes.NewReader(data))
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeName reduces a client-supplied file name to a plain base name made of
// ASCII letters, digits, '_', '-' and '.', with no leading dots. It returns
// "" when nothing usable remains.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, "._")
}

// ParseMillis parses a non-negative decimal millisecond timestamp. Signs,
// spaces and other non-digits are rejected.
func ParseMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// UtteranceStart extracts the start timestamp from names shaped like
// audio_<ms>.<ext>.
func UtteranceStart(name string) (int64, bool) {
	name = SafeName(name)
	if !strings.HasPrefix(name, "audio_") || !strings.Contains(name, ".") {
		return 0, false
	}
	part := strings.Split(name, "_")[1]
	part = strings.Split(part, ".")[0]
	return ParseMillis(part)
}

// FrameTimestamp extracts the capture time from names shaped like <ms>.<ext>.
func FrameTimestamp(name string) (int64, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return ParseMillis(stem)
}
