// Package speech adapts the Deepgram client to the pipeline's transcription
// and synthesis stages.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/lookout/internal/artifacts"
	"github.com/MikeSquared-Agency/lookout/internal/deepgram"
	"github.com/MikeSquared-Agency/lookout/internal/pipeline"
)

// Transcriber reads an audio file from disk and recognizes it.
type Transcriber struct {
	dg *deepgram.Client
}

func NewTranscriber(dg *deepgram.Client) *Transcriber {
	return &Transcriber{dg: dg}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	text, err := t.dg.Transcribe(ctx, f, ContentType(audioPath))
	if errors.Is(err, deepgram.ErrNoSpeech) {
		return "", pipeline.ErrUnintelligible
	}
	return text, err
}

// Synthesizer renders text to an mp3 file.
type Synthesizer struct {
	dg *deepgram.Client
}

func NewSynthesizer(dg *deepgram.Client) *Synthesizer {
	return &Synthesizer{dg: dg}
}

// Synthesize writes the rendered audio to outPath atomically; a failed call
// leaves nothing behind.
func (s *Synthesizer) Synthesize(ctx context.Context, text, outPath string) error {
	audio, err := s.dg.Speak(ctx, text)
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return artifacts.WriteFile(outPath, audio)
}

// ContentType guesses the audio MIME type from the file extension.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
