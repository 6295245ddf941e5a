// Package reasoning answers a transcript against camera frames with a
// vision-capable language model.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/lookout/internal/anthropic"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

// ErrNotConfigured is returned when no model credentials were provided.
var ErrNotConfigured = errors.New("reasoning model not configured")

// Loader produces a ready model client. It may be slow or fail; the runtime
// retries it on the next request after a failure.
type Loader func(ctx context.Context) (*anthropic.Client, error)

// Runtime is the process-wide handle to the reasoning model. The model is
// loaded at most once successfully and shared by all requests.
type Runtime struct {
	load      Loader
	maxTokens int
	logger    *slog.Logger

	mu  sync.Mutex
	llm *anthropic.Client
}

// NewRuntime returns a runtime that loads the model with load on first use.
func NewRuntime(load Loader, maxTokens int, logger *slog.Logger) *Runtime {
	return &Runtime{load: load, maxTokens: maxTokens, logger: logger}
}

// AnthropicLoader builds a Loader for the Anthropic Messages API.
func AnthropicLoader(apiKey, model string) Loader {
	return func(ctx context.Context) (*anthropic.Client, error) {
		if apiKey == "" {
			return nil, ErrNotConfigured
		}
		return anthropic.NewClient(apiKey, model), nil
	}
}

// Preload loads the model eagerly. Callers may ignore the error; Reason
// tries again lazily.
func (r *Runtime) Preload(ctx context.Context) error {
	_, err := r.client(ctx)
	return err
}

// Loaded reports whether the model is ready.
func (r *Runtime) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.llm != nil
}

func (r *Runtime) client(ctx context.Context) (*anthropic.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.llm != nil {
		return r.llm, nil
	}
	llm, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	r.llm = llm
	r.logger.Info("reasoning model loaded", "model", llm.Model())
	return llm, nil
}

// Reason asks the model to answer transcript using frames as context.
// Frames whose files have disappeared are skipped.
func (r *Runtime) Reason(ctx context.Context, transcript string, frames []timeline.FrameRecord) (string, error) {
	llm, err := r.client(ctx)
	if err != nil {
		return "", err
	}

	content := r.imageBlocks(frames)
	content = append(content, anthropic.TextBlock(transcript+"\n\n"+userPromptSuffix))

	r.logger.Debug("reasoning request",
		"frames", len(frames),
		"images", len(content)-1,
		"transcript_len", len(transcript),
	)

	answer, err := llm.Complete(ctx, systemPrompt, []anthropic.Message{
		{Role: "user", Content: content},
	}, r.maxTokens)
	if err != nil {
		return "", fmt.Errorf("llm reasoning: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (r *Runtime) imageBlocks(frames []timeline.FrameRecord) []anthropic.Block {
	if len(frames) > MaxImages {
		frames = frames[:MaxImages]
	}
	blocks := make([]anthropic.Block, 0, len(frames)+1)
	for _, f := range frames {
		data, err := os.ReadFile(f.Location)
		if err != nil {
			r.logger.Warn("skipping unreadable frame",
				"timestamp", f.Timestamp,
				"path", f.Location,
				"error", err,
			)
			continue
		}
		blocks = append(blocks, anthropic.ImageBlock(mediaType(f.Location), data))
	}
	return blocks
}

func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
