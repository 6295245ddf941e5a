// Package pipeline correlates an uploaded utterance with the frames captured
// around it and drives transcription, reasoning and speech synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lookout/internal/artifacts"
	"github.com/MikeSquared-Agency/lookout/internal/hermes"
	"github.com/MikeSquared-Agency/lookout/internal/sampling"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

// Config tunes the orchestrator.
type Config struct {
	// SampleCap bounds how many frames reach the reasoning stage.
	SampleCap int
	// BaseURL prefixes retrieval URLs of synthesized audio.
	BaseURL string
	// ASROverride, when it names an existing file, is transcribed instead of
	// every uploaded clip.
	ASROverride string
}

// Orchestrator runs the per-request pipeline. It is safe for concurrent use;
// the timeline is the only state shared between requests.
type Orchestrator struct {
	cfg      Config
	timeline *timeline.Store
	areas    artifacts.Areas
	asr      Transcriber
	llm      Reasoner
	tts      Synthesizer
	events   Publisher
	recorder RunRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config, tl *timeline.Store, areas artifacts.Areas, asr Transcriber, llm Reasoner, tts Synthesizer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		timeline: tl,
		areas:    areas,
		asr:      asr,
		llm:      llm,
		tts:      tts,
		logger:   logger,
		now:      time.Now,
	}
}

// SetPublisher enables pipeline events. A nil publisher disables them.
func (o *Orchestrator) SetPublisher(p Publisher) { o.events = p }

// SetRecorder enables the persisted run log. A nil recorder disables it.
func (o *Orchestrator) SetRecorder(r RunRecorder) { o.recorder = r }

// IngestFrame validates and stores a frame, then indexes it.
func (o *Orchestrator) IngestFrame(ctx context.Context, f Frame) (timeline.FrameRecord, error) {
	if f.Image == nil {
		return timeline.FrameRecord{}, &InputError{Reason: "missing image"}
	}
	ts, valid := artifacts.ParseMillis(f.TimestampField)
	if !valid {
		return timeline.FrameRecord{}, &InputError{Reason: "invalid or missing timestamp"}
	}

	path := o.areas.FramePath(ts)
	if err := artifacts.Save(path, f.Image); err != nil {
		return timeline.FrameRecord{}, fmt.Errorf("save frame: %w", err)
	}

	o.timeline.Insert(f.SessionID, ts, path)
	o.logger.Debug("frame stored",
		"session_id", f.SessionID,
		"timestamp", ts,
		"index_size", o.timeline.Len(f.SessionID),
	)

	rec := timeline.FrameRecord{Timestamp: ts, Location: path}
	o.publish(hermes.SubjectFrameStored, hermes.FrameStored{
		SessionID: f.SessionID,
		Timestamp: ts,
		Location:  path,
	})
	return rec, nil
}

// ProcessUtterance answers an uploaded clip using the session's frames
// captured at or after the clip's start.
func (o *Orchestrator) ProcessUtterance(ctx context.Context, u Utterance) (*Result, error) {
	started := o.now()
	o.logger.Debug("utterance received", "session_id", u.SessionID, "file", u.FileName, "state", StateReceived)

	if u.Audio == nil {
		return nil, &InputError{Reason: "missing audio"}
	}
	start, valid := artifacts.UtteranceStart(u.FileName)
	if !valid {
		start, valid = artifacts.ParseMillis(u.StartField)
	}
	if !valid {
		return nil, &InputError{Reason: "cannot parse start timestamp from filename or form"}
	}

	audioPath := o.areas.AudioPath(start)
	if err := artifacts.Save(audioPath, u.Audio); err != nil {
		return nil, fmt.Errorf("save audio: %w", err)
	}
	o.logger.Debug("utterance validated", "audio", audioPath, "state", StateValidated)

	candidates := o.timeline.QueryAtOrAfter(u.SessionID, start)
	frames := sampling.Sample(candidates, o.cfg.SampleCap)
	o.logger.Info("frames resolved",
		"session_id", u.SessionID,
		"utterance_start", start,
		"candidates", len(candidates),
		"sampled", len(frames),
		"state", StateFramesResolved,
	)

	return o.run(ctx, started, runInput{
		kind:      KindUtterance,
		sessionID: u.SessionID,
		start:     start,
		audioPath: audioPath,
		frames:    frames,
	})
}

// ProcessPair answers one clip against exactly one image, bypassing the
// timeline.
func (o *Orchestrator) ProcessPair(ctx context.Context, p Pair) (*Result, error) {
	started := o.now()

	switch {
	case p.Audio == nil && p.Image == nil:
		return nil, &InputError{Reason: "missing audio and image"}
	case p.Audio == nil:
		return nil, &InputError{Reason: "missing audio"}
	case p.Image == nil:
		return nil, &InputError{Reason: "missing image"}
	}

	nowMs := started.UnixMilli()
	audioName := artifacts.SafeName(p.AudioName)
	if audioName == "" {
		audioName = fmt.Sprintf("audio_%d.m4a", nowMs)
	}
	imageName := artifacts.SafeName(p.ImageName)
	if imageName == "" {
		imageName = fmt.Sprintf("%d.jpg", nowMs)
	}

	audioPath := filepath.Join(o.areas.Audio, audioName)
	if err := artifacts.Save(audioPath, p.Audio); err != nil {
		return nil, fmt.Errorf("save audio: %w", err)
	}
	imagePath := filepath.Join(o.areas.Frames, imageName)
	if err := artifacts.Save(imagePath, p.Image); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	ts, named := artifacts.FrameTimestamp(imageName)
	if !named {
		ts = nowMs
	}

	return o.run(ctx, started, runInput{
		kind:      KindPair,
		sessionID: p.SessionID,
		start:     ts,
		audioPath: audioPath,
		frames:    []timeline.FrameRecord{{Timestamp: ts, Location: imagePath}},
	})
}

type runInput struct {
	kind      string
	sessionID string
	start     int64
	audioPath string
	frames    []timeline.FrameRecord
}

func (o *Orchestrator) run(ctx context.Context, started time.Time, in runInput) (*Result, error) {
	res := &Result{
		RunID:          uuid.New(),
		SessionID:      in.sessionID,
		UtteranceStart: in.start,
		Frames:         in.frames,
	}
	log := o.logger.With("run_id", res.RunID, "session_id", in.sessionID, "kind", in.kind)

	t0 := o.now()
	log.Info("transcribe start")
	transcript := o.transcribe(ctx, in.audioPath)
	res.Latencies.Transcribe = o.now().Sub(t0)
	res.Transcript, res.TranscriptDegraded = transcript.Text, transcript.Degraded
	log.Info("transcribe done",
		"ms", Millis(res.Latencies.Transcribe),
		"degraded", transcript.Degraded,
		"preview", preview(transcript.Text),
		"state", StateTranscribed,
	)
	if transcript.Degraded {
		log.Warn("transcription degraded", "cause", transcript.Cause)
	}

	t0 = o.now()
	log.Info("reason start", "frames", len(in.frames))
	answer := o.reason(ctx, transcript.Text, in.frames)
	res.Latencies.Reason = o.now().Sub(t0)
	res.Answer, res.AnswerDegraded = answer.Text, answer.Degraded
	log.Info("reason done",
		"ms", Millis(res.Latencies.Reason),
		"degraded", answer.Degraded,
		"preview", preview(answer.Text),
		"state", StateReasoned,
	)
	if answer.Degraded {
		log.Warn("reasoning degraded", "cause", answer.Cause)
	}

	id := fmt.Sprintf("%d-%s", o.now().UnixMilli(), res.RunID.String()[:8])
	outPath := o.areas.OutputPath(id)
	t0 = o.now()
	log.Info("synthesize start")
	err := o.tts.Synthesize(ctx, answer.Text, outPath)
	res.Latencies.Synthesize = o.now().Sub(t0)
	if err != nil {
		_ = os.Remove(outPath)
		res.Latencies.Total = o.now().Sub(started)
		stageErr := &StageError{Stage: StateSynthesized, Err: err}
		log.Error("pipeline failed", "error", err, "state", StateFailed)
		o.finish(ctx, in, res, stageErr)
		return nil, stageErr
	}
	log.Info("synthesize done", "ms", Millis(res.Latencies.Synthesize), "output", outPath, "state", StateSynthesized)

	res.AudioPath = outPath
	res.AudioURL = strings.TrimRight(o.cfg.BaseURL, "/") + "/static/outputs/" + id + ".mp3"
	res.Latencies.Total = o.now().Sub(started)
	log.Info("pipeline completed",
		"audio_url", res.AudioURL,
		"total_ms", Millis(res.Latencies.Total),
		"state", StateCompleted,
	)
	o.finish(ctx, in, res, nil)
	return res, nil
}

// transcribe never fails: recognition errors become sentinel transcripts.
func (o *Orchestrator) transcribe(ctx context.Context, audioPath string) Outcome {
	if o.cfg.ASROverride != "" {
		if _, err := os.Stat(o.cfg.ASROverride); err == nil {
			audioPath = o.cfg.ASROverride
		}
	}

	text, err := o.asr.Transcribe(ctx, audioPath)
	switch {
	case errors.Is(err, ErrUnintelligible):
		return degraded("[Unintelligible: speech not recognized]", err)
	case err != nil:
		return degraded(fmt.Sprintf("[Error: API request failed: %v]", err), err)
	}
	return Outcome{Text: text}
}

// reason never fails: an unavailable model yields a templated summary.
func (o *Orchestrator) reason(ctx context.Context, transcript string, frames []timeline.FrameRecord) Outcome {
	text, err := o.llm.Reason(ctx, transcript, frames)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty answer")
	}
	if err != nil {
		return degraded(Summarize(transcript, frames), err)
	}
	return Outcome{Text: text}
}

// Summarize is the deterministic answer used when reasoning is unavailable.
func Summarize(transcript string, frames []timeline.FrameRecord) string {
	if len(frames) == 0 {
		return fmt.Sprintf("You said: %s. No frames captured.", transcript)
	}
	first, last := frames[0].Timestamp, frames[len(frames)-1].Timestamp
	return fmt.Sprintf("You said: %s. Processed %d frames (%d to %d).", transcript, len(frames), first, last)
}

func (o *Orchestrator) finish(ctx context.Context, in runInput, res *Result, failure error) {
	run := Run{
		ID:                 res.RunID,
		SessionID:          in.sessionID,
		Kind:               in.kind,
		UtteranceStart:     in.start,
		FrameCount:         len(in.frames),
		Transcript:         res.Transcript,
		TranscriptDegraded: res.TranscriptDegraded,
		Answer:             res.Answer,
		AnswerDegraded:     res.AnswerDegraded,
		AudioURL:           res.AudioURL,
		Latencies:          res.Latencies,
		Status:             StateCompleted,
		CreatedAt:          o.now().UTC(),
	}
	subject := hermes.SubjectUtteranceAnswered
	if failure != nil {
		run.Status = StateFailed
		run.Error = failure.Error()
		subject = hermes.SubjectUtteranceFailed
	}

	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, run); err != nil {
			o.logger.Error("failed to record run", "run_id", run.ID, "error", err)
		}
	}
	o.publish(subject, hermes.UtteranceEvent{
		RunID:              run.ID.String(),
		SessionID:          run.SessionID,
		Kind:               run.Kind,
		UtteranceStart:     run.UtteranceStart,
		FrameCount:         run.FrameCount,
		AudioURL:           run.AudioURL,
		TranscriptDegraded: run.TranscriptDegraded,
		AnswerDegraded:     run.AnswerDegraded,
		TotalMs:            Millis(run.Latencies.Total),
		Error:              run.Error,
	})
}

func (o *Orchestrator) publish(subject string, data any) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(subject, data); err != nil {
		o.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func preview(s string) string {
	const limit = 60
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
