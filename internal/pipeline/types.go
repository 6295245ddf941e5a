package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Reasoner answers a transcript using the given frames as visual context.
type Reasoner interface {
	Reason(ctx context.Context, transcript string, frames []timeline.FrameRecord) (string, error)
}

// Synthesizer renders text as speech at outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Publisher emits pipeline events. hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// RunRecorder persists a finished run. store.Store satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// ErrUnintelligible is returned by a Transcriber that received audio but
// recognized no speech in it.
var ErrUnintelligible = errors.New("speech not recognized")

// State is a step of the per-request state machine.
type State string

const (
	StateReceived       State = "received"
	StateValidated      State = "validated"
	StateFramesResolved State = "frames_resolved"
	StateTranscribed    State = "transcribed"
	StateReasoned       State = "reasoned"
	StateSynthesized    State = "synthesized"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// InputError rejects a request before it reaches the timeline or stages.
// Reason is machine readable and returned to the client verbatim.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// StageError is a fatal failure of one pipeline stage.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Outcome is the text produced by a stage that may degrade instead of
// failing. Degraded is set when Text came from a fallback path, and Cause
// records why.
type Outcome struct {
	Text     string
	Degraded bool
	Cause    string
}

func degraded(text string, cause error) Outcome {
	return Outcome{Text: text, Degraded: true, Cause: cause.Error()}
}

// Latencies records how long each stage took.
type Latencies struct {
	Transcribe time.Duration
	Reason     time.Duration
	Synthesize time.Duration
	Total      time.Duration
}

// Result is the outcome of one processed utterance.
type Result struct {
	RunID              uuid.UUID
	SessionID          string
	UtteranceStart     int64
	Frames             []timeline.FrameRecord
	Transcript         string
	TranscriptDegraded bool
	Answer             string
	AnswerDegraded     bool
	AudioPath          string
	AudioURL           string
	Latencies          Latencies
}

// Run is the persisted summary of a processed request, successful or not.
type Run struct {
	ID                 uuid.UUID
	SessionID          string
	Kind               string
	UtteranceStart     int64
	FrameCount         int
	Transcript         string
	TranscriptDegraded bool
	Answer             string
	AnswerDegraded     bool
	AudioURL           string
	Latencies          Latencies
	Status             State
	Error              string
	CreatedAt          time.Time
}

// Run kinds.
const (
	KindUtterance = "utterance"
	KindPair      = "pair"
)

// Utterance is an uploaded audio clip to be answered against the session's
// recent frames. The start time comes from FileName when it is shaped like
// audio_<ms>.<ext>, otherwise from StartField.
type Utterance struct {
	SessionID  string
	FileName   string
	StartField string
	Audio      io.Reader
}

// Pair is a single audio clip answered against exactly one image.
type Pair struct {
	SessionID string
	AudioName string
	Audio     io.Reader
	ImageName string
	Image     io.Reader
}

// Frame is an uploaded camera frame.
type Frame struct {
	SessionID      string
	TimestampField string
	Image          io.Reader
}
