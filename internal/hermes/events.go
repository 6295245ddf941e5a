package hermes

// Subjects published and consumed by lookout.
const (
	SubjectFrameStored       = "lookout.frame.stored"
	SubjectUtteranceAnswered = "lookout.utterance.answered"
	SubjectUtteranceFailed   = "lookout.utterance.failed"
	SubjectSweepCompleted    = "lookout.sweep.completed"
	SubjectSweepRequest      = "lookout.sweep.request"
)

// FrameStored announces a frame accepted into a session timeline.
type FrameStored struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
	Location  string `json:"location"`
}

// UtteranceEvent summarizes a processed utterance. Error is set only on
// SubjectUtteranceFailed.
type UtteranceEvent struct {
	RunID              string  `json:"run_id"`
	SessionID          string  `json:"session_id"`
	Kind               string  `json:"kind"`
	UtteranceStart     int64   `json:"utterance_start"`
	FrameCount         int     `json:"frame_count"`
	AudioURL           string  `json:"audio_url,omitempty"`
	TranscriptDegraded bool    `json:"transcript_degraded"`
	AnswerDegraded     bool    `json:"answer_degraded"`
	TotalMs            float64 `json:"total_ms"`
	Error              string  `json:"error,omitempty"`
}

// SweepCompleted reports one retention sweep.
type SweepCompleted struct {
	Cutoff        string `json:"cutoff"`
	FilesDeleted  int    `json:"files_deleted"`
	EntriesPruned int    `json:"entries_pruned"`
	RunsExpired   int64  `json:"runs_expired"`
}
