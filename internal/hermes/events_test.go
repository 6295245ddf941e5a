package hermes

import (
	"encoding/json"
	"testing"
)

func TestUtteranceEventParsing(t *testing.T) {
	raw := `{
		"run_id": "3f1c",
		"session_id": "default",
		"kind": "utterance",
		"utterance_start": 1500,
		"frame_count": 3,
		"audio_url": "http://localhost:5050/static/outputs/1.mp3",
		"transcript_degraded": true,
		"answer_degraded": false,
		"total_ms": 812.5
	}`

	var evt UtteranceEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse UtteranceEvent: %v", err)
	}

	if evt.SessionID != "default" {
		t.Errorf("expected session_id 'default', got '%s'", evt.SessionID)
	}
	if evt.UtteranceStart != 1500 {
		t.Errorf("expected utterance_start 1500, got %d", evt.UtteranceStart)
	}
	if evt.FrameCount != 3 {
		t.Errorf("expected frame_count 3, got %d", evt.FrameCount)
	}
	if !evt.TranscriptDegraded {
		t.Error("expected transcript_degraded true")
	}
	if evt.Error != "" {
		t.Errorf("expected empty error, got '%s'", evt.Error)
	}
}

func TestUtteranceEventOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(UtteranceEvent{RunID: "r", Kind: "pair"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if _, ok := m["error"]; ok {
		t.Error("expected error to be omitted")
	}
	if _, ok := m["audio_url"]; ok {
		t.Error("expected audio_url to be omitted")
	}
}

func TestSubjectConstants(t *testing.T) {
	subjects := map[string]string{
		SubjectFrameStored:       "lookout.frame.stored",
		SubjectUtteranceAnswered: "lookout.utterance.answered",
		SubjectUtteranceFailed:   "lookout.utterance.failed",
		SubjectSweepCompleted:    "lookout.sweep.completed",
		SubjectSweepRequest:      "lookout.sweep.request",
	}
	for got, want := range subjects {
		if got != want {
			t.Errorf("expected subject '%s', got '%s'", want, got)
		}
	}
}
