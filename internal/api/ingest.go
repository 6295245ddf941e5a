package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/lookout/internal/pipeline"
)

const maxUploadMemory = 32 << 20

const defaultSession = "default"

type timings struct {
	ASR        float64 `json:"asr"`
	Multimodal float64 `json:"multimodal"`
	TTS        float64 `json:"tts"`
	Total      float64 `json:"total"`
}

type processResponse struct {
	AudioURL string  `json:"audio_url"`
	Text     string  `json:"text"`
	Timings  timings `json:"timings_ms"`
}

// sessionID picks the capture session a request belongs to.
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Session-ID")); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.FormValue("session_id")); id != "" {
		return id
	}
	return defaultSession
}

// formFile returns the uploaded part for field, or nil when absent. The
// caller closes the returned file.
func formFile(r *http.Request, field string) (multipart.File, string) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, ""
	}
	return f, hdr.Filename
}

func parseForm(r *http.Request) {
	// A non-multipart body simply yields no files; handlers report what is missing.
	_ = r.ParseMultipartForm(maxUploadMemory)
}

func (s *Server) processFrame(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	f := pipeline.Frame{
		SessionID:      sessionID(r),
		TimestampField: r.FormValue("timestamp"),
	}
	if file, _ := formFile(r, "image"); file != nil {
		defer file.Close()
		f.Image = file
	}

	if _, err := s.orch.IngestFrame(r.Context(), f); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) processAudio(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	u := pipeline.Utterance{
		SessionID:  sessionID(r),
		StartField: r.FormValue("start_ts"),
	}
	if file, name := formFile(r, "audio"); file != nil {
		defer file.Close()
		u.Audio = file
		u.FileName = name
	}

	res, err := s.orch.ProcessUtterance(r.Context(), u)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) processPair(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	p := pipeline.Pair{SessionID: sessionID(r)}
	if file, name := formFile(r, "audio"); file != nil {
		defer file.Close()
		p.Audio = file
		p.AudioName = name
	}
	if file, name := formFile(r, "image"); file != nil {
		defer file.Close()
		p.Image = file
		p.ImageName = name
	}

	res, err := s.orch.ProcessPair(r.Context(), p)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func toResponse(res *pipeline.Result) processResponse {
	return processResponse{
		AudioURL: res.AudioURL,
		Text:     res.Answer,
		Timings: timings{
			ASR:        pipeline.Millis(res.Latencies.Transcribe),
			Multimodal: pipeline.Millis(res.Latencies.Reason),
			TTS:        pipeline.Millis(res.Latencies.Synthesize),
			Total:      pipeline.Millis(res.Latencies.Total),
		},
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var inErr *pipeline.InputError
	if errors.As(err, &inErr) {
		writeError(w, http.StatusBadRequest, inErr.Reason)
		return
	}
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) serveOutput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.outputsDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		// Swept between the stat and the open.
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(name), ".mp3") {
		w.Header().Set("Content-Type", "audio/mpeg")
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
