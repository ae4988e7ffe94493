package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/job"
	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/store"
)

// startRequest is the import submission payload. File text extraction
// happens upstream for plain documents; spreadsheet bytes are submitted
// base64-encoded and parsed here.
type startRequest struct {
	Mode    string          `json:"mode,omitempty"`
	Sources []sourcePayload `json:"sources"`
}

type sourcePayload struct {
	Kind       string `json:"kind"` // pasted | email | file | spreadsheet
	Text       string `json:"text,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`
	DataBase64 string `json:"data_base64,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Sources) == 0 {
		writeError(w, http.StatusBadRequest, "at least one source required")
		return
	}

	mode := model.ExtractionMode(req.Mode)
	switch mode {
	case "", model.ModeHeuristic, model.ModeAIAssisted:
	default:
		writeError(w, http.StatusBadRequest, "unknown extraction mode")
		return
	}

	sources, err := s.buildSources(r, req.Sources)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.orchestrator.Start(r.Context(), orgFrom(r), sources, mode)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) buildSources(r *http.Request, payloads []sourcePayload) ([]model.RawSource, error) {
	var sources []model.RawSource
	for i, p := range payloads {
		switch model.SourceKind(p.Kind) {
		case model.SourcePasted:
			sources = append(sources, s.builder.FromPasted(p.Text))
		case model.SourceEmail:
			sources = append(sources, s.builder.FromEmail(p.Text))
		case model.SourceFile:
			if p.Text != "" || p.DataBase64 == "" {
				sources = append(sources, s.builder.FromFileText(p.FileName, p.MimeType, p.SizeBytes, p.Text, p.PageCount))
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.DataBase64)
			if err != nil {
				return nil, eris.Errorf("source %d: invalid base64 data", i)
			}
			src, err := s.builder.FromFile(r.Context(), p.FileName, p.MimeType, data)
			if err != nil {
				return nil, eris.Wrapf(err, "source %d", i)
			}
			sources = append(sources, src)
		case model.SourceSpreadsheet:
			data, err := base64.StdEncoding.DecodeString(p.DataBase64)
			if err != nil {
				return nil, eris.Errorf("source %d: invalid base64 data", i)
			}
			src, err := s.builder.FromSpreadsheet(p.FileName, data)
			if err != nil {
				return nil, eris.Wrapf(err, "source %d", i)
			}
			sources = append(sources, src)
		default:
			return nil, eris.Errorf("source %d: unknown kind %q", i, p.Kind)
		}
	}
	return sources, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"), orgFrom(r))
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{
		Status: model.JobStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}
	jobs, err := s.store.ListJobs(r.Context(), orgFrom(r), filter)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.ImportJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	j, err := s.orchestrator.Retry(r.Context(), chi.URLParam(r, "jobID"), orgFrom(r))
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	j, err := s.orchestrator.Enhance(r.Context(), chi.URLParam(r, "jobID"), orgFrom(r))
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeOrchestratorError maps domain errors onto HTTP statuses. A job owned
// by another org is indistinguishable from a missing one.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case eris.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "job was modified concurrently")
	case eris.Is(err, job.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case eris.Is(err, job.ErrWorkerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "background worker unavailable, try again later")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
