package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"convq/internal/adapter/http/validation"
	"convq/internal/domain"
	"convq/internal/infrastructure/logger"
)

// QueueService is the orchestrator surface the presentation layer may
// touch: requests in, snapshots out. Job state is never mutated here.
type QueueService interface {
	Add(ctx context.Context, params domain.ConversionParameters) (domain.Job, error)
	Remove(index int) bool
	Start()
	Stop()
	Jobs() []domain.Job
	Busy() bool
}

type HistoryService interface {
	Recent(limit int) ([]domain.HistoryEntry, error)
}

type Handlers struct {
	queue   QueueService
	history HistoryService
}

func NewHandlers(queue QueueService, history HistoryService) *Handlers {
	return &Handlers{
		queue:   queue,
		history: history,
	}
}

type addJobRequest struct {
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Preset      domain.Preset `json:"preset"`
	Fps         int           `json:"fps"`
}

func (req addJobRequest) validate() error {
	if err := validation.ValidatePath(req.Source); err != nil {
		return err
	}
	if err := validation.ValidatePath(req.Destination); err != nil {
		return err
	}
	if !req.Preset.Valid() {
		return errors.New("unknown preset")
	}
	return nil
}

func (h *Handlers) Queue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs": h.queue.Jobs(),
			"busy": h.queue.Busy(),
		})
	}
}

func (h *Handlers) AddJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := h.queue.Add(r.Context(), domain.ConversionParameters{
			Source:      req.Source,
			Destination: req.Destination,
			Preset:      req.Preset,
			Fps:         req.Fps,
		})
		if err != nil {
			if errors.Is(err, domain.ErrProbeFailed) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			logger.Error.Printf("add job: %v", err)
			writeError(w, http.StatusInternalServerError, "could not add job")
			return
		}

		writeJSON(w, http.StatusCreated, job)
	}
}

type batchAddRequest struct {
	Sources        []string      `json:"sources"`
	DestinationDir string        `json:"destination_dir"`
	Preset         domain.Preset `json:"preset"`
	Fps            int           `json:"fps"`
}

type batchAddResult struct {
	Source string      `json:"source"`
	Job    *domain.Job `json:"job,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// BatchAdd maps a list of source files onto independent add requests, one
// per file; each outcome is reported individually. This is the ingestion
// path a file-drop front end talks to.
func (h *Handlers) BatchAdd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchAddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Sources) == 0 {
			writeError(w, http.StatusBadRequest, "no sources given")
			return
		}
		if err := validation.ValidatePath(req.DestinationDir); err != nil {
			writeError(w, http.StatusBadRequest, "destination_dir: "+err.Error())
			return
		}
		if !req.Preset.Valid() {
			writeError(w, http.StatusBadRequest, "unknown preset")
			return
		}

		results := make([]batchAddResult, 0, len(req.Sources))
		for _, source := range req.Sources {
			result := batchAddResult{Source: source}

			item := addJobRequest{
				Source:      source,
				Destination: destinationFor(source, req.DestinationDir, req.Preset),
				Preset:      req.Preset,
				Fps:         req.Fps,
			}
			if err := item.validate(); err != nil {
				result.Error = err.Error()
				results = append(results, result)
				continue
			}

			job, err := h.queue.Add(r.Context(), domain.ConversionParameters{
				Source:      item.Source,
				Destination: item.Destination,
				Preset:      item.Preset,
				Fps:         item.Fps,
			})
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Job = &job
			}
			results = append(results, result)
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func destinationFor(source, destinationDir string, preset domain.Preset) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(destinationDir, base+preset.Extension())
}

func (h *Handlers) RemoveJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid index")
			return
		}

		if !h.queue.Remove(index) {
			// Running or out of range: refusal is an outcome, not a fault.
			writeJSON(w, http.StatusConflict, map[string]bool{"removed": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	}
}

func (h *Handlers) StartQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.queue.Start()
		writeJSON(w, http.StatusOK, map[string]bool{"busy": h.queue.Busy()})
	}
}

func (h *Handlers) StopQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.queue.Stop()
		writeJSON(w, http.StatusOK, map[string]bool{"busy": h.queue.Busy()})
	}
}

func (h *Handlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(parsed, 500)
		}

		entries, err := h.history.Recent(limit)
		if err != nil {
			logger.Error.Printf("list history: %v", err)
			writeError(w, http.StatusInternalServerError, "could not load history")
			return
		}
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
