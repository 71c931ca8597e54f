// Package api provides HTTP API handlers for labeling runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/monitoring"
	"github.com/ayusman/kinelabel/internal/pipeline"
	"github.com/ayusman/kinelabel/internal/reconcile"
	"github.com/ayusman/kinelabel/internal/store"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// MaxRecordBytes bounds the trajectory record accepted by POST /api/runs.
const MaxRecordBytes = 64 << 20

// Labeler labels trajectory records and persists the runs.
type Labeler interface {
	Label(ctx context.Context, source string, record []byte) (*store.Run, *pipeline.Output, error)
	Relabel(ctx context.Context, runID string) (*store.Run, *pipeline.Output, error)
}

// RunHandler handles HTTP requests for run resources.
type RunHandler struct {
	store   *store.Store
	labeler Labeler
}

// NewRunHandler creates a RunHandler. labeler may be nil, in which case runs
// can be read and deleted but not created.
func NewRunHandler(s *store.Store, labeler Labeler) *RunHandler {
	return &RunHandler{store: s, labeler: labeler}
}

// ServeHTTP routes /api/runs, /api/runs/{id} and /api/runs/{id}/relabel.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/relabel"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.relabel(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type runSummary struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Status     string  `json:"status"`
	Method     string  `json:"method,omitempty"`
	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration"`
	CreatedAt  string  `json:"created_at"`
}

type resultResponse struct {
	action.Record
	Method string `json:"method"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type runResponse struct {
	runSummary
	Events    []action.Record `json:"events"`
	Result    *resultResponse `json:"result,omitempty"`
	Narrative string          `json:"narrative"`

	// Error explains a missing result.
	Error string `json:"error,omitempty"`
}

type listRunsResponse struct {
	Runs []runSummary `json:"runs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toSummary(r *store.Run) runSummary {
	return runSummary{
		ID:         r.ID,
		Source:     r.Source,
		Status:     string(r.Status),
		Method:     string(r.Method),
		FrameCount: r.FrameCount,
		Duration:   r.Duration,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
}

func toResponse(r *store.Run, events []action.Event, result *reconcile.Result) runResponse {
	resp := runResponse{
		runSummary: toSummary(r),
		Events:     action.Records(events),
		Narrative:  action.Narrative(events),
	}
	if result != nil {
		resp.Result = &resultResponse{
			Record: result.Action.ToRecord(),
			Method: string(result.Method),
			Status: string(result.Status),
			Reason: result.Reason,
		}
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/runs and returns all runs, newest first.
func (h *RunHandler) list(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.Runs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{Runs: make([]runSummary, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, toSummary(run))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/runs/{id} and returns the run with its events.
func (h *RunHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	events, err := h.store.Runs().Events(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run events")
		return
	}

	result, err := h.store.Runs().Result(id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to get run result")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(run, events, result))
}

// create handles POST /api/runs. The body is a trajectory record; the
// optional source query parameter names where it came from.
func (h *RunHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.labeler == nil {
		writeError(w, http.StatusServiceUnavailable, "Labeling is not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRecordBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Trajectory record too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	run, out, err := h.labeler.Label(r.Context(), r.URL.Query().Get("source"), body)
	h.respondLabeled(w, run, out, err, http.StatusCreated)
}

// relabel handles POST /api/runs/{id}/relabel and labels the stored
// trajectory again as a new run.
func (h *RunHandler) relabel(w http.ResponseWriter, r *http.Request, id string) {
	if h.labeler == nil {
		writeError(w, http.StatusServiceUnavailable, "Labeling is not configured")
		return
	}

	run, out, err := h.labeler.Relabel(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	h.respondLabeled(w, run, out, err, http.StatusCreated)
}

func (h *RunHandler) respondLabeled(w http.ResponseWriter, run *store.Run, out *pipeline.Output, err error, status int) {
	switch {
	case err == nil:
		writeJSON(w, status, toResponse(run, out.Events, out.Result))

	case errors.Is(err, reconcile.ErrVisionRequired) && run != nil:
		// The run was recorded; it just has no final action.
		resp := toResponse(run, out.Events, nil)
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)

	case errors.Is(err, trajectory.ErrInvalidRecord):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	default:
		monitoring.Logf("[api] labeling failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to label trajectory")
	}
}

// delete handles DELETE /api/runs/{id}.
func (h *RunHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Runs().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
