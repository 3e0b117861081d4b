package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/runs"
	"github.com/eugenenazirov/zetafill/internal/storage"
	"github.com/eugenenazirov/zetafill/internal/zeta"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	// DefaultMaxSteps caps the placements of one advance request.
	DefaultMaxSteps = 10_000
	maxBodyBytes    = 32 << 20
)

// Handler wires the run manager and snapshot storage into HTTP handlers.
type Handler struct {
	runs    *runs.Manager
	storage storage.Storage

	clock    func() time.Time
	maxSteps int
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxSteps caps how many disks one advance request may place.
func WithMaxSteps(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxSteps = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(manager *runs.Manager, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		runs:    manager,
		storage: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
		Runs:      h.runs.Len(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleZeta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s, err := strconv.ParseFloat(q.Get("s"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "s must be a number")
		return
	}

	resp := zetaResponse{
		S:         s,
		Riemann:   finite(zeta.Riemann(s)),
		Geometric: finite(zeta.Geometric(s)),
	}
	if raw := q.Get("a"); raw != "" {
		a, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(a > 0) {
			writeError(w, http.StatusBadRequest, "Invalid request", "a must be a positive number")
			return
		}
		resp.A = &a
		resp.Hurwitz = finite(zeta.Hurwitz(s, a))
	}
	resp.Convergent = resp.Riemann != nil
	writeJSON(w, http.StatusOK, resp)
}

// finite maps divergent evaluator results to JSON null.
func finite(v float64) *float64 {
	if zeta.Divergent(v) {
		return nil
	}
	return &v
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var params packing.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	info, err := h.runs.Create(params)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, listRunsResponse{Runs: h.runs.List()})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	info, err := h.runs.Get(r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.runs.Delete(r.PathValue("id")); err != nil {
		writeRunError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	req := advanceRequest{Steps: 1}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if req.Steps <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid request", "steps must be a positive integer")
		return
	}

	requested := req.Steps
	steps := min(requested, h.maxSteps)

	step, err := h.runs.Advance(r.Context(), r.PathValue("id"), steps)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{
		Step:      step,
		Requested: requested,
		Capped:    steps < requested,
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.runs.Start)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.runs.Pause)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.runs.Reset)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(id string) (runs.Info, error)) {
	info, err := fn(r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := h.runs.Export(r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	if snap.Disks == nil {
		snap.Disks = []geometry.Disk{}
	}
	writeJSON(w, http.StatusOK, exportResponse{ID: r.PathValue("id"), Params: snap.Params, Disks: snap.Disks})
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	info, err := h.runs.Replay(r.PathValue("id"), req.Disks)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.runs.Analyze(r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req saveSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	runID := r.PathValue("id")
	snap, err := h.runs.Export(runID)
	if err != nil {
		writeRunError(w, err)
		return
	}

	rec := storage.Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Name:      req.Name,
		CreatedAt: h.clock(),
		Snapshot:  snap,
	}
	if err := h.storage.Save(r.Context(), rec); err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarizeRecord(rec))
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	recs, err := h.storage.List(r.Context())
	if err != nil {
		writeRunError(w, err)
		return
	}
	out := make([]snapshotSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarizeRecord(rec))
	}
	writeJSON(w, http.StatusOK, listSnapshotsResponse{Snapshots: out})
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := h.storage.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeRunError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := h.storage.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	info, err := h.runs.Restore(rec.Snapshot.Params, rec.Snapshot.Disks)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func summarizeRecord(rec storage.Record) snapshotSummary {
	return snapshotSummary{
		ID:             rec.ID,
		RunID:          rec.RunID,
		Name:           rec.Name,
		CreatedAt:      rec.CreatedAt,
		Formula:        rec.Snapshot.Formula,
		Dimension:      rec.Snapshot.Container.Dimension,
		DiskCount:      rec.Snapshot.DiskCount,
		PercentCovered: rec.Snapshot.PercentCovered,
		State:          rec.Snapshot.State,
	}
}

// writeRunError maps domain errors to HTTP statuses.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runs.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, packing.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, "Invalid configuration", err.Error())
	case errors.Is(err, packing.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid state transition", err.Error())
	case errors.Is(err, packing.ErrReplayMismatch),
		errors.Is(err, packing.ErrOutOfBounds),
		errors.Is(err, packing.ErrOverlap):
		writeError(w, http.StatusUnprocessableEntity, "Replay rejected", err.Error(),
			"replay disks in export order with the parameters of the run that produced them")
	case errors.Is(err, runs.ErrTooManyRuns):
		writeError(w, http.StatusServiceUnavailable, "Run limit reached", err.Error(), "delete finished runs and retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type advanceRequest struct {
	Steps int `json:"steps"`
}

type replayRequest struct {
	Disks []geometry.Disk `json:"disks"`
}

type saveSnapshotRequest struct {
	Name string `json:"name"`
}

type advanceResponse struct {
	runs.Step
	Requested int  `json:"requested"`
	Capped    bool `json:"capped"`
}

type exportResponse struct {
	ID     string          `json:"id"`
	Params packing.Params  `json:"params"`
	Disks  []geometry.Disk `json:"disks"`
}

type listRunsResponse struct {
	Runs []runs.Info `json:"runs"`
}

type snapshotSummary struct {
	ID             string        `json:"id"`
	RunID          string        `json:"runId,omitempty"`
	Name           string        `json:"name,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	Formula        string        `json:"formula"`
	Dimension      int           `json:"dimension"`
	DiskCount      int           `json:"diskCount"`
	PercentCovered float64       `json:"percentCovered"`
	State          packing.State `json:"state"`
}

type listSnapshotsResponse struct {
	Snapshots []snapshotSummary `json:"snapshots"`
}

type zetaResponse struct {
	S          float64  `json:"s"`
	A          *float64 `json:"a,omitempty"`
	Riemann    *float64 `json:"riemann"`
	Hurwitz    *float64 `json:"hurwitz,omitempty"`
	Geometric  *float64 `json:"geometric"`
	Convergent bool     `json:"convergent"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Runs      int       `json:"runs"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
