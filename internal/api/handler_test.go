package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/runs"
	"github.com/eugenenazirov/zetafill/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t)
	manager := runs.NewManager(runs.WithLogger(logger))
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(manager, store, append([]HandlerOption{WithClock(clock.Now)}, opts...)...)
	router := NewRouter(handler, logger, WithLogging(false), WithRateLimit(0, 0))

	return router, clock
}

func doRequest(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func fixedAreaRun() map[string]any {
	return map[string]any{
		"dimension": 2,
		"sequence":  map[string]any{"family": "fixed", "area": 0.01},
		"boxSide":   2,
		"seed":      3,
	}
}

func createRun(t *testing.T, router http.Handler, payload any) runs.Info {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/runs", payload)
	expectStatus(t, rec, http.StatusCreated)
	return decodeBody[runs.Info](t, rec)
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Runs      int       `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
	if body.Runs != 0 {
		t.Fatalf("expected no runs, got %d", body.Runs)
	}
}

func TestZetaEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/zeta?s=2&a=1", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[zetaResponse](t, rec)
	if body.Riemann == nil || math.Abs(*body.Riemann-math.Pi*math.Pi/6) > 1e-6 {
		t.Fatalf("expected zeta(2) = pi^2/6, got %v", body.Riemann)
	}
	if body.Hurwitz == nil || math.Abs(*body.Hurwitz-*body.Riemann) > 1e-4 {
		t.Fatalf("expected hurwitz(2, 1) close to zeta(2), got %v", body.Hurwitz)
	}
	if body.Geometric == nil || *body.Geometric != 2 {
		t.Fatalf("expected geometric sum 2, got %v", body.Geometric)
	}
	if !body.Convergent {
		t.Fatalf("expected s=2 to converge")
	}

	rec = doRequest(t, router, http.MethodGet, "/api/zeta?s=1", nil)
	expectStatus(t, rec, http.StatusOK)
	body = decodeBody[zetaResponse](t, rec)
	if body.Riemann != nil || body.Geometric != nil || body.Convergent {
		t.Fatalf("expected divergent series at s=1, got %+v", body)
	}

	for _, path := range []string{"/api/zeta", "/api/zeta?s=abc", "/api/zeta?s=2&a=-1"} {
		rec = doRequest(t, router, http.MethodGet, path, nil)
		expectStatus(t, rec, http.StatusBadRequest)
	}
}

func TestCreateAndAdvanceRun(t *testing.T) {
	router, _ := setupTestRouter(t)

	info := createRun(t, router, fixedAreaRun())
	if info.ID == "" || info.State != packing.Idle {
		t.Fatalf("expected an idle run with an id, got %+v", info)
	}
	if info.Formula != "0.01" || info.Container.Side != 2 {
		t.Fatalf("unexpected run %+v", info)
	}

	rec := doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", map[string]int{"steps": 5})
	expectStatus(t, rec, http.StatusOK)
	step := decodeBody[advanceResponse](t, rec)
	if step.Placed != 5 || step.Run.DiskCount != 5 || step.Capped {
		t.Fatalf("expected 5 placements, got %+v", step)
	}
	if step.Outcome.Kind != packing.Placed || step.Outcome.Disk == nil {
		t.Fatalf("expected a placed outcome with a disk, got %+v", step.Outcome)
	}

	// an empty body advances one step
	rec = doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[advanceResponse](t, rec); got.Run.DiskCount != 6 {
		t.Fatalf("expected 6 disks, got %d", got.Run.DiskCount)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", map[string]int{"steps": 0})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, router, http.MethodGet, "/api/runs", nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decodeBody[listRunsResponse](t, rec); len(list.Runs) != 1 || list.Runs[0].ID != info.ID {
		t.Fatalf("expected the created run in the list, got %+v", list)
	}
}

func TestAdvanceIsCapped(t *testing.T) {
	router, _ := setupTestRouter(t, WithMaxSteps(3))

	info := createRun(t, router, fixedAreaRun())
	rec := doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", map[string]int{"steps": 50})
	expectStatus(t, rec, http.StatusOK)
	step := decodeBody[advanceResponse](t, rec)
	if step.Placed != 3 || !step.Capped || step.Requested != 50 {
		t.Fatalf("expected the request to be capped at 3, got %+v", step)
	}
}

func TestAdvanceReportsJam(t *testing.T) {
	router, _ := setupTestRouter(t)

	info := createRun(t, router, map[string]any{
		"sequence": map[string]any{"family": "fixed", "area": 10},
		"boxSide":  2,
	})
	rec := doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", map[string]int{"steps": 10})
	expectStatus(t, rec, http.StatusOK)
	step := decodeBody[advanceResponse](t, rec)
	if step.Outcome.Kind != packing.KindJammed || step.Placed != 0 || step.Run.State != packing.Jammed {
		t.Fatalf("expected a jam, got %+v", step)
	}
	if step.Outcome.Disk != nil {
		t.Fatalf("expected no disk on a jam")
	}
}

func TestCreateRunRejectsInvalidInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/runs", map[string]any{
		"dimension": 3,
		"sequence":  map[string]any{"family": "power", "s": 2},
	})
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decodeBody[errorResponse](t, rec); body.Error != "Invalid configuration" {
		t.Fatalf("expected configuration error, got %+v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestUnknownRunReturnsNotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/runs/missing"},
		{http.MethodDelete, "/api/runs/missing"},
		{http.MethodPost, "/api/runs/missing/advance"},
		{http.MethodPost, "/api/runs/missing/start"},
		{http.MethodGet, "/api/runs/missing/disks"},
		{http.MethodGet, "/api/runs/missing/analysis"},
		{http.MethodPost, "/api/runs/missing/snapshots"},
		{http.MethodGet, "/api/snapshots/missing"},
		{http.MethodDelete, "/api/snapshots/missing"},
		{http.MethodPost, "/api/snapshots/missing/restore"},
	}
	for _, tt := range tests {
		rec := doRequest(t, router, tt.method, tt.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tt.method, tt.path, rec.Code)
		}
	}
}

func TestRunStateTransitions(t *testing.T) {
	router, _ := setupTestRouter(t)
	info := createRun(t, router, fixedAreaRun())
	base := "/api/runs/" + info.ID

	rec := doRequest(t, router, http.MethodPost, base+"/pause", nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, router, http.MethodPost, base+"/start", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[runs.Info](t, rec); got.State != packing.Running {
		t.Fatalf("expected running, got %s", got.State)
	}

	rec = doRequest(t, router, http.MethodPost, base+"/start", nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, router, http.MethodPost, base+"/pause", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[runs.Info](t, rec); got.State != packing.Paused {
		t.Fatalf("expected paused, got %s", got.State)
	}

	doRequest(t, router, http.MethodPost, base+"/advance", map[string]int{"steps": 4})
	rec = doRequest(t, router, http.MethodPost, base+"/reset", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[runs.Info](t, rec); got.State != packing.Idle || got.DiskCount != 0 {
		t.Fatalf("expected an empty idle run, got %+v", got)
	}

	rec = doRequest(t, router, http.MethodDelete, base, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = doRequest(t, router, http.MethodGet, base, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestExportAndReplay(t *testing.T) {
	router, _ := setupTestRouter(t)
	info := createRun(t, router, fixedAreaRun())
	base := "/api/runs/" + info.ID

	doRequest(t, router, http.MethodPost, base+"/advance", map[string]int{"steps": 12})

	rec := doRequest(t, router, http.MethodGet, base+"/disks", nil)
	expectStatus(t, rec, http.StatusOK)
	export := decodeBody[exportResponse](t, rec)
	if len(export.Disks) != 12 || export.Params.Sequence.Area != 0.01 {
		t.Fatalf("expected 12 exported disks with params, got %+v", export)
	}

	before := decodeBody[runs.Info](t, doRequest(t, router, http.MethodGet, base, nil))

	doRequest(t, router, http.MethodPost, base+"/reset", nil)
	rec = doRequest(t, router, http.MethodPost, base+"/replay", replayRequest{Disks: export.Disks})
	expectStatus(t, rec, http.StatusOK)
	after := decodeBody[runs.Info](t, rec)
	if after.DiskCount != 12 || after.CoveredArea != before.CoveredArea {
		t.Fatalf("expected replay to reproduce %v, got %+v", before.CoveredArea, after)
	}
	if after.State != packing.Paused {
		t.Fatalf("expected replayed run to be paused, got %s", after.State)
	}

	bad := replayRequest{Disks: []geometry.Disk{export.Disks[0], export.Disks[0]}}
	rec = doRequest(t, router, http.MethodPost, base+"/replay", bad)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decodeBody[errorResponse](t, rec); body.Suggestion == "" {
		t.Fatalf("expected a suggestion for a rejected replay")
	}
}

func TestAnalysisEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	info := createRun(t, router, fixedAreaRun())
	doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", map[string]int{"steps": 3})

	rec := doRequest(t, router, http.MethodGet, "/api/runs/"+info.ID+"/analysis", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[runs.Analysis](t, rec)
	if body.Gasket == nil || body.Buffers != nil {
		t.Fatalf("expected gasket statistics for a 2-D run, got %+v", body)
	}
	if math.Abs(body.Gasket.Area-(4-0.03)) > 1e-12 {
		t.Fatalf("expected gasket area 3.97, got %v", body.Gasket.Area)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	router, clock := setupTestRouter(t)
	info := createRun(t, router, fixedAreaRun())
	doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/advance", map[string]int{"steps": 8})

	clock.Advance(time.Minute)
	rec := doRequest(t, router, http.MethodPost, "/api/runs/"+info.ID+"/snapshots", map[string]string{"name": "eight"})
	expectStatus(t, rec, http.StatusCreated)
	saved := decodeBody[snapshotSummary](t, rec)
	if saved.ID == "" || saved.RunID != info.ID || saved.Name != "eight" || saved.DiskCount != 8 {
		t.Fatalf("unexpected snapshot summary %+v", saved)
	}
	if !saved.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("expected createdAt %s, got %s", clock.Now(), saved.CreatedAt)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/snapshots", nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decodeBody[listSnapshotsResponse](t, rec); len(list.Snapshots) != 1 || list.Snapshots[0].ID != saved.ID {
		t.Fatalf("expected one snapshot, got %+v", list)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/snapshots/"+saved.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	if full := decodeBody[storage.Record](t, rec); len(full.Snapshot.Disks) != 8 {
		t.Fatalf("expected 8 stored disks, got %d", len(full.Snapshot.Disks))
	}

	rec = doRequest(t, router, http.MethodPost, "/api/snapshots/"+saved.ID+"/restore", nil)
	expectStatus(t, rec, http.StatusCreated)
	restored := decodeBody[runs.Info](t, rec)
	if restored.ID == info.ID || restored.DiskCount != 8 {
		t.Fatalf("expected a new run with 8 disks, got %+v", restored)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/snapshots/"+saved.ID, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = doRequest(t, router, http.MethodGet, "/api/snapshots/"+saved.ID, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCorsPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}
