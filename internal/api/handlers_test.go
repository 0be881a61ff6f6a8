package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
	"github.com/LeventeLantos/reminder-sms/internal/scheduler"
	"github.com/LeventeLantos/reminder-sms/internal/service"
)

type fakeHistory struct {
	gotLimit  int
	gotOffset int

	items []model.SMSHistory
	err   error
}

var _ repo.HistoryReader = (*fakeHistory)(nil)

func (f *fakeHistory) ListHistory(ctx context.Context, limit, offset int) ([]model.SMSHistory, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.items, f.err
}

type fakeJob struct {
	calls  int
	sum    service.AggregationSummary
	err    error
	ctxErr error
}

func (f *fakeJob) Run(ctx context.Context) (service.AggregationSummary, error) {
	f.calls++
	f.ctxErr = ctx.Err()
	return f.sum, f.err
}

func newTestServer(t *testing.T, job AggregationRunner, h repo.HistoryReader) ([]*scheduler.Scheduler, http.Handler) {
	t.Helper()

	dispatch, err := scheduler.New("dispatch", time.Hour, func(context.Context) {})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	daily, err := scheduler.NewDaily("aggregation", 8, func(context.Context) {})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	scheds := []*scheduler.Scheduler{dispatch, daily}
	t.Cleanup(func() {
		for _, s := range scheds {
			s.Stop()
		}
	})

	if job == nil {
		job = &fakeJob{}
	}
	if h == nil {
		h = &fakeHistory{}
	}
	return scheds, Router(NewHandler(job, h, scheds...))
}

func do(t *testing.T, mux http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func TestHealth(t *testing.T) {
	_, mux := newTestServer(t, nil, nil)

	rr := do(t, mux, http.MethodGet, "/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	body := decodeJSON(t, rr)
	if v, ok := body["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %v", body)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	scheds, mux := newTestServer(t, nil, nil)

	rr := do(t, mux, http.MethodGet, "/v1/scheduler/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if running, ok := body["running"].(bool); !ok || running {
		t.Fatalf("expected running=false, got %v", body)
	}
	if items, ok := body["schedulers"].([]any); !ok || len(items) != 2 {
		t.Fatalf("expected two schedulers, got %v", body["schedulers"])
	}

	rr = do(t, mux, http.MethodPost, "/v1/scheduler/start")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body = decodeJSON(t, rr)
	if running, ok := body["running"].(bool); !ok || !running {
		t.Fatalf("expected running=true after start, got %v", body)
	}

	rr = do(t, mux, http.MethodPost, "/v1/scheduler/stop?name=dispatch")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if scheds[0].IsRunning() || !scheds[1].IsRunning() {
		t.Fatalf("expected only dispatch scheduler stopped")
	}
	body = decodeJSON(t, rr)
	if running, ok := body["running"].(bool); !ok || running {
		t.Fatalf("expected running=false with one scheduler stopped, got %v", body)
	}

	rr = do(t, mux, http.MethodPost, "/v1/scheduler/stop")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if scheds[0].IsRunning() || scheds[1].IsRunning() {
		t.Fatalf("expected all schedulers stopped")
	}
}

func TestSchedulerStart_UnknownName(t *testing.T) {
	scheds, mux := newTestServer(t, nil, nil)

	rr := do(t, mux, http.MethodPost, "/v1/scheduler/start?name=nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%q", rr.Code, rr.Body.String())
	}
	for _, s := range scheds {
		if s.IsRunning() {
			t.Fatalf("expected %s not started", s.Name())
		}
	}
}

func TestRunAggregation(t *testing.T) {
	id := uuid.New()
	job := &fakeJob{sum: service.AggregationSummary{Practices: 2, Patients: 3, StatusUpdates: 4, Events: []uuid.UUID{id}}}
	_, mux := newTestServer(t, job, nil)

	rr := do(t, mux, http.MethodPost, "/v1/jobs/aggregation")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if job.calls != 1 {
		t.Fatalf("expected job to run once, got %d", job.calls)
	}

	var got service.AggregationSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if got.Practices != 2 || got.Patients != 3 || got.StatusUpdates != 4 || len(got.Events) != 1 || got.Events[0] != id {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestRunAggregation_IgnoresClientDisconnect(t *testing.T) {
	job := &fakeJob{}
	_, mux := newTestServer(t, job, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/aggregation", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if job.calls != 1 {
		t.Fatalf("expected job to run once, got %d", job.calls)
	}
	if job.ctxErr != nil {
		t.Fatalf("expected job context to survive client disconnect, got %v", job.ctxErr)
	}
}

func TestRunAggregation_LockHeldReturns409(t *testing.T) {
	_, mux := newTestServer(t, &fakeJob{sum: service.AggregationSummary{LockHeld: true}}, nil)

	rr := do(t, mux, http.MethodPost, "/v1/jobs/aggregation")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestRunAggregation_ErrorReturns500(t *testing.T) {
	_, mux := newTestServer(t, &fakeJob{err: errors.New("db down")}, nil)

	rr := do(t, mux, http.MethodPost, "/v1/jobs/aggregation")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("expected error body to contain job error, got %q", rr.Body.String())
	}
}

func TestListHistory_DefaultsAndArgs(t *testing.T) {
	fh := &fakeHistory{
		items: []model.SMSHistory{
			{ID: uuid.New(), ClientID: "c1", PracticeID: "p1", Status: model.HistorySent},
		},
	}
	_, mux := newTestServer(t, nil, fh)

	rr := do(t, mux, http.MethodGet, "/v1/sms/history")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fh.gotLimit != 50 || fh.gotOffset != 0 {
		t.Fatalf("expected repo called with limit=50 offset=0, got limit=%d offset=%d", fh.gotLimit, fh.gotOffset)
	}

	body := decodeJSON(t, rr)
	items, ok := body["items"].([]any)
	if !ok {
		t.Fatalf("expected items array, got %T %v", body["items"], body)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if item, _ := items[0].(map[string]any); item["status"] != "SENT" {
		t.Fatalf("expected SENT status in item, got %v", items[0])
	}
}

func TestListHistory_ParsesLimitOffset(t *testing.T) {
	fh := &fakeHistory{}
	_, mux := newTestServer(t, nil, fh)

	rr := do(t, mux, http.MethodGet, "/v1/sms/history?limit=10&offset=5")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fh.gotLimit != 10 || fh.gotOffset != 5 {
		t.Fatalf("expected repo called with limit=10 offset=5, got limit=%d offset=%d", fh.gotLimit, fh.gotOffset)
	}
}

func TestListHistory_InvalidLimitOffsetFallsBackToDefaults(t *testing.T) {
	fh := &fakeHistory{}
	_, mux := newTestServer(t, nil, fh)

	rr := do(t, mux, http.MethodGet, "/v1/sms/history?limit=abc&offset=-3")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fh.gotLimit != 50 || fh.gotOffset != 0 {
		t.Fatalf("expected defaults limit=50 offset=0, got limit=%d offset=%d", fh.gotLimit, fh.gotOffset)
	}
}

func TestListHistory_RepoErrorReturns500(t *testing.T) {
	_, mux := newTestServer(t, nil, &fakeHistory{err: errors.New("db down")})

	rr := do(t, mux, http.MethodGet, "/v1/sms/history")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("expected error body to contain repo error, got %q", rr.Body.String())
	}
}

func TestRouterRoot(t *testing.T) {
	_, mux := newTestServer(t, nil, nil)

	rr := do(t, mux, http.MethodGet, "/")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "reminder-sms" {
		t.Fatalf("expected body %q, got %q", "reminder-sms", got)
	}

	if rr := do(t, mux, http.MethodGet, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rr.Code)
	}
}
