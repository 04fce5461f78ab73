package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/kalshi-trader/internal/model"
	"github.com/rickgao/kalshi-trader/internal/store"
	"github.com/rickgao/kalshi-trader/internal/submit"
)

type fakeTrader struct {
	prepareRes   *PrepareResult
	prepareErr   error
	executeRes   *submit.CycleResult
	executeErr   error
	reconcileRes *ReconcileResult
	reconcileErr error
	pauseErr     error
	paused       []bool
	calls        []string
}

func (f *fakeTrader) Prepare(context.Context) (*PrepareResult, error) {
	f.calls = append(f.calls, "prepare")
	return f.prepareRes, f.prepareErr
}

func (f *fakeTrader) Execute(context.Context) (*submit.CycleResult, error) {
	f.calls = append(f.calls, "execute")
	return f.executeRes, f.executeErr
}

func (f *fakeTrader) Reconcile(context.Context) (*ReconcileResult, error) {
	f.calls = append(f.calls, "reconcile")
	return f.reconcileRes, f.reconcileErr
}

func (f *fakeTrader) SetPaused(_ context.Context, paused bool) error {
	f.calls = append(f.calls, "pause")
	f.paused = append(f.paused, paused)
	return f.pauseErr
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

const testToken = "shared-secret"

func testServer(trader *fakeTrader, db Pinger) *httptest.Server {
	s := New(0, testToken, trader, db, slog.New(slog.DiscardHandler))
	return httptest.NewServer(s.Handler())
}

func doPost(t *testing.T, url, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, body
}

func TestServer_RejectsMissingAndWrongToken(t *testing.T) {
	trader := &fakeTrader{}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	for _, token := range []string{"", "wrong-secret"} {
		resp, body := doPost(t, srv.URL+"/v1/batches/prepare", token)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status %d, want 401", token, resp.StatusCode)
		}
		if body["status"] != "error" {
			t.Errorf("token %q: status field %v, want error", token, body["status"])
		}
	}
	if len(trader.calls) != 0 {
		t.Errorf("unauthorized requests reached the trader: %v", trader.calls)
	}
}

func TestServer_Prepare(t *testing.T) {
	trader := &fakeTrader{prepareRes: &PrepareResult{
		BatchDate:      "2026-08-28",
		BatchID:        3,
		Orders:         5,
		TotalCostCents: 4_500,
	}}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	resp, body := doPost(t, srv.URL+"/v1/batches/prepare", testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field %v, want ok", body["status"])
	}
	prepare := body["prepare"].(map[string]any)
	if prepare["orders"] != float64(5) {
		t.Errorf("orders = %v, want 5", prepare["orders"])
	}
}

func TestServer_PrepareConflictWhenBatchExists(t *testing.T) {
	trader := &fakeTrader{prepareErr: store.ErrBatchExists}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	resp, body := doPost(t, srv.URL+"/v1/batches/prepare", testToken)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Errorf("status field %v, want error", body["status"])
	}
}

func TestServer_ExecuteReportsPerOrderResults(t *testing.T) {
	trader := &fakeTrader{executeRes: &submit.CycleResult{
		BatchID:   3,
		Confirmed: 2,
		Failed:    1,
		Orders: []submit.OrderResult{
			{Ticker: "A", Placement: model.PlacementConfirmed},
			{Ticker: "B", Placement: model.PlacementConfirmed},
			{Ticker: "C", Placement: model.PlacementFailed, Reason: "connection reset"},
		},
	}}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	resp, body := doPost(t, srv.URL+"/v1/batches/execute", testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	execute := body["execute"].(map[string]any)
	orders := execute["orders"].([]any)
	if len(orders) != 3 {
		t.Fatalf("got %d order results, want 3", len(orders))
	}
	failed := orders[2].(map[string]any)
	if failed["reason"] != "connection reset" {
		t.Errorf("failed order reason = %v", failed["reason"])
	}
}

func TestServer_ExecuteStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"paused", ErrBatchPaused, http.StatusConflict},
		{"no batch", store.ErrBatchNotFound, http.StatusNotFound},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trader := &fakeTrader{executeErr: tt.err}
			srv := testServer(trader, fakePinger{})
			defer srv.Close()

			resp, _ := doPost(t, srv.URL+"/v1/batches/execute", testToken)
			if resp.StatusCode != tt.want {
				t.Errorf("status %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestServer_Reconcile(t *testing.T) {
	trader := &fakeTrader{reconcileRes: &ReconcileResult{Recovered: 1, Corrected: 2}}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	resp, body := doPost(t, srv.URL+"/v1/reconcile", testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	reconcile := body["reconcile"].(map[string]any)
	if reconcile["recovered"] != float64(1) || reconcile["corrected"] != float64(2) {
		t.Errorf("unexpected body: %v", reconcile)
	}
}

func TestServer_PauseAndResume(t *testing.T) {
	trader := &fakeTrader{}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	resp, body := doPost(t, srv.URL+"/v1/batches/pause", testToken)
	if resp.StatusCode != http.StatusOK || body["paused"] != true {
		t.Errorf("pause: status %d body %v", resp.StatusCode, body)
	}
	resp, body = doPost(t, srv.URL+"/v1/batches/resume", testToken)
	if resp.StatusCode != http.StatusOK || body["paused"] != false {
		t.Errorf("resume: status %d body %v", resp.StatusCode, body)
	}
	if len(trader.paused) != 2 || !trader.paused[0] || trader.paused[1] {
		t.Errorf("pause sequence = %v, want [true false]", trader.paused)
	}
}

func TestServer_PauseWithoutBatch(t *testing.T) {
	trader := &fakeTrader{pauseErr: store.ErrBatchNotFound}
	srv := testServer(trader, fakePinger{})
	defer srv.Close()

	resp, _ := doPost(t, srv.URL+"/v1/batches/pause", testToken)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}

func TestServer_HealthNeedsNoToken(t *testing.T) {
	srv := testServer(&fakeTrader{}, fakePinger{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d, want 200", resp.StatusCode)
	}
}

func TestServer_HealthUnhealthyOnDatabaseError(t *testing.T) {
	srv := testServer(&fakeTrader{}, fakePinger{err: errors.New("connection refused")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", resp.StatusCode)
	}
}
