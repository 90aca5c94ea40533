package app_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voxrecap/internal/app"
	"github.com/MrWong99/voxrecap/internal/health"
	"github.com/MrWong99/voxrecap/internal/observe"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestApp_Handler(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	ready := false
	a := app.New(f.sm,
		app.WithMetrics(testMetrics(t)),
		app.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "voxrecap_capture_bytes_total 0\n")
		})),
		app.WithCheckers(health.Flag("discord", "not connected", func() bool { return ready })),
	)
	h := a.Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "healthz", path: "/healthz", wantStatus: http.StatusOK, wantBody: `"ok"`},
		{name: "readyz not ready", path: "/readyz", wantStatus: http.StatusServiceUnavailable, wantBody: "not connected"},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "voxrecap_capture_bytes_total"},
		{name: "unknown", path: "/nope", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantStatus)
		}
		if !strings.Contains(rec.Body.String(), tt.wantBody) {
			t.Errorf("%s: body = %q, want substring %q", tt.name, rec.Body.String(), tt.wantBody)
		}
	}

	ready = true
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz after ready: status = %d", rec.Code)
	}
}

func TestApp_RunServesAndShutsDown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	closed := 0
	a := app.New(f.sm,
		app.WithListenAddr("127.0.0.1:0"),
		app.WithMetrics(testMetrics(t)),
		app.WithCloser(func() error { closed++; return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(time.Millisecond)
	}

	resp, err := http.Get("http://" + a.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if _, err := f.sm.Start(context.Background(), startReq); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run: %v", err)
	}

	sctx, scancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer scancel()
	if err := a.Shutdown(sctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(sctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
	if closed != 1 {
		t.Errorf("closers run %d times, want 1", closed)
	}
	if f.sm.IsActive(startReq.RoomID) {
		t.Error("session survived shutdown")
	}
}

func TestApp_ShutdownCollectsCloserErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	boom := errors.New("boom")
	a := app.New(f.sm, app.WithCloser(func() error { return boom }))

	err := a.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Shutdown err = %v, want boom", err)
	}
}

func TestApp_RunWithoutListenAddr(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	a := app.New(f.sm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Errorf("Run: %v", err)
	}
	if a.Addr() != nil {
		t.Error("Addr set without a listen address")
	}
}
