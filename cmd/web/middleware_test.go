package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/camziny/z-fit-2.0/internal/flightrecorder"
	"github.com/camziny/z-fit-2.0/internal/metrics"
	"github.com/camziny/z-fit-2.0/internal/testhelpers"
	"github.com/camziny/z-fit-2.0/internal/workout"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()
	manager, _ := metrics.NewTestManagerAndRegistry()
	return &application{ //nolint:exhaustruct // this is a test
		logger:  testhelpers.NewLogger(testhelpers.NewWriter(t)),
		metrics: manager,
	}
}

func Test_application_timeout(t *testing.T) {
	tests := []struct {
		name     string
		sleepMS  int
		timesOut bool
	}{
		{
			name:     "completes within timeout",
			sleepMS:  500,
			timesOut: false,
		},
		{
			name:     "times out",
			sleepMS:  3000,
			timesOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				handler := newTestApplication(t).routes()

				url := fmt.Sprintf("/api/test/timeout?sleep_ms=%d", tt.sleepMS)
				req := httptest.NewRequest(http.MethodGet, url, nil)
				w := httptest.NewRecorder()

				handler.ServeHTTP(w, req)

				time.Sleep(time.Duration(tt.sleepMS) * time.Millisecond)

				if tt.timesOut {
					if w.Code != http.StatusServiceUnavailable {
						t.Errorf("Expected status 503 on timeout, got %d", w.Code)
					}
					if !strings.Contains(w.Body.String(), "timed out") {
						t.Errorf("Expected timeout message in response body, got: %s", w.Body.String())
					}
				} else if w.Code != http.StatusOK {
					t.Errorf("Expected status 200, got %d", w.Code)
				}
			})
		})
	}
}

func Test_application_timeoutCapturesTrace(t *testing.T) {
	app := newTestApplication(t)
	dir := t.TempDir()
	recorder, err := flightrecorder.New(app.logger, flightrecorder.Config{Dir: dir, Window: 0, MaxBytes: 0, Cooldown: 0})
	if err != nil {
		t.Fatalf("new flight recorder: %v", err)
	}
	if err = recorder.Start(t.Context()); err != nil {
		t.Fatalf("start flight recorder: %v", err)
	}
	defer recorder.Stop(t.Context())
	app.flightRecorder = recorder

	handler := app.timeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read traces dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "timeout-") {
		t.Errorf("trace files = %v, want one timeout trace", entries)
	}
}

func Test_application_recoverPanic(t *testing.T) {
	app := newTestApplication(t)
	handler := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := testutil.ToFloat64(app.metrics.CounterHandleRequestPanic); got != 1 {
		t.Errorf("panic counter = %v, want 1", got)
	}
}

func Test_application_requestMetrics(t *testing.T) {
	app := newTestApplication(t)
	handler := app.requestMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	if got := testutil.ToFloat64(app.metrics.CounterRequests.WithLabelValues(http.MethodPost, "418")); got != 2 {
		t.Errorf("request counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(app.metrics.GaugeRequests); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}

func Test_application_handleError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("get session: %w", workout.ErrNotFound), want: http.StatusNotFound},
		{err: fmt.Errorf("complete: %w", workout.ErrInvalidState), want: http.StatusConflict},
		{err: fmt.Errorf("update: %w", workout.ErrConflict), want: http.StatusConflict},
		{err: fmt.Errorf("rir 9: %w", workout.ErrValidation), want: http.StatusUnprocessableEntity},
		{err: errors.New("database is locked"), want: http.StatusInternalServerError},
	}
	app := newTestApplication(t)
	for _, tt := range tests {
		w := httptest.NewRecorder()
		app.handleError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		if w.Code != tt.want {
			t.Errorf("handleError(%v) status = %d, want %d", tt.err, w.Code, tt.want)
		}
		if got := w.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("handleError(%v) content type = %q, want application/json", tt.err, got)
		}
	}
}
