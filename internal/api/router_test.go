// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/middleware"
	"github.com/tomtom215/agentfleet/internal/models"
)

type fakeSource struct {
	fleet models.FleetStatus
}

func (f *fakeSource) Status() models.FleetStatus { return f.fleet }

func (f *fakeSource) Worker(name string) (models.WorkerStatus, bool) {
	for _, w := range f.fleet.Workers {
		if w.Name == name {
			w.Output = []string{"listening on " + name}
			return w, true
		}
	}
	return models.WorkerStatus{}, false
}

func testSource() *fakeSource {
	return &fakeSource{fleet: models.FleetStatus{
		Desired: 2,
		Running: 1,
		Registry: models.RegistryStatus{
			URL:      "http://127.0.0.1:8000",
			Launched: true,
		},
		Workers: []models.WorkerStatus{
			{Name: "planner", Port: 7001, State: models.WorkerStateRunning, PID: 4242, Breaker: "closed"},
			{Name: "writer", Port: 7002, State: models.WorkerStateCrashed, Restarts: 3, Breaker: "open", LastExit: "exit status 1"},
		},
	}}
}

func newTestRouter(cfg config.StatusConfig) http.Handler {
	return NewRouter(testSource(), cfg).Handler()
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.10:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp models.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON from %s: %v", path, err)
		}
	}
	return rec, resp
}

func TestRouter_Health(t *testing.T) {
	rec, resp := get(t, newTestRouter(config.StatusConfig{}), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q", resp.Status)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected X-Request-ID on every response")
	}
}

func TestRouter_Fleet(t *testing.T) {
	rec, resp := get(t, newTestRouter(config.StatusConfig{}), "/api/v1/fleet")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if resp.Metadata.CorrelationID == "" {
		t.Error("expected correlation ID in metadata")
	}

	var body struct {
		Data models.FleetStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Desired != 2 || body.Data.Running != 1 || !body.Data.Registry.Launched {
		t.Errorf("fleet = %+v", body.Data)
	}
	if len(body.Data.Workers) != 2 || body.Data.Workers[1].Breaker != "open" {
		t.Errorf("workers = %+v", body.Data.Workers)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("status responses must not be cached")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on /api/v1")
	}
}

func TestRouter_Workers(t *testing.T) {
	rec, _ := get(t, newTestRouter(config.StatusConfig{}), "/api/v1/workers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data []models.WorkerStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 2 || body.Data[0].Name != "planner" {
		t.Errorf("workers = %+v", body.Data)
	}
	if body.Data[0].Output != nil {
		t.Error("list view should not carry worker output")
	}
}

func TestRouter_Worker(t *testing.T) {
	h := newTestRouter(config.StatusConfig{})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"known worker", "/api/v1/workers/planner", http.StatusOK, ""},
		{"unknown worker", "/api/v1/workers/ghost", http.StatusNotFound, "NOT_FOUND"},
		{"invalid name", "/api/v1/workers/-bad", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown route", "/api/v1/nothing", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := get(t, h, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr == "" {
				var body struct {
					Data models.WorkerStatus `json:"data"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body.Data.PID != 4242 || len(body.Data.Output) != 1 {
					t.Errorf("worker = %+v", body.Data)
				}
				return
			}
			if resp.Status != "error" || resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Errorf("error envelope = %+v", resp)
			}
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestRouter(config.StatusConfig{})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/workers/planner", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(config.StatusConfig{})
	get(t, h, "/api/v1/fleet")

	rec, _ := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "agentfleet_api_requests_total") {
		t.Error("expected API request counter in exposition")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	h := newTestRouter(config.StatusConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i := 0; i < 2; i++ {
		if rec, _ := get(t, h, "/api/v1/fleet"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, resp := get(t, h, "/api/v1/fleet")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "RATE_LIMITED" {
		t.Errorf("error envelope = %+v", resp)
	}

	if rec, _ := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health must not be rate limited, status = %d", rec.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(config.StatusConfig{CORSAllowedOrigins: []string{"https://dash.example"}})

	tests := []struct {
		origin string
		allow  string
	}{
		{"https://dash.example", "https://dash.example"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/fleet", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.allow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.allow)
			}
		})
	}
}
