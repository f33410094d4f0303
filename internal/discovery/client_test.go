// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package discovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/agentfleet/internal/fleet"
)

// endpointFor points an Endpoint at an httptest server.
func endpointFor(t *testing.T, srv *httptest.Server) Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return Endpoint{Host: host, Port: port, HealthPath: "/health", RegisterPath: "/registry/register"}
}

func TestCardFor(t *testing.T) {
	tests := []struct {
		name string
		spec fleet.WorkerSpec
		want AgentCard
	}{
		{
			name: "defaults",
			spec: fleet.WorkerSpec{Name: "summarizer", Port: 7001, Description: "Summarizes text"},
			want: AgentCard{
				Name:         "summarizer",
				URL:          "http://localhost:7001",
				Version:      DefaultCardVersion,
				Description:  "Summarizes text",
				Capabilities: []string{},
			},
		},
		{
			name: "declared version and tags",
			spec: fleet.WorkerSpec{Name: "sql", Port: 7002, Version: "2.1.0", Tags: []string{"sql", "text2sql"}},
			want: AgentCard{
				Name:         "sql",
				URL:          "http://localhost:7002",
				Version:      "2.1.0",
				Capabilities: []string{"sql", "text2sql"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CardFor(tt.spec, "localhost")
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("CardFor() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestEndpointURLs(t *testing.T) {
	e := Endpoint{Host: "localhost", Port: 8000, HealthPath: "/health", RegisterPath: "/registry/register"}
	if got := e.HealthURL(); got != "http://localhost:8000/health" {
		t.Errorf("HealthURL() = %s", got)
	}
	if got := e.RegisterURL(); got != "http://localhost:8000/registry/register" {
		t.Errorf("RegisterURL() = %s", got)
	}
}

func TestClientRegister(t *testing.T) {
	var received AgentCard
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/registry/register" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(endpointFor(t, srv), time.Second)
	card := CardFor(fleet.WorkerSpec{Name: "translator", Port: 7003, Tags: []string{"i18n"}}, "10.0.0.5")

	if err := client.Register(context.Background(), card); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if received.Name != "translator" || received.URL != "http://10.0.0.5:7003" {
		t.Errorf("registry received %+v", received)
	}
	if len(received.Capabilities) != 1 || received.Capabilities[0] != "i18n" {
		t.Errorf("capabilities = %v", received.Capabilities)
	}
}

func TestClientRegister_Failures(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rejecting.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downEndpoint := endpointFor(t, down)
	down.Close()

	tests := []struct {
		name     string
		endpoint Endpoint
	}{
		{"non-2xx", endpointFor(t, rejecting)},
		{"unreachable", downEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewClient(tt.endpoint, time.Second).Register(context.Background(), AgentCard{Name: "w"})
			if !errors.Is(err, ErrRegistrationFailed) {
				t.Errorf("expected ErrRegistrationFailed, got %v", err)
			}
		})
	}
}
