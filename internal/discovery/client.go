// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/fleet"
)

// ErrRegistrationFailed is returned when the registry rejects or never
// receives an agent card.
var ErrRegistrationFailed = errors.New("registration failed")

// DefaultCardVersion is advertised for workers that do not declare a version.
const DefaultCardVersion = "1.0.0"

// Endpoint locates the discovery registry.
type Endpoint struct {
	Host         string
	Port         int
	HealthPath   string
	RegisterPath string
}

// EndpointFromConfig builds the endpoint from registry configuration.
func EndpointFromConfig(cfg config.RegistryConfig) Endpoint {
	return Endpoint{
		Host:         cfg.Host,
		Port:         cfg.Port,
		HealthPath:   cfg.HealthPath,
		RegisterPath: cfg.RegisterPath,
	}
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// BaseURL returns http://host:port.
func (e Endpoint) BaseURL() string {
	return "http://" + e.Address()
}

// HealthURL returns the health check URL.
func (e Endpoint) HealthURL() string {
	return e.BaseURL() + e.HealthPath
}

// RegisterURL returns the registration URL.
func (e Endpoint) RegisterURL() string {
	return e.BaseURL() + e.RegisterPath
}

// AgentCard is the self-description a worker advertises to the registry.
type AgentCard struct {
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// CardFor builds the agent card for a worker reachable on advertiseHost.
func CardFor(spec fleet.WorkerSpec, advertiseHost string) AgentCard {
	version := spec.Version
	if version == "" {
		version = DefaultCardVersion
	}
	caps := spec.Tags
	if caps == nil {
		caps = []string{}
	}
	return AgentCard{
		Name:         spec.Name,
		URL:          "http://" + net.JoinHostPort(advertiseHost, strconv.Itoa(spec.Port)),
		Version:      version,
		Description:  spec.Description,
		Capabilities: append([]string(nil), caps...),
	}
}

// Client sends agent cards to the registry. It is safe for concurrent use.
type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
}

// NewClient creates a registry client whose requests are bounded by timeout.
func NewClient(endpoint Endpoint, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Register posts card to the registry. Any 2xx response is an acknowledgement.
// Registering the same card again is harmless.
func (c *Client) Register(ctx context.Context, card AgentCard) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("%w: marshal card: %w", ErrRegistrationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.RegisterURL(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrRegistrationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRegistrationFailed, card.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: registry returned %s", ErrRegistrationFailed, card.Name, resp.Status)
	}
	return nil
}
