// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/agentfleet/internal/validation"
)

// Handler holds the status API request handlers.
type Handler struct {
	source    StatusSource
	startTime time.Time
}

// NewHandler creates handlers over source.
func NewHandler(source StatusSource) *Handler {
	return &Handler{source: source, startTime: time.Now()}
}

// Health reports that the supervisor is serving. It does not inspect
// workers; a fleet with crashed workers is still a live supervisor.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Fleet returns the fleet summary.
func (h *Handler) Fleet(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, h.source.Status())
}

// Workers returns every desired worker, sorted by name.
func (h *Handler) Workers(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, h.source.Status().Workers)
}

// Worker returns one worker with its recent output.
func (h *Handler) Worker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := validation.GetValidator().Var(name, "required,max=128,workername"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid worker name")
		return
	}

	status, ok := h.source.Worker(name)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Worker "+name+" is not in the fleet")
		return
	}
	respondSuccess(w, r, status)
}
