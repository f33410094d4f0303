// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/models"
)

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	resp := models.NewSuccessResponse(data)
	resp.Metadata.CorrelationID = logging.CorrelationIDFromContext(r.Context())
	respondJSON(w, http.StatusOK, resp)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, models.NewErrorResponse(code, message))
}
