// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()
	response.Metadata.CorrelationID = logging.CorrelationIDFromContext(r.Context())

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

func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, &models.APIResponse{Status: "success", Data: data})
}

// respondError writes an error response. err is logged, never returned to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}
	respondJSON(w, r, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
	})
}

// statusForKind maps failure kinds to HTTP status codes.
func statusForKind(kind result.Kind) int {
	switch kind {
	case result.KindData:
		return http.StatusBadRequest
	case result.KindResolution:
		return http.StatusNotFound
	case result.KindState:
		return http.StatusConflict
	case result.KindIntegrity:
		return http.StatusUnprocessableEntity
	case result.KindTransport:
		return http.StatusBadGateway
	case result.KindTimeout:
		return http.StatusGatewayTimeout
	case result.KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// respondResult writes an operation result. Failures carry the result
// message and kind; successes carry data.
func respondResult(w http.ResponseWriter, r *http.Request, res result.Result, data interface{}) {
	if res.Success {
		respondSuccess(w, r, http.StatusOK, data)
		return
	}
	respondJSON(w, r, statusForKind(res.Kind), &models.APIResponse{
		Status: "error",
		Data:   res.Data,
		Error: &models.APIError{
			Code:    strings.ToUpper(string(res.Kind)),
			Message: res.Message,
			Details: map[string]interface{}{"error": res.Error},
		},
	})
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged
// when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", err)
	return false
}

// validateRequest validates v and writes the error response on failure.
func validateRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	respondJSON(w, r, http.StatusBadRequest, &models.APIResponse{Status: "error", Error: apiErr})
	return false
}

// sanitizeLogValue strips line breaks so values cannot forge log lines.
func sanitizeLogValue(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
