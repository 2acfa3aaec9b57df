// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/models"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// Header names.
const (
	RequestIDHeader = "X-Request-ID"
	OperatorHeader  = "X-Operator"
)

// maxOperatorLen bounds the operator header value.
const maxOperatorLen = 128

// RequestID middleware generates a unique ID for each request, or keeps
// the one sent by an upstream proxy, and adds it to the response header
// and the request context. The same value becomes the correlation ID used
// by the logging package.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithCorrelationID(ctx, requestID)

		next(w, r.WithContext(ctx))
	}
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Operator records the X-Operator header as the acting operator. The
// operator names the owner directory of new snapshots, so values that are
// too long or are not a single path segment are ignored.
func Operator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := r.Header.Get(OperatorHeader)
		if op != "" && validOperator(op) {
			r = r.WithContext(logging.ContextWithOperator(r.Context(), op))
		} else if op != "" {
			logging.Ctx(r.Context()).Warn().Int("length", len(op)).Msg("Ignoring invalid operator header")
		}
		next(w, r)
	}
}

func validOperator(op string) bool {
	return len(op) <= maxOperatorLen && models.IsPathSegment(op)
}
