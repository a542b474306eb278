// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package api provides the HTTP surface: Chi routing, standardized
// response envelopes, and the mapping from the core error taxonomy to
// HTTP status codes.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/TudorG03/accessmate-sub003/internal/logging"
	"github.com/TudorG03/accessmate-sub003/internal/recommend"
)

// APIResponse is the standardized response wrapper for all endpoints.
// The envelope distinguishes empty results (success with an empty list)
// from failure (error object).
type APIResponse struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Data contains the response payload (null on error)
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success)
	Error *APIError `json:"error,omitempty"`

	// Meta contains optional metadata about the response
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details interface{} `json:"details,omitempty"`

	// RequestID is the request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains optional response metadata.
type APIMeta struct {
	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is when the response was generated
	Timestamp time.Time `json:"timestamp"`

	// Pagination contains pagination info for list responses
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// PaginationMeta contains pagination information for list responses.
type PaginationMeta struct {
	Total   int  `json:"total"`
	Count   int  `json:"count"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Error codes for API responses.
const (
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeExternalServiceFailed = "EXTERNAL_SERVICE_FAILED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}, pagination *PaginationMeta) {
	resp := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			RequestID:  logging.RequestIDFromContext(r.Context()),
			Timestamp:  time.Now().UTC(),
			Pagination: pagination,
		},
	}
	writeJSON(w, r, status, &resp)
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	resp := APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Meta: &APIMeta{
			RequestID: logging.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	}
	writeJSON(w, r, status, &resp)
}

// respondCoreError maps a core error onto its status code and error code.
func respondCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case recommend.IsValidation(err):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
	case recommend.IsNotFound(err):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case recommend.IsPermission(err):
		respondError(w, r, http.StatusForbidden, ErrCodeForbidden, err.Error(), nil)
	case recommend.IsProvider(err):
		respondError(w, r, http.StatusBadGateway, ErrCodeExternalServiceFailed,
			"place data provider unavailable", nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal,
			"internal server error", nil)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("response encoding failed")
	}
}
