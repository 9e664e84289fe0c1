package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/devicehub/internal/auth"
	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/telemetry"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
)

// errorStatus maps domain errors to HTTP statuses. Anything not listed is
// a 500.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{auth.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{device.ErrInvalidName, http.StatusBadRequest, ErrCodeBadRequest},
	{device.ErrInvalidTopic, http.StatusBadRequest, ErrCodeBadRequest},
	{device.ErrTopicsAlreadyRegistered, http.StatusBadRequest, ErrCodeBadRequest},
	{device.ErrTopicsNotRegistered, http.StatusBadRequest, ErrCodeBadRequest},
	{device.ErrTopicNotRegistered, http.StatusBadRequest, ErrCodeBadRequest},
	{telemetry.ErrInvalidPayload, http.StatusBadRequest, ErrCodeBadRequest},
	{telemetry.ErrInvalidRange, http.StatusBadRequest, ErrCodeBadRequest},

	{auth.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{device.ErrOwnerNotFound, http.StatusNotFound, ErrCodeNotFound},
	{device.ErrDeviceNotFound, http.StatusNotFound, ErrCodeNotFound},
	{telemetry.ErrNoData, http.StatusNotFound, ErrCodeNotFound},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized},
	{device.ErrNotOwner, http.StatusUnauthorized, ErrCodeUnauthorized},

	{auth.ErrUsernameExists, http.StatusConflict, ErrCodeConflict},
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps err through errorStatus. Unmapped errors are
// logged and reported as a generic 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestID(r.Context()),
		"error", err,
	)
	writeInternalError(w, "internal server error")
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
