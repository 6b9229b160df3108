// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"go.uber.org/zap"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write sends an error response.
func Write(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// WriteFields sends a 400 listing per-field validation messages.
func WriteFields(w http.ResponseWriter, message string, fields map[string]string) {
	JSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    "invalid_request",
		Message: message,
		Fields:  fields,
	}})
}

// codes names the sentinel errors clients may branch on.
var codes = []struct {
	err  error
	code string
}{
	{allocation.ErrTopicNotFound, "topic_not_found"},
	{allocation.ErrTeamNotFound, "team_not_found"},
	{allocation.ErrNotSignedUp, "not_signed_up"},
	{allocation.ErrTeamHoldsTopic, "team_holds_topic"},
	{allocation.ErrCapacityBelowConfirmed, "capacity_below_confirmed"},
	{topicstore.ErrDuplicateIdentifier, "duplicate_identifier"},
	{allocation.ErrTopicRestricted, "topic_restricted"},
	{allocation.ErrInvalidCapacity, "invalid_capacity"},
	{topicstore.ErrInvalidCapacity, "invalid_capacity"},
	{allocation.ErrAllocationUnavailable, "allocation_unavailable"},
}

// Code returns the client-facing code for err, or "internal".
func Code(err error) string {
	for _, c := range codes {
		if stderrors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// Status maps an allocation error kind to an HTTP status.
func Status(k allocation.Kind) int {
	switch k {
	case allocation.KindNotFound:
		return http.StatusNotFound
	case allocation.KindConflict:
		return http.StatusConflict
	case allocation.KindForbidden:
		return http.StatusForbidden
	case allocation.KindInvalid:
		return http.StatusBadRequest
	case allocation.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and code. Unclassified errors are logged
// and answered with a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := allocation.KindOf(err)
	status := Status(kind)
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		Write(w, status, "internal", "Something went wrong. Please try again.")
		return
	}
	if kind == allocation.KindTransient {
		w.Header().Set("Retry-After", "1")
	}
	Write(w, status, Code(err), message(err))
}

// message strips wrapping context that is not meant for clients.
func message(err error) string {
	for _, c := range codes {
		if stderrors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return err.Error()
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Write(w, http.StatusNotFound, "not_found", "No such endpoint.")
}

// MethodNotAllowed answers known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Write(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
}
