package web

// errors.go renders every failure as one JSON shape:
//
//	{"error": "<HTTP status text>", "message": "...", "action": "...", "code": "..."}
//
// The status comes from the error's dataset.Kind; message, action and code
// come from core.MapError. The technical error is logged with the request id
// and never sent to the client unless it is a typed, client-facing error.

import (
	"errors"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/JonMunkholm/ministats/internal/core"
	"github.com/JonMunkholm/ministats/internal/dataset"
	"github.com/JonMunkholm/ministats/internal/logging"
	"github.com/JonMunkholm/ministats/internal/web/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var kindStatus = map[dataset.Kind]int{
	dataset.KindNotLoaded:       http.StatusBadRequest,
	dataset.KindUnauthorized:    http.StatusUnauthorized,
	dataset.KindNotFound:        http.StatusNotFound,
	dataset.KindBadInput:        http.StatusBadRequest,
	dataset.KindPayloadTooLarge: http.StatusBadRequest,
	dataset.KindUnsupportedType: http.StatusBadRequest,
	dataset.KindBusy:            http.StatusServiceUnavailable,
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	if errors.Is(err, middleware.ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	if status, ok := kindStatus[dataset.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Debug("request rejected", attrs...)
	}

	writeJSONStatus(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON writes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v before touching the response so an encoding
// failure can still become a 500.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("json encode error", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal Server Error","message":"An unexpected error occurred","code":"ERR000"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
