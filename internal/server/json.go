package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/florianilch/distill/internal/completion"
)

// Error types reported in error bodies.
const (
	errorTypeInvalidRequest = "invalid_request_error"
	errorTypeUpstream       = "upstream_error"
	errorTypeConnection     = "api_connection_error"
	errorTypeTimeout        = "timeout_error"
	errorTypeAPI            = "api_error"
)

// errorResponse is the error envelope for JSON responses and error events.
type errorResponse struct {
	Err errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeJSON writes a JSON response with the given status code.
// Encoding failures are logged; the client may see a truncated body.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes an error envelope.
func writeJSONError(ctx context.Context, w http.ResponseWriter, status int, body errorBody) {
	writeJSON(ctx, w, errorResponse{Err: body}, status)
}

// classifyError maps an answer failure to an HTTP status and error body.
func classifyError(err error) (int, errorBody) {
	var (
		requestErr   *completion.RequestError
		transportErr *completion.TransportError
		buildErr     *completion.StreamBuildError
	)

	switch {
	case errors.As(err, &requestErr):
		return http.StatusBadGateway, errorBody{Message: requestErr.Message, Type: errorTypeUpstream}
	case errors.Is(err, completion.ErrTimeout):
		return http.StatusGatewayTimeout, errorBody{Message: err.Error(), Type: errorTypeTimeout}
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, errorBody{Message: transportErr.Error(), Type: errorTypeConnection}
	case errors.As(err, &buildErr):
		return http.StatusBadGateway, errorBody{Message: buildErr.Error(), Type: errorTypeUpstream}
	default:
		return http.StatusInternalServerError, errorBody{
			Message: http.StatusText(http.StatusInternalServerError),
			Type:    errorTypeAPI,
		}
	}
}
