package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// Logging writes one access log record per request. Headers other than
// Content-Type and Origin, and all bodies, stay out of the log since
// questions and answers may be sensitive.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},

		// Panics are recovered by the server; httplog still logs them.
		RecoverPanics: false,

		// Probes and scrapes would drown out answer traffic.
		Skip: func(r *http.Request, respStatus int) bool {
			return respStatus < 400 && (r.URL.Path == "/metrics" || r.URL.Path == "/health/live" || r.URL.Path == "/health/ready")
		},
	})
}

// SetLogAttrs sets attributes on the request log. It is a no-op outside the
// Logging middleware.
func SetLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	httplog.SetAttrs(ctx, attrs...)
}
