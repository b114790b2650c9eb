package server

import "net/http"

// Recovery turns a handler panic into a 500 error response. Streams that
// already sent headers are aborted instead. The panic itself is logged by
// the access log middleware.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			writeJSONError(r.Context(), w, http.StatusInternalServerError, errorBody{
				Message: http.StatusText(http.StatusInternalServerError),
				Type:    errorTypeAPI,
			})
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimit caps the request body. Handlers reading past the limit
// get *http.MaxBytesError.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// applyMiddlewares wraps h so that the first middleware runs first.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
