package server

import "net/http"

// healthStatus is the body of the probe endpoints.
type healthStatus struct {
	Status string `json:"status"`
}

// livenessHandler always reports the process as alive.
func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(r.Context(), w, healthStatus{Status: "ok"}, http.StatusOK)
	}
}

// readinessHandler answers 200 while checker reports ready and 503 while
// the application is starting or draining.
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if checker.IsReady() {
			writeJSON(r.Context(), w, healthStatus{Status: "ready"}, http.StatusOK)
			return
		}
		writeJSON(r.Context(), w, healthStatus{Status: "unavailable"}, http.StatusServiceUnavailable)
	}
}
