package completion

import (
	"net/http"
	"testing"
)

func TestClassifier(t *testing.T) {
	tests := []struct {
		contentType     string
		wantJSON        bool
		wantEventStream bool
	}{
		{contentType: "application/json", wantJSON: true},
		{contentType: "Application/JSON; charset=utf-8", wantJSON: true},
		{contentType: "text/event-stream; charset=utf-8", wantEventStream: true},
		{contentType: "TEXT/EVENT-STREAM", wantEventStream: true},
		{contentType: "application/stream+json", wantEventStream: true},
		{contentType: "text/plain"},
		{contentType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			resp := newResponse(http.StatusOK, tt.contentType, "")
			if got := IsJSON(resp); got != tt.wantJSON {
				t.Errorf("IsJSON = %v, want %v", got, tt.wantJSON)
			}
			if got := IsEventStream(resp); got != tt.wantEventStream {
				t.Errorf("IsEventStream = %v, want %v", got, tt.wantEventStream)
			}
		})
	}
}
