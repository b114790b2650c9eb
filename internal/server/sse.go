package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// SSEWriter writes server-sent events and flushes after each one.
type SSEWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

// NewSSEWriter sends event-stream headers and returns a writer for the
// events. It fails without writing anything when w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			for _, key := range []string{"Content-Type", "Cache-Control", "Connection", "X-Accel-Buffering"} {
				h.Del(key)
			}
		}
		return nil, fmt.Errorf("response does not support streaming: %w", err)
	}

	return &SSEWriter{w: w, rc: rc}, nil
}

// WriteEvent writes the event name for the next data line.
func (s *SSEWriter) WriteEvent(name string) error {
	_, err := fmt.Fprintf(s.w, "event: %s\n", name)
	return err
}

// WriteData writes v as a JSON data line, ends the event and flushes.
func (s *SSEWriter) WriteData(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding event data: %w", err)
	}
	return s.WriteRaw(string(data))
}

// WriteRaw writes a data line verbatim, ends the event and flushes.
func (s *SSEWriter) WriteRaw(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}
