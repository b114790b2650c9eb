package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/florianilch/distill/internal/completion"
)

// stubAnswerer replays partials and then returns answer or err.
type stubAnswerer struct {
	partials []string
	answer   string
	err      error
	panicMsg string

	gotMessages []completion.Message
	gotStream   bool
}

func (s *stubAnswerer) Ask(ctx context.Context, messages []completion.Message, onPartial completion.PartialFunc) (string, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.gotMessages = messages
	s.gotStream = onPartial != nil
	if onPartial != nil {
		for _, p := range s.partials {
			if err := onPartial(ctx, p); err != nil {
				return p + "\nError: " + err.Error(), nil
			}
		}
	}
	return s.answer, s.err
}

// readinessFunc adapts a func to ReadinessChecker.
type readinessFunc func() bool

func (f readinessFunc) IsReady() bool { return f() }

// mockUpstreamTransport returns a canned upstream response without network calls.
type mockUpstreamTransport struct {
	body        string
	status      int
	contentType string
}

func (m *mockUpstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: m.status,
		Status:     http.StatusText(m.status),
		Body:       io.NopCloser(strings.NewReader(m.body)),
		Header:     http.Header{"Content-Type": []string{m.contentType}},
		Request:    req,
	}, nil
}

// clientAnswerer answers through a completion.Client, as the application does.
type clientAnswerer struct {
	client *completion.Client
}

func (a clientAnswerer) Ask(ctx context.Context, messages []completion.Message, onPartial completion.PartialFunc) (string, error) {
	body := completion.NewRequestBody(completion.FormatOpenAI, "test-model", messages, onPartial != nil, 0)
	return a.client.RequestChatCompletion(ctx, "http://upstream.test/v1/chat/completions", nil, body, onPartial, nil)
}

// newTestServer builds a Server with logging discarded.
func newTestServer(tb testing.TB, answerer Answerer, opts ...Option) *Server {
	tb.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := New(answerer, readinessFunc(func() bool { return true }), opts...)
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	return s
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

// parseSSE splits an event stream into events.
func parseSSE(tb testing.TB, body string) []sseEvent {
	tb.Helper()

	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			default:
				tb.Fatalf("unexpected SSE line %q", line)
			}
		}
		events = append(events, ev)
	}
	return events
}
