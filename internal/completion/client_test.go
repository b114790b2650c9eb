package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRequestChatCompletion_JSON(t *testing.T) {
	var gotBody ChatRequest
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"<thinking>plan</thinking>Paris"}}]}`)
	}))
	defer upstream.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer sk-test")
	body := NewRequestBody(FormatOpenAI, "gpt-test", []Message{{Role: "user", Content: "Capital of France?"}}, false, 0)

	got, err := NewClient().RequestChatCompletion(context.Background(), upstream.URL, header, body, nil, nil)
	if err != nil {
		t.Fatalf("RequestChatCompletion: %v", err)
	}
	if got != "Paris" {
		t.Errorf("answer = %q, want %q", got, "Paris")
	}
	if gotBody.Model != "gpt-test" || len(gotBody.Messages) != 1 {
		t.Errorf("upstream received %+v", gotBody)
	}
}

func TestRequestChatCompletion_Streaming(t *testing.T) {
	deltas := make([]string, 8)
	for i := range deltas {
		deltas[i] = strings.Repeat("w", 10)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseBody(deltas...))
	}))
	defer upstream.Close()

	var rec recorder
	got, err := NewClient().RequestChatCompletion(context.Background(), upstream.URL, nil, map[string]any{"stream": true}, rec.onPartial, nil)
	if err != nil {
		t.Fatalf("RequestChatCompletion: %v", err)
	}
	if got != strings.Repeat("w", 80) {
		t.Errorf("answer = %q", got)
	}
	if len(rec.partials) != 1 {
		t.Errorf("got %d partials, want 1", len(rec.partials))
	}
}

func TestRequestChatCompletion_Timeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reading the body lets net/http notice the client going away.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	client := NewClient(WithTimeout(20 * time.Millisecond))
	_, err := client.RequestChatCompletion(context.Background(), upstream.URL, nil, map[string]any{}, nil, nil)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Errorf("error = %T, want *TransportError", err)
	}
}

func TestRequestChatCompletion_TimeoutDoesNotCoverStreamBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: "+string(deltaFrame("first "))+"\n\n")
		w.(http.Flusher).Flush()

		time.Sleep(150 * time.Millisecond)

		_, _ = io.WriteString(w, "data: "+string(deltaFrame("second"))+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))

	for i := range 2 {
		got, err := client.RequestChatCompletion(context.Background(), upstream.URL, nil, map[string]any{}, noopPartial, nil)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != "first second" {
			t.Errorf("call %d: answer = %q, want %q", i, got, "first second")
		}
	}
}

func TestRequestChatCompletion_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewClient(WithTimeout(time.Minute)).RequestChatCompletion(ctx, upstream.URL, nil, map[string]any{}, nil, nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("caller cancellation reported as timeout")
	}
}

// lateTransport answers only after delay and ignores request cancellation.
type lateTransport struct {
	delay  time.Duration
	closed chan struct{}
}

type closeNotifyBody struct {
	io.Reader
	closed chan struct{}
}

func (b closeNotifyBody) Close() error {
	close(b.closed)
	return nil
}

func (t *lateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	time.Sleep(t.delay)
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       closeNotifyBody{Reader: strings.NewReader(sseBody("late")), closed: t.closed},
		Request:    req,
	}, nil
}

func TestRequestChatCompletion_HeadersAfterTimeoutAreDiscarded(t *testing.T) {
	transport := &lateTransport{delay: 100 * time.Millisecond, closed: make(chan struct{})}
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithTimeout(10*time.Millisecond),
	)

	_, err := client.RequestChatCompletion(context.Background(), "http://upstream.test", nil, map[string]any{}, noopPartial, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Errorf("error = %T, want *TransportError", err)
	}

	select {
	case <-transport.closed:
	case <-time.After(time.Second):
		t.Error("late response body was not closed")
	}
}

func TestRequestChatCompletion_HeadersBeforeTimeoutKeepStreaming(t *testing.T) {
	transport := &lateTransport{closed: make(chan struct{})}
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithTimeout(time.Minute),
	)

	got, err := client.RequestChatCompletion(context.Background(), "http://upstream.test", nil, map[string]any{}, noopPartial, nil)
	if err != nil {
		t.Fatalf("RequestChatCompletion: %v", err)
	}
	if got != "late" {
		t.Errorf("answer = %q, want late", got)
	}
}

func TestRequestChatCompletion_MarshalError(t *testing.T) {
	_, err := NewClient().RequestChatCompletion(context.Background(), "http://127.0.0.1:0", nil, map[string]any{"bad": make(chan int)}, nil, nil)
	if err == nil {
		t.Fatal("expected marshal error")
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		t.Error("marshal failure should not be a transport error")
	}
}

func TestRequestChatCompletion_ConcurrentCallsAreIndependent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseBody(strings.Repeat(req.Model, 30)))
	}))
	defer upstream.Close()

	client := NewClient()
	models := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	results := make([]string, len(models))
	for i, model := range models {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := NewRequestBody(FormatOpenAI, model, []Message{{Role: "user", Content: "hi"}}, true, 0)
			results[i], _ = client.RequestChatCompletion(context.Background(), upstream.URL, nil, body, noopPartial, nil)
		}()
	}
	wg.Wait()

	for i, model := range models {
		if want := strings.Repeat(model, 30); results[i] != want {
			t.Errorf("result %d = %q, want %q", i, results[i], want)
		}
	}
}
