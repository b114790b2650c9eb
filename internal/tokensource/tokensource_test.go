package tokensource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// recordingTransport captures the last request instead of sending it.
type recordingTransport struct {
	last *http.Request
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.last = req
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestNew_APIKey(t *testing.T) {
	ts, err := New(context.Background(), Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token.AccessToken != "sk-test" {
		t.Errorf("access token = %q", token.AccessToken)
	}
}

func TestNew_NoCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("error = %v, want ErrNoCredentials", err)
	}
	if _, err := New(context.Background(), Config{ClientID: "id"}); err == nil {
		t.Error("expected error for client credentials without token URL")
	}
}

func TestNew_ClientCredentials(t *testing.T) {
	var calls int
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("scope"); got != "chat read" {
			t.Errorf("scope = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"cc-token","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	ts, err := New(context.Background(), Config{
		ClientID:     "distill",
		ClientSecret: "secret",
		TokenURL:     tokenServer.URL,
		Scopes:       []string{"chat", "read"},
	}, WithTransport(tokenServer.Client().Transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for range 3 {
		token, err := ts.Token()
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token.AccessToken != "cc-token" {
			t.Errorf("access token = %q", token.AccessToken)
		}
	}
	if calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}
}

func TestNewTransport(t *testing.T) {
	ts, _ := New(context.Background(), Config{APIKey: "sk-test"})

	tests := []struct {
		scheme string
		header string
		want   string
	}{
		{scheme: SchemeBearer, header: "Authorization", want: "Bearer sk-test"},
		{scheme: SchemeAPIKey, header: "x-api-key", want: "sk-test"},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			base := &recordingTransport{}
			client := &http.Client{Transport: NewTransport(ts, tt.scheme, base)}

			req, _ := http.NewRequest(http.MethodPost, "http://upstream.test/v1/chat/completions", http.NoBody)
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			_ = resp.Body.Close()

			if got := base.last.Header.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
			if req.Header.Get(tt.header) != "" {
				t.Error("caller's request was modified")
			}
		})
	}
}
