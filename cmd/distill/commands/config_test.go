package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/distill/internal/app"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func environOf(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeFile(t, "empty.toml", "")

	cfg, err := loadConfig(path, nil, environOf())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	want := app.DefaultConfig()
	if cfg.Upstream != want.Upstream {
		t.Errorf("upstream = %+v, want %+v", cfg.Upstream, want.Upstream)
	}
	if cfg.Request.Timeout != want.Request.Timeout {
		t.Errorf("timeout = %v, want %v", cfg.Request.Timeout, want.Request.Timeout)
	}
	if cfg.Stream.MinUpdateInterval != want.Stream.MinUpdateInterval {
		t.Errorf("min update interval = %v, want %v", cfg.Stream.MinUpdateInterval, want.Stream.MinUpdateInterval)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("log level = %v, want INFO", cfg.Log.Level)
	}
	if cfg.Server != want.Server {
		t.Errorf("server = %+v, want %+v", cfg.Server, want.Server)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeFile(t, "config.toml", `
[upstream]
base_url = "https://api.anthropic.com/v1"
path = "/messages"
model = "from-file"
format = "anthropic"
max_tokens = 512

[stream]
min_update_interval = "2s"
`)

	cfg, err := loadConfig(path, nil, environOf(
		"DISTILL_UPSTREAM__MODEL=from-env",
		"DISTILL_LOG__LEVEL=debug",
		"DISTILL_REQUEST__TIMEOUT=15s",
		"UNRELATED=1",
	))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Upstream.Model != "from-env" {
		t.Errorf("model = %q, want from-env", cfg.Upstream.Model)
	}
	if cfg.Upstream.Format != "anthropic" || cfg.Upstream.Path != "/messages" {
		t.Errorf("upstream = %+v, want anthropic file values", cfg.Upstream)
	}
	if cfg.Upstream.MaxTokens != 512 {
		t.Errorf("max tokens = %d, want 512", cfg.Upstream.MaxTokens)
	}
	if cfg.Stream.MinUpdateInterval != 2*time.Second {
		t.Errorf("min update interval = %v, want 2s", cfg.Stream.MinUpdateInterval)
	}
	if cfg.Request.Timeout != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", cfg.Request.Timeout)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Errorf("log level = %v, want DEBUG", cfg.Log.Level)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: 0.0.0.0:8080
auth:
  client_id: distill
  client_secret: secret
  token_url: https://auth.example.com/token
  scopes: [read, write]
`)

	cfg, err := loadConfig(path, nil, environOf())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.ClientID != "distill" || cfg.Auth.TokenURL != "https://auth.example.com/token" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if !slices.Equal(cfg.Auth.Scopes, []string{"read", "write"}) {
		t.Errorf("scopes = %v", cfg.Auth.Scopes)
	}
}

func TestLoadConfig_EnvScopes(t *testing.T) {
	path := writeFile(t, "empty.toml", "")

	cfg, err := loadConfig(path, nil, environOf(
		"DISTILL_AUTH__CLIENT_ID=distill",
		"DISTILL_AUTH__TOKEN_URL=https://auth.example.com/token",
		"DISTILL_AUTH__SCOPES=read, write,,admin",
	))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !slices.Equal(cfg.Auth.Scopes, []string{"read", "write", "admin"}) {
		t.Errorf("scopes = %v", cfg.Auth.Scopes)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		environ []string
		wantErr string
	}{
		{
			name:    "missing explicit file",
			path:    filepath.Join(t.TempDir(), "absent.toml"),
			wantErr: "failed to read config file",
		},
		{
			name:    "unsupported extension",
			path:    writeFile(t, "config.json", "{}"),
			wantErr: "unsupported config file type",
		},
		{
			name:    "malformed toml",
			path:    writeFile(t, "bad.toml", "[upstream\nmodel="),
			wantErr: "failed to parse config file",
		},
		{
			name:    "invalid value",
			path:    writeFile(t, "empty.toml", ""),
			environ: []string{"DISTILL_UPSTREAM__FORMAT=grpc"},
			wantErr: "upstream.format",
		},
		{
			name:    "undecodable duration",
			path:    writeFile(t, "empty.toml", ""),
			environ: []string{"DISTILL_REQUEST__TIMEOUT=soon"},
			wantErr: "failed to decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.path, nil, environOf(tt.environ...))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	path := writeFile(t, "empty.toml", "")
	environ := environOf("DISTILL_UPSTREAM__MODEL=from-env", "DISTILL_LOG__FORMAT=json")

	var (
		got     app.Config
		loadErr error
	)
	root := newRootCommand("test", "none")
	root.Commands = []*cli.Command{{
		Name: "probe",
		Action: func(_ context.Context, cmd *cli.Command) error {
			got, loadErr = loadConfig(cmd.String("config"), cmd, environ)
			return nil
		},
	}}

	err := root.Run(context.Background(), []string{
		"distill", "--config", path, "--model", "from-flag", "--timeout", "5s", "--max-tokens", "64", "probe",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loadErr != nil {
		t.Fatalf("loadConfig: %v", loadErr)
	}

	if got.Upstream.Model != "from-flag" {
		t.Errorf("model = %q, want from-flag", got.Upstream.Model)
	}
	if got.Request.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got.Request.Timeout)
	}
	if got.Upstream.MaxTokens != 64 {
		t.Errorf("max tokens = %d, want 64", got.Upstream.MaxTokens)
	}
	if got.Log.Format != "json" {
		t.Errorf("log format = %q, want json from env", got.Log.Format)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env     string
		wantKey string
	}{
		{"DISTILL_UPSTREAM__BASE_URL", "upstream.base_url"},
		{"DISTILL_STREAM__MIN_UPDATE_INTERVAL", "stream.min_update_interval"},
		{"DISTILL_API_KEY", "api_key"},
	}
	for _, tt := range tests {
		if key, _ := envKey(tt.env, "v"); key != tt.wantKey {
			t.Errorf("envKey(%q) = %q, want %q", tt.env, key, tt.wantKey)
		}
	}
}
