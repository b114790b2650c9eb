package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/distill/internal/completion"
)

// CredentialStorage names where the upstream API key is kept.
type CredentialStorage string

const (
	CredentialStorageEnv     CredentialStorage = "env"
	CredentialStorageFile    CredentialStorage = "file"
	CredentialStorageKeyring CredentialStorage = "keyring"
)

// Config is the complete application configuration. Field tags name the
// koanf keys; durations use Go syntax ("750ms").
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Auth     AuthConfig     `koanf:"auth"`
	Request  RequestConfig  `koanf:"request"`
	Stream   StreamConfig   `koanf:"stream"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

// UpstreamConfig locates the completion endpoint.
type UpstreamConfig struct {
	BaseURL   string `koanf:"base_url" validate:"required,http_url"`
	Path      string `koanf:"path" validate:"required,startswith=/"`
	Model     string `koanf:"model" validate:"required"`
	Format    string `koanf:"format" validate:"oneof=openai anthropic"`
	MaxTokens int    `koanf:"max_tokens" validate:"gte=0"`
}

// URL joins BaseURL and Path.
func (u UpstreamConfig) URL() string {
	return strings.TrimRight(u.BaseURL, "/") + u.Path
}

// AuthConfig selects how upstream credentials are obtained. When ClientID
// is set, OAuth2 client credentials are used and the key store is ignored.
type AuthConfig struct {
	Storage CredentialStorage `koanf:"storage" validate:"oneof=env file keyring"`
	// EnvVar names the variable read by env storage.
	EnvVar string `koanf:"env_var" validate:"required_if=Storage env"`
	// File is the key file used by file storage.
	File string `koanf:"file" validate:"required_if=Storage file"`

	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	TokenURL     string   `koanf:"token_url" validate:"required_with=ClientID,omitempty,http_url"`
	Scopes       []string `koanf:"scopes"`
}

// RequestConfig bounds upstream calls.
type RequestConfig struct {
	// Timeout bounds the wait for response headers. Zero disables it.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// StreamConfig tunes partial delivery.
type StreamConfig struct {
	MinUpdateInterval time.Duration `koanf:"min_update_interval" validate:"gte=0"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string `koanf:"addr" validate:"required,hostname_port"`
	MaxRequestBytes int64  `koanf:"max_request_bytes" validate:"gt=0"`
}

// LogConfig configures logging and log export.
type LogConfig struct {
	Level  slog.Level `koanf:"level"`
	Format string     `koanf:"format" validate:"oneof=text json"`
	// OTLP selects an OpenTelemetry log exporter: stdout, http or grpc.
	OTLP string `koanf:"otlp" validate:"omitempty,oneof=stdout http grpc"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL: "https://api.openai.com/v1",
			Path:    "/chat/completions",
			Model:   "gpt-4o-mini",
			Format:  completion.FormatOpenAI,
		},
		Auth: AuthConfig{
			Storage: CredentialStorageEnv,
			EnvVar:  "DISTILL_API_KEY",
		},
		Request: RequestConfig{
			Timeout: 60 * time.Second,
		},
		Stream: StreamConfig{
			MinUpdateInterval: 750 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:4100",
			MaxRequestBytes: 1 << 20,
		},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: "text",
		},
	}
}

// Validate checks field constraints and returns one error listing every
// violation by its koanf key.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(koanfTagName)

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// koanfTagName reports fields by their configuration key.
func koanfTagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// describeFieldError renders a failed constraint as "key: reason".
func describeFieldError(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")

	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return key + ": is required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "http_url":
		return fmt.Sprintf("%s: must be an http(s) URL, got %q", key, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %q constraint", key, fe.Tag())
	}
}

// UpstreamHost returns the host of the upstream base URL, for logging.
func (c Config) UpstreamHost() string {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}
