package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/distill/internal/app"
)

const (
	envPrefix = "DISTILL_"
	keyDelim  = "."
)

// flagKeys maps command line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-otlp":    "log.otlp",
	"base-url":    "upstream.base_url",
	"path":        "upstream.path",
	"model":       "upstream.model",
	"format":      "upstream.format",
	"max-tokens":  "upstream.max_tokens",
	"timeout":     "request.timeout",
	"min-update":  "stream.min_update_interval",
	"addr":        "server.addr",
	"key-storage": "auth.storage",
}

// loadConfig builds the configuration from defaults, the config file, the
// environment and command line flags, in increasing precedence.
//
// An empty path falls back to distill/config.toml in the user config
// directory when that file exists.
func loadConfig(path string, cmd *cli.Command, environ func() []string) (app.Config, error) {
	k := koanf.New(keyDelim)

	if err := k.Load(confmap.Provider(defaultValues(app.DefaultConfig()), keyDelim), nil); err != nil {
		return app.Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return app.Config{}, err
		}
	}

	if err := k.Load(env.Provider(keyDelim, env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return app.Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(flagValues(cmd), keyDelim), nil); err != nil {
			return app.Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg app.Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return app.Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// loadFile merges a TOML or YAML file. A missing file is only an error when
// the path was given explicitly.
func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return fmt.Errorf("unsupported config file type %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "distill", "config.toml")
}

// envKey turns DISTILL_UPSTREAM__BASE_URL into upstream.base_url. Scopes
// are a comma separated list.
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(k, envPrefix), "__", keyDelim))
	if key == "auth.scopes" {
		return key, splitList(v)
	}
	return key, v
}

func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// flagValues collects the flags set on the command line.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for name, key := range flagKeys {
		if !cmd.IsSet(name) {
			continue
		}
		values[key] = cmd.Value(name)
	}
	return values
}

// defaultValues flattens cfg into koanf keys.
func defaultValues(cfg app.Config) map[string]any {
	return map[string]any{
		"upstream.base_url":          cfg.Upstream.BaseURL,
		"upstream.path":              cfg.Upstream.Path,
		"upstream.model":             cfg.Upstream.Model,
		"upstream.format":            cfg.Upstream.Format,
		"upstream.max_tokens":        cfg.Upstream.MaxTokens,
		"auth.storage":               string(cfg.Auth.Storage),
		"auth.env_var":               cfg.Auth.EnvVar,
		"auth.file":                  cfg.Auth.File,
		"request.timeout":            cfg.Request.Timeout.String(),
		"stream.min_update_interval": cfg.Stream.MinUpdateInterval.String(),
		"server.addr":                cfg.Server.Addr,
		"server.max_request_bytes":   cfg.Server.MaxRequestBytes,
		"log.level":                  cfg.Log.Level.String(),
		"log.format":                 cfg.Log.Format,
		"log.otlp":                   cfg.Log.OTLP,
	}
}
