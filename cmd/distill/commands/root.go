package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/distill/internal/app"
	"github.com/florianilch/distill/internal/observability"
)

// flushTimeout bounds log export shutdown on exit.
const flushTimeout = 5 * time.Second

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	return newRootCommand(version, commit).Run(ctx, args)
}

func newRootCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:    "distill",
		Usage:   "Ask chat completion APIs and stream readable answers",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML or YAML config file",
				Sources: cli.EnvVars("DISTILL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
			},
			&cli.StringFlag{
				Name:  "log-otlp",
				Usage: "export logs via OpenTelemetry (stdout|http|grpc)",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "upstream API base URL",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "completion endpoint path relative to the base URL",
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "model name sent upstream",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "upstream wire format (openai|anthropic)",
			},
			&cli.IntFlag{
				Name:  "max-tokens",
				Usage: "response token limit (0 leaves it to the upstream)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "how long to wait for upstream response headers",
			},
			&cli.DurationFlag{
				Name:  "min-update",
				Usage: "minimum interval between partial answers",
			},
			&cli.StringFlag{
				Name:  "key-storage",
				Usage: "where the API key is kept (env|file|keyring)",
			},
		},
		Commands: []*cli.Command{
			askCommand(),
			serveCommand(),
			authCommand(),
		},
	}
}

// setup loads the configuration and installs logging on logOutput. The
// returned function flushes exported logs and must be called before exit.
func setup(ctx context.Context, cmd *cli.Command, logOutput io.Writer) (app.Config, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return app.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(ctx, logOutput, cfg.Log.Level, cfg.Log.Format, cfg.Log.OTLP)
	if err != nil {
		return app.Config{}, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	flush := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("failed to flush logs", "error", err)
		}
	}
	return cfg, flush, nil
}
