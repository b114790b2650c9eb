package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies log records exported through OpenTelemetry.
const instrumentationName = "github.com/florianilch/distill"

// Log export targets accepted by Instrument.
const (
	ExportNone   = ""
	ExportStdout = "stdout"
	ExportHTTP   = "http"
	ExportGRPC   = "grpc"
)

// Instrument installs the default slog logger and the W3C trace context
// propagator.
//
// Records always go to w in logFormat. When export names an
// OpenTelemetry exporter they are also sent through a log provider filtered
// at the same level. The returned function flushes and stops that provider
// and must be called before exit.
func Instrument(ctx context.Context, w io.Writer, level slog.Level, logFormat, export string) (func(context.Context) error, error) {
	handler, err := newWriterHandler(w, level, logFormat)
	if err != nil {
		return nil, err
	}

	shutdown := func(context.Context) error { return nil }

	if export != ExportNone {
		provider, err := newLoggerProvider(ctx, level, export)
		if err != nil {
			return nil, fmt.Errorf("failed to set up log export: %w", err)
		}
		shutdown = provider.Shutdown

		handler = newFanoutHandler(
			handler,
			otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)),
		)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	slog.SetDefault(slog.New(newTraceContextHandler(handler)))

	return shutdown, nil
}

// newWriterHandler creates a text or JSON handler writing to w.
func newWriterHandler(w io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}

	return handler, nil
}

// newLoggerProvider builds an OpenTelemetry log provider for the export
// target. OTLP endpoints are taken from the standard OTEL_EXPORTER_OTLP_*
// environment variables.
func newLoggerProvider(ctx context.Context, level slog.Level, export string) (*sdklog.LoggerProvider, error) {
	var processor sdklog.Processor

	switch strings.ToLower(export) {
	case ExportStdout:
		exporter, err := stdoutlog.New()
		if err != nil {
			return nil, err
		}
		processor = sdklog.NewSimpleProcessor(exporter)
	case ExportHTTP:
		exporter, err := otlploghttp.New(ctx)
		if err != nil {
			return nil, err
		}
		processor = sdklog.NewBatchProcessor(exporter)
	case ExportGRPC:
		exporter, err := otlploggrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		processor = sdklog.NewBatchProcessor(exporter)
	default:
		return nil, fmt.Errorf("unsupported log export %q (expected: stdout, http, grpc)", export)
	}

	// slog and OpenTelemetry severities share the same numbering for the
	// debug, info, warn and error bands.
	filtered := minsev.NewLogProcessor(processor, minsev.Severity(level))

	return sdklog.NewLoggerProvider(sdklog.WithProcessor(filtered)), nil
}
