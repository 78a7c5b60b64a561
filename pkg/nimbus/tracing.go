package nimbus

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig defines the configuration options for the tracing wrapper.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "nimbus")
	TracerName string
}

// DefaultTracingConfig returns a TracingConfig with sensible defaults.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: "nimbus",
	}
}

// Tracing wraps a handler so every assembled request is delivered inside an
// OpenTelemetry span. It uses default configuration settings.
func Tracing(next Handler) Handler {
	return TracingWithConfig(next, DefaultTracingConfig())
}

// TracingWithConfig wraps a handler with OpenTelemetry tracing using custom
// configuration.
func TracingWithConfig(next Handler, config TracingConfig) Handler {
	if config.TracerName == "" {
		config.TracerName = "nimbus"
	}

	tracer := otel.Tracer(config.TracerName)

	return HandlerFunc(func(ctx context.Context, w ResponseSender, req *Request) error {
		spanCtx, span := tracer.Start(
			ctx,
			req.Method+" "+req.Path,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("request.method", req.Method),
			attribute.String("request.path", req.Path),
			attribute.Int("request.body_bytes", len(req.Body)),
			attribute.String("peer.addr", w.Peer().String()),
		)

		err := next.ServeRequest(spanCtx, w, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}
