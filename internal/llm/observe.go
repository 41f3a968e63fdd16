package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fmuoria/resume-screener/internal/metrics"
)

const tracerName = "github.com/fmuoria/resume-screener/internal/llm"

type tracedClient struct {
	next   Client
	tracer trace.Tracer
}

// TracingMiddleware wraps each request in a span
func TracingMiddleware() Middleware {
	return func(next Client) Client {
		return &tracedClient{next: next, tracer: otel.Tracer(tracerName)}
	}
}

func (t *tracedClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.provider", t.next.Provider()),
			attribute.Int("llm.prompt.length", len(prompt)),
		))
	defer span.End()

	out, err := t.next.GenerateContent(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetAttributes(attribute.Int("llm.response.length", len(out)))
	return out, nil
}

func (t *tracedClient) Provider() string { return t.next.Provider() }
func (t *tracedClient) Close() error     { return t.next.Close() }

type meteredClient struct {
	next Client
}

// MetricsMiddleware records request counts and latency
func MetricsMiddleware() Middleware {
	return func(next Client) Client {
		return &meteredClient{next: next}
	}
}

func (m *meteredClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := m.next.GenerateContent(ctx, prompt)
	metrics.ObserveLLMRequest(m.next.Provider(), requestStatus(ctx, err), time.Since(start))
	return out, err
}

func (m *meteredClient) Provider() string { return m.next.Provider() }
func (m *meteredClient) Close() error     { return m.next.Close() }

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return "timeout"
	case IsRateLimitError(err):
		return "rate_limited"
	default:
		return "error"
	}
}
