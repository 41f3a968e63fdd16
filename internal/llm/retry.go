package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fmuoria/resume-screener/internal/metrics"
)

// Retry defaults: three attempts, five seconds apart
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// RetryPolicy bounds how a failed call is retried
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	Delay       time.Duration // fixed delay, or initial delay when exponential
	MaxDelay    time.Duration // cap for exponential delays
	Exponential bool
}

// DefaultRetryPolicy retries rate-limited calls with a fixed delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
	}
}

// ParseStrategy reports whether the named backoff strategy is exponential
func ParseStrategy(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "exponential")
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var b backoff.BackOff
	if p.Exponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = delay
		if p.MaxDelay > 0 {
			eb.MaxInterval = p.MaxDelay
		}
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = backoff.NewConstantBackOff(delay)
	}

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

type retryClient struct {
	next   Client
	policy RetryPolicy
	logger *slog.Logger
}

// RetryMiddleware retries retryable failures according to policy.
// Non-retryable errors are returned immediately.
func RetryMiddleware(policy RetryPolicy, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Client) Client {
		return &retryClient{
			next:   next,
			policy: policy,
			logger: logger.With(slog.String("component", "llm.retry")),
		}
	}
}

func (r *retryClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	op := func() (string, error) {
		out, err := r.next.GenerateContent(ctx, prompt)
		if err != nil && !IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}

	notify := func(err error, wait time.Duration) {
		metrics.LLMRetriesTotal.WithLabelValues(r.next.Provider()).Inc()
		r.logger.Warn("retrying language model request",
			slog.String("provider", r.next.Provider()),
			slog.Duration("wait", wait),
			slog.Bool("rate_limited", IsRateLimitError(err)),
			slog.Any("error", err))
	}

	return backoff.RetryNotifyWithData(op, r.policy.newBackOff(ctx), notify)
}

func (r *retryClient) Provider() string { return r.next.Provider() }
func (r *retryClient) Close() error     { return r.next.Close() }
