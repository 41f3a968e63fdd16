package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// RateLimitMiddleware paces requests with a token bucket shared by all callers
func RateLimitMiddleware(perSecond float64, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next Client) Client {
		return &rateLimitedClient{next: next, limiter: limiter}
	}
}

func (r *rateLimitedClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.GenerateContent(ctx, prompt)
}

func (r *rateLimitedClient) Provider() string { return r.next.Provider() }
func (r *rateLimitedClient) Close() error     { return r.next.Close() }
