package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/resume-screener/internal/llm/llmtest"
	"github.com/fmuoria/resume-screener/internal/logging"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Delay: time.Millisecond}
}

func TestRetryMiddleware_RetriesRateLimitedCalls(t *testing.T) {
	// Given a backend that is rate limited twice before answering
	var calls atomic.Int32
	stub := llmtest.New(func(context.Context, string) (string, error) {
		if calls.Add(1) <= 2 {
			return "", &TransportError{Provider: "stub", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}
		}
		return "ok", nil
	})
	client := RetryMiddleware(fastPolicy(3), logging.Discard())(stub)

	// When a request is made
	out, err := client.GenerateContent(context.Background(), "prompt")

	// Then the third attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, stub.Calls())
}

func TestRetryMiddleware_StopsAfterMaxAttempts(t *testing.T) {
	stub := llmtest.Failing(&TransportError{Provider: "stub", StatusCode: 429, Err: errors.New("quota")})
	client := RetryMiddleware(fastPolicy(3), logging.Discard())(stub)

	_, err := client.GenerateContent(context.Background(), "prompt")

	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.Equal(t, 3, stub.Calls())
}

func TestRetryMiddleware_DoesNotRetryPermanentErrors(t *testing.T) {
	stub := llmtest.Failing(&TransportError{Provider: "stub", StatusCode: 400, Err: errors.New("bad prompt")})
	client := RetryMiddleware(fastPolicy(5), logging.Discard())(stub)

	_, err := client.GenerateContent(context.Background(), "prompt")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 400, te.StatusCode)
	assert.Equal(t, 1, stub.Calls())
}

func TestRetryMiddleware_ExponentialPolicy(t *testing.T) {
	stub := llmtest.Failing(&TransportError{Provider: "stub", StatusCode: 503, Err: errors.New("down")})
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Exponential: true}
	client := RetryMiddleware(policy, logging.Discard())(stub)

	_, err := client.GenerateContent(context.Background(), "prompt")

	require.Error(t, err)
	assert.Equal(t, 2, stub.Calls())
}

func TestRetryMiddleware_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := llmtest.New(func(context.Context, string) (string, error) {
		cancel()
		return "", &TransportError{Provider: "stub", StatusCode: 429, Err: errors.New("busy")}
	})
	client := RetryMiddleware(RetryPolicy{MaxAttempts: 10, Delay: time.Hour}, logging.Discard())(stub)

	_, err := client.GenerateContent(ctx, "prompt")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.Calls())
}

func TestParseStrategy(t *testing.T) {
	assert.True(t, ParseStrategy("exponential"))
	assert.True(t, ParseStrategy(" Exponential "))
	assert.False(t, ParseStrategy("constant"))
	assert.False(t, ParseStrategy(""))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.Delay)
	assert.False(t, p.Exponential)
}

func TestRateLimitMiddleware_PacesRequests(t *testing.T) {
	// Given a limiter of 20 requests per second with no burst
	stub := llmtest.Fixed("ok")
	client := RateLimitMiddleware(20, 1)(stub)

	// When three requests are made back to back
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.GenerateContent(context.Background(), "p")
		require.NoError(t, err)
	}

	// Then the last two waited for tokens
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 3, stub.Calls())
}

func TestRateLimitMiddleware_CancelledWait(t *testing.T) {
	client := RateLimitMiddleware(0.001, 1)(llmtest.Fixed("ok"))
	_, err := client.GenerateContent(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.GenerateContent(ctx, "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestTimeoutMiddleware(t *testing.T) {
	stub := llmtest.New(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	client := TimeoutMiddleware(5 * time.Millisecond)(stub)

	_, err := client.GenerateContent(context.Background(), "p")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrap_PassesThroughAndCloses(t *testing.T) {
	stub := llmtest.Fixed("CANDIDATE: A")
	client := Wrap(stub, Config{Retry: fastPolicy(2), RequestsPerSecond: 100, Burst: 10, Timeout: time.Second}, logging.Discard())

	out, err := client.GenerateContent(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "CANDIDATE: A", out)
	assert.Equal(t, "stub", client.Provider())

	require.NoError(t, client.Close())
	assert.True(t, stub.Closed())
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Client) Client {
			return llmtest.New(func(ctx context.Context, p string) (string, error) {
				order = append(order, name)
				return next.GenerateContent(ctx, p)
			})
		}
	}

	client := Chain(llmtest.Fixed("x"), mark("outer"), mark("inner"))
	_, err := client.GenerateContent(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "carrier-pigeon"}, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderGemini}, logging.Discard())
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderOpenAI}, logging.Discard())
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderVertex}, logging.Discard())
	require.Error(t, err)
}

func TestOpenAIClient_GenerateContent(t *testing.T) {
	// Given an OpenAI-compatible endpoint
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"CRITERION: Skills\nSCORE: 8"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)

	// When a prompt is sent
	out, err := client.GenerateContent(context.Background(), "score this")

	// Then the assistant message is returned
	require.NoError(t, err)
	assert.Equal(t, "CRITERION: Skills\nSCORE: 8", out)
	assert.Equal(t, "gpt-test", gotModel)
	assert.Equal(t, ProviderOpenAI, client.Provider())
}

func TestOpenAIClient_RateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.GenerateContent(context.Background(), "p")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.True(t, IsRateLimitError(err))
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.GenerateContent(context.Background(), "p")
	require.ErrorIs(t, err, ErrEmptyResponse)
}
