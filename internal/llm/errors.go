package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

var (
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("empty response from language model")
)

// TransportError is a failed call to the language model service
type TransportError struct {
	Provider   string
	StatusCode int // 0 when unknown
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// newTransportError wraps err, pulling the HTTP status from known SDK error types
func newTransportError(provider string, err error) *TransportError {
	te := &TransportError{Provider: provider, Err: err}

	var gErr *googleapi.Error
	var genaiErr genai.APIError
	var oaErr *openai.APIError
	var oaReqErr *openai.RequestError

	switch {
	case errors.As(err, &gErr):
		te.StatusCode = gErr.Code
	case errors.As(err, &genaiErr):
		te.StatusCode = genaiErr.Code
	case errors.As(err, &oaErr):
		te.StatusCode = oaErr.HTTPStatusCode
	case errors.As(err, &oaReqErr):
		te.StatusCode = oaReqErr.HTTPStatusCode
	}
	return te
}

// IsRateLimitError reports whether err signals rate limiting or quota exhaustion
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}

// IsRetryable reports whether a failed call is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsRateLimitError(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var te *TransportError
	if errors.As(err, &te) {
		switch {
		case te.StatusCode >= 500:
			return true
		case te.StatusCode == 0:
			msg := strings.ToLower(te.Error())
			return strings.Contains(msg, "unavailable") ||
				strings.Contains(msg, "connection reset") ||
				strings.Contains(msg, "timeout")
		}
	}
	return false
}
