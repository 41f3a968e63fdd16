// Package llmtest provides an in-memory llm.Client for tests.
package llmtest

import (
	"context"
	"sync"
)

// Responder produces a response for a prompt
type Responder func(ctx context.Context, prompt string) (string, error)

// Stub is a scripted llm.Client that records every prompt it receives
type Stub struct {
	mu        sync.Mutex
	respond   Responder
	prompts   []string
	closed    bool
	ProviderN string
}

// New returns a stub that answers every prompt with respond
func New(respond Responder) *Stub {
	return &Stub{respond: respond, ProviderN: "stub"}
}

// Fixed returns a stub that always answers with text
func Fixed(text string) *Stub {
	return New(func(context.Context, string) (string, error) { return text, nil })
}

// Failing returns a stub that always fails with err
func Failing(err error) *Stub {
	return New(func(context.Context, string) (string, error) { return "", err })
}

// Sequence returns a stub that replays responses in order and repeats the last one
func Sequence(responses ...string) *Stub {
	var (
		mu sync.Mutex
		i  int
	)
	return New(func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return "", nil
		}
		r := responses[min(i, len(responses)-1)]
		i++
		return r, nil
	})
}

func (s *Stub) GenerateContent(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.respond(ctx, prompt)
}

func (s *Stub) Provider() string { return s.ProviderN }

func (s *Stub) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Prompts returns a copy of the prompts received so far
func (s *Stub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Calls returns the number of prompts received
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Closed reports whether Close was called
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
