package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/metrics"
	"github.com/fmuoria/resume-screener/internal/models"
)

// APIErrorJustification is used when the language model service rejected the call
const APIErrorJustification = "Unable to evaluate due to API error."

// DetailedPass scores one candidate per request and asks for a justification
// of every criterion, seeded with the candidate's comparative scores.
type DetailedPass struct {
	client llm.Client
	logger *slog.Logger
}

// NewDetailedPass creates a detailed pass backed by client
func NewDetailedPass(client llm.Client, logger *slog.Logger) *DetailedPass {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailedPass{client: client, logger: logger}
}

// Run evaluates a single submission. prior may be nil.
//
// The returned maps always cover every criterion. On failure every criterion
// keeps its prior score, or DefaultScore without one, and carries a
// justification describing the failure; the error is returned alongside so
// the caller can record it.
func (p *DetailedPass) Run(ctx context.Context, jobDescription string, criteria []string, sub models.CandidateSubmission, prior map[string]int) (map[string]int, map[string]string, error) {
	response, err := p.client.GenerateContent(ctx, buildDetailedPrompt(jobDescription, criteria, sub.ResumeText, prior))
	if err != nil {
		metrics.PassFailed("detailed")
		p.logger.WarnContext(ctx, "detailed pass failed",
			slog.String("candidate_id", sub.ID),
			slog.String("candidate", sub.Name),
			slog.String("error", err.Error()),
		)
		scores, justs := failureDefaults(criteria, prior, err)
		return scores, justs, fmt.Errorf("detailed evaluation of %s: %w", sub.Name, err)
	}

	scores, justs := ParseDetailed(response, criteria, prior)
	scores, justs = Complete(criteria, scores, justs, prior)
	return scores, justs, nil
}

// failureDefaults fills every criterion after a failed call
func failureDefaults(criteria []string, prior map[string]int, err error) (map[string]int, map[string]string) {
	msg := failureJustification(err)
	justs := make(map[string]string, len(criteria))
	for _, c := range criteria {
		justs[c] = msg
	}
	scores, _ := Complete(criteria, nil, nil, prior)
	return scores, justs
}

// failureJustification describes err for a report reader
func failureJustification(err error) string {
	var te *llm.TransportError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return APIErrorJustification
	}
	if errors.Is(err, llm.ErrEmptyResponse) {
		return APIErrorJustification
	}
	return fmt.Sprintf("Error during evaluation: %v", err)
}
