package scoring

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/models"
)

// FeedbackUnavailable is returned when feedback could not be generated
const FeedbackUnavailable = "Unable to generate feedback at this time."

// FeedbackWriter produces written feedback for an evaluated candidate
type FeedbackWriter struct {
	client llm.Client
	logger *slog.Logger
}

// NewFeedbackWriter creates a feedback writer backed by client
func NewFeedbackWriter(client llm.Client, logger *slog.Logger) *FeedbackWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackWriter{client: client, logger: logger}
}

// Generate returns strengths, improvement areas and an overall assessment.
// Failures are logged and yield FeedbackUnavailable.
func (w *FeedbackWriter) Generate(ctx context.Context, jobDescription, resume string, breakdown []models.CriterionScore) string {
	response, err := w.client.GenerateContent(ctx, buildFeedbackPrompt(jobDescription, resume, breakdown))
	if err != nil {
		w.logger.WarnContext(ctx, "feedback generation failed", slog.String("error", err.Error()))
		return FeedbackUnavailable
	}
	if text := strings.TrimSpace(response); text != "" {
		return text
	}
	return FeedbackUnavailable
}
