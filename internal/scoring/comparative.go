package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/metrics"
	"github.com/fmuoria/resume-screener/internal/models"
)

// ComparativePass scores every candidate in a single request so the model
// can judge them relative to each other. It produces no justifications.
type ComparativePass struct {
	client llm.Client
	logger *slog.Logger
}

// NewComparativePass creates a comparative pass backed by client
func NewComparativePass(client llm.Client, logger *slog.Logger) *ComparativePass {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComparativePass{client: client, logger: logger}
}

// Run returns comparative scores keyed by submission ID, then criterion.
// Any failure yields an empty map; a candidate missing from the result has no
// comparative prior.
func (p *ComparativePass) Run(ctx context.Context, jobDescription string, criteria []string, subs []models.CandidateSubmission) map[string]map[string]int {
	out := make(map[string]map[string]int)
	if len(subs) == 0 || len(criteria) == 0 {
		return out
	}

	labels := candidateLabels(subs)
	entries := make([]comparativeEntry, len(subs))
	for i, s := range subs {
		entries[i] = comparativeEntry{Label: labels[i], Resume: s.ResumeText}
	}

	response, err := p.client.GenerateContent(ctx, buildComparativePrompt(jobDescription, criteria, entries))
	if err != nil {
		metrics.PassFailed("comparative")
		p.logger.WarnContext(ctx, "comparative pass failed",
			slog.Int("candidates", len(subs)),
			slog.String("error", err.Error()),
		)
		return out
	}

	parsed := ParseComparative(response, criteria)
	for label, scores := range parsed {
		idx, ok := resolveLabel(label, labels)
		if !ok {
			p.logger.DebugContext(ctx, "comparative label matched no candidate", slog.String("label", label))
			continue
		}
		id := subs[idx].ID
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = scores
	}

	if len(out) == 0 {
		metrics.PassFailed("comparative")
		p.logger.WarnContext(ctx, "comparative response had no usable candidate blocks")
	}
	return out
}

// candidateLabels returns the name shown to the model for each submission.
// Repeated display names get a " #n" suffix so every label is distinct.
func candidateLabels(subs []models.CandidateSubmission) []string {
	counts := make(map[string]int, len(subs))
	for _, s := range subs {
		counts[displayName(s)]++
	}

	seen := make(map[string]int, len(subs))
	labels := make([]string, len(subs))
	for i, s := range subs {
		name := displayName(s)
		if counts[name] == 1 {
			labels[i] = name
			continue
		}
		seen[name]++
		labels[i] = fmt.Sprintf("%s #%d", name, seen[name])
	}
	return labels
}

func displayName(s models.CandidateSubmission) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return s.ID
}

// resolveLabel finds the candidate a response label refers to. Exact matches
// win over case-insensitive ones, which win over a unique containment match.
func resolveLabel(label string, labels []string) (int, bool) {
	for i, l := range labels {
		if l == label {
			return i, true
		}
	}
	for i, l := range labels {
		if strings.EqualFold(l, label) {
			return i, true
		}
	}

	lower := strings.ToLower(label)
	found := -1
	for i, l := range labels {
		ll := strings.ToLower(l)
		if strings.Contains(ll, lower) || strings.Contains(lower, ll) {
			if found >= 0 {
				return 0, false
			}
			found = i
		}
	}
	return found, found >= 0
}
