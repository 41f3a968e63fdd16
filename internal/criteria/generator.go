// Package criteria derives evaluation criteria and key requirements from a
// job description.
package criteria

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/fmuoria/resume-screener/internal/llm"
)

const (
	// MinGenerated triggers a follow-up request when fewer criteria come back
	MinGenerated = 10
	// MaxGenerated caps the generated list
	MaxGenerated = 15

	maxCriterionLength = 50
	// near-duplicate threshold on folded names, applied from nearDupMinLength on
	maxEditDistance  = 2
	nearDupMinLength = 8
)

// NotAvailable fills requirement categories that could not be analysed
const NotAvailable = "Not available"

// DefaultCriteria is returned when generation fails
var DefaultCriteria = []string{
	"Technical Skills",
	"Experience",
	"Education",
	"Communication Skills",
	"Problem Solving",
	"Team Collaboration",
	"Industry Knowledge",
	"Project Management",
	"Leadership Abilities",
	"Adaptability",
}

// RequirementCategories are the sections AnalyzeRequirements reports on
var RequirementCategories = []string{
	"Technical Skills",
	"Experience Level",
	"Education Requirements",
	"Industry Knowledge",
}

// Generator asks the language model for criteria and requirements
type Generator struct {
	client llm.Client
	logger *slog.Logger
	max    int
}

// NewGenerator creates a generator backed by client
func NewGenerator(client llm.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, logger: logger.With(slog.String("component", "criteria")), max: MaxGenerated}
}

// SetMax caps the number of generated criteria. Values below MinGenerated
// are ignored.
func (g *Generator) SetMax(n int) {
	if n >= MinGenerated {
		g.max = n
	}
}

// Generate returns between MinGenerated and the configured maximum criteria where the
// model cooperates. Errors are logged and DefaultCriteria returned.
func (g *Generator) Generate(ctx context.Context, jobDescription string) []string {
	response, err := g.client.GenerateContent(ctx, buildCriteriaPrompt(jobDescription))
	if err != nil {
		g.logger.WarnContext(ctx, "criteria generation failed, using defaults", slog.String("error", err.Error()))
		return defaults()
	}

	list := appendUnique(nil, ParseCriteriaList(response))

	if len(list) < MinGenerated {
		more, err := g.client.GenerateContent(ctx, buildMoreCriteriaPrompt(jobDescription, list))
		if err != nil {
			g.logger.WarnContext(ctx, "additional criteria request failed", slog.String("error", err.Error()))
		} else {
			list = appendUnique(list, ParseCriteriaList(more))
		}
	}

	if len(list) == 0 {
		g.logger.WarnContext(ctx, "model returned no usable criteria, using defaults")
		return defaults()
	}
	if len(list) > g.max {
		list = list[:g.max]
	}

	g.logger.InfoContext(ctx, "criteria generated", slog.Int("count", len(list)))
	return list
}

// AnalyzeRequirements extracts key requirements per category. Every
// category in RequirementCategories is present in the result; failures yield
// NotAvailable.
func (g *Generator) AnalyzeRequirements(ctx context.Context, jobDescription string) map[string]string {
	out := make(map[string]string, len(RequirementCategories))
	for _, c := range RequirementCategories {
		out[c] = NotAvailable
	}

	response, err := g.client.GenerateContent(ctx, buildRequirementsPrompt(jobDescription))
	if err != nil {
		g.logger.WarnContext(ctx, "requirement analysis failed", slog.String("error", err.Error()))
		return out
	}

	for category, value := range ParseRequirements(response) {
		out[category] = value
	}
	return out
}

// ParseCriteriaList keeps short, non-sentence lines of a model response and
// strips list markers and emphasis
func ParseCriteriaList(text string) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" || len(line) >= maxCriterionLength || strings.Contains(line, ".") {
			continue
		}
		if strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ParseRequirements reads "Category: value" lines. Labels are mapped onto
// RequirementCategories when they match; other labels are kept as written.
func ParseRequirements(text string) map[string]string {
	out := make(map[string]string)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = cleanLine(key)
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), "*"))
		if key == "" || value == "" {
			continue
		}
		for _, c := range RequirementCategories {
			if strings.EqualFold(c, key) {
				key = c
				break
			}
		}
		out[key] = value
	}
	return out
}

// appendUnique adds candidates to list, skipping names within a small edit
// distance of one already present
func appendUnique(list, candidates []string) []string {
	fold := cases.Fold()
	folded := make([]string, len(list))
	for i, c := range list {
		folded[i] = fold.String(c)
	}

	for _, c := range candidates {
		f := fold.String(c)
		dup := false
		for _, existing := range folded {
			if nearDuplicate(f, existing) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		list = append(list, c)
		folded = append(folded, f)
	}
	return list
}

// nearDuplicate compares folded names. Short names must match exactly so
// "Go" and "C#" stay distinct.
func nearDuplicate(a, b string) bool {
	if a == b {
		return true
	}
	if min(len(a), len(b)) < nearDupMinLength {
		return false
	}
	return levenshtein.ComputeDistance(a, b) <= maxEditDistance
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•>#")
	s = strings.TrimSpace(s)

	// numbered list "1." or "2)"
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.Trim(s, "*_` "))
}

func defaults() []string {
	out := make([]string, len(DefaultCriteria))
	copy(out, DefaultCriteria)
	return out
}

func buildCriteriaPrompt(jobDescription string) string {
	var sb strings.Builder
	sb.WriteString("Based on the following job description, identify 10-15 key evaluation criteria that would be important for screening candidates. ")
	sb.WriteString("These should be specific, measurable aspects that can be evaluated from a resume.\n\n")
	sb.WriteString("## JOB DESCRIPTION\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\n")
	sb.WriteString("Format your response as a simple list of criteria, one per line, without numbering or bullet points. For example:\n")
	sb.WriteString("Technical Skills\nYears of Experience\nEducation Level\nIndustry Knowledge\nProject Management Experience\n\n")
	sb.WriteString(fmt.Sprintf("Provide at least %d different criteria, but no more than %d.\n", MinGenerated, MaxGenerated))
	return sb.String()
}

func buildMoreCriteriaPrompt(jobDescription string, existing []string) string {
	var sb strings.Builder
	sb.WriteString("Based on the following job description, identify additional evaluation criteria that would be important for screening candidates. ")
	sb.WriteString("These should be specific, measurable aspects that can be evaluated from a resume.\n\n")
	sb.WriteString("## JOB DESCRIPTION\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\n")
	if len(existing) > 0 {
		sb.WriteString("I already have these criteria:\n")
		sb.WriteString(strings.Join(existing, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Provide 5-10 ADDITIONAL criteria that are different from the ones I already have. ")
	sb.WriteString("Format your response as a simple list of criteria, one per line, without numbering or bullet points.\n")
	return sb.String()
}

func buildRequirementsPrompt(jobDescription string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following job description and extract key requirements in these categories:\n")
	for i, c := range RequirementCategories {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, c))
	}
	sb.WriteString("\n## JOB DESCRIPTION\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\nFormat your response as:\n")
	sb.WriteString("Technical Skills: [list skills separated by commas]\n")
	sb.WriteString("Experience Level: [experience level]\n")
	sb.WriteString("Education Requirements: [education requirements]\n")
	sb.WriteString("Industry Knowledge: [industry knowledge areas]\n")
	return sb.String()
}
