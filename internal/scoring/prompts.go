package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fmuoria/resume-screener/internal/models"
)

// Resume excerpt limits, in characters
const (
	ComparativeResumeLimit = 2000
	DetailedResumeLimit    = 4000
	FeedbackTextLimit      = 2000
)

// comparativeEntry is one candidate as shown to the model in the comparative prompt
type comparativeEntry struct {
	Label  string
	Resume string
}

// buildComparativePrompt asks for criterion scores for every candidate at once
func buildComparativePrompt(jobDescription string, criteria []string, entries []comparativeEntry) string {
	var sb strings.Builder

	sb.WriteString("You are an expert resume screener. Evaluate and compare the following candidates for a job position.\n\n")

	sb.WriteString("## JOB DESCRIPTION\n")
	sb.WriteString(sanitizeUTF8(jobDescription))
	sb.WriteString("\n\n")

	sb.WriteString("## EVALUATION CRITERIA\n")
	sb.WriteString(strings.Join(criteria, ", "))
	sb.WriteString("\n\n")

	sb.WriteString("## CANDIDATES\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("Candidate: %s\nResume:\n%s\n\n", e.Label, truncate(sanitizeUTF8(e.Resume), ComparativeResumeLimit)))
	}

	sb.WriteString("## EVALUATION INSTRUCTIONS\n")
	sb.WriteString("Score each candidate on each criterion from 0 to 10, where 10 is a perfect match. ")
	sb.WriteString("Consider how the candidates compare to each other. Give a score for every criterion.\n\n")
	sb.WriteString("Format your response as:\n\n")
	sb.WriteString("CANDIDATE: [Candidate Name]\n")
	for _, c := range criteria {
		sb.WriteString(fmt.Sprintf("%s: [Score 0-10]\n", c))
	}
	sb.WriteString("\nRepeat for each candidate, using the candidate names exactly as given. Be objective and fair.\n")

	return sb.String()
}

// buildDetailedPrompt asks for a score and justification per criterion for one candidate
func buildDetailedPrompt(jobDescription string, criteria []string, resume string, prior map[string]int) string {
	var sb strings.Builder

	sb.WriteString("You are an expert resume screener. Evaluate the following resume against the job description and criteria.\n\n")

	sb.WriteString("## JOB DESCRIPTION\n")
	sb.WriteString(sanitizeUTF8(jobDescription))
	sb.WriteString("\n\n")

	sb.WriteString("## RESUME\n")
	sb.WriteString(truncate(sanitizeUTF8(resume), DetailedResumeLimit))
	sb.WriteString("\n\n")

	if len(prior) > 0 {
		sb.WriteString("## PRIOR SCORES\n")
		sb.WriteString("Based on a comparative analysis, these scores were already assigned:\n")
		for _, c := range criteria {
			if s, ok := prior[c]; ok {
				sb.WriteString(fmt.Sprintf("%s: %d/10\n", c, s))
			}
		}
		sb.WriteString("Provide detailed justifications for these scores.\n\n")
	}

	sb.WriteString("## EVALUATION INSTRUCTIONS\n")
	sb.WriteString("Evaluate the candidate on each of the following criteria from 0 to 10, where 10 is a perfect match:\n")
	sb.WriteString(strings.Join(criteria, ", "))
	sb.WriteString("\n\nFor each criterion provide a score and a justification of 2-3 sentences.\n\n")
	sb.WriteString("Format your response EXACTLY as follows for each criterion:\n\n")
	sb.WriteString("CRITERION: [Name of Criterion]\n")
	sb.WriteString("SCORE: [Score 0-10]\n")
	sb.WriteString("JUSTIFICATION: [Your detailed justification]\n\n")
	sb.WriteString("Repeat this format for each criterion. Be specific.\n")

	return sb.String()
}

// buildFeedbackPrompt asks for strengths, gaps and an overall assessment
func buildFeedbackPrompt(jobDescription, resume string, breakdown []models.CriterionScore) string {
	var sb strings.Builder

	sb.WriteString("You are an expert resume reviewer. Generate constructive feedback for a candidate based on their resume and how it matches the job description.\n\n")

	sb.WriteString("## JOB DESCRIPTION\n")
	sb.WriteString(truncate(sanitizeUTF8(jobDescription), FeedbackTextLimit))
	sb.WriteString("\n\n")

	sb.WriteString("## RESUME\n")
	sb.WriteString(truncate(sanitizeUTF8(resume), FeedbackTextLimit))
	sb.WriteString("\n\n")

	sb.WriteString("## EVALUATION SCORES\n")
	for _, cs := range breakdown {
		sb.WriteString(fmt.Sprintf("%s: %d/10\n", cs.Criterion, cs.Score))
	}

	sb.WriteString("\nProvide the following feedback:\n")
	sb.WriteString("1. 3 key strengths of the candidate for this role\n")
	sb.WriteString("2. 3 areas for improvement or missing qualifications\n")
	sb.WriteString("3. Overall assessment of fit for the role\n\n")
	sb.WriteString("Format your response in a professional and constructive manner.\n")

	return sb.String()
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode replacement character
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// truncate cuts s to maxLen characters and appends "..." when it was longer
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen]) + "..."
}
