package models

import "time"

// Criterion is a named evaluation dimension with its priority weight
type Criterion struct {
	Name     string `json:"name" validate:"required,max=100"`
	Priority int    `json:"priority" validate:"min=1,max=10"`
}

// CandidateSubmission holds one uploaded resume.
// ID is unique per submission; Name is the display name and may repeat.
type CandidateSubmission struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ResumeText string `json:"resume_text"`
	SourcePath string `json:"source_path,omitempty"`
}

// CriterionScore is the score and justification for one criterion
type CriterionScore struct {
	Criterion     string `json:"criterion"`
	Score         int    `json:"score"`         // 0-10
	Justification string `json:"justification"` // may be a placeholder
}

// Scorecard holds the reconciled per-criterion scores for one candidate
type Scorecard struct {
	Scores         map[string]int    `json:"criteria_scores"`
	Justifications map[string]string `json:"justifications"`
}

// CandidateResult is the evaluation result for one candidate
type CandidateResult struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	CriteriaScores map[string]int    `json:"criteria_scores"`
	Justifications map[string]string `json:"justifications"`
	OverallScore   float64           `json:"overall_score"` // 0-100
	Rank           int               `json:"rank"`
	Feedback       string            `json:"feedback,omitempty"`
	SourcePath     string            `json:"source_path,omitempty"`
}

// Breakdown returns the result's scores in criteria order
func (r CandidateResult) Breakdown(criteria []Criterion) []CriterionScore {
	out := make([]CriterionScore, 0, len(criteria))
	for _, c := range criteria {
		out = append(out, CriterionScore{
			Criterion:     c.Name,
			Score:         r.CriteriaScores[c.Name],
			Justification: r.Justifications[c.Name],
		})
	}
	return out
}

// EvaluationBatch is the full input of one evaluation run
type EvaluationBatch struct {
	JobDescription string                `json:"job_description"`
	Criteria       []Criterion           `json:"criteria"`
	Submissions    []CandidateSubmission `json:"submissions"`
}

// CriteriaNames returns the criterion names in order
func (b EvaluationBatch) CriteriaNames() []string {
	return CriteriaNames(b.Criteria)
}

// Priorities returns the criterion priorities keyed by name
func (b EvaluationBatch) Priorities() map[string]int {
	return Priorities(b.Criteria)
}

// CriteriaNames returns the names of the given criteria in order
func CriteriaNames(criteria []Criterion) []string {
	names := make([]string, len(criteria))
	for i, c := range criteria {
		names[i] = c.Name
	}
	return names
}

// Priorities maps each criterion name to its priority
func Priorities(criteria []Criterion) map[string]int {
	p := make(map[string]int, len(criteria))
	for _, c := range criteria {
		p[c.Name] = c.Priority
	}
	return p
}

// Session is the state of one screening session
type Session struct {
	ID                string                `json:"id"`
	JobTitle          string                `json:"job_title,omitempty"`
	JobDescription    string                `json:"job_description"`
	GeneratedCriteria []string              `json:"generated_criteria,omitempty"`
	Requirements      map[string]string     `json:"requirements,omitempty"`
	Criteria          []Criterion           `json:"criteria,omitempty"`
	Submissions       []CandidateSubmission `json:"submissions,omitempty"`
	Results           []CandidateResult     `json:"results,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	EvaluatedAt       *time.Time            `json:"evaluated_at,omitempty"`
}

// Batch builds the evaluation input for the session
func (s *Session) Batch() EvaluationBatch {
	return EvaluationBatch{
		JobDescription: s.JobDescription,
		Criteria:       s.Criteria,
		Submissions:    s.Submissions,
	}
}

// CreateSessionRequest starts a session from a job description
type CreateSessionRequest struct {
	JobTitle       string `json:"job_title" validate:"max=200"`
	JobDescription string `json:"job_description" validate:"required"`
}

// CriteriaRequest selects and weights criteria for a session
type CriteriaRequest struct {
	Criteria []Criterion `json:"criteria" validate:"required,min=1,dive"`
}

// ReportResponse represents the response with ranked candidates
type ReportResponse struct {
	SessionID  string            `json:"session_id"`
	JobTitle   string            `json:"job_title"`
	Criteria   []Criterion       `json:"criteria"`
	Candidates []CandidateResult `json:"candidates"`
	Timestamp  string            `json:"timestamp"`
}
