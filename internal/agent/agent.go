// Package agent ties sessions, resume ingestion, evaluation and reporting
// together behind one facade used by the HTTP API and the CLI.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fmuoria/resume-screener/internal/criteria"
	"github.com/fmuoria/resume-screener/internal/evaluation"
	"github.com/fmuoria/resume-screener/internal/export"
	"github.com/fmuoria/resume-screener/internal/ingestion"
	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/scoring"
	"github.com/fmuoria/resume-screener/internal/session"
)

// DefaultMaxCriteria caps how many criteria a session may select
const DefaultMaxCriteria = 8

var (
	// ErrNoResults is returned when a session has not been evaluated yet
	ErrNoResults = errors.New("no results available, run evaluation first")
	// ErrCandidateNotFound is returned for an unknown candidate ID
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrGmailUnavailable is returned when no Gmail handler is configured
	ErrGmailUnavailable = errors.New("gmail ingestion is not configured")
	// ErrSessionChanged is returned when resumes or criteria changed while an
	// evaluation was running; its results are discarded
	ErrSessionChanged = errors.New("session changed during evaluation")
)

// ProgressCallback is called to report progress during processing
type ProgressCallback func(current, total int, message string)

// Agent runs screening sessions
type Agent struct {
	client       llm.Client
	store        session.Store
	files        *ingestion.FileHandler
	gmail        *ingestion.GmailHandler
	generator    *criteria.Generator
	orchestrator *evaluation.Orchestrator
	feedback     *scoring.FeedbackWriter
	validate     *validator.Validate
	logger       *slog.Logger

	maxCriteria  int
	maxGenerated int
	workers      int

	// sessionMu serialises read-modify-write cycles on the store
	sessionMu  sync.Mutex
	mu         sync.RWMutex
	progressCb ProgressCallback
}

// Option configures an Agent
type Option func(*Agent)

// WithMaxCriteria caps the number of selectable criteria
func WithMaxCriteria(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxCriteria = n
		}
	}
}

// WithMaxGenerated caps the number of generated criteria
func WithMaxGenerated(n int) Option {
	return func(a *Agent) { a.maxGenerated = n }
}

// WithWorkers sets the number of concurrent detailed evaluations
func WithWorkers(n int) Option {
	return func(a *Agent) { a.workers = n }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithGmail enables fetching resumes from a mailbox
func WithGmail(gh *ingestion.GmailHandler) Option {
	return func(a *Agent) { a.gmail = gh }
}

// New creates an agent. The agent owns client and closes it in Close.
func New(client llm.Client, store session.Store, files *ingestion.FileHandler, opts ...Option) *Agent {
	a := &Agent{
		client:      client,
		store:       store,
		files:       files,
		validate:    validator.New(),
		logger:      slog.Default(),
		maxCriteria: DefaultMaxCriteria,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("component", "agent"))

	a.generator = criteria.NewGenerator(client, a.logger)
	if a.maxGenerated > 0 {
		a.generator.SetMax(a.maxGenerated)
	}
	a.orchestrator = evaluation.New(client, a.logger, evaluation.WithWorkers(a.workers))
	a.feedback = scoring.NewFeedbackWriter(client, a.logger)
	return a
}

// SetProgressCallback sets the progress callback function
func (a *Agent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

// reportProgress calls the progress callback if set
func (a *Agent) reportProgress(current, total int, message string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		cb(current, total, message)
	}
}

// MaxCriteria returns how many criteria a session may select
func (a *Agent) MaxCriteria() int {
	return a.maxCriteria
}

// CreateSession starts a session for a job description and generates
// candidate criteria and key requirements for it
func (a *Agent) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	req.JobTitle = strings.TrimSpace(req.JobTitle)
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", evaluation.ErrContractViolation, err)
	}

	a.reportProgress(0, 2, "Generating evaluation criteria...")
	generated := a.generator.Generate(ctx, req.JobDescription)
	a.reportProgress(1, 2, "Analyzing job requirements...")
	requirements := a.generator.AnalyzeRequirements(ctx, req.JobDescription)
	a.reportProgress(2, 2, "Session ready")

	s := &models.Session{
		ID:                uuid.NewString(),
		JobTitle:          req.JobTitle,
		JobDescription:    req.JobDescription,
		GeneratedCriteria: generated,
		Requirements:      requirements,
		CreatedAt:         time.Now().UTC(),
	}
	if err := a.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	a.logger.InfoContext(ctx, "session created",
		slog.String("session", s.ID),
		slog.Int("criteria", len(generated)),
	)
	return s, nil
}

// Session returns the stored session
func (a *Agent) Session(ctx context.Context, id string) (*models.Session, error) {
	s, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return s, nil
}

// SaveSession replaces the stored state of a session
func (a *Agent) SaveSession(ctx context.Context, s *models.Session) error {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: session has no ID", evaluation.ErrContractViolation)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	if err := a.store.Put(ctx, s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session and its stored uploads
func (a *Agent) DeleteSession(ctx context.Context, id string) error {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()

	s, err := a.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	for _, sub := range s.Submissions {
		if err := a.files.Remove(sub); err != nil {
			a.logger.WarnContext(ctx, "failed to remove upload",
				slog.String("session", id),
				slog.String("candidate", sub.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SetCriteria selects and weights the criteria of a session. Previous
// results are discarded.
func (a *Agent) SetCriteria(ctx context.Context, id string, selected []models.Criterion) (*models.Session, error) {
	if err := a.checkCriteria(selected); err != nil {
		return nil, err
	}

	return a.update(ctx, id, func(s *models.Session) error {
		s.Criteria = append([]models.Criterion(nil), selected...)
		clearResults(s)
		return nil
	})
}

func (a *Agent) checkCriteria(selected []models.Criterion) error {
	if err := a.validate.Struct(models.CriteriaRequest{Criteria: selected}); err != nil {
		return fmt.Errorf("%w: %v", evaluation.ErrContractViolation, err)
	}
	if len(selected) > a.maxCriteria {
		return fmt.Errorf("%w: at most %d criteria may be selected, got %d",
			evaluation.ErrContractViolation, a.maxCriteria, len(selected))
	}

	seen := make(map[string]bool, len(selected))
	for _, c := range selected {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: blank criterion name", evaluation.ErrContractViolation)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate criterion %q", evaluation.ErrContractViolation, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// AddResume stores an uploaded resume and adds it to the session
func (a *Agent) AddResume(ctx context.Context, id, filename string, content io.Reader) (models.CandidateSubmission, error) {
	if _, err := a.Session(ctx, id); err != nil {
		return models.CandidateSubmission{}, err
	}

	sub, err := a.files.Ingest(filename, content)
	if err != nil {
		return models.CandidateSubmission{}, fmt.Errorf("failed to ingest %s: %w", filename, err)
	}

	if _, err := a.update(ctx, id, func(s *models.Session) error {
		s.Submissions = append(s.Submissions, sub)
		clearResults(s)
		return nil
	}); err != nil {
		_ = a.files.Remove(sub)
		return models.CandidateSubmission{}, err
	}

	a.logger.InfoContext(ctx, "resume added",
		slog.String("session", id),
		slog.String("candidate", sub.ID),
		slog.String("name", sub.Name),
	)
	return sub, nil
}

// FetchFromGmail adds the attachments of messages matching subject to the session
func (a *Agent) FetchFromGmail(ctx context.Context, id, subject string) ([]models.CandidateSubmission, error) {
	if a.gmail == nil {
		return nil, ErrGmailUnavailable
	}
	if _, err := a.Session(ctx, id); err != nil {
		return nil, err
	}

	a.reportProgress(0, 1, "Fetching emails from Gmail...")
	subs, err := a.gmail.FetchAttachments(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Gmail attachments: %w", err)
	}

	if _, err := a.update(ctx, id, func(s *models.Session) error {
		s.Submissions = append(s.Submissions, subs...)
		clearResults(s)
		return nil
	}); err != nil {
		for _, sub := range subs {
			_ = a.files.Remove(sub)
		}
		return nil, err
	}

	a.reportProgress(1, 1, fmt.Sprintf("Fetched %d resumes", len(subs)))
	return subs, nil
}

// Evaluate scores every submission of the session against its criteria and
// stores the ranked results. When the language model could not score any
// candidate the defaulted results are still stored and Outcome.Err is
// returned as the error.
func (a *Agent) Evaluate(ctx context.Context, id string) (*evaluation.Outcome, error) {
	s, err := a.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	batch := s.Batch()
	outcome, err := a.orchestrator.EvaluateWithProgress(ctx, batch, evaluation.ProgressFunc(a.reportProgress))
	if err != nil {
		return outcome, err
	}

	now := time.Now().UTC()
	if _, err := a.update(ctx, id, func(s *models.Session) error {
		if !sameBatch(s.Batch(), batch) {
			return fmt.Errorf("%w: evaluate the session again", ErrSessionChanged)
		}
		s.Results = outcome.Ranked
		s.EvaluatedAt = &now
		return nil
	}); err != nil {
		return outcome, err
	}

	return outcome, outcome.Err
}

// Report returns the ranked results of an evaluated session
func (a *Agent) Report(ctx context.Context, id string) (models.ReportResponse, error) {
	s, err := a.evaluated(ctx, id)
	if err != nil {
		return models.ReportResponse{}, err
	}

	timestamp := time.Now().UTC()
	if s.EvaluatedAt != nil {
		timestamp = *s.EvaluatedAt
	}
	return models.ReportResponse{
		SessionID:  s.ID,
		JobTitle:   s.JobTitle,
		Criteria:   s.Criteria,
		Candidates: s.Results,
		Timestamp:  timestamp.Format(time.RFC3339),
	}, nil
}

// Feedback writes feedback for one evaluated candidate and stores it with
// the result
func (a *Agent) Feedback(ctx context.Context, id, candidateID string) (string, error) {
	s, err := a.evaluated(ctx, id)
	if err != nil {
		return "", err
	}

	var (
		result *models.CandidateResult
		resume string
	)
	for i := range s.Results {
		if s.Results[i].ID == candidateID {
			result = &s.Results[i]
			break
		}
	}
	if result == nil {
		return "", fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
	}
	for _, sub := range s.Submissions {
		if sub.ID == candidateID {
			resume = sub.ResumeText
			break
		}
	}

	text := a.feedback.Generate(ctx, s.JobDescription, resume, result.Breakdown(s.Criteria))
	if text == scoring.FeedbackUnavailable {
		return text, nil
	}

	if _, err := a.update(ctx, id, func(s *models.Session) error {
		for i := range s.Results {
			if s.Results[i].ID == candidateID {
				s.Results[i].Feedback = text
			}
		}
		return nil
	}); err != nil {
		return "", err
	}
	return text, nil
}

// WriteCSV writes the basic report of an evaluated session
func (a *Agent) WriteCSV(ctx context.Context, id string, w io.Writer) error {
	s, err := a.evaluated(ctx, id)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, s.Results, s.Criteria)
}

// WriteDetailedCSV writes the report with justifications
func (a *Agent) WriteDetailedCSV(ctx context.Context, id string, w io.Writer) error {
	s, err := a.evaluated(ctx, id)
	if err != nil {
		return err
	}
	return export.WriteDetailedCSV(w, s.Results, s.Criteria)
}

// WriteExcel writes the workbook report
func (a *Agent) WriteExcel(ctx context.Context, id string, w io.Writer) error {
	s, err := a.evaluated(ctx, id)
	if err != nil {
		return err
	}
	return export.WriteExcel(w, excelReport(s))
}

// ExportExcel saves the workbook report to path and returns the final path
func (a *Agent) ExportExcel(ctx context.Context, id, path string) (string, error) {
	s, err := a.evaluated(ctx, id)
	if err != nil {
		return "", err
	}
	return export.ExportToExcel(excelReport(s), path)
}

// Close cleans up resources
func (a *Agent) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Agent) evaluated(ctx context.Context, id string) (*models.Session, error) {
	s, err := a.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(s.Results) == 0 {
		return nil, ErrNoResults
	}
	return s, nil
}

// update applies fn to the stored session and saves it
func (a *Agent) update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()

	s, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := a.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s, nil
}

// sameBatch reports whether two batches score the same candidates against
// the same weighted criteria
func sameBatch(a, b models.EvaluationBatch) bool {
	if a.JobDescription != b.JobDescription ||
		!slices.Equal(a.Criteria, b.Criteria) ||
		len(a.Submissions) != len(b.Submissions) {
		return false
	}
	for i := range a.Submissions {
		if a.Submissions[i].ID != b.Submissions[i].ID {
			return false
		}
	}
	return true
}

func clearResults(s *models.Session) {
	s.Results = nil
	s.EvaluatedAt = nil
}

func excelReport(s *models.Session) export.Report {
	generated := time.Now().UTC()
	if s.EvaluatedAt != nil {
		generated = *s.EvaluatedAt
	}
	return export.Report{
		JobTitle:       s.JobTitle,
		JobDescription: s.JobDescription,
		Criteria:       s.Criteria,
		Results:        s.Results,
		GeneratedAt:    generated,
	}
}
