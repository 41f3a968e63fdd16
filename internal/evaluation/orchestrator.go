// Package evaluation runs the two-pass scoring pipeline over a batch of
// candidates and produces ranked results.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/metrics"
	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/scoring"
)

const tracerName = "github.com/fmuoria/resume-screener/internal/evaluation"

// DefaultWorkers bounds concurrent detailed evaluations
const DefaultWorkers = 4

var (
	// ErrContractViolation is returned for input the caller must validate:
	// no candidates, no criteria, bad priorities or duplicate identities.
	ErrContractViolation = scoring.ErrContractViolation

	// ErrServiceUnavailable is reported when no candidate could be scored by
	// the language model at all
	ErrServiceUnavailable = errors.New("language model service unavailable")
)

// State is the progress of one batch
type State string

const (
	StateStart           State = "start"
	StateComparativeDone State = "comparative_done"
	StateDetailedDone    State = "detailed_done"
	StateReconciled      State = "reconciled"
	StateAggregated      State = "aggregated"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// ProgressFunc receives progress updates during evaluation.
// It may be called from several goroutines, but never concurrently.
type ProgressFunc func(current, total int, message string)

// Outcome is the result of one batch
type Outcome struct {
	// Results holds one entry per submission, keyed by submission ID
	Results map[string]models.CandidateResult
	// Ranked holds the same results ordered by descending overall score
	Ranked []models.CandidateResult
	State  State
	// Failed counts candidates whose detailed pass fell back to defaults
	Failed int
	// Err is set when the batch finished in StateFailed
	Err error
}

// Orchestrator sequences the comparative pass, the per-candidate detailed
// passes, reconciliation and aggregation
type Orchestrator struct {
	comparative *scoring.ComparativePass
	detailed    *scoring.DetailedPass
	workers     int
	logger      *slog.Logger
	tracer      trace.Tracer
	validate    *validator.Validate
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithWorkers sets how many detailed evaluations may run at once
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// New creates an orchestrator that scores with client
func New(client llm.Client, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "evaluation"))

	o := &Orchestrator{
		comparative: scoring.NewComparativePass(client, logger),
		detailed:    scoring.NewDetailedPass(client, logger),
		workers:     DefaultWorkers,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate scores every submission in batch against its criteria
func (o *Orchestrator) Evaluate(ctx context.Context, batch models.EvaluationBatch) (*Outcome, error) {
	return o.EvaluateWithProgress(ctx, batch, nil)
}

// EvaluateWithProgress is Evaluate with progress reporting.
//
// Per-candidate failures are absorbed: the candidate keeps its comparative
// scores or DefaultScore. The returned outcome always holds one result per
// submission with every criterion scored and justified. An error is returned
// only for contract violations (with a nil outcome) and context cancellation
// (with an outcome in StateFailed).
func (o *Orchestrator) EvaluateWithProgress(ctx context.Context, batch models.EvaluationBatch, progress ProgressFunc) (*Outcome, error) {
	if err := o.Validate(batch); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "evaluation.evaluate",
		trace.WithAttributes(
			attribute.Int("evaluation.candidates", len(batch.Submissions)),
			attribute.Int("evaluation.criteria", len(batch.Criteria)),
			attribute.Int("evaluation.workers", o.workers),
		))
	defer span.End()

	start := time.Now()
	outcome := &Outcome{State: StateStart}
	report := newReporter(progress, len(batch.Submissions))

	names := batch.CriteriaNames()
	priorities := batch.Priorities()
	subs := batch.Submissions

	o.logger.InfoContext(ctx, "evaluation started",
		slog.Int("candidates", len(subs)),
		slog.Int("criteria", len(names)),
	)

	comparative := o.comparative.Run(ctx, batch.JobDescription, names, subs)
	if err := ctx.Err(); err != nil {
		return o.abort(ctx, span, outcome, err)
	}
	o.advance(ctx, outcome, StateComparativeDone)
	report(0, fmt.Sprintf("Comparative evaluation complete (%d of %d candidates scored)", len(comparative), len(subs)))

	slots := make([]models.CandidateResult, len(subs))
	var (
		mu       sync.Mutex
		failed   int
		lastErr  error
		finished int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i, sub := range subs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			prior := comparative[sub.ID]
			scores, justs, err := o.detailed.Run(gctx, batch.JobDescription, names, sub, prior)
			card := scoring.Reconcile(names, prior, scores, justs)

			overall, aggErr := scoring.OverallScore(card.Scores, priorities)
			if aggErr != nil {
				return aggErr
			}

			slots[i] = models.CandidateResult{
				ID:             sub.ID,
				Name:           sub.Name,
				CriteriaScores: card.Scores,
				Justifications: card.Justifications,
				OverallScore:   overall,
				SourcePath:     sub.SourcePath,
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = err
			}
			finished++
			report(finished, "Evaluated "+sub.Name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.abort(ctx, span, outcome, ctxErr)
		}
		return o.abort(ctx, span, outcome, err)
	}
	// workers absorb their own call errors, so a cancellation during the
	// last detailed calls only shows up here
	if err := ctx.Err(); err != nil {
		return o.abort(ctx, span, outcome, err)
	}
	outcome.Failed = failed
	o.advance(ctx, outcome, StateDetailedDone)
	o.advance(ctx, outcome, StateReconciled)

	ranked := make([]models.CandidateResult, len(slots))
	copy(ranked, slots)
	scoring.Rank(ranked)
	o.advance(ctx, outcome, StateAggregated)

	outcome.Ranked = ranked
	outcome.Results = make(map[string]models.CandidateResult, len(ranked))
	overall := make([]float64, len(ranked))
	for i, r := range ranked {
		outcome.Results[r.ID] = r
		overall[i] = r.OverallScore
	}

	o.advance(ctx, outcome, StateDone)
	if failed == len(subs) && len(comparative) == 0 {
		outcome.State = StateFailed
		outcome.Err = fmt.Errorf("%w: all %d detailed evaluations failed: %v", ErrServiceUnavailable, failed, lastErr)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}

	span.SetAttributes(
		attribute.String("evaluation.state", string(outcome.State)),
		attribute.Int("evaluation.failed", failed),
	)
	metrics.ObserveEvaluation(string(outcome.State), overall)

	o.logger.InfoContext(ctx, "evaluation finished",
		slog.String("state", string(outcome.State)),
		slog.Int("candidates", len(ranked)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
	return outcome, nil
}

func (o *Orchestrator) advance(ctx context.Context, outcome *Outcome, s State) {
	outcome.State = s
	o.logger.DebugContext(ctx, "evaluation state changed", slog.String("state", string(s)))
}

// abort ends the batch in StateFailed. The outcome carries no results.
func (o *Orchestrator) abort(ctx context.Context, span trace.Span, outcome *Outcome, err error) (*Outcome, error) {
	outcome.State = StateFailed
	outcome.Err = err
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.ObserveEvaluation(string(StateFailed), nil)
	o.logger.WarnContext(ctx, "evaluation aborted", slog.String("error", err.Error()))
	return outcome, fmt.Errorf("evaluation aborted: %w", err)
}

// Validate checks the preconditions of Evaluate
func (o *Orchestrator) Validate(batch models.EvaluationBatch) error {
	if len(batch.Submissions) == 0 {
		return fmt.Errorf("%w: no candidates to evaluate", ErrContractViolation)
	}
	if len(batch.Criteria) == 0 {
		return fmt.Errorf("%w: no criteria selected", ErrContractViolation)
	}

	seen := make(map[string]bool, len(batch.Criteria))
	for _, c := range batch.Criteria {
		if err := o.validate.Struct(c); err != nil {
			return fmt.Errorf("%w: criterion %q: %v", ErrContractViolation, c.Name, err)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: blank criterion name", ErrContractViolation)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate criterion %q", ErrContractViolation, c.Name)
		}
		seen[c.Name] = true
	}

	ids := make(map[string]bool, len(batch.Submissions))
	for _, s := range batch.Submissions {
		if s.ID == "" {
			return fmt.Errorf("%w: submission %q has no ID", ErrContractViolation, s.Name)
		}
		if ids[s.ID] {
			return fmt.Errorf("%w: duplicate submission ID %q", ErrContractViolation, s.ID)
		}
		ids[s.ID] = true
	}
	return nil
}

// newReporter binds total to an optional ProgressFunc. Callers serialise calls.
func newReporter(progress ProgressFunc, total int) func(current int, message string) {
	return func(current int, message string) {
		if progress != nil {
			progress(current, total, message)
		}
	}
}
