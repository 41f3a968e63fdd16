package scoring

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/llm/llmtest"
	"github.com/fmuoria/resume-screener/internal/logging"
	"github.com/fmuoria/resume-screener/internal/models"
)

func submissions(names ...string) []models.CandidateSubmission {
	subs := make([]models.CandidateSubmission, len(names))
	for i, n := range names {
		subs[i] = models.CandidateSubmission{ID: "id-" + string(rune('a'+i)), Name: n, ResumeText: n + " resume"}
	}
	return subs
}

func TestComparativePass_Run(t *testing.T) {
	// Given a model that scores both candidates
	stub := llmtest.Fixed(`CANDIDATE: Ada
Skills: 9
Experience: 6

CANDIDATE: grace
Skills: 7
Experience: 8`)
	pass := NewComparativePass(stub, logging.Discard())
	subs := submissions("Ada", "Grace")

	// When the pass runs
	got := pass.Run(context.Background(), "JD", []string{"Skills", "Experience"}, subs)

	// Then scores are keyed by submission ID after one request
	assert.Equal(t, map[string]map[string]int{
		"id-a": {"Skills": 9, "Experience": 6},
		"id-b": {"Skills": 7, "Experience": 8},
	}, got)
	assert.Equal(t, 1, stub.Calls())
	assert.Contains(t, stub.Prompts()[0], "Candidate: Ada")
	assert.Contains(t, stub.Prompts()[0], "Candidate: Grace")
}

func TestComparativePass_DuplicateNamesStayDistinct(t *testing.T) {
	stub := llmtest.Fixed("CANDIDATE: John Doe #1\nSkills: 3\nCANDIDATE: John Doe #2\nSkills: 9")
	pass := NewComparativePass(stub, logging.Discard())
	subs := submissions("John Doe", "John Doe")

	got := pass.Run(context.Background(), "JD", []string{"Skills"}, subs)

	assert.Equal(t, 3, got["id-a"]["Skills"])
	assert.Equal(t, 9, got["id-b"]["Skills"])
	assert.Contains(t, stub.Prompts()[0], "Candidate: John Doe #1")
	assert.Contains(t, stub.Prompts()[0], "Candidate: John Doe #2")
}

func TestComparativePass_FailureYieldsEmptyMap(t *testing.T) {
	tests := []struct {
		name string
		stub *llmtest.Stub
	}{
		{"transport error", llmtest.Failing(&llm.TransportError{Provider: "stub", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")})},
		{"unparseable", llmtest.Fixed("I'm sorry, I can't compare these candidates.")},
		{"unknown names", llmtest.Fixed("CANDIDATE: Somebody Else\nSkills: 9")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewComparativePass(tt.stub, logging.Discard()).Run(context.Background(), "JD", []string{"Skills"}, submissions("Ada"))
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestComparativePass_NothingToDo(t *testing.T) {
	stub := llmtest.Fixed("unused")
	got := NewComparativePass(stub, logging.Discard()).Run(context.Background(), "JD", []string{"Skills"}, nil)

	assert.Empty(t, got)
	assert.Zero(t, stub.Calls())
}

func TestCandidateLabels(t *testing.T) {
	subs := []models.CandidateSubmission{
		{ID: "1", Name: "Ann"},
		{ID: "2", Name: "Bob"},
		{ID: "3", Name: "Ann"},
		{ID: "4", Name: "  "},
	}
	assert.Equal(t, []string{"Ann #1", "Bob", "Ann #2", "4"}, candidateLabels(subs))
}

func TestResolveLabel(t *testing.T) {
	labels := []string{"Ann Lee", "Anna Berg", "Bob"}

	tests := []struct {
		label  string
		want   int
		wantOK bool
	}{
		{"Ann Lee", 0, true},
		{"anna berg", 1, true},
		{"Bob (Backend)", 2, true},
		{"Ann", 0, false}, // contained in two labels
		{"Carol", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := resolveLabel(tt.label, labels)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDetailedPass_Run(t *testing.T) {
	stub := llmtest.Fixed(`CRITERION: Skills
SCORE: 8
JUSTIFICATION: Broad toolset.`)
	pass := NewDetailedPass(stub, logging.Discard())
	sub := models.CandidateSubmission{ID: "x", Name: "Ada", ResumeText: "Go, SQL"}

	scores, justs, err := pass.Run(context.Background(), "JD", []string{"Skills", "Experience"}, sub, map[string]int{"Experience": 6})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Skills": 8, "Experience": 6}, scores)
	assert.Equal(t, "Broad toolset.", justs["Skills"])
	assert.Equal(t, NoJustification, justs["Experience"])
	assert.Contains(t, stub.Prompts()[0], "Experience: 6/10")
}

func TestDetailedPass_FailurePrefersPrior(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "status error",
			err:  &llm.TransportError{Provider: "stub", StatusCode: http.StatusInternalServerError, Err: errors.New("boom")},
			want: APIErrorJustification,
		},
		{
			name: "empty response",
			err:  &llm.TransportError{Provider: "stub", Err: llm.ErrEmptyResponse},
			want: APIErrorJustification,
		},
		{
			name: "network error",
			err:  errors.New("dial tcp: connection refused"),
			want: "Error during evaluation: dial tcp: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := NewDetailedPass(llmtest.Failing(tt.err), logging.Discard())
			sub := models.CandidateSubmission{ID: "x", Name: "Ada"}

			scores, justs, err := pass.Run(context.Background(), "JD", []string{"Skills", "Experience"}, sub, map[string]int{"Skills": 7})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, map[string]int{"Skills": 7, "Experience": DefaultScore}, scores)
			assert.Equal(t, tt.want, justs["Skills"])
			assert.Equal(t, tt.want, justs["Experience"])
		})
	}
}

func TestReconcile(t *testing.T) {
	criteria := []string{"Skills", "Experience", "Communication"}

	t.Run("comparative survives a failed detailed pass", func(t *testing.T) {
		card := Reconcile([]string{"Skills"}, map[string]int{"Skills": 7}, map[string]int{}, map[string]string{})
		assert.Equal(t, 7, card.Scores["Skills"])
		assert.Equal(t, NoJustification, card.Justifications["Skills"])
	})

	t.Run("detailed wins, gaps filled", func(t *testing.T) {
		card := Reconcile(criteria,
			map[string]int{"Skills": 7, "Experience": 4},
			map[string]int{"Skills": 9},
			map[string]string{"Skills": "Expert."},
		)
		assert.Equal(t, map[string]int{"Skills": 9, "Experience": 4, "Communication": DefaultScore}, card.Scores)
		assert.Equal(t, "Expert.", card.Justifications["Skills"])
		assert.Equal(t, NoJustification, card.Justifications["Communication"])
	})

	t.Run("covers every criterion", func(t *testing.T) {
		card := Reconcile(criteria, nil, nil, nil)
		for _, c := range criteria {
			assert.Contains(t, card.Scores, c)
			assert.NotEmpty(t, strings.TrimSpace(card.Justifications[c]))
		}
	})
}

func TestFeedbackWriter_Generate(t *testing.T) {
	breakdown := []models.CriterionScore{{Criterion: "Skills", Score: 8}}

	t.Run("success", func(t *testing.T) {
		w := NewFeedbackWriter(llmtest.Fixed("  Strengths: Go.  "), logging.Discard())
		assert.Equal(t, "Strengths: Go.", w.Generate(context.Background(), "JD", "resume", breakdown))
	})

	t.Run("failure", func(t *testing.T) {
		w := NewFeedbackWriter(llmtest.Failing(errors.New("down")), logging.Discard())
		assert.Equal(t, FeedbackUnavailable, w.Generate(context.Background(), "JD", "resume", breakdown))
	})

	t.Run("blank response", func(t *testing.T) {
		w := NewFeedbackWriter(llmtest.Fixed("\n"), logging.Discard())
		assert.Equal(t, FeedbackUnavailable, w.Generate(context.Background(), "JD", "resume", breakdown))
	})
}
