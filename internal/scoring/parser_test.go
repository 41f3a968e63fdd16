package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScoreToken(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback int
		want     int
	}{
		{"integer", "8", 5, 8},
		{"decimal truncated", "7.9", 5, 7},
		{"out of ten", "8/10", 5, 8},
		{"trailing period", "7.", 5, 7},
		{"bold", "**9**", 5, 9},
		{"bracketed", "[6]", 5, 6},
		{"trailing prose", "6 - solid background", 5, 6},
		{"clamped high", "14", 5, 10},
		{"clamped low", "-3", 5, 0},
		{"word", "excellent", 5, 5},
		{"word uses fallback", "excellent", 7, 7},
		{"empty", "", 4, 4},
		{"number after word ignored", "about 8", 5, 5},
		{"nan", "NaN", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseScoreToken(tt.value, tt.fallback))
		})
	}
}

func TestParseDetailed_InlineFormat(t *testing.T) {
	criteria := []string{"Technical Skills"}

	scores, justs := ParseDetailed("Technical Skills: 8\nJustification: Strong match.", criteria, nil)

	assert.Equal(t, map[string]int{"Technical Skills": 8}, scores)
	assert.Equal(t, "Strong match.", justs["Technical Skills"])
}

func TestParseDetailed_NonNumericScore(t *testing.T) {
	criteria := []string{"Technical Skills"}

	t.Run("without prior", func(t *testing.T) {
		scores, justs := ParseDetailed("Technical Skills: excellent", criteria, nil)
		assert.Equal(t, DefaultScore, scores["Technical Skills"])

		scores, justs = Complete(criteria, scores, justs, nil)
		assert.Equal(t, DefaultScore, scores["Technical Skills"])
		assert.Equal(t, NoJustification, justs["Technical Skills"])
	})

	t.Run("with prior", func(t *testing.T) {
		scores, _ := ParseDetailed("Technical Skills: excellent", criteria, map[string]int{"Technical Skills": 7})
		assert.Equal(t, 7, scores["Technical Skills"])
	})
}

func TestParseDetailed_BlockFormat(t *testing.T) {
	criteria := []string{"Technical Skills", "Experience", "Communication"}
	text := `Here is my evaluation.

CRITERION: Technical Skills
SCORE: 9
JUSTIFICATION: Deep Go and Kubernetes background.
Has led two platform migrations.

CRITERION: **Experience**
SCORE: 6/10
JUSTIFICATION: Five years in backend roles.

CRITERION: Leadership
SCORE: 3
JUSTIFICATION: Not a selected criterion.
`

	scores, justs := ParseDetailed(text, criteria, map[string]int{"Communication": 4})

	assert.Equal(t, 9, scores["Technical Skills"])
	assert.Equal(t, 6, scores["Experience"])
	assert.Equal(t, 4, scores["Communication"], "prior survives when the response omits a criterion")
	assert.Equal(t, "Deep Go and Kubernetes background. Has led two platform migrations.", justs["Technical Skills"])
	assert.Equal(t, "Five years in backend roles.", justs["Experience"])
	assert.NotContains(t, justs, "Communication")
	assert.NotContains(t, scores, "Leadership")
}

func TestParseDetailed_DetailedOverridesPrior(t *testing.T) {
	scores, _ := ParseDetailed("CRITERION: Skills\nSCORE: 3", []string{"Skills"}, map[string]int{"Skills": 9})
	assert.Equal(t, 3, scores["Skills"])
}

func TestParseDetailed_CaseInsensitiveMarkers(t *testing.T) {
	text := "criterion: skills\nscore: 7\njustification: Solid."
	scores, justs := ParseDetailed(text, []string{"Skills"}, nil)

	assert.Equal(t, 7, scores["Skills"])
	assert.Equal(t, "Solid.", justs["Skills"])
}

func TestParseDetailed_JustificationBeforeScore(t *testing.T) {
	text := "CRITERION: Skills\nJUSTIFICATION: Broad toolset.\nSCORE: 8"
	scores, justs := ParseDetailed(text, []string{"Skills"}, nil)

	assert.Equal(t, 8, scores["Skills"])
	assert.Equal(t, "Broad toolset.", justs["Skills"])
}

func TestParseDetailed_ProseInsideJustification(t *testing.T) {
	criteria := []string{"Skills", "Experience"}
	text := `Skills: 8
Justification: Strong fundamentals.
Experience: five years at Acme, mostly payments.
Experience: 6
Justification: Relevant industry.`

	scores, justs := ParseDetailed(text, criteria, nil)

	assert.Equal(t, 8, scores["Skills"])
	assert.Equal(t, 6, scores["Experience"])
	assert.Equal(t, "Strong fundamentals. Experience: five years at Acme, mostly payments.", justs["Skills"])
	assert.Equal(t, "Relevant industry.", justs["Experience"])
}

func TestParseDetailed_JustificationOnScoreLine(t *testing.T) {
	criteria := []string{"Technical Skills", "Experience"}

	tests := []struct {
		name      string
		text      string
		wantScore int
		wantJust  string
	}{
		{"dash", "Technical Skills: 8 - strong Go background", 8, "strong Go background"},
		{"out of ten", "Technical Skills: 8/10 - strong Go background", 8, "strong Go background"},
		{"spaced out of ten", "Technical Skills: 8 / 10: strong Go background", 8, "strong Go background"},
		{"no separator", "Technical Skills: 7 solid but narrow", 7, "solid but narrow"},
		{"continued", "Technical Skills: 8 - strong Go background.\nJustification: Led two migrations.", 8, "strong Go background. Led two migrations."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, justs := ParseDetailed(tt.text, criteria, nil)
			if scores["Technical Skills"] != tt.wantScore {
				t.Errorf("score = %d, want %d", scores["Technical Skills"], tt.wantScore)
			}
			if justs["Technical Skills"] != tt.wantJust {
				t.Errorf("justification = %q, want %q", justs["Technical Skills"], tt.wantJust)
			}
		})
	}
}

func TestParseDetailed_NumericProseInsideJustification(t *testing.T) {
	criteria := []string{"Technical Skills", "Experience"}
	text := `Technical Skills: 8
Justification: Deep Go knowledge.
Experience: 10 years in Go.
Experience: 6 - relevant industry`

	scores, justs := ParseDetailed(text, criteria, map[string]int{"Experience": 7})

	assert.Equal(t, map[string]int{"Technical Skills": 8, "Experience": 6}, scores)
	assert.Equal(t, "Deep Go knowledge. Experience: 10 years in Go.", justs["Technical Skills"])
	assert.Equal(t, "relevant industry", justs["Experience"])
}

func TestParseDetailed_FirstScoreWins(t *testing.T) {
	text := "CRITERION: Skills\nSCORE: 8\nCRITERION: Skills\nSCORE: 2\nJUSTIFICATION: Repeated block."
	scores, justs := ParseDetailed(text, []string{"Skills"}, nil)

	assert.Equal(t, 8, scores["Skills"])
	assert.Equal(t, "Repeated block.", justs["Skills"])
}

func TestParseDetailed_LaterNumericScoreReplacesPlaceholder(t *testing.T) {
	text := "CRITERION: Skills\nSCORE: strong\nSCORE: 9"
	scores, _ := ParseDetailed(text, []string{"Skills"}, nil)

	assert.Equal(t, 9, scores["Skills"])
}

func TestParseDetailed_Garbage(t *testing.T) {
	criteria := []string{"Skills", "Experience"}

	scores, justs := ParseDetailed("I cannot evaluate this resume.\n\n???", criteria, nil)
	assert.Empty(t, scores)
	assert.Empty(t, justs)

	scores, justs = Complete(criteria, scores, justs, nil)
	assert.Equal(t, map[string]int{"Skills": DefaultScore, "Experience": DefaultScore}, scores)
	assert.Equal(t, NoJustification, justs["Skills"])
	assert.Equal(t, NoJustification, justs["Experience"])
}

func TestParseComparative(t *testing.T) {
	criteria := []string{"Technical Skills", "Experience"}
	text := `Comparative scores follow.

CANDIDATE: Ada Lovelace
Technical Skills: 9
Experience: 7/10

CANDIDATE: **Grace Hopper**
1. Technical Skills: 8
2. Experience: outstanding
Leadership: 10

CANDIDATE: Ada Lovelace
Technical Skills: 1`

	got := ParseComparative(text, criteria)

	assert.Equal(t, map[string]map[string]int{
		"Ada Lovelace": {"Technical Skills": 9, "Experience": 7},
		"Grace Hopper": {"Technical Skills": 8, "Experience": DefaultScore},
	}, got)
}

func TestParseComparative_ScoresBeforeAnyCandidateIgnored(t *testing.T) {
	got := ParseComparative("Skills: 9\nCANDIDATE: A\nSkills: 4", []string{"Skills"})
	assert.Equal(t, map[string]map[string]int{"A": {"Skills": 4}}, got)
}

func TestComplete_FullCoverage(t *testing.T) {
	criteria := []string{"A", "B", "C"}

	scores, justs := Complete(criteria,
		map[string]int{"A": 12, "extra": 3},
		map[string]string{"A": "  fine  ", "B": "   "},
		map[string]int{"B": 6},
	)

	assert.Equal(t, map[string]int{"A": 10, "B": 6, "C": DefaultScore}, scores)
	assert.Equal(t, map[string]string{"A": "fine", "B": NoJustification, "C": NoJustification}, justs)
}

func TestIsMarker(t *testing.T) {
	assert.True(t, isMarker("CRITERION", markerCriterion))
	assert.True(t, isMarker("Criterion 2", markerCriterion))
	assert.True(t, isMarker("criterion #3", markerCriterion))
	assert.False(t, isMarker("Criteria", markerCriterion))
	assert.False(t, isMarker("Score Reporting", markerScore))
}
