package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/scoring"
)

var testCriteria = []models.Criterion{
	{Name: "Technical Skills", Priority: 9},
	{Name: "Communication", Priority: 4},
}

func testResults() []models.CandidateResult {
	return []models.CandidateResult{
		{
			ID:             "a",
			Name:           "Ada",
			CriteriaScores: map[string]int{"Technical Skills": 6, "Communication": 9},
			Justifications: map[string]string{"Technical Skills": "Solid, some gaps.", "Communication": "Clear, \"concise\" writing."},
			OverallScore:   66.92307692,
		},
		{
			ID:             "g",
			Name:           "Grace",
			CriteriaScores: map[string]int{"Technical Skills": 10, "Communication": 8},
			Justifications: map[string]string{"Technical Skills": "Compiler author.", "Communication": "Teaches widely."},
			OverallScore:   93.84615385,
		},
		{
			ID:             "l",
			Name:           "Linus",
			CriteriaScores: map[string]int{"Technical Skills": 9, "Communication": 2},
			Justifications: map[string]string{"Technical Skills": "Kernel work.", "Communication": "Blunt."},
			OverallScore:   66.92307692,
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(testResults(), testCriteria)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Grace", "93.85", "10", "Compiler author.", "8", "Teaches widely."}, rows[0])
	// ties keep input order
	assert.Equal(t, "Ada", rows[1][0])
	assert.Equal(t, "Linus", rows[2][0])
	assert.Equal(t, "66.92", rows[1][1])

	assert.Equal(t, []string{
		"Candidate", "Overall Score (%)",
		"Technical Skills (Score)", "Technical Skills (Justification)",
		"Communication (Score)", "Communication (Justification)",
	}, DetailedHeader(testCriteria))
}

func TestRows_DoesNotReorderInput(t *testing.T) {
	in := testResults()
	_ = Rows(in, testCriteria)
	assert.Equal(t, "Ada", in[0].Name)
}

func TestSorted_MatchesEvaluationRanking(t *testing.T) {
	in := testResults()
	ranked := testResults()
	scoring.Rank(ranked)

	got := Sorted(in)

	assert.Equal(t, ranked, got)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
	assert.Zero(t, in[0].Rank, "input is left untouched")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testResults(), testCriteria))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"Candidate", "Overall Score (%)", "Technical Skills (Priority: 9)", "Communication (Priority: 4)"}, records[0])
	assert.Equal(t, []string{"Grace", "93.85", "10", "8"}, records[1])
	assert.Equal(t, []string{"Linus", "66.92", "9", "2"}, records[3])
}

func TestWriteDetailedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDetailedCSV(&buf, testResults(), testCriteria))

	// quotes and commas survive the round trip
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Clear, \"concise\" writing.", records[2][5])
}

func TestWriteCSV_NoResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, testCriteria))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
