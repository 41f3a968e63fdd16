// Package export renders evaluation results as CSV and XLSX reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/scoring"
)

// Sorted returns a ranked copy of results, best first, using the same
// ordering as the evaluation.
func Sorted(results []models.CandidateResult) []models.CandidateResult {
	out := slices.Clone(results)
	scoring.Rank(out)
	return out
}

// DetailedHeader is the header of Rows
func DetailedHeader(criteria []models.Criterion) []string {
	header := make([]string, 0, 2+2*len(criteria))
	header = append(header, "Candidate", "Overall Score (%)")
	for _, c := range criteria {
		header = append(header, c.Name+" (Score)", c.Name+" (Justification)")
	}
	return header
}

// Rows returns one row per candidate, best first:
// candidate, overall score, then a score and justification per criterion.
func Rows(results []models.CandidateResult, criteria []models.Criterion) [][]string {
	sorted := Sorted(results)
	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		row := make([]string, 0, 2+2*len(criteria))
		row = append(row, r.Name, formatPercent(r.OverallScore))
		for _, c := range criteria {
			row = append(row, strconv.Itoa(r.CriteriaScores[c.Name]), r.Justifications[c.Name])
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the basic report: overall score and per-criterion scores,
// with each criterion's priority in its column header
func WriteCSV(w io.Writer, results []models.CandidateResult, criteria []models.Criterion) error {
	header := []string{"Candidate", "Overall Score (%)"}
	for _, c := range criteria {
		header = append(header, fmt.Sprintf("%s (Priority: %d)", c.Name, c.Priority))
	}

	records := [][]string{header}
	for _, r := range Sorted(results) {
		row := []string{r.Name, formatPercent(r.OverallScore)}
		for _, c := range criteria {
			row = append(row, strconv.Itoa(r.CriteriaScores[c.Name]))
		}
		records = append(records, row)
	}
	return writeAll(w, records)
}

// WriteDetailedCSV writes DetailedHeader followed by Rows
func WriteDetailedCSV(w io.Writer, results []models.CandidateResult, criteria []models.Criterion) error {
	records := append([][]string{DetailedHeader(criteria)}, Rows(results, criteria)...)
	return writeAll(w, records)
}

func writeAll(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func formatPercent(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}
