package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/scoring"
)

// Sheet names of the workbook
const (
	SummarySheet        = "Summary"
	JustificationsSheet = "Detailed Justifications"
	JobSheet            = "Job Description"
	PrioritiesSheet     = "Criteria Priorities"
)

// Fill colours
const (
	HeaderColor = "4472C4"
	HighColor   = "C6EFCE"
	MediumColor = "FFEB9C"
	LowColor    = "FFC7CE"
)

// Report is everything rendered into the workbook
type Report struct {
	JobTitle       string
	JobDescription string
	Criteria       []models.Criterion
	Results        []models.CandidateResult
	GeneratedAt    time.Time
}

// ScoreColor returns the fill for a 0-10 criterion score
func ScoreColor(score int) string {
	switch {
	case score >= 8:
		return HighColor
	case score >= 6:
		return MediumColor
	default:
		return LowColor
	}
}

// ExportToExcel writes the report to outputPath, adding .xlsx when missing
func ExportToExcel(report Report, outputPath string) (string, error) {
	// Ensure output path has .xlsx extension
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	var buf bytes.Buffer
	if err := WriteExcel(&buf, report); err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return outputPath, nil
}

// WriteExcel renders the report workbook to w
func WriteExcel(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	results := Sorted(report.Results)

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{JustificationsSheet, JobSheet, PrioritiesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	steps := []struct {
		sheet string
		fn    func() error
	}{
		{SummarySheet, func() error { return createSummarySheet(f, st, results, report.Criteria) }},
		{JustificationsSheet, func() error { return createJustificationsSheet(f, st, results, report.Criteria) }},
		{JobSheet, func() error { return createJobSheet(f, st, report, len(results)) }},
		{PrioritiesSheet, func() error { return createPrioritiesSheet(f, st, report.Criteria) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("failed to create %s sheet: %w", strings.ToLower(s.sheet), err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

type styles struct {
	header int
	label  int
	wrap   int
	cell   int
	scores map[string]int
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func newStyles(f *excelize.File) (*styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{HeaderColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder,
	})
	if err != nil {
		return nil, err
	}

	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder,
	})
	if err != nil {
		return nil, err
	}

	cell, err := f.NewStyle(&excelize.Style{Border: thinBorder})
	if err != nil {
		return nil, err
	}

	st := &styles{header: header, label: label, wrap: wrap, cell: cell, scores: make(map[string]int, 3)}
	for _, color := range []string{HighColor, MediumColor, LowColor} {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
			Border:    thinBorder,
		})
		if err != nil {
			return nil, err
		}
		st.scores[color] = id
	}
	return st, nil
}

// writeHeader fills row 1, freezes it and sets an autofilter over rows
func writeHeader(f *excelize.File, sheet string, st *styles, headers []string, rows int) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, st.header); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(headers), rows+1)
	if err != nil {
		return err
	}
	return f.AutoFilter(sheet, "A1:"+last, []excelize.AutoFilterOptions{})
}

// setRow writes values from column A on row with the given style
func setRow(f *excelize.File, sheet string, row, style int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// createSummarySheet has one row per candidate with rank, overall score and
// a colour-coded score plus priority per criterion
func createSummarySheet(f *excelize.File, st *styles, results []models.CandidateResult, criteria []models.Criterion) error {
	sheet := SummarySheet

	headers := []string{"Candidate", "Overall Score (%)", "Rank"}
	for _, c := range criteria {
		headers = append(headers, c.Name+" (Score)", c.Name+" (Priority)")
	}
	if err := writeHeader(f, sheet, st, headers, len(results)); err != nil {
		return err
	}

	for i, r := range results {
		row := i + 2
		if err := setRow(f, sheet, row, st.cell, r.Name, scoring.RoundScore(r.OverallScore), r.Rank); err != nil {
			return err
		}

		for j, c := range criteria {
			score := r.CriteriaScores[c.Name]
			scoreCell, err := excelize.CoordinatesToCellName(4+2*j, row)
			if err != nil {
				return err
			}
			priorityCell, err := excelize.CoordinatesToCellName(5+2*j, row)
			if err != nil {
				return err
			}

			if err := f.SetCellValue(sheet, scoreCell, score); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, scoreCell, scoreCell, st.scores[ScoreColor(score)]); err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, priorityCell, c.Priority); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, priorityCell, priorityCell, st.cell); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", "C", 8); err != nil {
		return err
	}
	if len(criteria) > 0 {
		last, err := excelize.ColumnNumberToName(3 + 2*len(criteria))
		if err != nil {
			return err
		}
		return f.SetColWidth(sheet, "D", last, 15)
	}
	return nil
}

// createJustificationsSheet lists every candidate and criterion pair with
// its reasoning
func createJustificationsSheet(f *excelize.File, st *styles, results []models.CandidateResult, criteria []models.Criterion) error {
	sheet := JustificationsSheet

	headers := []string{"Candidate", "Criterion", "Score", "Priority", "Justification"}
	if err := writeHeader(f, sheet, st, headers, len(results)*len(criteria)); err != nil {
		return err
	}

	row := 2
	for _, r := range results {
		for _, cs := range r.Breakdown(criteria) {
			priority := 0
			for _, c := range criteria {
				if c.Name == cs.Criterion {
					priority = c.Priority
					break
				}
			}

			if err := setRow(f, sheet, row, st.wrap, r.Name, cs.Criterion, cs.Score, priority, cs.Justification); err != nil {
				return err
			}
			scoreCell := fmt.Sprintf("C%d", row)
			if err := f.SetCellStyle(sheet, scoreCell, scoreCell, st.scores[ScoreColor(cs.Score)]); err != nil {
				return err
			}
			row++
		}
	}

	widths := map[string]float64{"A": 25, "B": 30, "C": 10, "D": 10, "E": 60}
	for col, w := range widths {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

// createJobSheet records the job and run details
func createJobSheet(f *excelize.File, st *styles, report Report, candidates int) error {
	sheet := JobSheet

	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 100); err != nil {
		return err
	}

	title := report.JobTitle
	if title == "" {
		title = "Resume Evaluation Results"
	}
	description := report.JobDescription
	if strings.TrimSpace(description) == "" {
		description = "Not available"
	}

	rows := []struct {
		label string
		value any
	}{
		{"Job Title:", title},
		{"Generated:", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Total Candidates:", candidates},
		{"Total Criteria:", len(report.Criteria)},
		{"Job Description:", description},
	}
	for i, r := range rows {
		row := i + 1
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.value); err != nil {
			return err
		}
	}
	last := fmt.Sprintf("B%d", len(rows))
	return f.SetCellStyle(sheet, last, last, st.wrap)
}

// createPrioritiesSheet lists the weighted criteria
func createPrioritiesSheet(f *excelize.File, st *styles, criteria []models.Criterion) error {
	sheet := PrioritiesSheet

	if err := writeHeader(f, sheet, st, []string{"Criterion", "Priority (1-10)"}, len(criteria)); err != nil {
		return err
	}
	for i, c := range criteria {
		if err := setRow(f, sheet, i+2, st.cell, c.Name, c.Priority); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 15)
}
