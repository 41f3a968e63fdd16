package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fmuoria/resume-screener/internal/agent"
	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/scoring"
)

// Report formats written by evaluate
const (
	FormatCSV         = "csv"
	FormatDetailedCSV = "detailed-csv"
	FormatXLSX        = "xlsx"
	FormatAll         = "all"
)

// DefaultPriority weights generated criteria when none are given
const DefaultPriority = 5

type evaluateOptions struct {
	jobPath         string
	title           string
	criteria        []string
	defaultPriority int
	outDir          string
	formats         []string
	gmailSubject    string
}

func newEvaluateCommand(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate [resume files or directories...]",
		Short: "Screen resumes from the terminal and write reports",
		Long: `Score resumes against a job description and write CSV and Excel reports.

Criteria are given as name=priority pairs. Without them the generated
criteria are used, each with the default priority.

Example:
  resume-screener evaluate --job jd.txt -c "Technical Skills=9" -c "Communication=6" resumes/
  resume-screener evaluate --job jd.txt --gmail-subject "Application: Go Engineer"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.gmailSubject == "" {
				return fmt.Errorf("no resumes given: pass files or directories, or --gmail-subject")
			}
			selected, err := parseCriteria(opts.criteria)
			if err != nil {
				return err
			}
			formats, err := parseFormats(opts.formats)
			if err != nil {
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			jd, err := os.ReadFile(opts.jobPath)
			if err != nil {
				return fmt.Errorf("failed to read job description: %w", err)
			}
			paths, err := resumePaths(args)
			if err != nil {
				return err
			}

			a, err := root.newApp(cmd.Context(), cfg, appOptions{
				gmail:    opts.gmailSubject != "",
				logOut:   cmd.ErrOrStderr(),
				authCode: promptAuthCode(cmd.InOrStdin(), cmd.ErrOrStderr()),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return runEvaluate(cmd.Context(), a.agent, cmd.OutOrStdout(), cmd.ErrOrStderr(), evaluateRun{
				jobDescription:  string(jd),
				title:           opts.title,
				criteria:        selected,
				defaultPriority: opts.defaultPriority,
				paths:           paths,
				gmailSubject:    opts.gmailSubject,
				outDir:          opts.outDir,
				formats:         formats,
			})
		},
	}

	cmd.Flags().StringVarP(&opts.jobPath, "job", "j", "", "file containing the job description (required)")
	cmd.Flags().StringVar(&opts.title, "title", "", "job title shown in reports")
	cmd.Flags().StringArrayVarP(&opts.criteria, "criterion", "c", nil, "criterion as name=priority (1-10); repeatable")
	cmd.Flags().IntVar(&opts.defaultPriority, "default-priority", DefaultPriority, "priority for generated criteria when none are given")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", ".", "directory for the reports")
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", []string{FormatAll}, "report formats: csv, detailed-csv, xlsx or all")
	cmd.Flags().StringVar(&opts.gmailSubject, "gmail-subject", "", "also fetch resumes attached to emails with this subject")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

type evaluateRun struct {
	jobDescription  string
	title           string
	criteria        []models.Criterion
	defaultPriority int
	paths           []string
	gmailSubject    string
	outDir          string
	formats         map[string]bool
}

func runEvaluate(ctx context.Context, a *agent.Agent, stdout, stderr io.Writer, run evaluateRun) error {
	a.SetProgressCallback(func(current, total int, message string) {
		fmt.Fprintf(stderr, "[%d/%d] %s\n", current, total, message)
	})

	s, err := a.CreateSession(ctx, models.CreateSessionRequest{JobTitle: run.title, JobDescription: run.jobDescription})
	if err != nil {
		return err
	}

	selected := run.criteria
	if len(selected) == 0 {
		selected = generatedCriteria(s.GeneratedCriteria, a.MaxCriteria(), run.defaultPriority)
		fmt.Fprintf(stderr, "Using generated criteria: %s\n", strings.Join(models.CriteriaNames(selected), ", "))
	}
	if _, err := a.SetCriteria(ctx, s.ID, selected); err != nil {
		return err
	}

	for _, path := range run.paths {
		if err := addResumeFile(ctx, a, s.ID, path); err != nil {
			fmt.Fprintf(stderr, "Skipping %s: %v\n", path, err)
		}
	}
	if run.gmailSubject != "" {
		subs, err := a.FetchFromGmail(ctx, s.ID, run.gmailSubject)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Fetched %d resumes from Gmail\n", len(subs))
	}

	outcome, err := a.Evaluate(ctx, s.ID)
	if err != nil {
		return err
	}

	report, err := a.Report(ctx, s.ID)
	if err != nil {
		return err
	}
	if err := printRanking(stdout, report); err != nil {
		return err
	}
	if outcome.Failed > 0 {
		fmt.Fprintf(stderr, "%d candidates were scored from fallback values\n", outcome.Failed)
	}

	return writeReports(ctx, a, s.ID, run.outDir, run.formats, stdout)
}

func addResumeFile(ctx context.Context, a *agent.Agent, id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = a.AddResume(ctx, id, filepath.Base(path), f)
	return err
}

func writeReports(ctx context.Context, a *agent.Agent, id, outDir string, formats map[string]bool, stdout io.Writer) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	csvReports := []struct {
		format string
		name   string
		write  func(context.Context, string, io.Writer) error
	}{
		{FormatCSV, "candidate_evaluation.csv", a.WriteCSV},
		{FormatDetailedCSV, "candidate_evaluation_detailed.csv", a.WriteDetailedCSV},
	}
	for _, r := range csvReports {
		if !formats[r.format] {
			continue
		}
		path := filepath.Join(outDir, r.name)
		if err := writeFile(path, func(w io.Writer) error { return r.write(ctx, id, w) }); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
	}

	if formats[FormatXLSX] {
		path, err := a.ExportExcel(ctx, id, filepath.Join(outDir, "candidate_evaluation.xlsx"))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printRanking(w io.Writer, report models.ReportResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCANDIDATE\tOVERALL (%)")
	for _, c := range report.Candidates {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\n", c.Rank, c.Name, scoring.RoundScore(c.OverallScore))
	}
	return tw.Flush()
}

// parseCriteria reads name=priority pairs. The last '=' separates the
// priority so names may contain '='.
func parseCriteria(values []string) ([]models.Criterion, error) {
	out := make([]models.Criterion, 0, len(values))
	for _, v := range values {
		i := strings.LastIndex(v, "=")
		if i < 0 {
			return nil, fmt.Errorf("criterion %q: expected name=priority", v)
		}
		name := strings.TrimSpace(v[:i])
		priority, err := strconv.Atoi(strings.TrimSpace(v[i+1:]))
		if err != nil || name == "" {
			return nil, fmt.Errorf("criterion %q: expected name=priority", v)
		}
		out = append(out, models.Criterion{Name: name, Priority: priority})
	}
	return out, nil
}

func parseFormats(values []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, v := range values {
		switch f := strings.ToLower(strings.TrimSpace(v)); f {
		case FormatAll:
			out[FormatCSV], out[FormatDetailedCSV], out[FormatXLSX] = true, true, true
		case FormatCSV, FormatDetailedCSV, FormatXLSX:
			out[f] = true
		default:
			return nil, fmt.Errorf("unknown report format %q", v)
		}
	}
	return out, nil
}

// generatedCriteria weights the first limit generated criteria equally
func generatedCriteria(names []string, limit, priority int) []models.Criterion {
	if len(names) > limit {
		names = names[:limit]
	}
	out := make([]models.Criterion, len(names))
	for i, n := range names {
		out[i] = models.Criterion{Name: n, Priority: priority}
	}
	return out
}

// resumePaths expands directories one level, keeping regular files only
func resumePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}
