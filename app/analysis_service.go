package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"insurisk/adapters/excel"
	"insurisk/domain/policy"
	"insurisk/domain/run"
	"insurisk/internal"
	"insurisk/internal/errors"
	"insurisk/internal/pipeline"
	"insurisk/internal/report"
	"insurisk/ports"
)

// Output file names written by WriteOutputs
const (
	SegmentedFile = "segmented_policies.csv"
	ResultsFile   = "hypothesis_results.csv"
	WorkbookFile  = "analysis.xlsx"
	MarkdownFile  = "segment_report.md"
	HTMLFile      = "segment_report.html"
)

// AnalysisService runs the pipeline, builds the report and optionally persists the run
type AnalysisService struct {
	opts     pipeline.Options
	pipeline *pipeline.Pipeline
	repo     ports.RunRepository
	logger   *internal.Logger
}

// Analysis is everything one run produces
type Analysis struct {
	Result   *pipeline.Result
	Report   report.Report
	Run      run.Run
	Markdown string
	HTML     []byte
}

// NewAnalysisService creates the service; repo may be nil to skip persistence
func NewAnalysisService(opts pipeline.Options, repo ports.RunRepository, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &AnalysisService{
		opts:     opts,
		pipeline: pipeline.New(opts, logger),
		repo:     repo,
		logger:   logger,
	}
}

// LoadRecords reads a csv, pipe-delimited or xlsx book into records
func LoadRecords(path, sheet string, logger *internal.Logger) ([]policy.Record, error) {
	cfg := excel.DefaultReaderConfig(path)
	cfg.Sheet = sheet
	data, err := excel.NewDataReader(cfg, logger).ReadData()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	records, err := excel.ToRecords(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map %s", path)
	}
	return records, nil
}

// Analyze runs the full analysis over the records
func (s *AnalysisService) Analyze(ctx context.Context, records []policy.Record) (*Analysis, error) {
	res, err := s.pipeline.Run(ctx, records)
	if err != nil {
		return nil, err
	}

	rep := report.Build(res.Policies)
	md := report.Markdown(report.Meta{
		RunID:       res.RunID.String(),
		GeneratedAt: res.FinishedAt,
		Granularity: string(res.Granularity),
		Alpha:       s.opts.Alpha,
	}, rep, res.Tests)

	a := &Analysis{
		Result:   res,
		Report:   rep,
		Run:      res.Run(run.Fingerprint(s.opts.Settings(), records)),
		Markdown: md,
		HTML:     report.HTML(md),
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, a.Run, res.Tests, rep.Segments); err != nil {
			return nil, errors.Wrap(err, "failed to persist run")
		}
		s.logger.Info("Stored run %s (fingerprint %s)", a.Run.ID, a.Run.Fingerprint[:12])
	}
	return a, nil
}

// WriteOutputs writes the segmented table, results, workbook and reports into dir.
// Result files are skipped when no hypothesis was tested.
func WriteOutputs(dir string, a *Analysis) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}

	var written []string
	writeFile := func(name string, write func(f *os.File) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		}
		if err := write(f); err != nil {
			f.Close()
			return errors.Wrapf(err, "failed to write %s", path)
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "failed to close %s", path)
		}
		written = append(written, path)
		return nil
	}

	err := writeFile(SegmentedFile, func(f *os.File) error {
		return excel.WriteSegmentedCSV(f, a.Result.Policies)
	})
	if err != nil {
		return written, err
	}

	if len(a.Result.Tests) > 0 {
		err = writeFile(ResultsFile, func(f *os.File) error {
			return excel.WriteResultsCSV(f, a.Result.Tests)
		})
		if err != nil {
			return written, err
		}
	}

	workbook := filepath.Join(dir, WorkbookFile)
	if err := excel.WriteWorkbook(workbook, a.Result.Policies, a.Result.Tests); err != nil {
		return written, errors.Wrapf(err, "failed to write %s", workbook)
	}
	written = append(written, workbook)

	for name, content := range map[string][]byte{MarkdownFile: []byte(a.Markdown), HTMLFile: a.HTML} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return written, errors.Wrapf(err, "failed to write %s", path)
		}
		written = append(written, path)
	}
	return written, nil
}

// Describe is a one-paragraph console summary of an analysis
func Describe(a *Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d records -> %d policies\n", a.Run.ID, a.Result.InputRecords, a.Run.Policies)
	fmt.Fprintf(&b, "Portfolio: %s\n", a.Result.Summary)
	for _, s := range policy.Segments {
		fmt.Fprintf(&b, "  %-12s %6d (%5.1f%%)\n", s, a.Result.Distribution[s], 100*a.Result.Distribution.Share(s))
	}
	for _, t := range a.Result.Tests {
		verdict := "fail to reject"
		if t.Reject {
			verdict = "reject H0"
		}
		fmt.Fprintf(&b, "  %-28s %-14s %-20s p=%.4g  %s\n", t.Hypothesis, t.Metric, t.Test, t.PValue, verdict)
	}
	for _, c := range a.Result.Checks {
		if !c.Passed {
			fmt.Fprintf(&b, "  check %s failed: %s\n", c.Name, c.Detail)
		}
	}
	return b.String()
}
