package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"insurisk/adapters/excel"
	"insurisk/app"
	"insurisk/domain/policy"
	"insurisk/internal"
	"insurisk/internal/config"
	"insurisk/internal/hypothesis"
	"insurisk/internal/pipeline"
	"insurisk/internal/testkit"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "insurisk",
		Short: "Risk segmentation and hypothesis testing for motor insurance books",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newSegmentCmd(),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// analysisFlags override the environment configuration
type analysisFlags struct {
	sheet       string
	outputDir   string
	granularity string
	mode        string
	alpha       float64
	hypotheses  []string
	workers     int
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read from an xlsx book (default: first sheet)")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "Output directory (default: OUTPUT_DIR)")
	cmd.Flags().StringVar(&f.granularity, "granularity", "", "Analysis unit: policy or transaction")
	cmd.Flags().StringVar(&f.mode, "parametric-policy", "", "skew-assumption, parametric, nonparametric or measured")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "Significance level")
	cmd.Flags().StringSliceVar(&f.hypotheses, "hypothesis", nil, "Extra Factor:Metric hypotheses to test, e.g. Season:Severity (repeatable)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Hypotheses evaluated concurrently (default: number of CPUs)")
}

// setup merges flags into the loaded configuration and builds pipeline options
func (f *analysisFlags) setup() (*config.Config, pipeline.Options, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, pipeline.Options{}, nil, err
	}
	if f.outputDir != "" {
		cfg.Paths.OutputDir = f.outputDir
	}
	if f.granularity != "" {
		cfg.Analysis.Granularity = f.granularity
	}
	if f.mode != "" {
		cfg.Analysis.ParametricPolicy = f.mode
	}
	if f.alpha != 0 {
		cfg.Analysis.Alpha = f.alpha
	}
	if err := config.Validate(cfg); err != nil {
		return nil, pipeline.Options{}, nil, err
	}

	opts, err := pipeline.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		return nil, pipeline.Options{}, nil, err
	}
	for _, s := range f.hypotheses {
		h, err := hypothesis.ParseHypothesis(s)
		if err != nil {
			return nil, pipeline.Options{}, nil, err
		}
		opts.Suite = append(opts.Suite, h)
	}
	if f.workers < 0 {
		return nil, pipeline.Options{}, nil, fmt.Errorf("--workers must not be negative")
	}
	opts.Workers = f.workers
	return cfg, opts, internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)), nil
}

func newAnalyzeCmd() *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "analyze [data-file]",
		Short: "Run segmentation and the hypothesis suite, writing tables and reports",
		Long: `Run the full analysis over a csv, pipe-delimited or xlsx book.

Writes segmented_policies.csv, hypothesis_results.csv, analysis.xlsx and the
segment report (markdown and HTML) to the output directory.

Example: insurisk analyze data/MachineLearningRating_v3.txt --granularity policy -o outputs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, logger, err := flags.setup()
			if err != nil {
				return err
			}
			return runAnalysis(cmd, cfg, opts, logger, dataFile(args, cfg), flags.sheet)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSegmentCmd() *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "segment [data-file]",
		Short: "Assign risk segments only, skipping the hypothesis suite",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, logger, err := flags.setup()
			if err != nil {
				return err
			}
			opts.Suite = nil
			return runAnalysis(cmd, cfg, opts, logger, dataFile(args, cfg), flags.sheet)
		},
	}
	flags.register(cmd)
	return cmd
}

func dataFile(args []string, cfg *config.Config) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Paths.DataFile
}

func runAnalysis(cmd *cobra.Command, cfg *config.Config, opts pipeline.Options, logger *internal.Logger, path, sheet string) error {
	if path == "" {
		return fmt.Errorf("no data file given: pass one as an argument or set DATA_FILE")
	}

	start := time.Now()
	records, err := app.LoadRecords(path, sheet, logger)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d records from %s in %s", len(records), path, time.Since(start))

	analysis, err := app.NewAnalysisService(opts, nil, logger).Analyze(cmd.Context(), records)
	if err != nil {
		return err
	}

	written, err := app.WriteOutputs(cfg.Paths.OutputDir, analysis)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, app.Describe(analysis))
	for _, path := range written {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	return nil
}

func newGenerateCmd() *cobra.Command {
	var (
		policies int
		months   int
		seed     int64
		output   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic motor book for demos and tests",
		Long: `Generate a seeded synthetic book in the source layout.

The delimiter follows the extension: .csv is comma separated, anything else is pipe separated.

Example: insurisk generate --policies 2000 --months 6 -o data/synthetic.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultPolicyConfig()
			cfg.PolicyCount = policies
			cfg.MonthsPerPolicy = months
			cfg.Seed = seed
			records := testkit.NewPolicyGenerator(cfg).GenerateRecords()
			if err := writeRecords(output, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records for %d policies to %s\n", len(records), policies, output)
			return nil
		},
	}

	cmd.Flags().IntVar(&policies, "policies", 1000, "Number of policies")
	cmd.Flags().IntVar(&months, "months", 3, "Monthly transactions per policy")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic output")
	cmd.Flags().StringVarP(&output, "output", "o", "data/synthetic.txt", "Output file")
	return cmd
}

func writeRecords(path string, records []policy.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	delimiter := '|'
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		delimiter = ','
	}
	if err := excel.WriteRecords(f, records, delimiter); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
