// Package pipeline runs the pricing analysis stages in order: KPIs, features,
// outlier treatment, then segmentation and hypothesis testing side by side.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"insurisk/domain/policy"
	"insurisk/domain/run"
	"insurisk/domain/stats"
	"insurisk/internal"
	"insurisk/internal/config"
	"insurisk/internal/errors"
	"insurisk/internal/features"
	"insurisk/internal/hypothesis"
	"insurisk/internal/kpi"
	"insurisk/internal/metrics"
	"insurisk/internal/outliers"
	"insurisk/internal/segmentation"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Granularity is the unit the analysis runs on
type Granularity string

const (
	GranularityPolicy      Granularity = "policy"
	GranularityTransaction Granularity = "transaction"
)

// Options configures every stage
type Options struct {
	Granularity   Granularity
	Caps          kpi.Caps
	Features      features.Config
	Limits        outliers.Limits
	Rules         segmentation.Rules
	Suite         []hypothesis.Hypothesis // nil skips hypothesis testing
	Mode          hypothesis.Mode
	SkewThreshold float64
	Alpha         float64
	Workers       int // concurrent hypothesis evaluations; 0 uses every CPU
}

// DefaultOptions runs the standard suite at policy level
func DefaultOptions() Options {
	return Options{
		Granularity:   GranularityPolicy,
		Caps:          kpi.DefaultCaps(),
		Features:      features.DefaultConfig(),
		Limits:        outliers.DefaultLimits(),
		Rules:         segmentation.DefaultRules(),
		Suite:         hypothesis.DefaultSuite(),
		Mode:          hypothesis.ModeSkewAssumption,
		SkewThreshold: 1.0,
		Alpha:         stats.DefaultAlpha,
	}
}

// OptionsFromConfig builds options from the analysis configuration
func OptionsFromConfig(cfg config.AnalysisConfig) (Options, error) {
	mode, err := hypothesis.ParseMode(cfg.ParametricPolicy)
	if err != nil {
		return Options{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	opts := DefaultOptions()
	opts.Granularity = Granularity(cfg.Granularity)
	opts.Caps = kpi.Caps{LossRatio: cfg.LossRatioCap, LossRatioPct: cfg.ReportLossRatioCapPct}
	opts.Features.ReferenceYear = cfg.ReferenceYear
	opts.Limits = outliers.Limits{Lower: cfg.WinsorLower, Upper: cfg.WinsorUpper}
	opts.Mode = mode
	opts.SkewThreshold = cfg.SkewThreshold
	opts.Alpha = cfg.Alpha
	return opts, nil
}

// Settings renders every knob that changes the outcome of a run
func (o Options) Settings() string {
	names := make([]string, len(o.Suite))
	for i, h := range o.Suite {
		names[i] = h.Name + "/" + string(h.Metric)
	}
	return fmt.Sprintf("%s|%+v|%+v|%+v|%+v|%s|%g|%g|%s",
		o.Granularity, o.Caps, o.Features, o.Limits, o.Rules, o.Mode, o.SkewThreshold, o.Alpha,
		strings.Join(names, ","))
}

// Result is the output of one analysis run
type Result struct {
	RunID        uuid.UUID
	StartedAt    time.Time
	FinishedAt   time.Time
	Granularity  Granularity
	InputRecords int
	Policies     []policy.Policy
	Distribution segmentation.Distribution
	Tests        []stats.HypothesisResult
	Outliers     outliers.Summary
	Checks       []Check
	Summary      kpi.Summary
}

// Pipeline wires the stages together
type Pipeline struct {
	opts      Options
	logger    *internal.Logger
	calc      *kpi.Calculator
	deriver   *features.Deriver
	treatment *outliers.Treatment
	engine    *segmentation.Engine
	runner    *hypothesis.Runner
}

// New creates a pipeline
func New(opts Options, logger *internal.Logger) *Pipeline {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Pipeline{
		opts:      opts,
		logger:    logger,
		calc:      kpi.NewCalculator(opts.Caps),
		deriver:   features.NewDeriver(opts.Features),
		treatment: outliers.NewTreatment(opts.Limits),
		engine:    segmentation.NewEngine(opts.Rules),
		runner:    hypothesis.NewRunner(hypothesis.NewSelector(opts.Mode, opts.SkewThreshold), opts.Alpha, logger).WithWorkers(opts.Workers),
	}
}

// Run executes every stage over the records. Stage outputs are fresh copies,
// so the input slice is never modified.
func (p *Pipeline) Run(ctx context.Context, records []policy.Record) (result *Result, err error) {
	result = &Result{
		RunID:        uuid.New(),
		StartedAt:    time.Now(),
		Granularity:  p.opts.Granularity,
		InputRecords: len(records),
	}
	defer func() {
		metrics.RecordRun(err, time.Now())
	}()
	log := p.logger.With("run_id", result.RunID.String())
	log.Info("Starting analysis of %d records at %s level", len(records), p.opts.Granularity)

	input := records
	if p.opts.Granularity != GranularityTransaction {
		start := time.Now()
		if input, err = AggregateByPolicy(records); err != nil {
			return nil, err
		}
		p.stage(log, "aggregate", start)
		log.Info("Aggregated %d transactions into %d policies", len(records), len(input))
	}

	start := time.Now()
	// negative totals are legitimate reversals per transaction, not per policy
	policies, err := p.calc.Apply(input, p.opts.Granularity != GranularityTransaction)
	if err != nil {
		return nil, err
	}
	p.stage(log, "kpi", start)

	start = time.Now()
	policies = p.deriver.Apply(policies)
	p.stage(log, "features", start)

	start = time.Now()
	treated, summary := p.treatment.Apply(policies)
	result.Outliers = summary
	for _, c := range summary.Columns {
		if c.Bounds.Valid() {
			metrics.RecordOutliers(c.Name, c.Outliers)
		}
	}
	p.stage(log, "outliers", start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		segmented, dist, err := p.engine.Apply(treated)
		if err != nil {
			return err
		}
		result.Policies, result.Distribution = segmented, dist
		p.stage(log, "segmentation", start)
		return nil
	})
	g.Go(func() error {
		if len(p.opts.Suite) == 0 {
			return nil
		}
		start := time.Now()
		tests, err := p.runner.Run(gctx, p.opts.Suite, treated)
		if err != nil {
			return err
		}
		result.Tests = tests
		p.stage(log, "hypothesis", start)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("Analysis failed: %v", err)
		return nil, err
	}

	for _, s := range policy.Segments {
		metrics.RecordSegment(string(s), result.Distribution[s])
		log.Info("%s: %d (%.1f%%)", s, result.Distribution[s], 100*result.Distribution.Share(s))
	}
	for _, t := range result.Tests {
		metrics.RecordTest(string(t.Test), t.Reject)
	}

	result.Checks = Validate(result.Policies, p.opts.Caps.LossRatio, p.opts.Features.MaxVehicleAge)
	for _, c := range result.Checks {
		if !c.Passed {
			log.Warn("Quality check %s failed: %s", c.Name, c.Detail)
		}
	}
	result.Summary = kpi.Summarize(result.Policies)
	result.FinishedAt = time.Now()
	log.Info("Analysis complete: %s", result.Summary)
	return result, nil
}

func (p *Pipeline) stage(log *internal.Logger, name string, start time.Time) {
	elapsed := time.Since(start)
	metrics.ObserveStage(name, elapsed)
	log.Debug("Stage %s finished in %s", name, elapsed)
}

// Test looks up a result row by hypothesis and metric
func (r *Result) Test(hypothesisName string, metric stats.Metric) (stats.HypothesisResult, bool) {
	for _, t := range r.Tests {
		if t.Hypothesis == hypothesisName && t.Metric == metric {
			return t, true
		}
	}
	return stats.HypothesisResult{}, false
}

// Run condenses the result into the persisted run summary
func (r *Result) Run(fingerprint string) run.Run {
	return run.Run{
		ID:             r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Granularity:    string(r.Granularity),
		InputRecords:   r.InputRecords,
		Policies:       len(r.Policies),
		TotalPremium:   r.Summary.TotalPremium,
		TotalClaims:    r.Summary.TotalClaims,
		LossRatio:      r.Summary.LossRatio,
		ClaimFrequency: r.Summary.ClaimFrequency,
		ChecksPassed:   AllPassed(r.Checks),
		Fingerprint:    fingerprint,
	}
}
