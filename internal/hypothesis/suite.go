package hypothesis

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"insurisk/domain/policy"
	"insurisk/domain/stats"
	"insurisk/internal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Factor is a categorical policy attribute that splits the book into groups
type Factor struct {
	Name  string
	Value func(policy.Policy) string
}

// Built-in grouping factors
var (
	FactorProvince      = Factor{"Province", func(p policy.Policy) string { return p.Province }}
	FactorPostalCode    = Factor{"PostalCode", func(p policy.Policy) string { return p.PostalCode }}
	FactorGender        = Factor{"Gender", func(p policy.Policy) string { return p.Gender }}
	FactorVehicleType   = Factor{"VehicleType", func(p policy.Policy) string { return p.VehicleType }}
	FactorMaritalStatus = Factor{"MaritalStatus", func(p policy.Policy) string { return p.MaritalStatus }}
	FactorCoverType     = Factor{"CoverType", func(p policy.Policy) string { return p.CoverType }}
	FactorProvinceRisk  = Factor{"ProvinceRisk", func(p policy.Policy) string { return string(p.Features.ProvinceRisk) }}
	FactorSeason        = Factor{"Season", func(p policy.Policy) string { return p.Features.Season }}
)

// Factors indexes the built-in factors by name
var Factors = map[string]Factor{}

func init() {
	for _, f := range []Factor{
		FactorProvince, FactorPostalCode, FactorGender, FactorVehicleType,
		FactorMaritalStatus, FactorCoverType, FactorProvinceRisk, FactorSeason,
	} {
		Factors[f.Name] = f
	}
}

var metrics = []stats.Metric{
	stats.MetricFrequency, stats.MetricSeverity, stats.MetricMargin,
	stats.MetricLossRatio, stats.MetricTotalClaims, stats.MetricPremiumPerTerm,
}

// ParseHypothesis resolves "Factor:Metric", e.g. "Season:Severity", against the
// built-in factors. Names match case-insensitively.
func ParseHypothesis(s string) (Hypothesis, error) {
	factorName, metricName, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Hypothesis{}, fmt.Errorf("hypothesis %q: want Factor:Metric", s)
	}

	var factor Factor
	found := false
	for name, f := range Factors {
		if strings.EqualFold(name, strings.TrimSpace(factorName)) {
			factor, found = f, true
			break
		}
	}
	if !found {
		return Hypothesis{}, fmt.Errorf("hypothesis %q: unknown factor %q", s, factorName)
	}

	for _, m := range metrics {
		if strings.EqualFold(string(m), strings.TrimSpace(metricName)) {
			name := "Risk vs " + factor.Name
			if m == stats.MetricMargin {
				name = "Margin vs " + factor.Name
			}
			return Hypothesis{Name: name, Metric: m, Factor: factor}, nil
		}
	}
	return Hypothesis{}, fmt.Errorf("hypothesis %q: unknown metric %q", s, metricName)
}

// Hypothesis is one null hypothesis: metric does not differ across factor levels
type Hypothesis struct {
	Name   string
	Metric stats.Metric
	Factor Factor
	Levels []string // restrict to these levels; empty keeps all non-blank levels
}

// DefaultSuite is the standard set of pricing hypotheses
func DefaultSuite() []Hypothesis {
	sexes := []string{"Male", "Female"}
	return []Hypothesis{
		{Name: "Risk vs Province", Metric: stats.MetricFrequency, Factor: FactorProvince},
		{Name: "Risk vs Province", Metric: stats.MetricSeverity, Factor: FactorProvince},
		{Name: "Risk vs ZipCode", Metric: stats.MetricFrequency, Factor: FactorPostalCode},
		{Name: "Margin vs ZipCode", Metric: stats.MetricMargin, Factor: FactorPostalCode},
		{Name: "Risk vs Gender", Metric: stats.MetricFrequency, Factor: FactorGender, Levels: sexes},
		{Name: "Risk vs Gender", Metric: stats.MetricSeverity, Factor: FactorGender, Levels: sexes},
		{Name: "Risk vs VehicleType", Metric: stats.MetricFrequency, Factor: FactorVehicleType},
		{Name: "Risk vs VehicleType", Metric: stats.MetricSeverity, Factor: FactorVehicleType},
	}
}

// MetricValue extracts the tested value of a policy. ok is false when the
// policy does not belong to the metric's population: severity is measured on
// claimants only, premium per term only where it was recorded.
func MetricValue(m stats.Metric, p policy.Policy) (float64, bool) {
	switch m {
	case stats.MetricFrequency:
		if p.KPI.HasClaim {
			return 1, true
		}
		return 0, true
	case stats.MetricSeverity:
		if p.Claims() <= 0 {
			return 0, false
		}
		return p.Capped.Severity, true
	case stats.MetricMargin:
		return p.Capped.Margin, true
	case stats.MetricTotalClaims:
		return p.Capped.TotalClaims, true
	case stats.MetricLossRatio:
		return p.KPI.LossRatio, true
	case stats.MetricPremiumPerTerm:
		if p.CalculatedPremiumPerTerm == nil {
			return 0, false
		}
		return p.Capped.CalculatedPremiumPerTerm, true
	default:
		return 0, false
	}
}

// Groups splits metric values by factor level. Levels are returned sorted;
// blank levels are skipped.
func Groups(h Hypothesis, policies []policy.Policy) ([]string, [][]float64) {
	allowed := map[string]bool{}
	for _, l := range h.Levels {
		allowed[strings.TrimSpace(l)] = true
	}

	byLevel := map[string][]float64{}
	for _, p := range policies {
		level := strings.TrimSpace(h.Factor.Value(p))
		if level == "" || (len(allowed) > 0 && !allowed[level]) {
			continue
		}
		v, ok := MetricValue(h.Metric, p)
		if !ok {
			continue
		}
		byLevel[level] = append(byLevel[level], v)
	}

	levels := make([]string, 0, len(byLevel))
	for l := range byLevel {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	groups := make([][]float64, len(levels))
	for i, l := range levels {
		groups[i] = byLevel[l]
	}
	return levels, groups
}

// Runner evaluates hypotheses against a policy book
type Runner struct {
	selector *Selector
	alpha    float64
	workers  int64
	logger   *internal.Logger
}

// NewRunner creates a runner applying alpha to every outcome
func NewRunner(selector *Selector, alpha float64, logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Runner{selector: selector, alpha: alpha, workers: int64(runtime.NumCPU()), logger: logger}
}

// WithWorkers bounds how many hypotheses are evaluated at once
func (r *Runner) WithWorkers(n int) *Runner {
	if n > 0 {
		r.workers = int64(n)
	}
	return r
}

// Evaluate runs a single hypothesis. Groups with fewer than two observations
// are dropped; fewer than two remaining groups gives the insufficient-groups sentinel.
func (r *Runner) Evaluate(h Hypothesis, policies []policy.Policy) stats.HypothesisResult {
	_, groups := Groups(h, policies)

	n := 0
	kept := groups[:0:0]
	for _, g := range groups {
		n += len(g)
		if len(g) >= 2 {
			kept = append(kept, g)
		}
	}
	if len(kept) < 2 {
		r.logger.Warn("%s (%s): only %d usable groups", h.Name, h.Metric, len(kept))
		return stats.NewResult(h.Name, h.Metric, stats.Insufficient(len(kept), n), r.alpha)
	}

	name, run := r.selector.Select(h.Metric, kept)
	outcome := run(kept)
	r.logger.Debug("%s (%s): %s p=%.4g over %d groups", h.Name, h.Metric, name, outcome.PValue, len(kept))
	return stats.NewResult(h.Name, h.Metric, outcome, r.alpha)
}

// Run evaluates every hypothesis concurrently. Results keep suite order.
func (r *Runner) Run(ctx context.Context, suite []Hypothesis, policies []policy.Policy) ([]stats.HypothesisResult, error) {
	results := make([]stats.HypothesisResult, len(suite))
	sem := semaphore.NewWeighted(r.workers)
	g, gctx := errgroup.WithContext(ctx)

	for i, h := range suite {
		i, h := i, h
		if err := sem.Acquire(gctx, 1); err != nil {
			_ = g.Wait()
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = r.Evaluate(h, policies)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
