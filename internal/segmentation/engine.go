// Package segmentation assigns every policy to exactly one pricing risk tier
// using exclusion rules followed by an additive underwriting score.
package segmentation

import (
	"errors"
	"fmt"

	"insurisk/domain/policy"
	apperrors "insurisk/internal/errors"
)

// ErrUnclassified means a policy fell through every rule, which is a bug
var ErrUnclassified = errors.New("policy matched no segment rule")

// Assessment explains how a segment was reached
type Assessment struct {
	Segment  policy.Segment
	Score    int
	Excluded bool
	Reasons  []string // exclusion rules that fired, or scoring criteria met
}

// Engine classifies policies
type Engine struct {
	rules      Rules
	exclusions []criterion
	scoring    []criterion
}

// NewEngine creates a segmentation engine
func NewEngine(rules Rules) *Engine {
	return &Engine{
		rules:      rules,
		exclusions: exclusions(rules),
		scoring:    scoring(rules),
	}
}

// Score counts the scoring criteria a policy meets and names them
func (e *Engine) Score(p policy.Policy) (int, []string) {
	score := 0
	var met []string
	for _, c := range e.scoring {
		if c.met(p) {
			score++
			met = append(met, c.name)
		}
	}
	return score, met
}

// Assess classifies one policy. KPIs and features must already be populated.
// Exclusions are checked first and override the score.
func (e *Engine) Assess(p policy.Policy) (Assessment, error) {
	if err := p.Validate(false); err != nil {
		return Assessment{}, apperrors.ValidationError(fmt.Sprintf("cannot segment policy %q", p.PolicyID), err)
	}

	score, met := e.Score(p)

	var fired []string
	for _, c := range e.exclusions {
		if c.met(p) {
			fired = append(fired, c.name)
		}
	}
	if len(fired) > 0 {
		return Assessment{Segment: policy.SegmentHigh, Score: score, Excluded: true, Reasons: fired}, nil
	}

	segment, err := e.segmentFor(score)
	if err != nil {
		return Assessment{}, apperrors.LogicError(fmt.Sprintf("policy %q", p.PolicyID), err)
	}
	return Assessment{Segment: segment, Score: score, Reasons: met}, nil
}

func (e *Engine) segmentFor(score int) (policy.Segment, error) {
	switch {
	case score < 0 || score > MaxScore:
		return "", fmt.Errorf("%w: score %d outside [0,%d]", ErrUnclassified, score, MaxScore)
	case score >= e.rules.LowRiskThreshold:
		return policy.SegmentLow, nil
	case score >= e.rules.MediumRiskThreshold:
		return policy.SegmentMedium, nil
	default:
		return policy.SegmentHigh, nil
	}
}

// Distribution counts policies per segment
type Distribution map[policy.Segment]int

// Total returns the number of classified policies
func (d Distribution) Total() int {
	n := 0
	for _, c := range d {
		n += c
	}
	return n
}

// Share returns the fraction of policies in a segment
func (d Distribution) Share(s policy.Segment) float64 {
	total := d.Total()
	if total == 0 {
		return 0
	}
	return float64(d[s]) / float64(total)
}

// Apply returns copies of the policies with Segment set. The first policy
// that cannot be classified aborts the run.
func (e *Engine) Apply(in []policy.Policy) ([]policy.Policy, Distribution, error) {
	out := make([]policy.Policy, len(in))
	dist := Distribution{}
	for i, p := range in {
		a, err := e.Assess(p)
		if err != nil {
			return nil, nil, err
		}
		if !a.Segment.Valid() {
			return nil, nil, apperrors.LogicError(fmt.Sprintf("policy %q", p.PolicyID), ErrUnclassified)
		}
		p.Segment = a.Segment
		out[i] = p
		dist[a.Segment]++
	}
	return out, dist, nil
}
