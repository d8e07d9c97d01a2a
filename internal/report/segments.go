// Package report summarizes a segmented book per risk tier and province and
// renders the summary with the hypothesis results as markdown or HTML.
package report

import (
	"sort"

	"insurisk/domain/policy"
	"insurisk/internal/kpi"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// SegmentStats are the per-tier figures of the segment report
type SegmentStats struct {
	Segment      policy.Segment `json:"segment" db:"segment"`
	Policies     int            `json:"policies" db:"policies"`
	Percent      float64        `json:"percent" db:"percent"`
	TotalPremium float64        `json:"total_premium" db:"total_premium"`
	TotalClaims  float64        `json:"total_claims" db:"total_claims"`
	LossRatioPct float64        `json:"loss_ratio_pct" db:"loss_ratio_pct"`

	AvgPremiumPerPolicy float64 `json:"avg_premium_per_policy" db:"avg_premium_per_policy"`
	AvgClaimsPerPolicy  float64 `json:"avg_claims_per_policy" db:"avg_claims_per_policy"`

	ClaimFrequencyPct float64 `json:"claim_frequency_pct" db:"claim_frequency_pct"`
	AvgSeverity       float64 `json:"avg_severity" db:"avg_severity"` // claimants only
	MedianClaims      float64 `json:"median_claims" db:"median_claims"`

	MedianPremium float64 `json:"median_premium" db:"median_premium"`
	StdPremium    float64 `json:"std_premium" db:"std_premium"`
	MinPremium    float64 `json:"min_premium" db:"min_premium"`
	MaxPremium    float64 `json:"max_premium" db:"max_premium"`
}

// ProvinceStats cross-tabulates one province against the risk tiers
type ProvinceStats struct {
	Province     string                 `json:"province"`
	Policies     int                    `json:"policies"`
	BySegment    map[policy.Segment]int `json:"by_segment"`
	LossRatioPct float64                `json:"loss_ratio_pct"`
	HighRiskPct  float64                `json:"high_risk_pct"`
}

// Report is the full segment analysis
type Report struct {
	Segments  []SegmentStats  `json:"segments"`
	Provinces []ProvinceStats `json:"provinces"`
	Portfolio kpi.Summary     `json:"portfolio"`
}

// Segment looks up the stats of one tier
func (r Report) Segment(s policy.Segment) (SegmentStats, bool) {
	for _, st := range r.Segments {
		if st.Segment == s {
			return st, true
		}
	}
	return SegmentStats{}, false
}

// Build computes the segment report. Every tier appears, empty tiers with zeros.
func Build(policies []policy.Policy) Report {
	bySegment := map[policy.Segment][]policy.Policy{}
	byProvince := map[string][]policy.Policy{}
	for _, p := range policies {
		bySegment[p.Segment] = append(bySegment[p.Segment], p)
		province := p.Province
		if province == "" {
			province = "Unknown"
		}
		byProvince[province] = append(byProvince[province], p)
	}

	rep := Report{Portfolio: kpi.Summarize(policies)}
	for _, s := range policy.Segments {
		rep.Segments = append(rep.Segments, segmentStats(s, bySegment[s], len(policies)))
	}

	provinces := make([]string, 0, len(byProvince))
	for name := range byProvince {
		provinces = append(provinces, name)
	}
	sort.Strings(provinces)
	for _, name := range provinces {
		group := byProvince[name]
		ps := ProvinceStats{Province: name, Policies: len(group), BySegment: map[policy.Segment]int{}}
		premium, claims := totals(group)
		ps.LossRatioPct = ratioPct(premium, claims)
		for _, p := range group {
			ps.BySegment[p.Segment]++
		}
		ps.HighRiskPct = pct(ps.BySegment[policy.SegmentHigh], len(group))
		rep.Provinces = append(rep.Provinces, ps)
	}
	return rep
}

func segmentStats(s policy.Segment, group []policy.Policy, total int) SegmentStats {
	st := SegmentStats{Segment: s, Policies: len(group), Percent: pct(len(group), total)}
	if len(group) == 0 {
		return st
	}

	premium, claims := totals(group)
	st.TotalPremium = premium.InexactFloat64()
	st.TotalClaims = claims.InexactFloat64()
	st.LossRatioPct = ratioPct(premium, claims)
	n := decimal.NewFromInt(int64(len(group)))
	st.AvgPremiumPerPolicy = premium.Div(n).InexactFloat64()
	st.AvgClaimsPerPolicy = claims.Div(n).InexactFloat64()

	premiums := make(stats.Float64Data, len(group))
	claimAmounts := make(stats.Float64Data, len(group))
	var severities stats.Float64Data
	for i, p := range group {
		premiums[i] = p.Premium()
		claimAmounts[i] = p.Claims()
		if p.KPI.HasClaim {
			severities = append(severities, p.KPI.ClaimSeverity)
		}
	}
	st.ClaimFrequencyPct = pct(len(severities), len(group))
	if len(severities) > 0 {
		st.AvgSeverity, _ = severities.Mean()
	}
	st.MedianClaims, _ = claimAmounts.Median()
	st.MedianPremium, _ = premiums.Median()
	st.MinPremium, _ = premiums.Min()
	st.MaxPremium, _ = premiums.Max()
	if len(premiums) > 1 {
		st.StdPremium, _ = premiums.StandardDeviationSample()
	}
	return st
}

func totals(group []policy.Policy) (premium, claims decimal.Decimal) {
	for _, p := range group {
		premium = premium.Add(decimal.NewFromFloat(p.Premium()))
		claims = claims.Add(decimal.NewFromFloat(p.Claims()))
	}
	return premium, claims
}

// ratioPct is the aggregate loss ratio in percent, 0 without premium
func ratioPct(premium, claims decimal.Decimal) float64 {
	if !premium.IsPositive() {
		return 0
	}
	return claims.Div(premium).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}
