package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"insurisk/domain/policy"
	"insurisk/domain/stats"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Meta identifies the run a document was produced from
type Meta struct {
	RunID       string
	GeneratedAt time.Time
	Granularity string
	Alpha       float64
}

// Markdown renders the segment report and hypothesis results
func Markdown(meta Meta, rep Report, tests []stats.HypothesisResult) string {
	var b strings.Builder

	b.WriteString("# Risk Segmentation Report\n\n")
	fmt.Fprintf(&b, "Run `%s` generated %s at %s level.\n\n", meta.RunID, meta.GeneratedAt.UTC().Format(time.RFC3339), meta.Granularity)

	p := rep.Portfolio
	b.WriteString("## Portfolio\n\n")
	b.WriteString("| Policies | Total Premium | Total Claims | Loss Ratio | Claim Frequency | Avg Severity |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %.2f | %.2f | %.1f%% | %.1f%% | %.2f |\n\n",
		p.Policies, p.TotalPremium, p.TotalClaims, 100*p.LossRatio, 100*p.ClaimFrequency, p.ClaimSeverity)

	b.WriteString("## Segment Distribution\n\n")
	b.WriteString("| Segment | Policies | Share | Loss Ratio | Avg Premium | Avg Claims |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, s := range rep.Segments {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% | %.1f%% | %.2f | %.2f |\n",
			s.Segment, s.Policies, s.Percent, s.LossRatioPct, s.AvgPremiumPerPolicy, s.AvgClaimsPerPolicy)
	}

	b.WriteString("\n## Claims Distribution\n\n")
	b.WriteString("| Segment | Claim Frequency | Avg Severity | Median Claims | Total Claims |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, s := range rep.Segments {
		fmt.Fprintf(&b, "| %s | %.1f%% | %.2f | %.2f | %.2f |\n",
			s.Segment, s.ClaimFrequencyPct, s.AvgSeverity, s.MedianClaims, s.TotalClaims)
	}

	b.WriteString("\n## Premium Statistics\n\n")
	b.WriteString("| Segment | Mean | Median | Std Dev | Min | Max |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, s := range rep.Segments {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
			s.Segment, s.AvgPremiumPerPolicy, s.MedianPremium, s.StdPremium, s.MinPremium, s.MaxPremium)
	}

	if len(rep.Provinces) > 0 {
		b.WriteString("\n## Geographic Risk\n\n")
		b.WriteString("| Province | Policies | Low-Risk | Medium-Risk | High-Risk | High-Risk Share | Loss Ratio |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
		for _, pr := range rep.Provinces {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %.1f%% | %.1f%% |\n",
				pr.Province, pr.Policies,
				pr.BySegment[policy.SegmentLow], pr.BySegment[policy.SegmentMedium], pr.BySegment[policy.SegmentHigh],
				pr.HighRiskPct, pr.LossRatioPct)
		}
	}

	if len(tests) > 0 {
		fmt.Fprintf(&b, "\n## Hypothesis Tests (α = %.2f)\n\n", meta.Alpha)
		b.WriteString("| Hypothesis | Metric | Test | p-value | Decision |\n")
		b.WriteString("|---|---|---|---:|---|\n")
		for _, t := range tests {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", t.Hypothesis, t.Metric, t.Test, formatP(t.PValue), decision(t))
		}
	}
	return b.String()
}

// HTML renders the markdown document as a standalone page
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Risk Segmentation Report",
	})
	return markdown.Render(doc, renderer)
}

func formatP(p float64) string {
	switch {
	case math.IsNaN(p):
		return "n/a"
	case p < 1e-4:
		return fmt.Sprintf("%.2e", p)
	default:
		return fmt.Sprintf("%.4f", p)
	}
}

func decision(t stats.HypothesisResult) string {
	switch {
	case math.IsNaN(t.PValue):
		return "Not tested"
	case t.Reject:
		return "Reject H0"
	default:
		return "Fail to reject H0"
	}
}
