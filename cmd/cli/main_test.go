package main

import (
	"testing"

	"insurisk/domain/stats"
	"insurisk/internal/hypothesis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisFlags_ExtraHypothesesAndWorkers(t *testing.T) {
	f := analysisFlags{hypotheses: []string{"Season:Severity", "CoverType:Margin"}, workers: 2}
	_, opts, _, err := f.setup()
	require.NoError(t, err)

	base := len(hypothesis.DefaultSuite())
	require.Len(t, opts.Suite, base+2)
	assert.Equal(t, "Risk vs Season", opts.Suite[base].Name)
	assert.Equal(t, stats.MetricSeverity, opts.Suite[base].Metric)
	assert.Equal(t, "Margin vs CoverType", opts.Suite[base+1].Name)
	assert.Equal(t, 2, opts.Workers)
}

func TestAnalysisFlags_Rejects(t *testing.T) {
	f := analysisFlags{hypotheses: []string{"Season"}}
	_, _, _, err := f.setup()
	assert.Error(t, err)

	f = analysisFlags{workers: -1}
	_, _, _, err = f.setup()
	assert.Error(t, err)
}
