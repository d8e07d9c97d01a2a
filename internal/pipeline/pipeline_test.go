package pipeline

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"insurisk/domain/policy"
	"insurisk/domain/stats"
	"insurisk/internal/config"
	apperrors "insurisk/internal/errors"
	"insurisk/internal/hypothesis"
	"insurisk/internal/testkit"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generated(t *testing.T, policies int) []policy.Record {
	t.Helper()
	cfg := testkit.DefaultPolicyConfig()
	cfg.PolicyCount = policies
	cfg.ClaimRate = 0.1
	return testkit.NewPolicyGenerator(cfg).GenerateRecords()
}

func TestAggregateByPolicy(t *testing.T) {
	jan := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	records := []policy.Record{
		{PolicyID: "A", TransactionMonth: jan, TotalPremium: policy.Float(0.1), TotalClaims: policy.Float(0), Province: "Gauteng"},
		{PolicyID: "B", TransactionMonth: jan, TotalPremium: policy.Float(50), TotalClaims: policy.Float(10)},
		{PolicyID: "A", TransactionMonth: jan.AddDate(0, 2, 0), TotalPremium: policy.Float(0.2), TotalClaims: policy.Float(5),
			Province: "Limpopo", Gender: "Female", RegistrationYear: policy.Int(2010), AlarmImmobiliser: policy.FlagYes},
	}

	out, err := AggregateByPolicy(records)
	require.NoError(t, err)
	require.Len(t, out, 2)

	a := out[0]
	assert.Equal(t, "A", a.PolicyID)
	assert.Equal(t, 0.3, *a.TotalPremium)
	assert.Equal(t, 5.0, *a.TotalClaims)
	assert.Equal(t, "Gauteng", a.Province, "first non-blank value wins")
	assert.Equal(t, "Female", a.Gender)
	assert.Equal(t, 2010, *a.RegistrationYear)
	assert.Equal(t, policy.FlagYes, a.AlarmImmobiliser)
	assert.Equal(t, time.March, a.TransactionMonth.Month())
	assert.Equal(t, "B", out[1].PolicyID)

	assert.Equal(t, 0.1, *records[0].TotalPremium, "input must not be modified")
}

func TestAggregateByPolicy_Rejects(t *testing.T) {
	_, err := AggregateByPolicy(nil)
	assert.ErrorIs(t, err, policy.ErrEmptyDataset)

	_, err = AggregateByPolicy([]policy.Record{{PolicyID: "A", TotalPremium: policy.Float(1)}})
	assert.ErrorIs(t, err, policy.ErrMissingRequired)
	assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
}

func TestRun_GeneratedBook(t *testing.T) {
	records := generated(t, 400)
	res, err := New(DefaultOptions(), nil).Run(context.Background(), records)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.Equal(t, len(records), res.InputRecords)
	require.Len(t, res.Policies, 400)
	for _, p := range res.Policies {
		assert.True(t, p.Segment.Valid(), "policy %s has no segment", p.PolicyID)
	}
	assert.Equal(t, 400, res.Distribution.Total())
	assert.Len(t, res.Tests, len(hypothesis.DefaultSuite()))
	assert.True(t, AllPassed(res.Checks), "%+v", res.Checks)
	assert.Equal(t, 400, res.Summary.Policies)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))

	freq, ok := res.Test("Risk vs Province", stats.MetricFrequency)
	require.True(t, ok)
	assert.Equal(t, stats.TestChiSquare, freq.Test)
	sev, ok := res.Test("Risk vs Gender", stats.MetricSeverity)
	require.True(t, ok)
	assert.Equal(t, stats.TestMannWhitney, sev.Test)
}

func TestRun_SeverityWithRareClaims(t *testing.T) {
	jan := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	records := make([]policy.Record, 1000)
	for i := range records {
		province := "Gauteng"
		if i%2 == 1 {
			province = "Limpopo"
		}
		records[i] = policy.Record{
			PolicyID:         fmt.Sprintf("P-%04d", i),
			TransactionMonth: jan,
			TotalPremium:     policy.Float(500),
			TotalClaims:      policy.Float(0),
			Province:         province,
		}
	}
	// 0.8% claim frequency: four claimants per province
	for k := 0; k < 8; k++ {
		i := k * 100
		if k >= 4 {
			i++
		}
		records[i].TotalClaims = policy.Float(float64(1000 * (k + 1)))
	}

	opts := DefaultOptions()
	opts.Suite = []hypothesis.Hypothesis{
		{Name: "Risk vs Province", Metric: stats.MetricSeverity, Factor: hypothesis.FactorProvince},
	}
	res, err := New(opts, nil).Run(context.Background(), records)
	require.NoError(t, err)

	claimants := 0
	for _, p := range res.Policies {
		if p.Claims() > 0 {
			claimants++
			assert.Greater(t, p.Capped.Severity, 0.0, "policy %s", p.PolicyID)
		}
	}
	assert.Equal(t, 8, claimants)

	sev, ok := res.Test("Risk vs Province", stats.MetricSeverity)
	require.True(t, ok)
	assert.Equal(t, stats.TestMannWhitney, sev.Test)
	assert.Equal(t, 2, sev.Groups)
	assert.Equal(t, 8, sev.SampleSize)
	assert.False(t, math.IsNaN(sev.PValue))
	assert.Less(t, sev.PValue, 0.1, "Limpopo claims are all larger")
}

func TestRun_TransactionGranularity(t *testing.T) {
	records := generated(t, 30)
	records[0].TotalPremium = policy.Float(-120)
	records[1].TotalPremium = policy.Float(500)

	opts := DefaultOptions()
	_, err := New(opts, nil).Run(context.Background(), records)
	require.NoError(t, err, "a single reversal does not make the policy total negative")

	records[1].TotalPremium = policy.Float(-5000)
	records[2].TotalPremium = policy.Float(-5000)
	_, err = New(opts, nil).Run(context.Background(), records)
	assert.ErrorIs(t, err, policy.ErrNegativeAmount)

	opts.Granularity = GranularityTransaction
	res, err := New(opts, nil).Run(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, res.Policies, len(records))
	assert.False(t, AllPassed(res.Checks), "negative premium is reported")
}

func TestRun_SegmentationOnly(t *testing.T) {
	opts := DefaultOptions()
	opts.Suite = nil
	res, err := New(opts, nil).Run(context.Background(), generated(t, 20))
	require.NoError(t, err)
	assert.Empty(t, res.Tests)
	assert.Len(t, res.Policies, 20)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(DefaultOptions(), nil).Run(ctx, generated(t, 20))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	cfg.ParametricPolicy = "parametric"
	cfg.WinsorLower = 0.01
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, hypothesis.ModeParametric, opts.Mode)
	assert.Equal(t, 0.01, opts.Limits.Lower)
	assert.Equal(t, 5.0, opts.Caps.LossRatio)

	cfg.ParametricPolicy = "guess"
	_, err = OptionsFromConfig(cfg)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestValidate_Checks(t *testing.T) {
	p := policy.Policy{
		Record:   policy.Record{TotalPremium: policy.Float(10), TotalClaims: policy.Float(0)},
		Features: policy.Features{VehicleAge: policy.Int(60)},
		Segment:  "",
	}
	checks := Validate([]policy.Policy{p}, 5, 50)
	byName := map[string]Check{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	assert.False(t, byName["segments_assigned"].Passed)
	assert.False(t, byName["valid_vehicle_age"].Passed)
	assert.True(t, byName["no_negative_premium"].Passed)
	assert.False(t, AllPassed(checks))
}

func TestResult_RunSummary(t *testing.T) {
	records := generated(t, 60)
	res, err := New(DefaultOptions(), nil).Run(context.Background(), records)
	require.NoError(t, err)

	r := res.Run("abc")
	assert.Equal(t, res.RunID, r.ID)
	assert.Equal(t, "policy", r.Granularity)
	assert.Equal(t, 60, r.Policies)
	assert.Equal(t, res.Summary.TotalPremium, r.TotalPremium)
	assert.Equal(t, AllPassed(res.Checks), r.ChecksPassed)
	assert.Equal(t, "abc", r.Fingerprint)
}

func TestOptions_Settings(t *testing.T) {
	a := DefaultOptions()
	b := DefaultOptions()
	assert.Equal(t, a.Settings(), b.Settings())

	b.Alpha = 0.01
	assert.NotEqual(t, a.Settings(), b.Settings())

	b = DefaultOptions()
	b.Suite = nil
	assert.NotEqual(t, a.Settings(), b.Settings())
}
