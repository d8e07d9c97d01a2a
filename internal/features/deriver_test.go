package features

import (
	"testing"
	"time"

	"insurisk/domain/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleAge(t *testing.T) {
	d := NewDeriver(DefaultConfig())

	tests := []struct {
		name string
		rec  policy.Record
		want *int
	}{
		{"unknown registration", policy.Record{}, nil},
		{"reference year fallback", policy.Record{RegistrationYear: policy.Int(2010)}, policy.Int(5)},
		{"transaction year wins", policy.Record{
			RegistrationYear: policy.Int(2010),
			TransactionMonth: time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC),
		}, policy.Int(4)},
		{"future registration clamps to zero", policy.Record{RegistrationYear: policy.Int(2020)}, policy.Int(0)},
		{"ancient vehicle clamps to fifty", policy.Record{RegistrationYear: policy.Int(1900)}, policy.Int(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.VehicleAge(tt.rec)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestSecurityScore(t *testing.T) {
	assert.Equal(t, 0, SecurityScore(policy.Record{}))
	assert.Equal(t, 1, SecurityScore(policy.Record{AlarmImmobiliser: policy.FlagYes, TrackingDevice: policy.FlagNo}))
	assert.Equal(t, 1, SecurityScore(policy.Record{TrackingDevice: policy.FlagYes}))
	assert.Equal(t, 2, SecurityScore(policy.Record{AlarmImmobiliser: policy.FlagYes, TrackingDevice: policy.FlagYes}))
}

func TestProvinceRisk(t *testing.T) {
	d := NewDeriver(DefaultConfig())

	assert.Equal(t, policy.RiskLevelLow, d.ProvinceRisk("Gauteng"))
	assert.Equal(t, policy.RiskLevelLow, d.ProvinceRisk(" western cape "))
	assert.Equal(t, policy.RiskLevelHigh, d.ProvinceRisk("Limpopo"))
	assert.Equal(t, policy.RiskLevelMedium, d.ProvinceRisk("KwaZulu-Natal"))
	assert.Equal(t, policy.RiskLevelMedium, d.ProvinceRisk(""))
}

func TestPremiumToValue(t *testing.T) {
	r := policy.Record{TotalPremium: policy.Float(100), SumInsured: policy.Float(120000)}
	assert.InDelta(t, 0.01, PremiumToValue(r), 1e-12)

	r.SumInsured = policy.Float(0)
	assert.Equal(t, 0.0, PremiumToValue(r))

	r.SumInsured = nil
	assert.Equal(t, 0.0, PremiumToValue(r))
}

func TestSeason(t *testing.T) {
	assert.Equal(t, "Summer", Season(time.January))
	assert.Equal(t, "Autumn", Season(time.May))
	assert.Equal(t, "Winter", Season(time.August))
	assert.Equal(t, "Spring", Season(time.December))
	assert.Equal(t, 4, Quarter(time.October))
}

func TestApply_ReturnsCopies(t *testing.T) {
	d := NewDeriver(DefaultConfig())
	in := []policy.Policy{{Record: policy.Record{
		PolicyID:         "P1",
		TotalPremium:     policy.Float(100),
		TotalClaims:      policy.Float(0),
		RegistrationYear: policy.Int(2012),
		AlarmImmobiliser: policy.FlagYes,
		TrackingDevice:   policy.FlagYes,
		Province:         "Gauteng",
	}}}

	out := d.Apply(in)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Features.SecurityScore)
	assert.Equal(t, 3, *out[0].Features.VehicleAge)
	assert.Nil(t, in[0].Features.VehicleAge, "input must stay untouched")
}
