package features

import (
	"strings"
	"time"

	"insurisk/domain/policy"
)

// Config holds the reference data used to derive underwriting features
type Config struct {
	ReferenceYear     int // used when a record carries no transaction month
	MaxVehicleAge     int
	LowRiskProvinces  []string
	HighRiskProvinces []string
}

// DefaultConfig returns the South African motor book settings
func DefaultConfig() Config {
	return Config{
		ReferenceYear:     2015,
		MaxVehicleAge:     50,
		LowRiskProvinces:  []string{"Western Cape", "Gauteng"},
		HighRiskProvinces: []string{"Limpopo", "Mpumalanga", "North West"},
	}
}

// Deriver computes vehicle age, security score, geographic tier and ratios
type Deriver struct {
	cfg  Config
	low  map[string]bool
	high map[string]bool
}

// NewDeriver creates a feature deriver
func NewDeriver(cfg Config) *Deriver {
	return &Deriver{
		cfg:  cfg,
		low:  toSet(cfg.LowRiskProvinces),
		high: toSet(cfg.HighRiskProvinces),
	}
}

// Apply returns copies of the policies with Features populated
func (d *Deriver) Apply(in []policy.Policy) []policy.Policy {
	out := make([]policy.Policy, len(in))
	for i, p := range in {
		p.Features = d.Derive(p)
		out[i] = p
	}
	return out
}

// Derive computes the features of one policy; KPIs must already be set
func (d *Deriver) Derive(p policy.Policy) policy.Features {
	f := policy.Features{
		VehicleAge:     d.VehicleAge(p.Record),
		SecurityScore:  SecurityScore(p.Record),
		ProvinceRisk:   d.ProvinceRisk(p.Province),
		PremiumToValue: PremiumToValue(p.Record),
	}
	if !p.TransactionMonth.IsZero() {
		f.TransactionQuarter = Quarter(p.TransactionMonth.Month())
		f.Season = Season(p.TransactionMonth.Month())
	}
	return f
}

// VehicleAge is transaction year minus registration year, clamped to [0, MaxVehicleAge]
func (d *Deriver) VehicleAge(r policy.Record) *int {
	if r.RegistrationYear == nil {
		return nil
	}
	year := d.cfg.ReferenceYear
	if !r.TransactionMonth.IsZero() {
		year = r.TransactionMonth.Year()
	}
	age := year - *r.RegistrationYear
	if age < 0 {
		age = 0
	}
	if d.cfg.MaxVehicleAge > 0 && age > d.cfg.MaxVehicleAge {
		age = d.cfg.MaxVehicleAge
	}
	return &age
}

// SecurityScore counts the fitted security devices
func SecurityScore(r policy.Record) int {
	score := 0
	if r.AlarmImmobiliser == policy.FlagYes {
		score++
	}
	if r.TrackingDevice == policy.FlagYes {
		score++
	}
	return score
}

// ProvinceRisk maps a province onto its geographic tier; unlisted provinces are Medium
func (d *Deriver) ProvinceRisk(province string) policy.RiskLevel {
	key := normalize(province)
	switch {
	case d.low[key]:
		return policy.RiskLevelLow
	case d.high[key]:
		return policy.RiskLevelHigh
	default:
		return policy.RiskLevelMedium
	}
}

// PremiumToValue is the annualised monthly premium as a share of sum insured
func PremiumToValue(r policy.Record) float64 {
	if r.SumInsured == nil || *r.SumInsured <= 0 {
		return 0
	}
	return r.Premium() * 12 / *r.SumInsured
}

// Quarter returns the calendar quarter of m
func Quarter(m time.Month) int {
	return (int(m)-1)/3 + 1
}

// Season returns the southern-hemisphere season of m
func Season(m time.Month) string {
	switch Quarter(m) {
	case 1:
		return "Summer"
	case 2:
		return "Autumn"
	case 3:
		return "Winter"
	default:
		return "Spring"
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[normalize(v)] = true
	}
	return set
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
