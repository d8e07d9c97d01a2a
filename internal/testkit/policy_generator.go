package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"insurisk/domain/policy"
)

// PolicyGeneratorConfig configures the synthetic motor book
type PolicyGeneratorConfig struct {
	PolicyCount       int       `json:"policy_count"`
	MonthsPerPolicy   int       `json:"months_per_policy"` // transactions per policy
	ClaimRate         float64   `json:"claim_rate"`        // monthly probability of a claim
	MeanClaim         float64   `json:"mean_claim"`
	MissingRate       float64   `json:"missing_rate"` // probability an optional field is blank
	StartMonth        time.Time `json:"start_month"`
	HighRiskClaimLift float64   `json:"high_risk_claim_lift"` // claim rate multiplier for high-risk provinces
	Seed              int64     `json:"seed"`
}

// DefaultPolicyConfig returns sensible defaults for policy data generation
func DefaultPolicyConfig() PolicyGeneratorConfig {
	return PolicyGeneratorConfig{
		PolicyCount:       500,
		MonthsPerPolicy:   3,
		ClaimRate:         0.02,
		MeanClaim:         15000,
		MissingRate:       0.05,
		StartMonth:        time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		HighRiskClaimLift: 1.8,
		Seed:              42,
	}
}

var (
	provinces     = []string{"Gauteng", "Western Cape", "KwaZulu-Natal", "Eastern Cape", "Limpopo", "Mpumalanga", "North West", "Free State", "Northern Cape"}
	provinceShare = []float64{0.38, 0.18, 0.14, 0.08, 0.06, 0.06, 0.04, 0.04, 0.02}
	vehicleTypes  = []string{"Passenger Vehicle", "Sedan", "Light Commercial Vehicle", "Medium Commercial Vehicle", "Heavy Commercial Vehicle", "Bus", "Taxi", "Motorcycle"}
	vehicleShare  = []float64{0.45, 0.2, 0.15, 0.06, 0.04, 0.03, 0.04, 0.03}
	coverTypes    = []string{"Comprehensive", "Third Party", "Own Damage"}
	genders       = []string{"Male", "Female", "Not specified"}
	maritals      = []string{"Married", "Single", "Not specified"}
	highRisk      = map[string]bool{"Limpopo": true, "Mpumalanga": true, "North West": true}
)

// PolicyGenerator generates reproducible insurance transactions
type PolicyGenerator struct {
	config PolicyGeneratorConfig
	rng    *rand.Rand
}

// NewPolicyGenerator creates a new policy generator
func NewPolicyGenerator(config PolicyGeneratorConfig) *PolicyGenerator {
	return &PolicyGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateRecords generates MonthsPerPolicy transactions for each policy
func (g *PolicyGenerator) GenerateRecords() []policy.Record {
	months := g.config.MonthsPerPolicy
	if months < 1 {
		months = 1
	}
	records := make([]policy.Record, 0, g.config.PolicyCount*months)
	for i := 0; i < g.config.PolicyCount; i++ {
		base := g.generatePolicy(i + 1)
		for m := 0; m < months; m++ {
			records = append(records, g.transaction(base, m))
		}
	}
	return records
}

// generatePolicy draws the attributes that stay fixed across a policy's months
func (g *PolicyGenerator) generatePolicy(n int) policy.Record {
	province := pick(g.rng, provinces, provinceShare)
	vehicle := pick(g.rng, vehicleTypes, vehicleShare)
	regYear := g.config.StartMonth.Year() - g.rng.Intn(20)
	sumInsured := math.Round(50000 + g.rng.Float64()*400000)

	r := policy.Record{
		PolicyID:                 fmt.Sprintf("POL-%06d", n),
		CalculatedPremiumPerTerm: policy.Float(math.Round(sumInsured*(0.002+g.rng.Float64()*0.004)*100) / 100),
		SumInsured:               policy.Float(sumInsured),
		VehicleType:              vehicle,
		RegistrationYear:         policy.Int(regYear),
		WrittenOff:               g.flag(0.02),
		Rebuilt:                  g.flag(0.03),
		Converted:                g.flag(0.01),
		AlarmImmobiliser:         g.flag(0.7),
		TrackingDevice:           g.flag(0.4),
		Gender:                   genders[g.rng.Intn(len(genders))],
		MaritalStatus:            maritals[g.rng.Intn(len(maritals))],
		Province:                 province,
		PostalCode:               fmt.Sprintf("%04d", 1+g.rng.Intn(40)*50),
		CoverType:                coverTypes[g.rng.Intn(len(coverTypes))],
	}

	if g.rng.Float64() < g.config.MissingRate {
		r.RegistrationYear = nil
	}
	if g.rng.Float64() < g.config.MissingRate {
		r.CalculatedPremiumPerTerm = nil
	}
	if g.rng.Float64() < g.config.MissingRate {
		r.Gender = ""
	}
	return r
}

// transaction draws one month of premium and claims
func (g *PolicyGenerator) transaction(base policy.Record, month int) policy.Record {
	r := base
	r.TransactionMonth = g.config.StartMonth.AddDate(0, month, 0)

	var premium float64
	if base.CalculatedPremiumPerTerm != nil {
		premium = *base.CalculatedPremiumPerTerm
	} else {
		premium = math.Round(*base.SumInsured*0.003*100) / 100
	}
	// a small share of months are unpaid
	if g.rng.Float64() < 0.05 {
		premium = 0
	}
	r.TotalPremium = policy.Float(premium)

	rate := g.config.ClaimRate
	if highRisk[base.Province] {
		rate *= g.config.HighRiskClaimLift
	}
	claims := 0.0
	if g.rng.Float64() < rate {
		// lognormal severity with a heavy right tail
		claims = math.Round(g.config.MeanClaim*math.Exp(g.rng.NormFloat64()*1.1-0.6)*100) / 100
	}
	r.TotalClaims = policy.Float(claims)
	return r
}

func (g *PolicyGenerator) flag(pYes float64) policy.Flag {
	if g.rng.Float64() < pYes {
		return policy.FlagYes
	}
	return policy.FlagNo
}

func pick(rng *rand.Rand, values []string, weights []float64) string {
	x := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if x < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}
