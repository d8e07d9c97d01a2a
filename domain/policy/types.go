package policy

import (
	"strings"
	"time"
)

// Flag is a tri-state Yes/No/Unknown vehicle or security attribute
type Flag int

const (
	FlagUnknown Flag = iota
	FlagNo
	FlagYes
)

// ParseFlag maps free-text survey answers onto a Flag; anything unrecognised is Unknown
func ParseFlag(s string) Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return FlagYes
	case "no", "n", "false", "0":
		return FlagNo
	default:
		return FlagUnknown
	}
}

func (f Flag) String() string {
	switch f {
	case FlagYes:
		return "Yes"
	case FlagNo:
		return "No"
	default:
		return "Unknown"
	}
}

// Segment is the pricing risk tier assigned to a policy
type Segment string

const (
	SegmentLow    Segment = "Low-Risk"
	SegmentMedium Segment = "Medium-Risk"
	SegmentHigh   Segment = "High-Risk"
)

// Segments lists the tiers from best to worst
var Segments = []Segment{SegmentLow, SegmentMedium, SegmentHigh}

// Valid reports whether s is one of the three tiers
func (s Segment) Valid() bool {
	return s == SegmentLow || s == SegmentMedium || s == SegmentHigh
}

// Rank orders tiers High < Medium < Low; -1 for anything else
func (s Segment) Rank() int {
	switch s {
	case SegmentHigh:
		return 0
	case SegmentMedium:
		return 1
	case SegmentLow:
		return 2
	default:
		return -1
	}
}

// RiskLevel is the geographic risk tier of a province
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// Record is one policy-period transaction, or one policy after aggregation.
// Pointer fields are optional; nil means the source column was empty.
type Record struct {
	PolicyID         string
	TransactionMonth time.Time // zero when absent

	// Financial. TotalPremium and TotalClaims are required.
	TotalPremium             *float64
	TotalClaims              *float64
	CalculatedPremiumPerTerm *float64
	SumInsured               *float64

	// Vehicle
	VehicleType      string
	RegistrationYear *int
	WrittenOff       Flag
	Rebuilt          Flag
	Converted        Flag
	AlarmImmobiliser Flag
	TrackingDevice   Flag

	// Demographic
	Gender        string
	MaritalStatus string

	// Geographic
	Province   string
	PostalCode string

	// Coverage
	CoverType string
}

// Premium returns TotalPremium, or 0 when absent. Only safe after Validate.
func (r Record) Premium() float64 {
	return deref(r.TotalPremium)
}

// Claims returns TotalClaims, or 0 when absent. Only safe after Validate.
func (r Record) Claims() float64 {
	return deref(r.TotalClaims)
}

// KPIs are the per-policy profitability measures shared by segmentation and testing
type KPIs struct {
	LossRatio     float64 // claims/premium, decimal scale, capped for segmentation
	LossRatioPct  float64 // claims/premium ×100, wider reporting cap
	HasClaim      bool
	ClaimSeverity float64 // TotalClaims when HasClaim, else 0
	Margin        float64 // premium - claims, may be negative
}

// Features are derived underwriting inputs
type Features struct {
	VehicleAge         *int // years, clamped to [0,50]; nil when registration year is unknown
	SecurityScore      int  // 0..2, one per alarm/tracking device present
	ProvinceRisk       RiskLevel
	PremiumToValue     float64 // annualised premium / sum insured
	TransactionQuarter int     // 1..4, 0 when the transaction month is unknown
	Season             string
}

// Winsorized holds the capped financial columns consumed by mean-based tests
type Winsorized struct {
	TotalClaims              float64
	Severity                 float64 // capped over claimants only, 0 for policies without a claim
	Margin                   float64
	CalculatedPremiumPerTerm float64
}

// Policy is a record travelling through the pipeline with its derived columns.
// Each stage returns fresh copies; nothing written by one stage is changed by another.
type Policy struct {
	Record
	KPI        KPIs
	Features   Features
	Capped     Winsorized
	HasOutlier bool
	Segment    Segment
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
