package run

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"insurisk/domain/policy"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// Run is the persisted summary of one analysis run
type Run struct {
	ID             uuid.UUID `json:"id" db:"id"`
	StartedAt      time.Time `json:"started_at" db:"started_at"`
	FinishedAt     time.Time `json:"finished_at" db:"finished_at"`
	Granularity    string    `json:"granularity" db:"granularity"`
	InputRecords   int       `json:"input_records" db:"input_records"`
	Policies       int       `json:"policies" db:"policies"`
	TotalPremium   float64   `json:"total_premium" db:"total_premium"`
	TotalClaims    float64   `json:"total_claims" db:"total_claims"`
	LossRatio      float64   `json:"loss_ratio" db:"loss_ratio"`
	ClaimFrequency float64   `json:"claim_frequency" db:"claim_frequency"`
	ChecksPassed   bool      `json:"checks_passed" db:"checks_passed"`
	Fingerprint    string    `json:"fingerprint" db:"fingerprint"`
}

// Fingerprint hashes the settings and every input field that feeds KPIs,
// features, segmentation or hypothesis grouping, so reruns over the same book
// with the same settings share a fingerprint
func Fingerprint(settings string, records []policy.Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "settings:%s|n:%d", settings, len(records))
	for _, r := range records {
		fmt.Fprintf(h, "|%q:%s:%v:%v:%s:%s", r.PolicyID, r.TransactionMonth.Format("2006-01"),
			r.Premium(), r.Claims(), optional(r.CalculatedPremiumPerTerm), optional(r.SumInsured))
		year := "-"
		if r.RegistrationYear != nil {
			year = fmt.Sprint(*r.RegistrationYear)
		}
		fmt.Fprintf(h, ":%q:%s:%d%d%d%d%d", r.VehicleType, year,
			r.WrittenOff, r.Rebuilt, r.Converted, r.AlarmImmobiliser, r.TrackingDevice)
		fmt.Fprintf(h, ":%q:%q:%q:%q:%q", r.Gender, r.MaritalStatus, r.Province, r.PostalCode, r.CoverType)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
