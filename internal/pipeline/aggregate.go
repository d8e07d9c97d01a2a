package pipeline

import (
	"fmt"

	"insurisk/domain/policy"
	"insurisk/internal/errors"

	"github.com/shopspring/decimal"
)

// AggregateByPolicy collapses monthly transactions into one record per PolicyID.
// Premium and claims are summed exactly; descriptive fields take the first
// non-blank value seen; the transaction month is the latest one. Records keep
// the order in which each policy first appears.
func AggregateByPolicy(records []policy.Record) ([]policy.Record, error) {
	if len(records) == 0 {
		return nil, errors.ValidationError("cannot aggregate", policy.ErrEmptyDataset)
	}

	type acc struct {
		rec     policy.Record
		premium decimal.Decimal
		claims  decimal.Decimal
	}
	index := map[string]int{}
	var accs []*acc

	for i, r := range records {
		if err := r.Validate(false); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("transaction %d (policy %q)", i, r.PolicyID), err)
		}
		pos, seen := index[r.PolicyID]
		if !seen {
			pos = len(accs)
			index[r.PolicyID] = pos
			accs = append(accs, &acc{rec: r})
		}
		a := accs[pos]
		a.premium = a.premium.Add(decimal.NewFromFloat(*r.TotalPremium))
		a.claims = a.claims.Add(decimal.NewFromFloat(*r.TotalClaims))
		if seen {
			mergeFirst(&a.rec, r)
		}
	}

	out := make([]policy.Record, len(accs))
	for i, a := range accs {
		rec := a.rec
		rec.TotalPremium = policy.Float(a.premium.InexactFloat64())
		rec.TotalClaims = policy.Float(a.claims.InexactFloat64())
		out[i] = rec
	}
	return out, nil
}

// mergeFirst fills blanks in dst from src and advances the transaction month
func mergeFirst(dst *policy.Record, src policy.Record) {
	if src.TransactionMonth.After(dst.TransactionMonth) {
		dst.TransactionMonth = src.TransactionMonth
	}
	firstFloat(&dst.CalculatedPremiumPerTerm, src.CalculatedPremiumPerTerm)
	firstFloat(&dst.SumInsured, src.SumInsured)
	if dst.RegistrationYear == nil && src.RegistrationYear != nil {
		dst.RegistrationYear = src.RegistrationYear
	}
	firstFlag(&dst.WrittenOff, src.WrittenOff)
	firstFlag(&dst.Rebuilt, src.Rebuilt)
	firstFlag(&dst.Converted, src.Converted)
	firstFlag(&dst.AlarmImmobiliser, src.AlarmImmobiliser)
	firstFlag(&dst.TrackingDevice, src.TrackingDevice)
	firstString(&dst.VehicleType, src.VehicleType)
	firstString(&dst.Gender, src.Gender)
	firstString(&dst.MaritalStatus, src.MaritalStatus)
	firstString(&dst.Province, src.Province)
	firstString(&dst.PostalCode, src.PostalCode)
	firstString(&dst.CoverType, src.CoverType)
}

func firstFloat(dst **float64, src *float64) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func firstFlag(dst *policy.Flag, src policy.Flag) {
	if *dst == policy.FlagUnknown {
		*dst = src
	}
}

func firstString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
