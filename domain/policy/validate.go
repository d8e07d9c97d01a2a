package policy

import (
	"errors"
	"fmt"
	"math"
)

// Input validation errors
var (
	ErrMissingRequired = errors.New("required field missing")
	ErrNonFinite       = errors.New("value is not a finite number")
	ErrNegativeAmount  = errors.New("amount is negative")
	ErrEmptyDataset    = errors.New("dataset has no records")
)

// Validate checks that the required financial fields are present and finite.
// Negative amounts are only rejected when requireNonNegative is set: raw
// transactions may carry reversals, policy totals may not.
func (r Record) Validate(requireNonNegative bool) error {
	if err := checkAmount("TotalPremium", r.TotalPremium, requireNonNegative); err != nil {
		return err
	}
	return checkAmount("TotalClaims", r.TotalClaims, requireNonNegative)
}

func checkAmount(field string, v *float64, requireNonNegative bool) error {
	if v == nil {
		return fmt.Errorf("%w: %s", ErrMissingRequired, field)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%w: %s", ErrNonFinite, field)
	}
	if requireNonNegative && *v < 0 {
		return fmt.Errorf("%w: %s=%.2f", ErrNegativeAmount, field, *v)
	}
	return nil
}

// ValidateAll validates every record and returns the first failure with its position
func ValidateAll(records []Record, requireNonNegative bool) error {
	if len(records) == 0 {
		return ErrEmptyDataset
	}
	for i, r := range records {
		if err := r.Validate(requireNonNegative); err != nil {
			return fmt.Errorf("record %d (policy %q): %w", i, r.PolicyID, err)
		}
	}
	return nil
}
