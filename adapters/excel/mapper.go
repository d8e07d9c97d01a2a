package excel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"insurisk/domain/policy"
	"insurisk/internal/errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source column names of the motor book
const (
	ColPolicyID                 = "PolicyID"
	ColTransactionMonth         = "TransactionMonth"
	ColTotalPremium             = "TotalPremium"
	ColTotalClaims              = "TotalClaims"
	ColCalculatedPremiumPerTerm = "CalculatedPremiumPerTerm"
	ColSumInsured               = "SumInsured"
	ColVehicleType              = "VehicleType"
	ColRegistrationYear         = "RegistrationYear"
	ColWrittenOff               = "WrittenOff"
	ColRebuilt                  = "Rebuilt"
	ColConverted                = "Converted"
	ColAlarmImmobiliser         = "AlarmImmobiliser"
	ColTrackingDevice           = "TrackingDevice"
	ColGender                   = "Gender"
	ColMaritalStatus            = "MaritalStatus"
	ColProvince                 = "Province"
	ColPostalCode               = "PostalCode"
	ColCoverType                = "CoverType"
)

// RequiredColumns must be present in every dataset
var RequiredColumns = []string{ColTotalPremium, ColTotalClaims}

var monthLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
	"01/02/2006",
}

// ToRecords maps raw rows onto policy records. Unparseable numbers become
// missing values; a missing required column fails the whole dataset.
func ToRecords(data *ExcelData) ([]policy.Record, error) {
	for _, col := range RequiredColumns {
		if !data.HasColumn(col) {
			return nil, errors.ValidationError(fmt.Sprintf("missing column %s", col), policy.ErrMissingRequired)
		}
	}

	cols := map[string]string{}
	for _, name := range []string{
		ColPolicyID, ColTransactionMonth, ColTotalPremium, ColTotalClaims, ColCalculatedPremiumPerTerm,
		ColSumInsured, ColVehicleType, ColRegistrationYear, ColWrittenOff, ColRebuilt, ColConverted,
		ColAlarmImmobiliser, ColTrackingDevice, ColGender, ColMaritalStatus, ColProvince, ColPostalCode, ColCoverType,
	} {
		if header, ok := data.column(name); ok {
			cols[name] = header
		}
	}
	get := func(row RawRowData, name string) string {
		header, ok := cols[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[header])
	}

	records := make([]policy.Record, len(data.Rows))
	for i, row := range data.Rows {
		r := policy.Record{
			PolicyID:                 get(row, ColPolicyID),
			TransactionMonth:         ParseMonth(get(row, ColTransactionMonth)),
			TotalPremium:             ParseNumber(get(row, ColTotalPremium)),
			TotalClaims:              ParseNumber(get(row, ColTotalClaims)),
			CalculatedPremiumPerTerm: ParseNumber(get(row, ColCalculatedPremiumPerTerm)),
			SumInsured:               ParseNumber(get(row, ColSumInsured)),
			VehicleType:              get(row, ColVehicleType),
			WrittenOff:               policy.ParseFlag(get(row, ColWrittenOff)),
			Rebuilt:                  policy.ParseFlag(get(row, ColRebuilt)),
			Converted:                policy.ParseFlag(get(row, ColConverted)),
			AlarmImmobiliser:         policy.ParseFlag(get(row, ColAlarmImmobiliser)),
			TrackingDevice:           policy.ParseFlag(get(row, ColTrackingDevice)),
			Gender:                   titleCase(get(row, ColGender)),
			MaritalStatus:            titleCase(get(row, ColMaritalStatus)),
			Province:                 get(row, ColProvince),
			PostalCode:               get(row, ColPostalCode),
			CoverType:                get(row, ColCoverType),
		}
		if r.PolicyID == "" {
			r.PolicyID = fmt.Sprintf("ROW-%d", i+1)
		}
		if year := ParseNumber(get(row, ColRegistrationYear)); year != nil {
			r.RegistrationYear = policy.Int(int(*year))
		}
		records[i] = r
	}
	return records, nil
}

// ParseNumber coerces a cell to a float. Blank, NA and non-numeric cells are nil.
// A lone comma followed by exactly three digits groups thousands ("1,500");
// any other lone comma is the decimal separator ("21,93").
func ParseNumber(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null", "none":
		return nil
	}
	if i := strings.Index(s, ","); i >= 0 {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 || thousands(s[i+1:]) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func thousands(frac string) bool {
	if len(frac) != 3 {
		return false
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseMonth parses a transaction date; unrecognised values give the zero time
func ParseMonth(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(s))
}

// canonical folds a header for matching: case, spaces, underscores and hyphens are ignored
func canonical(name string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(name)))
}
