package excel

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"insurisk/domain/policy"
	"insurisk/domain/stats"
	apperrors "insurisk/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipeSample = `UnderwrittenCoverID|PolicyID|TransactionMonth|Gender|MaritalStatus|Province|PostalCode|VehicleType|RegistrationYear|AlarmImmobiliser|TrackingDevice|WrittenOff|Rebuilt|CoverType|SumInsured|CalculatedPremiumPerTerm|TotalPremium|TotalClaims
145249|12827|2015-03-01 00:00:00|male|Married|Gauteng|1459|Passenger Vehicle|2004|Yes|No|No|No|Comprehensive|119300|25|21,929824561403|0
145255|12827|2015-05-01 00:00:00|Male|Married|Gauteng|1459|Passenger Vehicle|2004|Yes|No|No|No|Comprehensive|119300|25|1,234.50|512.5
145247|12828|2015-07-01 00:00:00||Single| Western Cape |7100|Sedan||No|Yes|||Third Party|0.01||abc|0
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDataReader_PipeDelimited(t *testing.T) {
	path := writeTemp(t, "book.txt", pipeSample)
	data, err := NewDataReader(DefaultReaderConfig(path), nil).ReadData()
	require.NoError(t, err)

	assert.Len(t, data.Headers, 18)
	require.Len(t, data.Rows, 3)
	assert.Equal(t, "Western Cape", data.Rows[2]["Province"])
	assert.True(t, data.HasColumn("total_premium"))
	assert.False(t, data.HasColumn("Excess"))
}

func TestDataReader_MissingFile(t *testing.T) {
	_, err := NewDataReader(DefaultReaderConfig("/nonexistent/book.csv"), nil).ReadData()
	assert.Error(t, err)
}

func TestDataReader_HeaderOnly(t *testing.T) {
	path := writeTemp(t, "empty.csv", "PolicyID,TotalPremium,TotalClaims\n")
	_, err := NewDataReader(DefaultReaderConfig(path), nil).ReadData()
	assert.Error(t, err)
}

func TestToRecords(t *testing.T) {
	path := writeTemp(t, "book.txt", pipeSample)
	data, err := NewDataReader(DefaultReaderConfig(path), nil).ReadData()
	require.NoError(t, err)

	records, err := ToRecords(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "12827", first.PolicyID)
	assert.Equal(t, time.March, first.TransactionMonth.Month())
	assert.Equal(t, "Male", first.Gender, "gender is title-cased")
	require.NotNil(t, first.TotalPremium)
	assert.InDelta(t, 21.929824561403, *first.TotalPremium, 1e-9)
	assert.Equal(t, 2004, *first.RegistrationYear)
	assert.Equal(t, policy.FlagYes, first.AlarmImmobiliser)
	assert.Equal(t, policy.FlagNo, first.TrackingDevice)

	assert.InDelta(t, 1234.5, *records[1].TotalPremium, 1e-9)

	third := records[2]
	assert.Nil(t, third.TotalPremium, "non-numeric premium is missing, not zero")
	assert.Nil(t, third.RegistrationYear)
	assert.Nil(t, third.CalculatedPremiumPerTerm)
	assert.Equal(t, policy.FlagUnknown, third.WrittenOff)
	assert.Equal(t, "", third.Gender)
	assert.ErrorIs(t, policy.ValidateAll(records, false), policy.ErrMissingRequired)
}

func TestToRecords_MissingColumn(t *testing.T) {
	data := &ExcelData{Headers: []string{"PolicyID", "TotalPremium"}, Rows: []RawRowData{{"PolicyID": "1", "TotalPremium": "10"}}}
	_, err := ToRecords(data)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
	assert.ErrorIs(t, err, policy.ErrMissingRequired)
}

func TestToRecords_GeneratesRowIDs(t *testing.T) {
	data := &ExcelData{
		Headers: []string{"TotalPremium", "TotalClaims"},
		Rows:    []RawRowData{{"TotalPremium": "10", "TotalClaims": "0"}},
	}
	records, err := ToRecords(data)
	require.NoError(t, err)
	assert.Equal(t, "ROW-1", records[0].PolicyID)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"12.5", policy.Float(12.5)},
		{"12,5", policy.Float(12.5)},
		{"1,234,567", policy.Float(1234567)},
		{"1,500", policy.Float(1500)},
		{"-2,750", policy.Float(-2750)},
		{"21,93", policy.Float(21.93)},
		{"1500,5", policy.Float(1500.5)},
		{"0,1234", policy.Float(0.1234)},
		{"1,500.25", policy.Float(1500.25)},
		{" 7 ", policy.Float(7)},
		{"", nil},
		{"NA", nil},
		{"nan", nil},
		{"Inf", nil},
		{"twelve", nil},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "input %q", tt.in)
			continue
		}
		require.NotNil(t, got, "input %q", tt.in)
		assert.InDelta(t, *tt.want, *got, 1e-9, "input %q", tt.in)
	}
}

func samplePolicies() []policy.Policy {
	return []policy.Policy{
		{
			Record: policy.Record{
				PolicyID: "P1", TransactionMonth: time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC),
				TotalPremium: policy.Float(100), TotalClaims: policy.Float(0), Province: "Gauteng",
			},
			KPI:      policy.KPIs{Margin: 100},
			Features: policy.Features{VehicleAge: policy.Int(3), SecurityScore: 2, ProvinceRisk: policy.RiskLevelLow},
			Segment:  policy.SegmentLow,
		},
		{
			Record:  policy.Record{PolicyID: "P2", TotalPremium: policy.Float(0), TotalClaims: policy.Float(500)},
			KPI:     policy.KPIs{HasClaim: true, ClaimSeverity: 500, Margin: -500},
			Segment: policy.SegmentHigh,
		},
	}
}

func sampleResults() []stats.HypothesisResult {
	return []stats.HypothesisResult{
		{Hypothesis: "Risk vs Province", Metric: stats.MetricFrequency, Test: stats.TestChiSquare, PValue: 0.01, Reject: true},
		{Hypothesis: "Risk vs Gender", Metric: stats.MetricSeverity, Test: stats.TestInsufficientGroups, PValue: math.NaN(), Statistic: math.NaN()},
	}
}

func TestWriteSegmentedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSegmentedCSV(&buf, samplePolicies()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, SegmentedHeaders, rows[0])

	col := func(name string) int {
		for i, h := range rows[0] {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing", name)
		return -1
	}
	assert.Equal(t, "Low-Risk", rows[1][col("RiskSegment")])
	assert.Equal(t, "3", rows[1][col("VehicleAge")])
	assert.Equal(t, "", rows[2][col("VehicleAge")])
	assert.Equal(t, "true", rows[2][col("HasClaim")])
	assert.Equal(t, "0", rows[2][col("LossRatio")])
}

func TestWriteResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, sampleResults()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Hypothesis,Metric,Test,pValue,Reject"))
	assert.Equal(t, "Risk vs Province,Frequency,Chi-Square,0.01,true,0,0,0,0", lines[1])
	assert.Contains(t, lines[2], "NaN")
}

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.xlsx")
	require.NoError(t, WriteWorkbook(path, samplePolicies(), sampleResults()))

	cfg := DefaultReaderConfig(path)
	cfg.Sheet = SheetPolicies
	data, err := NewDataReader(cfg, nil).ReadData()
	require.NoError(t, err)
	assert.Equal(t, SegmentedHeaders, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "P1", data.Rows[0]["PolicyID"])
	assert.Equal(t, "High-Risk", data.Rows[1]["RiskSegment"])

	cfg.Sheet = SheetTests
	tests, err := NewDataReader(cfg, nil).ReadData()
	require.NoError(t, err)
	assert.Len(t, tests.Rows, 2)
	assert.Equal(t, "NaN", tests.Rows[1]["pValue"])
}

func TestWriteRecords_ReadBack(t *testing.T) {
	records := []policy.Record{
		{
			PolicyID:         "POL-1",
			TransactionMonth: time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC),
			TotalPremium:     policy.Float(21.929824561403),
			TotalClaims:      policy.Float(0),
			SumInsured:       policy.Float(119300),
			VehicleType:      "Passenger Vehicle",
			RegistrationYear: policy.Int(2004),
			AlarmImmobiliser: policy.FlagYes,
			TrackingDevice:   policy.FlagNo,
			Gender:           "Male",
			Province:         "Gauteng",
			CoverType:        "Comprehensive",
		},
		{PolicyID: "POL-2", TotalPremium: policy.Float(100), TotalClaims: policy.Float(2500.75)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, records, '|'))
	path := writeTemp(t, "generated.txt", buf.String())

	data, err := NewDataReader(DefaultReaderConfig(path), nil).ReadData()
	require.NoError(t, err)
	got, err := ToRecords(data)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, records[0].TransactionMonth, got[0].TransactionMonth)
	assert.InDelta(t, 21.929824561403, got[0].Premium(), 1e-12)
	assert.Equal(t, 2004, *got[0].RegistrationYear)
	assert.Equal(t, policy.FlagYes, got[0].AlarmImmobiliser)
	assert.Equal(t, policy.FlagNo, got[0].TrackingDevice)
	assert.Nil(t, got[0].CalculatedPremiumPerTerm)

	assert.Equal(t, "POL-2", got[1].PolicyID)
	assert.InDelta(t, 2500.75, got[1].Claims(), 1e-9)
	assert.True(t, got[1].TransactionMonth.IsZero())
	assert.Equal(t, policy.FlagUnknown, got[1].WrittenOff)
}
