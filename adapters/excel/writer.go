package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"insurisk/domain/policy"
	"insurisk/domain/stats"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the output workbook
const (
	SheetPolicies = "Policies"
	SheetTests    = "HypothesisTests"
)

// SegmentedHeaders are the columns of the augmented policy table
var SegmentedHeaders = []string{
	"PolicyID", "TransactionMonth", "TotalPremium", "TotalClaims", "Province", "PostalCode",
	"Gender", "MaritalStatus", "VehicleType", "CoverType",
	"LossRatio", "LossRatioPct", "HasClaim", "ClaimSeverity", "Margin",
	"VehicleAge", "SecurityScore", "ProvinceRisk", "PremiumToValue", "Season",
	"HasOutlier", "RiskSegment",
}

// ResultHeaders are the columns of the hypothesis result table
var ResultHeaders = []string{"Hypothesis", "Metric", "Test", "pValue", "Reject", "Statistic", "EffectSize", "SampleSize", "Groups"}

func segmentedRow(p policy.Policy) []interface{} {
	month := ""
	if !p.TransactionMonth.IsZero() {
		month = p.TransactionMonth.Format("2006-01-02")
	}
	var age interface{} = ""
	if p.Features.VehicleAge != nil {
		age = *p.Features.VehicleAge
	}
	return []interface{}{
		p.PolicyID, month, p.Premium(), p.Claims(), p.Province, p.PostalCode,
		p.Gender, p.MaritalStatus, p.VehicleType, p.CoverType,
		p.KPI.LossRatio, p.KPI.LossRatioPct, p.KPI.HasClaim, p.KPI.ClaimSeverity, p.KPI.Margin,
		age, p.Features.SecurityScore, string(p.Features.ProvinceRisk), p.Features.PremiumToValue, p.Features.Season,
		p.HasOutlier, string(p.Segment),
	}
}

func resultRow(r stats.HypothesisResult) []interface{} {
	return []interface{}{
		r.Hypothesis, string(r.Metric), string(r.Test), r.PValue, r.Reject,
		r.Statistic, r.EffectSize, r.SampleSize, r.Groups,
	}
}

// WriteSegmentedCSV writes the augmented policy table
func WriteSegmentedCSV(w io.Writer, policies []policy.Policy) error {
	rows := make([][]interface{}, len(policies))
	for i, p := range policies {
		rows[i] = segmentedRow(p)
	}
	return writeCSV(w, SegmentedHeaders, rows)
}

// WriteResultsCSV writes the hypothesis result table
func WriteResultsCSV(w io.Writer, results []stats.HypothesisResult) error {
	rows := make([][]interface{}, len(results))
	for i, r := range results {
		rows[i] = resultRow(r)
	}
	return writeCSV(w, ResultHeaders, rows)
}

// RecordHeaders are the source columns, in the order WriteRecords emits them
var RecordHeaders = []string{
	ColPolicyID, ColTransactionMonth, ColTotalPremium, ColTotalClaims, ColCalculatedPremiumPerTerm,
	ColSumInsured, ColVehicleType, ColRegistrationYear, ColWrittenOff, ColRebuilt, ColConverted,
	ColAlarmImmobiliser, ColTrackingDevice, ColGender, ColMaritalStatus, ColProvince, ColPostalCode, ColCoverType,
}

func recordRow(r policy.Record) []interface{} {
	month := ""
	if !r.TransactionMonth.IsZero() {
		month = r.TransactionMonth.Format("2006-01-02")
	}
	optFloat := func(v *float64) interface{} {
		if v == nil {
			return ""
		}
		return *v
	}
	var year interface{} = ""
	if r.RegistrationYear != nil {
		year = *r.RegistrationYear
	}
	flag := func(f policy.Flag) string {
		if f == policy.FlagUnknown {
			return ""
		}
		return f.String()
	}
	return []interface{}{
		r.PolicyID, month, optFloat(r.TotalPremium), optFloat(r.TotalClaims), optFloat(r.CalculatedPremiumPerTerm),
		optFloat(r.SumInsured), r.VehicleType, year, flag(r.WrittenOff), flag(r.Rebuilt), flag(r.Converted),
		flag(r.AlarmImmobiliser), flag(r.TrackingDevice), r.Gender, r.MaritalStatus, r.Province, r.PostalCode, r.CoverType,
	}
}

// WriteRecords writes raw records in the source layout, readable by DataReader
func WriteRecords(w io.Writer, records []policy.Record, delimiter rune) error {
	rows := make([][]interface{}, len(records))
	for i, r := range records {
		rows[i] = recordRow(r)
	}
	return writeDelimited(w, delimiter, RecordHeaders, rows)
}

func writeCSV(w io.Writer, headers []string, rows [][]interface{}) error {
	return writeDelimited(w, ',', headers, rows)
}

func writeDelimited(w io.Writer, delimiter rune, headers []string, rows [][]interface{}) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteWorkbook saves both tables as sheets of one xlsx file
func WriteWorkbook(path string, policies []policy.Policy, results []stats.HypothesisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPolicies); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTests); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	rows := make([][]interface{}, len(policies))
	for i, p := range policies {
		rows[i] = segmentedRow(p)
	}
	if err := streamSheet(f, SheetPolicies, SegmentedHeaders, rows); err != nil {
		return err
	}

	rows = make([][]interface{}, len(results))
	for i, r := range results {
		row := resultRow(r)
		// NaN is not a valid spreadsheet number
		for _, j := range []int{3, 5, 6} {
			if v, ok := row[j].(float64); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
				row[j] = formatCell(v)
			}
		}
		rows[i] = row
	}
	if err := streamSheet(f, SheetTests, ResultHeaders, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func streamSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream for %s: %w", sheet, err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return sw.Flush()
}
