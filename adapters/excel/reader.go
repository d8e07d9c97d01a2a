package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"insurisk/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel, CSV and pipe-delimited text files
type DataReader struct {
	config   ReaderConfig
	fileType string // "xlsx", "csv" or "txt"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader for the configured file
func NewDataReader(config ReaderConfig, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{config: config, fileType: fileType(config.FilePath), logger: logger}
}

// ReadData reads the file into headers and string rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Info("[DataReader] Starting to read %s file: %s", r.fileType, r.config.FilePath)

	if _, err := os.Stat(r.config.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.config.FilePath)
	}

	switch r.fileType {
	case "xlsx":
		return r.readExcelData()
	case "csv":
		return r.readDelimited(',')
	default:
		return r.readDelimited('|')
	}
}

// readExcelData reads the configured sheet, or the first one
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	r.logger.Debug("[DataReader] Sheet %s read in %s (%d rows)", sheet, time.Since(startTime), len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// readDelimited reads CSV or pipe-delimited text
func (r *DataReader) readDelimited(defaultDelimiter rune) (*ExcelData, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", r.fileType, err)
	}
	defer file.Close()

	delimiter := r.config.Delimiter
	if delimiter == 0 {
		delimiter = defaultDelimiter
	}
	return r.parseDelimited(file, delimiter)
}

func (r *DataReader) parseDelimited(src io.Reader, delimiter rune) (*ExcelData, error) {
	reader := csv.NewReader(src)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", r.fileType, err)
	}
	r.logger.Debug("[DataReader] %s file read in %s (%d rows)", r.fileType, time.Since(readStart), len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		blank := true
		for j, cell := range row {
			if j < len(headers) {
				v := strings.TrimSpace(cell)
				rowData[headers[j]] = v
				if v != "" {
					blank = false
				}
			}
		}
		if !blank {
			dataRows = append(dataRows, rowData)
		}
	}

	r.logger.Info("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}
