package excel

// RawRowData represents a row of raw tabular data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete tabular dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// HasColumn reports whether a header matches name, ignoring case and spacing
func (d *ExcelData) HasColumn(name string) bool {
	_, ok := d.column(name)
	return ok
}

func (d *ExcelData) column(name string) (string, bool) {
	want := canonical(name)
	for _, h := range d.Headers {
		if canonical(h) == want {
			return h, true
		}
	}
	return "", false
}
