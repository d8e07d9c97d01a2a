package excel

import (
	"path/filepath"
	"strings"
)

// ReaderConfig holds configuration for a policy data source
type ReaderConfig struct {
	FilePath  string `json:"file_path"`
	Sheet     string `json:"sheet"`     // xlsx only; empty means the first sheet
	Delimiter rune   `json:"delimiter"` // text files only; 0 means infer from extension
}

// DefaultReaderConfig returns sensible defaults for the given file
func DefaultReaderConfig(filePath string) ReaderConfig {
	return ReaderConfig{FilePath: filePath}
}

// fileType maps an extension onto the reader used for it
func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv":
		return "csv"
	default:
		// the raw motor book ships as pipe-delimited .txt
		return "txt"
	}
}
