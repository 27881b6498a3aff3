package parser

import (
	"bytes"
	"fmt"
	"strings"
)

// Format is a supported file family, named by its extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
)

// DetectFormat maps a filename to its Format by suffix. Matching is case
// sensitive: "REPORT.CSV" is not accepted.
func DetectFormat(filename string) (Format, bool) {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV, true
	case strings.HasSuffix(filename, ".xlsx"):
		return FormatXLSX, true
	case strings.HasSuffix(filename, ".xls"):
		return FormatXLS, true
	}
	return "", false
}

// Read parses content according to format.
func Read(format Format, content []byte) (*Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(bytes.NewReader(content))
	case FormatXLSX:
		return ReadXLSX(bytes.NewReader(content))
	case FormatXLS:
		return ReadXLS(content)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}
