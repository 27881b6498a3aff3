package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX parses the first sheet of an Office Open XML workbook. Cells are
// read as their stored value rather than their displayed text; cells with a
// date number format are rendered as "2006-01-02 15:04:05".
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumns
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	dates := newDateStyles(f)
	for i, row := range rows {
		for j, raw := range row {
			if raw == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			styleID, err := f.GetCellStyle(sheet, ref)
			if err != nil {
				return nil, fmt.Errorf("style of %s: %w", ref, err)
			}
			if !dates.isDate(styleID) {
				continue
			}
			if v, ok := dates.render(raw); ok {
				row[j] = v
			}
		}
	}
	return fromGrid(rows)
}

// dateTimeLayout is how date cells are rendered, matching what a
// dataframe reader prints for a timestamp read as text.
const dateTimeLayout = "2006-01-02 15:04:05"

// dateStyles caches, per style id, whether the style's number format is a
// date or time format.
type dateStyles struct {
	f        *excelize.File
	date1904 bool
	known    map[int]bool
}

func newDateStyles(f *excelize.File) *dateStyles {
	d := &dateStyles{f: f, known: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateStyles) isDate(styleID int) bool {
	if v, ok := d.known[styleID]; ok {
		return v
	}
	v := false
	if st, err := d.f.GetStyle(styleID); err == nil && st != nil {
		v = isDateNumFmt(st.NumFmt)
		if st.CustomNumFmt != nil {
			v = isDateFormatCode(*st.CustomNumFmt)
		}
	}
	d.known[styleID] = v
	return v
}

// render converts a serial date to text. Values that are not numbers are
// left alone.
func (d *dateStyles) render(raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false
	}
	return t.Round(time.Second).Format(dateTimeLayout), true
}

// isDateNumFmt reports whether a built-in number format id is a date or
// time format (ECMA-376 18.8.30, including the CJK ranges).
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom format code carries date
// tokens once quoted literals, escapes and bracketed sections are removed.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false
	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.ToLower(b.String())
	return strings.ContainsAny(cleaned, "yd") || (strings.Contains(cleaned, "h") && strings.Contains(cleaned, "m"))
}

// ReadXLS parses the first sheet of a legacy BIFF workbook. The xls reader
// panics on some corrupt inputs; that is reported as an error.
func ReadXLS(content []byte) (t *Table, err error) {
	defer func() {
		if p := recover(); p != nil {
			t, err = nil, fmt.Errorf("read xls: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoColumns
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoColumns
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		var cells []string
		for c := 0; c <= row.LastCol(); c++ {
			cells = append(cells, xlsCellText(row.Col(c)))
		}
		grid = append(grid, trimTrailing(cells))
	}
	return fromGrid(grid)
}

// xlsCellText renders the RFC3339 timestamps the xls reader produces for
// date cells in the same layout as xlsx date cells.
func xlsCellText(v string) string {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.Format(dateTimeLayout)
	}
	return v
}

// fromGrid applies the banner/header convention to a sheet's rows.
// Entirely empty rows after the header are ignored.
func fromGrid(rows [][]string) (*Table, error) {
	if len(rows) < 2 || len(trimTrailing(rows[1])) == 0 {
		return nil, ErrNoColumns
	}
	b := newBuilder(trimTrailing(rows[1]))
	for _, fields := range rows[2:] {
		if blank(fields) {
			continue
		}
		b.add(trimTrailing(fields))
	}
	return b.table, nil
}

func trimTrailing(fields []string) []string {
	n := len(fields)
	for n > 0 && fields[n-1] == "" {
		n--
	}
	return fields[:n]
}
