// Package tabular turns a question sheet (XLSX workbook or CSV text) into
// header-keyed records.
package tabular

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/gokatarajesh/quiz-import/internal/archive"
)

// Required column headers.
const (
	ColNumber = "題號"
	ColType   = "題型"
	ColText   = "題目"
	ColAnswer = "正確答案"
)

// RequiredHeaders lists the columns every sheet must carry, in reporting order.
var RequiredHeaders = []string{ColNumber, ColType, ColText, ColAnswer}

// ErrInsufficientRows is returned when the sheet has no data row under the header.
var ErrInsufficientRows = errors.New("檔案必須包含表頭和至少一筆資料")

// MissingHeadersError names the required headers absent from the sheet.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return "缺少必要欄位: " + strings.Join(e.Missing, ", ")
}

// Record is one data row. Line is the 1-based source line; the first data row is line 2.
type Record struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value of a column, or "" when absent.
func (r Record) Get(col string) string {
	return strings.TrimSpace(r.Values[col])
}

// Table is a parsed sheet.
type Table struct {
	Headers []string
	Records []Record
}

// Parse decodes data according to format and checks the required headers.
func Parse(data []byte, format archive.Format) (*Table, error) {
	var (
		rows  [][]string
		lines []int
		err   error
	)
	switch format {
	case archive.FormatCSV:
		rows, lines, err = readCSV(data)
	case archive.FormatXLSX:
		rows, lines, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrInsufficientRows
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeHeader(h)
	}
	if missing := missingHeaders(headers); len(missing) > 0 {
		return nil, &MissingHeadersError{Missing: missing}
	}

	table := &Table{Headers: headers, Records: make([]Record, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		values := make(map[string]string, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(row) {
				values[h] = strings.TrimSpace(row[j])
			} else {
				values[h] = ""
			}
		}
		table.Records = append(table.Records, Record{Line: lines[i+1], Values: values})
	}
	return table, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return norm.NFC.String(strings.TrimSpace(h))
}

func missingHeaders(headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, req := range RequiredHeaders {
		if _, ok := present[req]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}
