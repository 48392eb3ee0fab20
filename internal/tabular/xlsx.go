package tabular

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first worksheet. Line numbers are worksheet row numbers;
// rows without any non-blank cell are skipped.
func readXLSX(data []byte) ([][]string, []int, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrInsufficientRows
	}
	raw, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var (
		rows  [][]string
		lines []int
	)
	for i, row := range raw {
		if blankRow(row) {
			continue
		}
		rows = append(rows, row)
		lines = append(lines, i+1)
	}
	return rows, lines, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
