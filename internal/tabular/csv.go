package tabular

import "strings"

// readCSV splits text into lines, drops blank ones and splits each line with
// splitCSVLine. Line numbers count retained lines only, so the first data row
// is always line 2.
func readCSV(data []byte) ([][]string, []int, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")

	var (
		rows  [][]string
		lines []int
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, splitCSVLine(line))
		lines = append(lines, len(rows))
	}
	return rows, lines, nil
}

// splitCSVLine splits on commas outside double quotes. A quote only toggles the
// quoted state, so an escaped quote ("") inside a field is not supported: it
// closes and reopens the quoted section and both quote characters are dropped.
func splitCSVLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	flush := func() {
		fields = append(fields, cleanField(current.String()))
		current.Reset()
	}
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			flush()
		default:
			current.WriteRune(ch)
		}
	}
	flush()
	return fields
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}
