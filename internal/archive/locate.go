package archive

import (
	"fmt"
	"strings"
)

// Format is the tabular format of the question sheet.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatOf infers the sheet format from an entry name.
func FormatOf(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// Matcher picks the question sheet out of a list of entries.
type Matcher interface {
	Match(entries []Entry) (Entry, bool)
}

// ExactPath matches an entry by its full relative path.
type ExactPath string

func (p ExactPath) Match(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if !e.IsDir && e.Name == string(p) {
			return e, true
		}
	}
	return Entry{}, false
}

// Suffix matches the first entry, in archive order, whose path ends with any
// of the suffixes.
type Suffix []string

func (s Suffix) Match(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.IsDir || e.Noise() {
			continue
		}
		for _, suffix := range s {
			if strings.HasSuffix(e.Name, suffix) {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// DefaultDataMatchers is the lookup order for the question sheet.
func DefaultDataMatchers() []Matcher {
	return []Matcher{
		ExactPath("questions.xlsx"),
		ExactPath("questions.csv"),
		ExactPath("questions/questions.xlsx"),
		ExactPath("questions/questions.csv"),
		Suffix{"questions.xlsx", "questions.csv"},
	}
}

// DataFileNotFoundError lists what the archive did contain.
type DataFileNotFoundError struct {
	Entries []string
}

func (e *DataFileNotFoundError) Error() string {
	return fmt.Sprintf("questions.xlsx or questions.csv not found (entries: %s)", strings.Join(e.Entries, ", "))
}

// Locate evaluates matchers in order and returns the first hit.
func (r *Reader) Locate(matchers ...Matcher) (Entry, Format, error) {
	if len(matchers) == 0 {
		matchers = DefaultDataMatchers()
	}
	for _, m := range matchers {
		if e, ok := m.Match(r.entries); ok {
			return e, FormatOf(e.Name), nil
		}
	}
	return Entry{}, "", &DataFileNotFoundError{Entries: r.Names()}
}
