package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Statement is a parameterised SQL statement using $n placeholders, which both
// Postgres and SQLite accept.
type Statement struct {
	SQL  string
	Args []any
}

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, n)
		}
	}
	return nil
}

// columnsOf returns the sorted union of column names across rows.
func columnsOf(rows []Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for c := range r {
			seen[c] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// BuildInsert renders a multi-row INSERT. Columns missing from a row are bound as NULL.
func BuildInsert(table string, rows []Row) (Statement, error) {
	if len(rows) == 0 {
		return Statement{}, ErrNoRows
	}
	cols := columnsOf(rows)
	if err := checkIdent(append([]string{table}, cols...)...); err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	args := make([]any, 0, len(rows)*len(cols))
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, r[c])
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	return Statement{SQL: b.String(), Args: args}, nil
}

// BuildSelect renders SELECT * with an AND-ed equality filter.
func BuildSelect(table string, filter Filter) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, err
	}
	where, args, err := buildWhere(filter, 0)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "SELECT * FROM " + table + where, Args: args}, nil
}

// BuildUpdate renders UPDATE ... SET ... WHERE key = value.
func BuildUpdate(table, key string, value any, set Row) (Statement, error) {
	if len(set) == 0 {
		return Statement{}, fmt.Errorf("store: update %s: nothing to set", table)
	}
	cols := columnsOf([]Row{set})
	if err := checkIdent(append([]string{table, key}, cols...)...); err != nil {
		return Statement{}, err
	}
	assigns := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		args = append(args, set[c])
		assigns[i] = fmt.Sprintf("%s = $%d", c, len(args))
	}
	args = append(args, value)
	return Statement{
		SQL:  fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(assigns, ", "), key, len(args)),
		Args: args,
	}, nil
}

// BuildDelete renders DELETE ... WHERE key = value.
func BuildDelete(table, key string, value any) (Statement, error) {
	if err := checkIdent(table, key); err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, key),
		Args: []any{value},
	}, nil
}

func buildWhere(filter Filter, offset int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	cols := make([]string, 0, len(filter))
	for c := range filter {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := checkIdent(cols...); err != nil {
		return "", nil, err
	}
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = filter[c]
		parts[i] = fmt.Sprintf("%s = $%d", c, offset+i+1)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
