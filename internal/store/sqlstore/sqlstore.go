package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gokatarajesh/quiz-import/internal/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store implements store.TableStore on database/sql. It is used with the
// SQLite driver for offline deployments and tests.
type Store struct {
	db *sql.DB
	q  querier
}

var (
	_ store.TableStore = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	rows = store.AssignIDs(rows)
	stmt, err := store.BuildInsert(table, rows)
	if err != nil {
		return nil, err
	}
	if _, err := s.q.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return rows, nil
}

func (s *Store) Select(ctx context.Context, table string, filter store.Filter) ([]store.Row, error) {
	stmt, err := store.BuildSelect(table, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		row := make(store.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, table, key string, value any, set store.Row) (int64, error) {
	stmt, err := store.BuildUpdate(table, key, value, set)
	if err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, table, key string, value any) (int64, error) {
	stmt, err := store.BuildDelete(table, key, value)
	if err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return res.RowsAffected()
}

// WithinTx runs fn inside a database/sql transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.TableStore) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
