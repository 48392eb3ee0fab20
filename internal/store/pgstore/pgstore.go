package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokatarajesh/quiz-import/internal/store"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements store.TableStore on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

var (
	_ store.TableStore = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	rows = store.AssignIDs(rows)
	stmt, err := store.BuildInsert(table, rows)
	if err != nil {
		return nil, err
	}
	if _, err := s.q.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return rows, nil
}

func (s *Store) Select(ctx context.Context, table string, filter store.Filter) ([]store.Row, error) {
	stmt, err := store.BuildSelect(table, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		row := make(store.Row, len(values))
		for i, fd := range rows.FieldDescriptions() {
			row[fd.Name] = values[i]
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
	tag, err := s.q.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Delete(ctx context.Context, table, key string, value any) (int64, error) {
	stmt, err := store.BuildDelete(table, key, value)
	if err != nil {
		return 0, err
	}
	tag, err := s.q.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// WithinTx runs fn inside a single Postgres transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.TableStore) error) error {
	if s.pool == nil {
		// already bound to a transaction
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{q: tx})
	})
}

// Ping checks pool connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}
