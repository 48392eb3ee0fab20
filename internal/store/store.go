package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// KeyColumn is the primary key column every table exposes.
const KeyColumn = "id"

var (
	// ErrInvalidIdentifier guards table/column names interpolated into SQL.
	ErrInvalidIdentifier = errors.New("store: invalid identifier")
	// ErrNoRows is returned by Insert when called without rows.
	ErrNoRows = errors.New("store: no rows")
)

// Filter is an equality predicate; entries are combined with AND.
type Filter map[string]any

// TableStore is the row-oriented view of the relational backend.
type TableStore interface {
	// Insert writes rows and returns them with their ids populated.
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	Select(ctx context.Context, table string, filter Filter) ([]Row, error)
	Update(ctx context.Context, table, key string, value any, set Row) (int64, error)
	Delete(ctx context.Context, table, key string, value any) (int64, error)
}

// Transactor is implemented by stores able to run several writes atomically.
// fn receives a TableStore bound to the transaction; returning an error rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx TableStore) error) error
}

// AssignIDs copies rows, generating a UUID for rows without one.
func AssignIDs(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := r.Clone()
		if v, ok := c[KeyColumn]; !ok || v == nil || v == "" {
			c[KeyColumn] = uuid.NewString()
		}
		out[i] = c
	}
	return out
}
