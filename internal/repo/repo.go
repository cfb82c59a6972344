package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = eris.New("not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns tx when non-nil so reads inside a mutation see its writes.
func (r Repo) conn(tx *sql.Tx) DBTX {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "repo: marshal json column")
	}
	if string(b) == "null" {
		return nil, nil
	}
	return string(b), nil
}

func unmarshalJSON(ns sql.NullString, out any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), out); err != nil {
		return eris.Wrap(err, "repo: unmarshal json column")
	}
	return nil
}

func notFound(err error, what string) error {
	if err == sql.ErrNoRows {
		return eris.Wrap(ErrNotFound, what)
	}
	return eris.Wrap(err, what)
}
