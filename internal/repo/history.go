package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
)

func scanHistory(row rowScanner) (domain.HistoryEntry, error) {
	var h domain.HistoryEntry
	var oldV, newV sql.NullString
	if err := row.Scan(&h.ID, &h.OwnerKind, &h.OwnerID, &h.Field, &oldV, &newV, &h.ActorID, &h.TS); err != nil {
		return h, err
	}
	h.OldValue = stringPtr(oldV)
	h.NewValue = stringPtr(newV)
	return h, nil
}

func (r Repo) InsertHistory(ctx context.Context, tx *sql.Tx, h domain.HistoryEntry) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO history(owner_kind,owner_id,field,old_value,new_value,actor_id,ts) VALUES (?,?,?,?,?,?,?)`,
		h.OwnerKind, h.OwnerID, h.Field, nullableStringPtr(h.OldValue), nullableStringPtr(h.NewValue), h.ActorID, h.TS)
	if err != nil {
		return 0, eris.Wrapf(err, "insert history %s/%s.%s", h.OwnerKind, h.OwnerID, h.Field)
	}
	return res.LastInsertId()
}

// LatestHistory returns the most recent entry for one field of one owner.
func (r Repo) LatestHistory(ctx context.Context, tx *sql.Tx, ownerKind, ownerID, field string) (domain.HistoryEntry, error) {
	h, err := scanHistory(r.conn(tx).QueryRowContext(ctx, `SELECT id,owner_kind,owner_id,field,old_value,new_value,actor_id,ts FROM history
WHERE owner_kind=? AND owner_id=? AND field=? ORDER BY id DESC LIMIT 1`, ownerKind, ownerID, field))
	return h, notFound(err, "latest history")
}

type HistoryFilters struct {
	OwnerKind string
	OwnerID   string
	Field     string
	Limit     int
}

// ListHistory returns entries newest first.
func (r Repo) ListHistory(ctx context.Context, tx *sql.Tx, f HistoryFilters) ([]domain.HistoryEntry, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.OwnerKind != "" {
		clauses = append(clauses, "owner_kind=?")
		args = append(args, f.OwnerKind)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Field != "" {
		clauses = append(clauses, "field=?")
		args = append(args, f.Field)
	}
	query := `SELECT id,owner_kind,owner_id,field,old_value,new_value,actor_id,ts FROM history WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "list history")
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan history")
		}
		res = append(res, h)
	}
	return res, eris.Wrap(rows.Err(), "list history")
}
