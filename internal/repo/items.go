package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
)

const itemColumns = `id,subject,submitter,item_type,extracted_fields_json,completeness_json,attachments_json,summary,summary_override,status,target_meeting_date,created_at,updated_at`

func scanItem(row rowScanner) (domain.DocketItem, error) {
	var d domain.DocketItem
	var submitter, extracted, completeness, attachments, summary, override, target sql.NullString
	err := row.Scan(&d.ID, &d.Subject, &submitter, &d.ItemType, &extracted, &completeness, &attachments, &summary, &override, &d.Status, &target, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	if submitter.Valid {
		d.Submitter = submitter.String
	}
	if summary.Valid {
		d.Summary = summary.String
	}
	d.SummaryOverride = stringPtr(override)
	d.TargetMeetingDate = stringPtr(target)
	if err := unmarshalJSON(extracted, &d.ExtractedFields); err != nil {
		return d, err
	}
	if err := unmarshalJSON(completeness, &d.Completeness); err != nil {
		return d, err
	}
	if err := unmarshalJSON(attachments, &d.Attachments); err != nil {
		return d, err
	}
	return d, nil
}

func (r Repo) InsertItem(ctx context.Context, tx *sql.Tx, d domain.DocketItem) error {
	extracted, err := marshalJSON(d.ExtractedFields)
	if err != nil {
		return err
	}
	completeness, err := marshalJSON(d.Completeness)
	if err != nil {
		return err
	}
	attachments, err := marshalJSON(d.Attachments)
	if err != nil {
		return err
	}
	_, err = r.conn(tx).ExecContext(ctx, `INSERT INTO docket_items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Subject, nullable(d.Submitter), d.ItemType, extracted, completeness, attachments, nullable(d.Summary),
		nullableStringPtr(d.SummaryOverride), d.Status, nullableStringPtr(d.TargetMeetingDate), d.CreatedAt, d.UpdatedAt)
	return eris.Wrapf(err, "insert docket item %s", d.ID)
}

// UpdateItem persists the clerk-mutable fields of an item.
func (r Repo) UpdateItem(ctx context.Context, tx *sql.Tx, d domain.DocketItem) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE docket_items SET status=?, target_meeting_date=?, summary_override=?, updated_at=? WHERE id=?`,
		d.Status, nullableStringPtr(d.TargetMeetingDate), nullableStringPtr(d.SummaryOverride), d.UpdatedAt, d.ID)
	if err != nil {
		return eris.Wrapf(err, "update docket item %s", d.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "update docket item %s", d.ID)
	}
	return nil
}

func (r Repo) GetItem(ctx context.Context, tx *sql.Tx, id string) (domain.DocketItem, error) {
	d, err := scanItem(r.conn(tx).QueryRowContext(ctx, `SELECT `+itemColumns+` FROM docket_items WHERE id=?`, id))
	return d, notFound(err, "get docket item")
}

type ItemFilters struct {
	Status     []string
	TargetDate string
	ItemTypes  []string
	Limit      int
}

func (r Repo) ListItems(ctx context.Context, tx *sql.Tx, f ItemFilters) ([]domain.DocketItem, error) {
	var clauses []string
	var args []any
	if len(f.Status) > 0 {
		clauses = append(clauses, "status IN (?"+strings.Repeat(",?", len(f.Status)-1)+")")
		for _, s := range f.Status {
			args = append(args, s)
		}
	}
	if len(f.ItemTypes) > 0 {
		clauses = append(clauses, "item_type IN (?"+strings.Repeat(",?", len(f.ItemTypes)-1)+")")
		for _, s := range f.ItemTypes {
			args = append(args, s)
		}
	}
	if f.TargetDate != "" {
		clauses = append(clauses, "target_meeting_date=?")
		args = append(args, f.TargetDate)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + itemColumns + ` FROM docket_items ` + where + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "list docket items")
	}
	defer rows.Close()
	var res []domain.DocketItem
	for rows.Next() {
		d, err := scanItem(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan docket item")
		}
		res = append(res, d)
	}
	return res, eris.Wrap(rows.Err(), "list docket items")
}

// AgendaItems lists the items on the agenda of meetings held on date.
func (r Repo) AgendaItems(ctx context.Context, tx *sql.Tx, date string) ([]domain.DocketItem, error) {
	return r.ListItems(ctx, tx, ItemFilters{
		Status:     []string{domain.ItemAccepted, domain.ItemOnAgenda},
		TargetDate: date,
	})
}
