package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
)

const meetingColumns = `id,meeting_type,meeting_date,meeting_time,cycle_date,status,video_url,minutes_text,minutes_override,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (domain.Meeting, error) {
	var m domain.Meeting
	var video, minutes, override sql.NullString
	err := row.Scan(&m.ID, &m.Type, &m.Date, &m.Time, &m.CycleDate, &m.Status, &video, &minutes, &override, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.VideoURL = stringPtr(video)
	m.MinutesText = stringPtr(minutes)
	m.MinutesOverride = stringPtr(override)
	return m, nil
}

// InsertMeetingIfAbsent creates the meeting unless one with the same type and
// date exists. Existing rows are left untouched.
func (r Repo) InsertMeetingIfAbsent(ctx context.Context, tx *sql.Tx, m domain.Meeting) (bool, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO meetings(meeting_type,meeting_date,meeting_time,cycle_date,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?) ON CONFLICT(meeting_type,meeting_date) DO NOTHING`,
		m.Type, m.Date, m.Time, m.CycleDate, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return false, eris.Wrapf(err, "insert meeting %s %s", m.Type, m.Date)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) GetMeeting(ctx context.Context, tx *sql.Tx, id int64) (domain.Meeting, error) {
	m, err := scanMeeting(r.conn(tx).QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id=?`, id))
	return m, notFound(err, "get meeting")
}

func (r Repo) GetMeetingByTypeDate(ctx context.Context, tx *sql.Tx, meetingType, date string) (domain.Meeting, error) {
	m, err := scanMeeting(r.conn(tx).QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE meeting_type=? AND meeting_date=?`, meetingType, date))
	return m, notFound(err, "get meeting by type and date")
}

// NextMeetingOfType returns the earliest meeting of meetingType dated on or after minDate.
func (r Repo) NextMeetingOfType(ctx context.Context, tx *sql.Tx, meetingType, minDate string) (domain.Meeting, error) {
	m, err := scanMeeting(r.conn(tx).QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE meeting_type=? AND meeting_date>=? ORDER BY meeting_date ASC LIMIT 1`, meetingType, minDate))
	return m, notFound(err, "next meeting of type")
}

type MeetingFilters struct {
	Type   string
	From   string
	To     string
	Date   string
	Status []string
	Limit  int
}

func (r Repo) ListMeetings(ctx context.Context, tx *sql.Tx, f MeetingFilters) ([]domain.Meeting, error) {
	var clauses []string
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "meeting_type=?")
		args = append(args, f.Type)
	}
	if f.Date != "" {
		clauses = append(clauses, "meeting_date=?")
		args = append(args, f.Date)
	}
	if f.From != "" {
		clauses = append(clauses, "meeting_date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "meeting_date<=?")
		args = append(args, f.To)
	}
	if len(f.Status) > 0 {
		clauses = append(clauses, "status IN (?"+strings.Repeat(",?", len(f.Status)-1)+")")
		for _, s := range f.Status {
			args = append(args, s)
		}
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + meetingColumns + ` FROM meetings ` + where + ` ORDER BY meeting_date ASC, meeting_type ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "list meetings")
	}
	defer rows.Close()
	var res []domain.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan meeting")
		}
		res = append(res, m)
	}
	return res, eris.Wrap(rows.Err(), "list meetings")
}

func (r Repo) UpdateMeeting(ctx context.Context, tx *sql.Tx, m domain.Meeting) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE meetings SET status=?, video_url=?, minutes_text=?, minutes_override=?, updated_at=? WHERE id=?`,
		m.Status, nullableStringPtr(m.VideoURL), nullableStringPtr(m.MinutesText), nullableStringPtr(m.MinutesOverride), m.UpdatedAt, m.ID)
	if err != nil {
		return eris.Wrapf(err, "update meeting %d", m.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "update meeting %d", m.ID)
	}
	return nil
}

func (r Repo) CountMeetings(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "count meetings")
	}
	return n, nil
}
