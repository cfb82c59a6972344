package repo

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
)

const trackingColumns = `docket_id,ordinance_number,introduction_date,introduction_meeting,pub_intro_date,pub_intro_newspaper,bulletin_posted_date,
hearing_date,hearing_amended,hearing_notes,adoption_date,adoption_vote,adoption_failed,pub_final_date,pub_final_newspaper,
effective_date,is_emergency,website_posted_date,website_url,clerk_notes,created_at,updated_at`

func scanTracking(row rowScanner) (domain.OrdinanceTracking, error) {
	var t domain.OrdinanceTracking
	var number, intro, introMeeting, pubIntro, pubIntroPaper, bulletin, hearing, hearingNotes,
		adoption, vote, pubFinal, pubFinalPaper, effective, website, websiteURL, notes sql.NullString
	var amended, failed, emergency int
	err := row.Scan(&t.DocketID, &number, &intro, &introMeeting, &pubIntro, &pubIntroPaper, &bulletin,
		&hearing, &amended, &hearingNotes, &adoption, &vote, &failed, &pubFinal, &pubFinalPaper,
		&effective, &emergency, &website, &websiteURL, &notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.OrdinanceNumber = stringPtr(number)
	t.IntroductionDate = stringPtr(intro)
	t.IntroductionMeeting = stringPtr(introMeeting)
	t.PubIntroDate = stringPtr(pubIntro)
	t.PubIntroNewspaper = stringPtr(pubIntroPaper)
	t.BulletinPostedDate = stringPtr(bulletin)
	t.HearingDate = stringPtr(hearing)
	t.HearingAmended = amended != 0
	t.HearingNotes = stringPtr(hearingNotes)
	t.AdoptionDate = stringPtr(adoption)
	t.AdoptionVote = stringPtr(vote)
	t.AdoptionFailed = failed != 0
	t.PubFinalDate = stringPtr(pubFinal)
	t.PubFinalNewspaper = stringPtr(pubFinalPaper)
	t.EffectiveDate = stringPtr(effective)
	t.IsEmergency = emergency != 0
	t.WebsitePostedDate = stringPtr(website)
	t.WebsiteURL = stringPtr(websiteURL)
	t.ClerkNotes = stringPtr(notes)
	return t, nil
}

// EnsureTracking creates the tracking row for docketID if none exists. The
// docket_id primary key makes a second row impossible.
func (r Repo) EnsureTracking(ctx context.Context, tx *sql.Tx, docketID string, number *string, now string) (bool, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO ordinance_tracking(docket_id,ordinance_number,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(docket_id) DO NOTHING`, docketID, nullableStringPtr(number), now, now)
	if err != nil {
		return false, eris.Wrapf(err, "ensure tracking %s", docketID)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) GetTracking(ctx context.Context, tx *sql.Tx, docketID string) (domain.OrdinanceTracking, error) {
	t, err := scanTracking(r.conn(tx).QueryRowContext(ctx, `SELECT `+trackingColumns+` FROM ordinance_tracking WHERE docket_id=?`, docketID))
	return t, notFound(err, "get ordinance tracking")
}

func (r Repo) UpdateTracking(ctx context.Context, tx *sql.Tx, t domain.OrdinanceTracking) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE ordinance_tracking SET ordinance_number=?, introduction_date=?, introduction_meeting=?,
pub_intro_date=?, pub_intro_newspaper=?, bulletin_posted_date=?, hearing_date=?, hearing_amended=?, hearing_notes=?,
adoption_date=?, adoption_vote=?, adoption_failed=?, pub_final_date=?, pub_final_newspaper=?, effective_date=?,
is_emergency=?, website_posted_date=?, website_url=?, clerk_notes=?, updated_at=? WHERE docket_id=?`,
		nullableStringPtr(t.OrdinanceNumber), nullableStringPtr(t.IntroductionDate), nullableStringPtr(t.IntroductionMeeting),
		nullableStringPtr(t.PubIntroDate), nullableStringPtr(t.PubIntroNewspaper), nullableStringPtr(t.BulletinPostedDate),
		nullableStringPtr(t.HearingDate), boolInt(t.HearingAmended), nullableStringPtr(t.HearingNotes),
		nullableStringPtr(t.AdoptionDate), nullableStringPtr(t.AdoptionVote), boolInt(t.AdoptionFailed),
		nullableStringPtr(t.PubFinalDate), nullableStringPtr(t.PubFinalNewspaper), nullableStringPtr(t.EffectiveDate),
		boolInt(t.IsEmergency), nullableStringPtr(t.WebsitePostedDate), nullableStringPtr(t.WebsiteURL), nullableStringPtr(t.ClerkNotes),
		t.UpdatedAt, t.DocketID)
	if err != nil {
		return eris.Wrapf(err, "update tracking %s", t.DocketID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "update tracking %s", t.DocketID)
	}
	return nil
}

// ListTracking returns every tracking record ordered by introduction date, undated last.
func (r Repo) ListTracking(ctx context.Context, tx *sql.Tx) ([]domain.OrdinanceTracking, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT `+trackingColumns+` FROM ordinance_tracking
ORDER BY introduction_date IS NULL, introduction_date ASC, created_at ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "list ordinance tracking")
	}
	defer rows.Close()
	var res []domain.OrdinanceTracking
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan ordinance tracking")
		}
		res = append(res, t)
	}
	return res, eris.Wrap(rows.Err(), "list ordinance tracking")
}
