// Package lifecycle derives and advances the statutory stages of an ordinance.
// Everything here is a pure function of a tracking snapshot.
package lifecycle

import (
	"time"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
)

const (
	// MinHearingGapDays is the statutory minimum between introduction and public hearing.
	MinHearingGapDays = 10
	// DefaultEffectiveOffsetDays is how long after adoption a non-emergency ordinance takes effect.
	DefaultEffectiveOffsetDays = 20
)

const (
	StageFailed            = "Failed"
	StageInEffect          = "In Effect"
	StageAwaitingEffective = "Awaiting Effective"
	StageAdopted           = "Adopted"
	StageAmendedReset      = "Amended (Reset)"
	StagePublicHearing     = "Public Hearing"
	StagePosted            = "Posted"
	StagePublished         = "Published"
	StageIntroduced        = "Introduced"
	StageDraft             = "Draft"
)

// Stage is the derived position of an ordinance. Index drives progress bars;
// Failed carries -1.
type Stage struct {
	Label string `json:"label"`
	Index int    `json:"index"`
}

// DeriveStage projects the tracking record onto a single stage. Rules are
// evaluated most advanced first.
func DeriveStage(t domain.OrdinanceTracking, today time.Time) Stage {
	todayStr := today.Format(domain.DateLayout)
	switch {
	case t.AdoptionFailed:
		return Stage{StageFailed, -1}
	case isSet(t.WebsitePostedDate):
		return Stage{StageInEffect, 8}
	case isSet(t.EffectiveDate) && *t.EffectiveDate <= todayStr:
		return Stage{StageInEffect, 7}
	case isSet(t.PubFinalDate):
		return Stage{StageAwaitingEffective, 6}
	case isSet(t.AdoptionDate):
		return Stage{StageAdopted, 5}
	case isSet(t.HearingDate) && t.HearingAmended:
		return Stage{StageAmendedReset, 4}
	case isSet(t.HearingDate):
		return Stage{StagePublicHearing, 4}
	case isSet(t.BulletinPostedDate):
		return Stage{StagePosted, 3}
	case isSet(t.PubIntroDate):
		return Stage{StagePublished, 2}
	case isSet(t.IntroductionDate):
		return Stage{StageIntroduced, 1}
	}
	return Stage{StageDraft, 0}
}

// StageLabels lists every label in pipeline order.
func StageLabels() []string {
	return []string{
		StageDraft, StageIntroduced, StagePublished, StagePosted, StagePublicHearing,
		StageAmendedReset, StageAdopted, StageAwaitingEffective, StageInEffect, StageFailed,
	}
}

// HearingTooSoon flags a hearing held fewer than MinHearingGapDays after
// introduction. It is advisory and never blocks a write.
func HearingTooSoon(intro, hearing *string) bool {
	if !isSet(intro) || !isSet(hearing) {
		return false
	}
	i, err := ParseDate(*intro)
	if err != nil {
		return false
	}
	h, err := ParseDate(*hearing)
	if err != nil {
		return false
	}
	return h.Sub(i) < MinHearingGapDays*24*time.Hour
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return d, eris.Wrapf(ErrInvalidValue, "date %q", s)
	}
	return d, nil
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(domain.DateLayout), nil
}

func isSet(s *string) bool {
	return s != nil && *s != ""
}
