package lifecycle

import (
	"fmt"

	"docketline/internal/domain"
)

// Rule names the inference branch that fired.
type Rule string

const (
	RuleNone              Rule = ""
	RuleIntroduced        Rule = "introduced"
	RuleIntroductionMoved Rule = "introduction_moved"
	RuleHearingSet        Rule = "hearing_set"
	RuleAdopted           Rule = "adopted"
)

// Suggester returns the earliest hearing-capable meeting dated at least
// minDays after from, or false when the calendar has none.
type Suggester func(from string, minDays int) (domain.Meeting, bool, error)

// Assignment describes an ordinance item landing on a meeting date.
type Assignment struct {
	Date     string
	Meetings []domain.Meeting
	Roles    map[string]domain.Role
	Label    func(kind string) string
	Suggest  Suggester
}

// Infer advances the tracking record for an agenda assignment. It only
// touches the fields owned by the rule that fires and returns the record
// unchanged when the date holds no role-bearing meeting.
func Infer(t domain.OrdinanceTracking, a Assignment) (domain.OrdinanceTracking, Rule, error) {
	m, role, ok := pickMeeting(t, a)
	if !ok {
		return t, RuleNone, nil
	}
	next := t
	date := a.Date

	if !isSet(next.IntroductionDate) {
		introduce(&next, m, date, a)
		if !isSet(next.HearingDate) {
			if err := suggestHearing(&next, a, false); err != nil {
				return t, RuleNone, err
			}
		}
		return next, RuleIntroduced, nil
	}
	if *next.IntroductionDate == date {
		return t, RuleNone, nil
	}

	switch role {
	case domain.RoleIntroduction:
		introduce(&next, m, date, a)
		if !isSet(next.AdoptionDate) {
			if err := suggestHearing(&next, a, true); err != nil {
				return t, RuleNone, err
			}
		}
		return next, RuleIntroductionMoved, nil
	case domain.RoleHearing:
		if !isSet(next.HearingDate) {
			d := date
			next.HearingDate = &d
			return next, RuleHearingSet, nil
		}
		if !isSet(next.AdoptionDate) && *next.HearingDate != date {
			d := date
			next.AdoptionDate = &d
			if !next.IsEmergency {
				eff, err := AddDays(date, DefaultEffectiveOffsetDays)
				if err != nil {
					return t, RuleNone, err
				}
				next.EffectiveDate = &eff
			}
			return next, RuleAdopted, nil
		}
	}
	return t, RuleNone, nil
}

// pickMeeting chooses among the meetings on the assigned date, preferring the
// role the record needs next.
func pickMeeting(t domain.OrdinanceTracking, a Assignment) (domain.Meeting, domain.Role, bool) {
	want := domain.RoleHearing
	if !isSet(t.IntroductionDate) {
		want = domain.RoleIntroduction
	}
	var (
		fallback     domain.Meeting
		fallbackRole domain.Role
		found        bool
	)
	for _, m := range a.Meetings {
		role := a.Roles[m.Type]
		if role == domain.RoleNone {
			continue
		}
		if role == want {
			return m, role, true
		}
		if !found {
			fallback, fallbackRole, found = m, role, true
		}
	}
	return fallback, fallbackRole, found
}

func introduce(t *domain.OrdinanceTracking, m domain.Meeting, date string, a Assignment) {
	d := date
	t.IntroductionDate = &d
	label := MeetingLabel(labelFor(a, m.Type), date)
	t.IntroductionMeeting = &label
}

// suggestHearing points hearing_date at the next hearing-capable meeting.
// With overwrite, a stale suggestion is cleared when nothing qualifies.
func suggestHearing(t *domain.OrdinanceTracking, a Assignment, overwrite bool) error {
	if a.Suggest == nil {
		return nil
	}
	m, ok, err := a.Suggest(*t.IntroductionDate, MinHearingGapDays)
	if err != nil {
		return err
	}
	if !ok {
		if overwrite {
			t.HearingDate = nil
		}
		return nil
	}
	d := m.Date
	t.HearingDate = &d
	return nil
}

func labelFor(a Assignment, kind string) string {
	if a.Label != nil {
		return a.Label(kind)
	}
	return kind
}

// MeetingLabel renders "<kind label>, January 2, 2006".
func MeetingLabel(kindLabel, date string) string {
	d, err := ParseDate(date)
	if err != nil {
		return fmt.Sprintf("%s, %s", kindLabel, date)
	}
	return fmt.Sprintf("%s, %s", kindLabel, d.Format("January 2, 2006"))
}
