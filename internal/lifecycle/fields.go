package lifecycle

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
)

var (
	ErrUnknownField = eris.New("unknown ordinance field")
	ErrInvalidValue = eris.New("invalid field value")
)

// Kind is the value type a tracking field accepts.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	}
	return "text"
}

// Field describes one clerk-editable tracking field.
type Field struct {
	Name string
	Kind Kind
	ptr  func(*domain.OrdinanceTracking) **string
	flag func(*domain.OrdinanceTracking) *bool
}

func text(name string, kind Kind, ptr func(*domain.OrdinanceTracking) **string) Field {
	return Field{Name: name, Kind: kind, ptr: ptr}
}

func boolean(name string, flag func(*domain.OrdinanceTracking) *bool) Field {
	return Field{Name: name, Kind: KindBool, flag: flag}
}

var registry = []Field{
	text("ordinance_number", KindText, func(t *domain.OrdinanceTracking) **string { return &t.OrdinanceNumber }),
	text("introduction_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.IntroductionDate }),
	text("introduction_meeting", KindText, func(t *domain.OrdinanceTracking) **string { return &t.IntroductionMeeting }),
	text("pub_intro_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.PubIntroDate }),
	text("pub_intro_newspaper", KindText, func(t *domain.OrdinanceTracking) **string { return &t.PubIntroNewspaper }),
	text("bulletin_posted_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.BulletinPostedDate }),
	text("hearing_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.HearingDate }),
	boolean("hearing_amended", func(t *domain.OrdinanceTracking) *bool { return &t.HearingAmended }),
	text("hearing_notes", KindText, func(t *domain.OrdinanceTracking) **string { return &t.HearingNotes }),
	text("adoption_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.AdoptionDate }),
	text("adoption_vote", KindText, func(t *domain.OrdinanceTracking) **string { return &t.AdoptionVote }),
	boolean("adoption_failed", func(t *domain.OrdinanceTracking) *bool { return &t.AdoptionFailed }),
	text("pub_final_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.PubFinalDate }),
	text("pub_final_newspaper", KindText, func(t *domain.OrdinanceTracking) **string { return &t.PubFinalNewspaper }),
	text("effective_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.EffectiveDate }),
	boolean("is_emergency", func(t *domain.OrdinanceTracking) *bool { return &t.IsEmergency }),
	text("website_posted_date", KindDate, func(t *domain.OrdinanceTracking) **string { return &t.WebsitePostedDate }),
	text("website_url", KindText, func(t *domain.OrdinanceTracking) **string { return &t.WebsiteURL }),
	text("clerk_notes", KindText, func(t *domain.OrdinanceTracking) **string { return &t.ClerkNotes }),
}

// Fields returns the registry in storage order.
func Fields() []Field {
	out := make([]Field, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a field by name.
func Lookup(name string) (Field, bool) {
	for _, f := range registry {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Get returns the serialized value of f. Unset text and date fields are nil.
func (f Field) Get(t domain.OrdinanceTracking) *string {
	if f.Kind == KindBool {
		v := strconv.FormatBool(*f.flag(&t))
		return &v
	}
	v := *f.ptr(&t)
	if v == nil || *v == "" {
		return nil
	}
	s := *v
	return &s
}

// Set validates and assigns value. An empty value clears the field.
func (f Field) Set(t *domain.OrdinanceTracking, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		f.Clear(t)
		return nil
	}
	switch f.Kind {
	case KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return eris.Wrapf(ErrInvalidValue, "%s must be true or false, got %q", f.Name, value)
		}
		*f.flag(t) = b
	case KindDate:
		d, err := ParseDate(value)
		if err != nil {
			return eris.Wrapf(ErrInvalidValue, "%s must be YYYY-MM-DD, got %q", f.Name, value)
		}
		s := d.Format(domain.DateLayout)
		*f.ptr(t) = &s
	default:
		s := value
		*f.ptr(t) = &s
	}
	return nil
}

// Clear empties the field; booleans become false.
func (f Field) Clear(t *domain.OrdinanceTracking) {
	if f.Kind == KindBool {
		*f.flag(t) = false
		return
	}
	*f.ptr(t) = nil
}

// Diff lists the fields whose serialized value differs between before and after.
func Diff(before, after domain.OrdinanceTracking) []domain.FieldChange {
	var changes []domain.FieldChange
	for _, f := range registry {
		o, n := f.Get(before), f.Get(after)
		if sameValue(o, n) {
			continue
		}
		changes = append(changes, domain.FieldChange{Field: f.Name, Old: o, New: n})
	}
	return changes
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func lookupOrErr(name string) (Field, error) {
	f, ok := Lookup(name)
	if !ok {
		return f, eris.Wrapf(ErrUnknownField, "%q", name)
	}
	return f, nil
}
