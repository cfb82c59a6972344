package lifecycle

import (
	"sort"
	"strings"

	"docketline/internal/domain"
)

// Edit is a direct clerk change to a tracking record.
type Edit struct {
	Set   map[string]string
	Clear []string
}

// ApplyEdit applies clears, then sets. A blank set value counts as a clear.
// Clearing adoption_date also clears effective_date; an effective_date set in
// the same edit survives.
// Setting adoption_date fills an empty effective_date unless the ordinance is
// an emergency.
func ApplyEdit(t domain.OrdinanceTracking, e Edit) (domain.OrdinanceTracking, error) {
	next := t
	clears := append([]string(nil), e.Clear...)
	sets := make(map[string]string, len(e.Set))
	for name, v := range e.Set {
		if strings.TrimSpace(v) == "" {
			clears = append(clears, name)
			continue
		}
		sets[name] = v
	}

	for _, name := range clears {
		f, err := lookupOrErr(name)
		if err != nil {
			return t, err
		}
		if name == "adoption_date" {
			next.EffectiveDate = nil
		}
		f.Clear(&next)
	}

	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := lookupOrErr(name)
		if err != nil {
			return t, err
		}
		if err := f.Set(&next, sets[name]); err != nil {
			return t, err
		}
	}

	if _, ok := sets["adoption_date"]; ok && isSet(next.AdoptionDate) && !isSet(next.EffectiveDate) && !next.IsEmergency {
		eff, err := AddDays(*next.AdoptionDate, DefaultEffectiveOffsetDays)
		if err != nil {
			return t, err
		}
		next.EffectiveDate = &eff
	}
	return next, nil
}
