package lifecycle

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/domain"
)

func TestApplyEditClearAdoptionCascades(t *testing.T) {
	rec := domain.OrdinanceTracking{AdoptionDate: sp("2026-02-11"), EffectiveDate: sp("2026-03-03")}
	got, err := ApplyEdit(rec, Edit{Clear: []string{"adoption_date"}})
	require.NoError(t, err)
	assert.Nil(t, got.AdoptionDate)
	assert.Nil(t, got.EffectiveDate)

	// Same through an empty Set value.
	got, err = ApplyEdit(rec, Edit{Set: map[string]string{"adoption_date": ""}})
	require.NoError(t, err)
	assert.Nil(t, got.AdoptionDate)
	assert.Nil(t, got.EffectiveDate)
}

func TestApplyEditClearAdoptionKeepsEffectiveSetInSameEdit(t *testing.T) {
	rec := domain.OrdinanceTracking{AdoptionDate: sp("2026-02-11"), EffectiveDate: sp("2026-03-03")}
	got, err := ApplyEdit(rec, Edit{
		Clear: []string{"adoption_date"},
		Set:   map[string]string{"effective_date": "2026-04-01"},
	})
	require.NoError(t, err)
	assert.Nil(t, got.AdoptionDate)
	assert.Equal(t, "2026-04-01", *got.EffectiveDate)
}

func TestApplyEditBlankAdoptionClears(t *testing.T) {
	emergency := domain.OrdinanceTracking{AdoptionDate: sp("2026-02-11"), EffectiveDate: sp("2026-03-03"), IsEmergency: true}
	got, err := ApplyEdit(emergency, Edit{Set: map[string]string{"adoption_date": "  "}})
	require.NoError(t, err)
	assert.Nil(t, got.AdoptionDate)
	assert.Nil(t, got.EffectiveDate)

	regular := domain.OrdinanceTracking{AdoptionDate: sp("2026-02-11")}
	require.NotPanics(t, func() {
		got, err = ApplyEdit(regular, Edit{Set: map[string]string{"adoption_date": " "}})
	})
	require.NoError(t, err)
	assert.Nil(t, got.AdoptionDate)
	assert.Nil(t, got.EffectiveDate)
}

func TestApplyEditClearEmptyAdoptionDropsEffective(t *testing.T) {
	orphan := domain.OrdinanceTracking{EffectiveDate: sp("2026-03-03")}
	got, err := ApplyEdit(orphan, Edit{Clear: []string{"adoption_date"}})
	require.NoError(t, err)
	assert.Nil(t, got.AdoptionDate)
	assert.Nil(t, got.EffectiveDate)
}

func TestApplyEditAdoptionFillsEffective(t *testing.T) {
	got, err := ApplyEdit(domain.OrdinanceTracking{}, Edit{Set: map[string]string{"adoption_date": "2026-02-11"}})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", *got.EffectiveDate)

	got, err = ApplyEdit(domain.OrdinanceTracking{EffectiveDate: sp("2026-02-20")}, Edit{Set: map[string]string{"adoption_date": "2026-02-11"}})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-20", *got.EffectiveDate)

	got, err = ApplyEdit(domain.OrdinanceTracking{IsEmergency: true}, Edit{Set: map[string]string{"adoption_date": "2026-02-11"}})
	require.NoError(t, err)
	assert.Nil(t, got.EffectiveDate)

	got, err = ApplyEdit(domain.OrdinanceTracking{}, Edit{Set: map[string]string{"adoption_date": "2026-02-11", "is_emergency": "true"}})
	require.NoError(t, err)
	assert.Nil(t, got.EffectiveDate)
}

func TestApplyEditValidation(t *testing.T) {
	rec := domain.OrdinanceTracking{HearingDate: sp("2026-01-28")}

	_, err := ApplyEdit(rec, Edit{Set: map[string]string{"hearing_date": "Jan 28"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidValue))

	_, err = ApplyEdit(rec, Edit{Set: map[string]string{"is_emergency": "maybe"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidValue))

	_, err = ApplyEdit(rec, Edit{Clear: []string{"stage"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownField))
}

func TestApplyEditBoolsAndText(t *testing.T) {
	got, err := ApplyEdit(domain.OrdinanceTracking{}, Edit{Set: map[string]string{
		"hearing_amended": "true",
		"adoption_vote":   "5-0",
		"clerk_notes":     "  carried  ",
	}})
	require.NoError(t, err)
	assert.True(t, got.HearingAmended)
	assert.Equal(t, "5-0", *got.AdoptionVote)
	assert.Equal(t, "carried", *got.ClerkNotes)

	got, err = ApplyEdit(got, Edit{Clear: []string{"hearing_amended"}})
	require.NoError(t, err)
	assert.False(t, got.HearingAmended)
}

func TestDiff(t *testing.T) {
	before := domain.OrdinanceTracking{HearingDate: sp("2026-01-28")}
	after := before
	after.HearingDate = sp("2026-02-11")
	after.IsEmergency = true

	changes := Diff(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, "hearing_date", changes[0].Field)
	assert.Equal(t, "2026-01-28", *changes[0].Old)
	assert.Equal(t, "2026-02-11", *changes[0].New)
	assert.Equal(t, "is_emergency", changes[1].Field)
	assert.Equal(t, "false", *changes[1].Old)
	assert.Equal(t, "true", *changes[1].New)

	assert.Empty(t, Diff(after, after))
}

func TestLookup(t *testing.T) {
	f, ok := Lookup("effective_date")
	require.True(t, ok)
	assert.Equal(t, KindDate, f.Kind)
	_, ok = Lookup("docket_id")
	assert.False(t, ok)
	assert.Len(t, Fields(), 19)
}
