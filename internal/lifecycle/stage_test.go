package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/domain"
)

func sp(s string) *string { return &s }

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestDeriveStage(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.OrdinanceTracking
		want Stage
	}{
		{"empty", domain.OrdinanceTracking{}, Stage{StageDraft, 0}},
		{"introduced", domain.OrdinanceTracking{IntroductionDate: sp("2026-01-28")}, Stage{StageIntroduced, 1}},
		{"published", domain.OrdinanceTracking{IntroductionDate: sp("2026-01-28"), PubIntroDate: sp("2026-01-30")}, Stage{StagePublished, 2}},
		{"posted", domain.OrdinanceTracking{PubIntroDate: sp("2026-01-30"), BulletinPostedDate: sp("2026-01-31")}, Stage{StagePosted, 3}},
		{"hearing", domain.OrdinanceTracking{IntroductionDate: sp("2026-01-28"), HearingDate: sp("2026-02-11")}, Stage{StagePublicHearing, 4}},
		{"amended", domain.OrdinanceTracking{HearingDate: sp("2026-02-11"), HearingAmended: true}, Stage{StageAmendedReset, 4}},
		{"adopted", domain.OrdinanceTracking{HearingDate: sp("2026-02-11"), HearingAmended: true, AdoptionDate: sp("2026-02-25")}, Stage{StageAdopted, 5}},
		{"adopted with future effective", domain.OrdinanceTracking{AdoptionDate: sp("2026-03-01"), EffectiveDate: sp("2026-03-21")}, Stage{StageAdopted, 5}},
		{"awaiting effective", domain.OrdinanceTracking{AdoptionDate: sp("2026-03-01"), PubFinalDate: sp("2026-03-05"), EffectiveDate: sp("2026-03-21")}, Stage{StageAwaitingEffective, 6}},
		{"effective today", domain.OrdinanceTracking{AdoptionDate: sp("2026-02-18"), EffectiveDate: sp("2026-03-10")}, Stage{StageInEffect, 7}},
		{"website posted", domain.OrdinanceTracking{AdoptionDate: sp("2026-02-18"), WebsitePostedDate: sp("2026-03-01")}, Stage{StageInEffect, 8}},
		{"failed wins", domain.OrdinanceTracking{AdoptionFailed: true, HearingDate: sp("2026-02-11"), EffectiveDate: sp("2026-01-01")}, Stage{StageFailed, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStage(tt.rec, today))
		})
	}
}

func TestStageIndexNeverDropsAlongNormalFlow(t *testing.T) {
	rec := domain.OrdinanceTracking{}
	steps := []func(*domain.OrdinanceTracking){
		func(r *domain.OrdinanceTracking) { r.IntroductionDate = sp("2026-01-12") },
		func(r *domain.OrdinanceTracking) { r.PubIntroDate = sp("2026-01-15") },
		func(r *domain.OrdinanceTracking) { r.BulletinPostedDate = sp("2026-01-16") },
		func(r *domain.OrdinanceTracking) { r.HearingDate = sp("2026-01-28") },
		func(r *domain.OrdinanceTracking) { r.AdoptionDate = sp("2026-02-11") },
		func(r *domain.OrdinanceTracking) { r.PubFinalDate = sp("2026-02-14") },
		func(r *domain.OrdinanceTracking) { r.EffectiveDate = sp("2026-03-03") },
		func(r *domain.OrdinanceTracking) { r.WebsitePostedDate = sp("2026-03-04") },
	}
	prev := DeriveStage(rec, today)
	require.Equal(t, StageDraft, prev.Label)
	for i, step := range steps {
		step(&rec)
		cur := DeriveStage(rec, today)
		assert.Greater(t, cur.Index, prev.Index, "step %d (%s)", i, cur.Label)
		prev = cur
	}
	assert.Equal(t, Stage{StageInEffect, 8}, prev)
}

func TestHearingTooSoon(t *testing.T) {
	assert.False(t, HearingTooSoon(nil, sp("2026-02-11")))
	assert.False(t, HearingTooSoon(sp("2026-01-28"), nil))
	assert.False(t, HearingTooSoon(sp("2026-01-28"), sp("2026-02-07")))
	assert.True(t, HearingTooSoon(sp("2026-01-28"), sp("2026-02-06")))
	assert.True(t, HearingTooSoon(sp("2026-01-28"), sp("2026-01-28")))
	assert.False(t, HearingTooSoon(sp("bogus"), sp("2026-02-06")))
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2026-02-11", DefaultEffectiveOffsetDays)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", got)

	_, err = AddDays("Feb 11", 1)
	require.Error(t, err)
}
