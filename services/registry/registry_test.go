package registry

import (
	"errors"
	"testing"
	"time"

	"visaflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func partner(id string, reliability float64, latency time.Duration, coverage ...models.Coverage) models.AdapterDescriptor {
	return models.AdapterDescriptor{
		ID:          id,
		Name:        id,
		Kind:        models.KindPartner,
		Coverage:    coverage,
		Reliability: reliability,
		AvgLatency:  latency,
		Pricing:     models.Pricing{PerTransaction: 10},
		Enabled:     true,
		Healthy:     true,
	}
}

func us(visaTypes ...string) models.Coverage {
	return models.Coverage{Country: "US", VisaTypes: visaTypes}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(
		models.AdapterDescriptor{ID: "casv", Kind: models.KindOfficial, Reliability: 95, Enabled: true, Coverage: []models.Coverage{us("B1/B2")}},
		partner("slow-good", 90, 3*time.Second, us("B1/B2")),
		partner("fast-good", 90, time.Second, us("B1/B2")),
		partner("best-wrong-country", 99, time.Second, models.Coverage{Country: "CA", VisaTypes: []string{"*"}}),
		partner("mediocre", 70, 500*time.Millisecond, us("*")),
		models.AdapterDescriptor{ID: "scraper", Kind: models.KindScraping, Reliability: 60, Coverage: []models.Coverage{us("*")}},
	)
	require.NoError(t, err)
	return r
}

func TestFindBestPartner_RanksByReliabilityThenLatency(t *testing.T) {
	r := newTestRegistry(t)

	best, ok := r.FindBestPartner("US", "B1/B2", models.UrgencyNormal)

	require.True(t, ok)
	assert.Equal(t, "fast-good", best.ID)

	ranked := r.RankPartners("US", "B1/B2", models.UrgencyNormal)
	ids := make([]string, 0, len(ranked))
	for _, d := range ranked {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"fast-good", "slow-good", "mediocre"}, ids)
}

func TestFindBestPartner_NeverReturnsUncoveredAdapter(t *testing.T) {
	r := newTestRegistry(t)

	cases := []struct{ country, visaType string }{
		{"US", "B1/B2"},
		{"US", "F1"},
		{"CA", "B1/B2"},
		{"BR", "B1/B2"},
		{"us", "b1/b2"},
	}
	for _, tc := range cases {
		best, ok := r.FindBestPartner(tc.country, tc.visaType, models.UrgencyExpress)
		if !ok {
			continue
		}
		assert.True(t, best.Covers(tc.country, tc.visaType), "%s does not cover %s/%s", best.ID, tc.country, tc.visaType)
		assert.Equal(t, models.KindPartner, best.Kind)
	}

	_, ok := r.FindBestPartner("BR", "B1/B2", models.UrgencyNormal)
	assert.False(t, ok)

	best, ok := r.FindBestPartner("US", "F1", models.UrgencyNormal)
	require.True(t, ok)
	assert.Equal(t, "mediocre", best.ID)
}

func TestFindBestPartner_SkipsDisabledAndUrgencyLimited(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.SetAdapterEnabled("fast-good", false, nil))

	best, ok := r.FindBestPartner("US", "B1/B2", models.UrgencyNormal)
	require.True(t, ok)
	assert.Equal(t, "slow-good", best.ID)

	r.descriptors["slow-good"].MaxUrgency = models.UrgencyUrgent
	best, ok = r.FindBestPartner("US", "B1/B2", models.UrgencyExpress)
	require.True(t, ok)
	assert.Equal(t, "mediocre", best.ID)
}

func TestCalculateTotalCost_MonotonicByUrgency(t *testing.T) {
	normal := CalculateTotalCost(15, models.UrgencyNormal)
	urgent := CalculateTotalCost(15, models.UrgencyUrgent)
	express := CalculateTotalCost(15, models.UrgencyExpress)

	assert.Equal(t, 15.0, normal)
	assert.Less(t, normal, urgent)
	assert.Less(t, urgent, express)
	assert.Equal(t, 0.0, CalculateTotalCost(0, models.UrgencyExpress))
	assert.Equal(t, 15.0, CalculateTotalCost(15, models.Urgency("bogus")))
}

func TestSetAdapterEnabled_ScrapingRequiresLegalConfirmation(t *testing.T) {
	r := newTestRegistry(t)
	no := false

	err := r.SetAdapterEnabled("scraper", true, &no)

	var legalErr *LegalConstraintError
	require.True(t, errors.As(err, &legalErr))
	assert.Equal(t, "scraper", legalErr.AdapterID)
	d, _ := r.Get("scraper")
	assert.False(t, d.Enabled)
	assert.False(t, d.LegalConfirmation)

	err = r.SetAdapterEnabled("scraper", true, nil)
	assert.True(t, errors.As(err, &legalErr))
	d, _ = r.Get("scraper")
	assert.False(t, d.Enabled)

	yes := true
	require.NoError(t, r.SetAdapterEnabled("scraper", true, &yes))
	d, _ = r.Get("scraper")
	assert.True(t, d.Enabled)
	assert.True(t, d.LegalConfirmation)

	// a rejected toggle leaves the enabled scraper as it was
	err = r.SetAdapterEnabled("scraper", true, &no)
	assert.True(t, errors.As(err, &legalErr))
	d, _ = r.Get("scraper")
	assert.True(t, d.Enabled)
	assert.True(t, d.LegalConfirmation)

	require.NoError(t, r.SetAdapterEnabled("scraper", false, &no))
	d, _ = r.Get("scraper")
	assert.False(t, d.Enabled)
	assert.False(t, d.LegalConfirmation)
}

func TestSetAdapterEnabled_UnknownAdapter(t *testing.T) {
	r := newTestRegistry(t)
	err := r.SetAdapterEnabled("nope", true, nil)
	assert.ErrorIs(t, err, ErrUnknownAdapter)
}

func TestNew_RejectsEnabledScraperWithoutConfirmation(t *testing.T) {
	_, err := New(models.AdapterDescriptor{ID: "s", Kind: models.KindScraping, Enabled: true})
	var legalErr *LegalConstraintError
	assert.ErrorAs(t, err, &legalErr)

	_, err = New(partner("a", 50, 0), partner("a", 60, 0))
	assert.Error(t, err)

	_, err = New(partner("a", 150, 0))
	assert.Error(t, err)
}

func TestUpdateReliabilityAndHealth(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.UpdateReliability("mediocre", 98))
	best, _ := r.FindBestPartner("US", "B1/B2", models.UrgencyNormal)
	assert.Equal(t, "mediocre", best.ID)
	assert.Error(t, r.UpdateReliability("mediocre", 101))

	r.MarkHealth("casv", errors.New("connection refused"))
	d, _ := r.Get("casv")
	assert.False(t, d.Healthy)
	assert.Equal(t, "connection refused", d.LastError)

	r.MarkHealth("casv", nil)
	d, _ = r.Get("casv")
	assert.True(t, d.Healthy)
	assert.Empty(t, d.LastError)

	status := r.GetPartnersStatus()
	assert.Len(t, status, 6)
	assert.Equal(t, "casv", status[0].ID)
}
