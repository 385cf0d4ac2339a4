package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"visaflow/config"
	"visaflow/models"
	"visaflow/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() models.BookingRequest {
	return models.BookingRequest{
		RequestID:      "req-123",
		ApplicantName:  "Ana Souza",
		Email:          "ana@example.com",
		PassportNumber: "FX123456",
		Country:        "US",
		VisaType:       "B1/B2",
	}
}

func adapterConfig(id, kind string) config.AdapterConfig {
	return config.AdapterConfig{
		ID:          id,
		Kind:        kind,
		BaseURL:     "http://127.0.0.1:1",
		Reliability: 80,
		Enabled:     true,
		Coverage:    []config.CoverageConfig{{Country: "US", VisaTypes: []string{"*"}}},
	}
}

func TestStatusError_MapsStatusToKind(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusNotFound, KindNoSlots},
		{http.StatusConflict, KindNoSlots},
		{http.StatusUnauthorized, KindUnavailable},
		{http.StatusPaymentRequired, KindUnavailable},
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusTeapot, KindUnavailable},
	}
	for _, tc := range cases {
		err := statusError("a", tc.status, "")
		assert.Equal(t, tc.want, KindOf(err), "status %d", tc.status)
	}
}

func TestOfficialAdapter_DiscoverFillsQueryDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slots", r.URL.Path)
		assert.Equal(t, "US", r.URL.Query().Get("country"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_ = json.NewEncoder(w).Encode(slotsResponse{Slots: []slotDTO{
			{Consulate: "Sao Paulo", Date: "2026-11-03", Time: "09:00"},
			{Consulate: "Sao Paulo", Time: "10:00"},
		}})
	}))
	defer srv.Close()

	a := NewOfficialAdapter("casv", srv.URL, "secret")
	slots, err := a.DiscoverSlots(context.Background(), models.SlotQuery{Country: "US", VisaType: "B1/B2"})

	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "US", slots[0].Country)
	assert.Equal(t, "B1/B2", slots[0].VisaType)
	assert.Equal(t, "casv", slots[0].SourceID)
	assert.Equal(t, models.KindOfficial, slots[0].SourceKind)
}

func TestOfficialAdapter_NotFoundListingIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	slots, err := NewOfficialAdapter("casv", srv.URL, "").DiscoverSlots(context.Background(), models.SlotQuery{Country: "US", VisaType: "B1/B2"})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestPartnerAdapter_BookSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "req-123", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var p bookingPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "req-123", p.RequestID)
		assert.Equal(t, "FX123456", p.PassportNumber)

		_ = json.NewEncoder(w).Encode(bookingResponse{Date: "2026-11-03", Time: "09:00", ConfirmationCode: "VFS-1"})
	}))
	defer srv.Close()

	appt, err := NewPartnerAdapter("vfs", srv.URL, "token").AttemptBooking(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "VFS-1", appt.ConfirmationCode)
}

func TestPartnerAdapter_BookErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"rejected data", http.StatusBadRequest, `{"error":"bad passport"}`, KindValidation},
		{"out of balance", http.StatusPaymentRequired, "", KindUnavailable},
		{"overloaded", http.StatusServiceUnavailable, "", KindTransient},
		{"no confirmation", http.StatusOK, `{}`, KindNoSlots},
		{"garbage", http.StatusOK, `<html>`, KindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			appt, err := NewPartnerAdapter("vfs", srv.URL, "").AttemptBooking(context.Background(), testRequest())
			assert.Nil(t, appt)
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestScrapingAdapter_SlotsAreStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointment/days", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"consulate":"Rio","date":"2026-12-01","time":"08:30"}]`))
	}))
	defer srv.Close()

	a := NewScrapingAdapter("portal", srv.URL, WithRateLimit(6000))
	slots, err := a.DiscoverSlots(context.Background(), models.SlotQuery{Country: "US", VisaType: "B1/B2"})

	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Stale)
	assert.Equal(t, utils.StaleSlotWarning, slots[0].Warning)
	assert.Equal(t, models.KindScraping, slots[0].SourceKind)
}

func TestScrapingAdapter_BlockedPortal(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"forbidden", http.StatusForbidden, ""},
		{"throttled", http.StatusTooManyRequests, ""},
		{"challenge page", http.StatusOK, "<html>Please complete the CAPTCHA</html>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewScrapingAdapter("portal", srv.URL, WithRateLimit(6000)).DiscoverSlots(context.Background(), models.SlotQuery{Country: "US", VisaType: "B1/B2"})
			assert.Equal(t, KindUnavailable, KindOf(err))
		})
	}
}

func TestScrapingAdapter_BookPostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "req-123", r.PostForm.Get("request_id"))
		assert.Equal(t, "B1/B2", r.PostForm.Get("visa_type"))
		_, _ = w.Write([]byte(`{"date":"2026-12-01","time":"08:30","confirmationCode":"AIS-9"}`))
	}))
	defer srv.Close()

	appt, err := NewScrapingAdapter("portal", srv.URL, WithRateLimit(6000)).AttemptBooking(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "AIS-9", appt.ConfirmationCode)
}

func TestClassify(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, Classify(context.Background(), "a", nil))
	assert.Equal(t, KindCanceled, Classify(canceled, "a", context.Canceled).Kind)
	assert.Equal(t, KindTransient, Classify(context.Background(), "a", context.DeadlineExceeded).Kind)
	assert.Equal(t, KindUnavailable, Classify(context.Background(), "a", assert.AnError).Kind)

	ae := Classify(context.Background(), "a", NewNoSlotsError("", "nothing"))
	assert.Equal(t, KindNoSlots, ae.Kind)
	assert.Equal(t, "a", ae.AdapterID)
}

func TestBuild(t *testing.T) {
	desc, a, err := Build(adapterConfig("p1", "partner"))
	require.NoError(t, err)
	assert.IsType(t, &PartnerAdapter{}, a)
	assert.Equal(t, models.KindPartner, desc.Kind)
	assert.Equal(t, "p1", desc.Name)
	assert.True(t, desc.Healthy)

	_, _, err = Build(adapterConfig("x", "carrier-pigeon"))
	assert.Error(t, err)

	noURL := adapterConfig("p2", "partner")
	noURL.BaseURL = ""
	_, _, err = Build(noURL)
	assert.Error(t, err)
}

func TestScrapingAdapter_LimiterRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// one request per minute: the second call cannot get a token in time
	a := NewScrapingAdapter("portal", srv.URL, WithRateLimit(1))
	_, err := a.DiscoverSlots(context.Background(), models.SlotQuery{Country: "US", VisaType: "B1/B2"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.DiscoverSlots(ctx, models.SlotQuery{Country: "US", VisaType: "B1/B2"})
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestBuild_ScrapingUserAgentFromConfig(t *testing.T) {
	var mu sync.Mutex
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Get("User-Agent")
		mu.Unlock()
		_, _ = w.Write([]byte(`[{"consulate":"Rio","date":"2026-12-01","time":"08:30"}]`))
	}))
	defer srv.Close()

	cfg := adapterConfig("portal", "scraping")
	cfg.BaseURL = srv.URL
	cfg.RateLimitPerMinute = 6000
	cfg.UserAgent = "visaflow-ops/2.0"
	_, a, err := Build(cfg)
	require.NoError(t, err)

	_, err = a.DiscoverSlots(context.Background(), models.SlotQuery{Country: "US", VisaType: "B1/B2"})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, "visaflow-ops/2.0", got)
	mu.Unlock()
}
