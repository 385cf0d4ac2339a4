package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"golang.org/x/time/rate"
)

const maxPortalBody = 2 << 20

var blockMarkers = []string{"captcha", "access denied", "unusual traffic", "cf-challenge"}

// ScrapingAdapter reads a public booking portal's availability feed. It is
// the least trusted source: portals block automation without notice, so
// every slot it reports is flagged stale.
type ScrapingAdapter struct {
	id        string
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewScrapingAdapter builds a paced portal reader.
func NewScrapingAdapter(id, baseURL string, opts ...Option) *ScrapingAdapter {
	o := applyOptions(opts)
	perMinute := o.rateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	return &ScrapingAdapter{
		id:        id,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: o.userAgent,
		http:      &http.Client{Timeout: o.httpTimeout},
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (a *ScrapingAdapter) ID() string { return a.id }

func (a *ScrapingAdapter) DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error) {
	body, err := a.fetch(ctx, http.MethodGet, "/appointment/days?"+slotParams(q).Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp slotsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// Some portals return a bare array.
		var bare []slotDTO
		if err2 := json.Unmarshal(body, &bare); err2 != nil {
			return nil, NewUnavailableError(a.id, "portal layout changed", err)
		}
		resp.Slots = bare
	}

	slots := toCandidates(resp.Slots, q, a.id, models.KindScraping)
	for i := range slots {
		slots[i].Stale = true
		slots[i].Warning = utils.StaleSlotWarning
	}
	return slots, nil
}

func (a *ScrapingAdapter) AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	form := url.Values{}
	p := newBookingPayload(req)
	form.Set("request_id", p.RequestID)
	form.Set("applicant_name", p.ApplicantName)
	form.Set("email", p.Email)
	form.Set("passport_number", p.PassportNumber)
	form.Set("country", p.Country)
	form.Set("consulate", p.Consulate)
	form.Set("visa_type", p.VisaType)
	if p.PreferredFrom != "" {
		form.Set("date_from", p.PreferredFrom)
	}
	if p.PreferredTo != "" {
		form.Set("date_to", p.PreferredTo)
	}

	body, err := a.fetch(ctx, http.MethodPost, "/appointment", form)
	if err != nil {
		return nil, err
	}
	var resp bookingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewUnavailableError(a.id, "portal layout changed", err)
	}
	if resp.ConfirmationCode == "" {
		return nil, NewNoSlotsError(a.id, "portal did not confirm the appointment")
	}
	return &models.Appointment{
		Date:             resp.Date,
		Time:             resp.Time,
		Location:         resp.Location,
		Consulate:        resp.Consulate,
		ConfirmationCode: resp.ConfirmationCode,
	}, nil
}

// fetch waits for the limiter, performs the request and screens the reply
// for anti-automation responses.
func (a *ScrapingAdapter) fetch(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, Classify(ctx, a.id, ctx.Err())
		}
		return nil, NewTransientError(a.id, "rate limit wait exceeds deadline", err)
	}

	var reader io.Reader
	if form != nil {
		reader = bytes.NewBufferString(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, NewUnavailableError(a.id, "build request", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.8")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, Classify(ctx, a.id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPortalBody))
	if err != nil {
		return nil, Classify(ctx, a.id, err)
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewUnavailableError(a.id, fmt.Sprintf("blocked by portal anti-automation (HTTP %d)", resp.StatusCode), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(a.id, resp.StatusCode, "")
	}
	if blocked(body) {
		return nil, NewUnavailableError(a.id, "blocked by portal anti-automation", errors.New("challenge page returned"))
	}
	return body, nil
}

func blocked(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, m := range blockMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return true
		}
	}
	return false
}
