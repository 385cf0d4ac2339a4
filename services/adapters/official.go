package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"visaflow/models"
)

// OfficialAdapter talks to a government or processing-center appointment
// API (CASV, consulate portals). Highest trust tier, no marginal cost.
type OfficialAdapter struct {
	id     string
	client *jsonClient
}

// NewOfficialAdapter builds an official adapter authenticated with an API key header.
func NewOfficialAdapter(id, baseURL, apiKey string, opts ...Option) *OfficialAdapter {
	o := applyOptions(opts)
	headers := map[string]string{}
	if apiKey != "" {
		headers["X-API-Key"] = apiKey
	}
	return &OfficialAdapter{
		id:     id,
		client: newJSONClient(id, baseURL, headers, o.httpTimeout),
	}
}

func (a *OfficialAdapter) ID() string { return a.id }

func (a *OfficialAdapter) DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error) {
	var resp slotsResponse
	if err := a.client.do(ctx, http.MethodGet, "/slots?"+slotParams(q).Encode(), nil, nil, &resp); err != nil {
		// A 404 on a listing just means nothing is open.
		if KindOf(err) == KindNoSlots {
			return []models.SlotCandidate{}, nil
		}
		return nil, err
	}
	return toCandidates(resp.Slots, q, a.id, models.KindOfficial), nil
}

func (a *OfficialAdapter) AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	return book(ctx, a.client, a.id, req)
}

// book is the booking call shared by the JSON adapters.
func book(ctx context.Context, c *jsonClient, id string, req models.BookingRequest) (*models.Appointment, error) {
	headers := map[string]string{
		"Idempotency-Key": req.RequestID,
		"X-Request-ID":    req.RequestID,
	}
	var resp bookingResponse
	if err := c.do(ctx, http.MethodPost, "/bookings", headers, newBookingPayload(req), &resp); err != nil {
		return nil, err
	}
	if resp.ConfirmationCode == "" {
		return nil, NewNoSlotsError(id, "backend returned no confirmation")
	}
	return &models.Appointment{
		Date:             resp.Date,
		Time:             resp.Time,
		Location:         resp.Location,
		Consulate:        resp.Consulate,
		ConfirmationCode: resp.ConfirmationCode,
	}, nil
}

func slotParams(q models.SlotQuery) url.Values {
	v := url.Values{}
	v.Set("country", q.Country)
	v.Set("visaType", q.VisaType)
	if q.Consulate != "" {
		v.Set("consulate", q.Consulate)
	}
	if q.WindowDays > 0 {
		v.Set("days", strconv.Itoa(q.WindowDays))
	}
	return v
}
