package adapters

import (
	"context"
	"net/http"

	"visaflow/models"
)

// PartnerAdapter talks to a paid intermediary booking service. Several
// partner instances may run side by side, each with its own coverage.
type PartnerAdapter struct {
	id     string
	client *jsonClient
}

// NewPartnerAdapter builds a partner adapter authenticated with a bearer token.
func NewPartnerAdapter(id, baseURL, apiKey string, opts ...Option) *PartnerAdapter {
	o := applyOptions(opts)
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &PartnerAdapter{
		id:     id,
		client: newJSONClient(id, baseURL, headers, o.httpTimeout),
	}
}

func (a *PartnerAdapter) ID() string { return a.id }

func (a *PartnerAdapter) DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error) {
	var resp slotsResponse
	if err := a.client.do(ctx, http.MethodGet, "/slots?"+slotParams(q).Encode(), nil, nil, &resp); err != nil {
		if KindOf(err) == KindNoSlots {
			return []models.SlotCandidate{}, nil
		}
		return nil, err
	}
	return toCandidates(resp.Slots, q, a.id, models.KindPartner), nil
}

func (a *PartnerAdapter) AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	return book(ctx, a.client, a.id, req)
}
