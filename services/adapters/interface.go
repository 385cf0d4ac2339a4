package adapters

import (
	"context"

	"visaflow/models"
)

// Adapter is one booking backend.
type Adapter interface {
	ID() string
	// DiscoverSlots lists open slots. Read-only.
	DiscoverSlots(ctx context.Context, q models.SlotQuery) ([]models.SlotCandidate, error)
	// AttemptBooking books one appointment. Implementations must send
	// req.RequestID so a retried call cannot create a second booking.
	AttemptBooking(ctx context.Context, req models.BookingRequest) (*models.Appointment, error)
}

// HealthReporter receives the outcome of every guarded call.
type HealthReporter interface {
	MarkHealth(id string, err error)
}

// slotDTO is the wire shape of one slot in every backend feed.
type slotDTO struct {
	Consulate string `json:"consulate"`
	Country   string `json:"country"`
	VisaType  string `json:"visaType"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Location  string `json:"location"`
}

type slotsResponse struct {
	Slots []slotDTO `json:"slots"`
}

type bookingPayload struct {
	RequestID          string `json:"requestId"`
	ApplicantName      string `json:"applicantName"`
	Email              string `json:"email"`
	Phone              string `json:"phone,omitempty"`
	PassportNumber     string `json:"passportNumber"`
	Country            string `json:"country"`
	Consulate          string `json:"consulate,omitempty"`
	VisaType           string `json:"visaType"`
	CurrentAppointment string `json:"currentAppointment,omitempty"`
	PreferredFrom      string `json:"preferredFrom,omitempty"`
	PreferredTo        string `json:"preferredTo,omitempty"`
	Urgency            string `json:"urgency,omitempty"`
}

type bookingResponse struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	Location         string `json:"location"`
	Consulate        string `json:"consulate"`
	ConfirmationCode string `json:"confirmationCode"`
}

func newBookingPayload(req models.BookingRequest) bookingPayload {
	p := bookingPayload{
		RequestID:      req.RequestID,
		ApplicantName:  req.ApplicantName,
		Email:          req.Email,
		Phone:          req.Phone,
		PassportNumber: req.PassportNumber,
		Country:        req.Country,
		Consulate:      req.Consulate,
		VisaType:       req.VisaType,
		Urgency:        string(req.Urgency),
	}
	if req.CurrentAppointment != nil {
		p.CurrentAppointment = req.CurrentAppointment.Format("2006-01-02")
	}
	if req.PreferredFrom != nil {
		p.PreferredFrom = req.PreferredFrom.Format("2006-01-02")
	}
	if req.PreferredTo != nil {
		p.PreferredTo = req.PreferredTo.Format("2006-01-02")
	}
	return p
}

// toCandidates maps feed entries to candidates. Source reliability is
// stamped later by the consolidator from the registry.
func toCandidates(dtos []slotDTO, q models.SlotQuery, id string, kind models.AdapterKind) []models.SlotCandidate {
	out := make([]models.SlotCandidate, 0, len(dtos))
	for _, d := range dtos {
		c := models.SlotCandidate{
			Consulate:  d.Consulate,
			Country:    d.Country,
			VisaType:   d.VisaType,
			Date:       d.Date,
			Time:       d.Time,
			Location:   d.Location,
			SourceID:   id,
			SourceKind: kind,
		}
		if c.Country == "" {
			c.Country = q.Country
		}
		if c.VisaType == "" {
			c.VisaType = q.VisaType
		}
		if c.Consulate == "" {
			c.Consulate = q.Consulate
		}
		if c.Date == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
