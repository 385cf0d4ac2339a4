package models

import "time"

// Urgency is the service tier requested for a booking.
type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyExpress Urgency = "express"
)

// Rank orders urgency tiers; unknown values rank as normal.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyUrgent:
		return 1
	case UrgencyExpress:
		return 2
	default:
		return 0
	}
}

// BookingMethod selects which adapter family is tried first.
type BookingMethod string

const (
	MethodOfficial BookingMethod = "official"
	MethodPartners BookingMethod = "partners"
	MethodScraping BookingMethod = "scraping"
	MethodAuto     BookingMethod = "auto"
)

// BookingRequest is an applicant's request for a consular appointment.
// It is treated as immutable once handed to the orchestrator.
type BookingRequest struct {
	// RequestID is the correlation id attached to every adapter call for
	// this request. Assigned by the orchestrator when empty.
	RequestID string `json:"requestId,omitempty" bson:"requestId"`

	ApplicantName  string `json:"applicantName" bson:"applicantName" validate:"required"`
	Email          string `json:"email" bson:"email" validate:"required,email"`
	Phone          string `json:"phone,omitempty" bson:"phone,omitempty"`
	PassportNumber string `json:"passportNumber" bson:"passportNumber" validate:"required"`

	Country   string `json:"country" bson:"country" validate:"required,len=2"`
	Consulate string `json:"consulate,omitempty" bson:"consulate,omitempty"`
	VisaType  string `json:"visaType" bson:"visaType" validate:"required"`

	CurrentAppointment *time.Time `json:"currentAppointment,omitempty" bson:"currentAppointment,omitempty"`
	PreferredFrom      *time.Time `json:"preferredFrom,omitempty" bson:"preferredFrom,omitempty"`
	PreferredTo        *time.Time `json:"preferredTo,omitempty" bson:"preferredTo,omitempty"`
	Urgency            Urgency    `json:"urgency,omitempty" bson:"urgency,omitempty" validate:"omitempty,oneof=normal urgent express"`
}

// HybridBookingOptions is the policy applied to one booking call.
type HybridBookingOptions struct {
	PreferredMethod BookingMethod `json:"preferredMethod" validate:"omitempty,oneof=official partners scraping auto"`
	FallbackEnabled bool          `json:"fallbackEnabled"`
	Urgency         Urgency       `json:"urgency" validate:"omitempty,oneof=normal urgent express"`
	MaxRetries      int           `json:"maxRetries" validate:"gte=0,lte=10"`
}

// DefaultBookingOptions is auto selection with fallback and three tries per adapter.
func DefaultBookingOptions() HybridBookingOptions {
	return HybridBookingOptions{
		PreferredMethod: MethodAuto,
		FallbackEnabled: true,
		Urgency:         UrgencyNormal,
		MaxRetries:      3,
	}
}

// Appointment is the confirmed booking returned by a backend.
type Appointment struct {
	Date             string `json:"date" bson:"date"`
	Time             string `json:"time" bson:"time"`
	Location         string `json:"location" bson:"location"`
	Consulate        string `json:"consulate,omitempty" bson:"consulate,omitempty"`
	ConfirmationCode string `json:"confirmationCode" bson:"confirmationCode"`
}

// BookingAttempt records one call to one adapter. Attempts are append-only
// and ordered by time.
type BookingAttempt struct {
	AdapterID   string        `json:"adapterId" bson:"adapterId"`
	Kind        AdapterKind   `json:"kind" bson:"kind"`
	Try         int           `json:"try" bson:"try"`
	Timestamp   time.Time     `json:"timestamp" bson:"timestamp"`
	Duration    time.Duration `json:"duration" bson:"duration"`
	Success     bool          `json:"success" bson:"success"`
	ErrorKind   string        `json:"errorKind,omitempty" bson:"errorKind,omitempty"`
	Error       string        `json:"error,omitempty" bson:"error,omitempty"`
	Cost        float64       `json:"cost" bson:"cost"`
	Appointment *Appointment  `json:"-" bson:"-"`
}

// BookingState is the terminal state of the orchestrator.
type BookingState string

const (
	StateSucceeded BookingState = "succeeded"
	StateExhausted BookingState = "exhausted"
	StateAborted   BookingState = "aborted"
	StateCanceled  BookingState = "canceled"
)

// BookingResult is the structured outcome of one booking call.
type BookingResult struct {
	RequestID       string           `json:"requestId" bson:"requestId"`
	Country         string           `json:"country" bson:"country"`
	VisaType        string           `json:"visaType" bson:"visaType"`
	Success         bool             `json:"success" bson:"success"`
	State           BookingState     `json:"state" bson:"state"`
	Method          BookingMethod    `json:"method,omitempty" bson:"method,omitempty"`
	ProviderID      string           `json:"providerId,omitempty" bson:"providerId,omitempty"`
	Appointment     *Appointment     `json:"appointment,omitempty" bson:"appointment,omitempty"`
	TotalCost       float64          `json:"totalCost" bson:"totalCost"`
	Attempts        []BookingAttempt `json:"attempts" bson:"attempts"`
	Warnings        []string         `json:"warnings,omitempty" bson:"warnings,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty" bson:"recommendations,omitempty"`
	CompletedAt     time.Time        `json:"completedAt" bson:"completedAt"`
}

// MethodForKind maps an adapter kind to the booking method reported to callers.
func MethodForKind(k AdapterKind) BookingMethod {
	switch k {
	case KindOfficial:
		return MethodOfficial
	case KindPartner:
		return MethodPartners
	case KindScraping:
		return MethodScraping
	default:
		return ""
	}
}
