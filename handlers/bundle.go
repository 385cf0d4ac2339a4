package handlers

import (
	"context"
	"encoding/json"

	"visaflow/database/repository"
	"visaflow/models"
	"visaflow/services/booking"
)

// HybridAPI is the booking core as seen by the HTTP layer.
type HybridAPI interface {
	FindAvailableSlots(ctx context.Context, country, visaType, consulate string) (models.SlotReport, error)
	BookAppointment(ctx context.Context, req models.BookingRequest, opts models.HybridBookingOptions) (*models.BookingResult, error)
	StartMonitoring(targets []models.MonitoringTarget, intervalMinutes int) ([]string, error)
	StopMonitoring(ctx context.Context, targetID string) error
	GetMonitoringStatus() []models.MonitoringStatus
	GetPartnersStatus() []models.AdapterDescriptor
	SetAdapterEnabled(id string, enabled bool, legalConfirmation *bool) error
	UpdateReliability(id string, score float64) error
	Dispatch(ctx context.Context, action string, payload json.RawMessage) (interface{}, error)
	Actions() []booking.Action
}

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	JWTSecret string

	Appointments *AppointmentHandler
	Monitoring   *MonitoringHandler
	Partners     *PartnerHandler
	Hybrid       *HybridHandler
}

// NewHandlerBundle wires the handlers. results may be nil when persistence
// is unavailable.
func NewHandlerBundle(svc HybridAPI, results repository.ResultsRepository, jwtSecret string) *HandlerBundle {
	return &HandlerBundle{
		JWTSecret:    jwtSecret,
		Appointments: &AppointmentHandler{Service: svc, Results: results},
		Monitoring:   &MonitoringHandler{Service: svc, Results: results},
		Partners:     &PartnerHandler{Service: svc},
		Hybrid:       &HybridHandler{Service: svc},
	}
}
