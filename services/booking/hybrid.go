package booking

import (
	"context"
	"time"

	"visaflow/models"
	"visaflow/services/availability"
	"visaflow/services/monitoring"
	"visaflow/services/registry"
	"visaflow/utils"

	"go.uber.org/zap"
)

// HybridDeps are the components behind the hybrid service.
type HybridDeps struct {
	Registry     *registry.Registry
	Consolidator *availability.Consolidator
	Orchestrator *Orchestrator
	Monitor      *monitoring.Supervisor
	WindowDays   int
	Logger       *zap.Logger
}

// HybridService is the inbound surface of the booking core: discovery,
// booking, monitoring control and adapter administration.
type HybridService struct {
	registry     *registry.Registry
	consolidator *availability.Consolidator
	orchestrator *Orchestrator
	monitor      *monitoring.Supervisor
	windowDays   int
	logger       *zap.Logger
	handlers     map[Action]ActionHandler
}

// NewHybridService fails if any declared action has no handler.
func NewHybridService(deps HybridDeps) (*HybridService, error) {
	if deps.Logger == nil {
		deps.Logger = utils.GetLogger()
	}
	if deps.WindowDays <= 0 {
		deps.WindowDays = 90
	}
	h := &HybridService{
		registry:     deps.Registry,
		consolidator: deps.Consolidator,
		orchestrator: deps.Orchestrator,
		monitor:      deps.Monitor,
		windowDays:   deps.WindowDays,
		logger:       deps.Logger,
	}
	h.handlers = h.actionHandlers()
	if err := checkActions(h.handlers); err != nil {
		return nil, err
	}
	return h, nil
}

// FindAvailableSlots returns per-family and consolidated slots. An empty
// consulate means every consulate in the country.
func (h *HybridService) FindAvailableSlots(ctx context.Context, country, visaType, consulate string) (models.SlotReport, error) {
	return h.consolidator.FindAvailableSlots(ctx, models.SlotQuery{
		Country:    country,
		Consulate:  consulate,
		VisaType:   visaType,
		WindowDays: h.windowDays,
	})
}

func (h *HybridService) BookAppointment(ctx context.Context, req models.BookingRequest, opts models.HybridBookingOptions) (*models.BookingResult, error) {
	return h.orchestrator.BookAppointment(ctx, req, opts)
}

// StartMonitoring polls every target each intervalMinutes (the configured
// default when zero).
func (h *HybridService) StartMonitoring(targets []models.MonitoringTarget, intervalMinutes int) ([]string, error) {
	return h.monitor.Start(targets, time.Duration(intervalMinutes)*time.Minute)
}

func (h *HybridService) StopMonitoring(ctx context.Context, targetID string) error {
	return h.monitor.Stop(ctx, targetID)
}

func (h *HybridService) GetMonitoringStatus() []models.MonitoringStatus {
	return h.monitor.Status()
}

func (h *HybridService) GetPartnersStatus() []models.AdapterDescriptor {
	return h.registry.GetPartnersStatus()
}

func (h *HybridService) SetAdapterEnabled(id string, enabled bool, legalConfirmation *bool) error {
	if err := h.registry.SetAdapterEnabled(id, enabled, legalConfirmation); err != nil {
		return err
	}
	h.logger.Info("adapter toggled", zap.String("adapterID", id), zap.Bool("enabled", enabled))
	return nil
}

func (h *HybridService) UpdateReliability(id string, score float64) error {
	return h.registry.UpdateReliability(id, score)
}
