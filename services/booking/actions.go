package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"visaflow/models"
)

// Action identifies one operation reachable through Dispatch.
type Action string

const (
	ActionFindSlots         Action = "find_slots"
	ActionBook              Action = "book"
	ActionStartMonitoring   Action = "start_monitoring"
	ActionStopMonitoring    Action = "stop_monitoring"
	ActionMonitoringStatus  Action = "monitoring_status"
	ActionPartnersStatus    Action = "partners_status"
	ActionSetAdapterEnabled Action = "set_adapter_enabled"
)

// AllActions is every declared action. Each needs a handler.
var AllActions = []Action{
	ActionFindSlots,
	ActionBook,
	ActionStartMonitoring,
	ActionStopMonitoring,
	ActionMonitoringStatus,
	ActionPartnersStatus,
	ActionSetAdapterEnabled,
}

// ActionHandler decodes its own payload and returns a JSON-encodable result.
type ActionHandler func(ctx context.Context, payload json.RawMessage) (interface{}, error)

type findSlotsPayload struct {
	Country   string `json:"country" validate:"required,len=2"`
	VisaType  string `json:"visaType" validate:"required"`
	Consulate string `json:"consulate"`
}

// BookPayload is the body of a booking call. Missing options mean defaults.
type BookPayload struct {
	Request models.BookingRequest `json:"request"`
	Options *BookOptions          `json:"options"`
}

// BookOptions is the wire form of HybridBookingOptions. Omitted fields keep
// their default value.
type BookOptions struct {
	PreferredMethod models.BookingMethod `json:"preferredMethod"`
	FallbackEnabled *bool                `json:"fallbackEnabled"`
	Urgency         models.Urgency       `json:"urgency"`
	MaxRetries      *int                 `json:"maxRetries"`
}

// StartMonitoringPayload is the body of a start-monitoring call.
type StartMonitoringPayload struct {
	Targets         []models.MonitoringTarget `json:"targets" validate:"required,min=1"`
	IntervalMinutes int                       `json:"intervalMinutes" validate:"gte=0"`
}

type stopMonitoringPayload struct {
	TargetID string `json:"targetId" validate:"required"`
}

// SetAdapterEnabledPayload toggles an adapter. LegalConfirmation is only
// meaningful for scraping adapters.
type SetAdapterEnabledPayload struct {
	ID                string `json:"id" validate:"required"`
	Enabled           bool   `json:"enabled"`
	LegalConfirmation *bool  `json:"legalConfirmation,omitempty"`
}

func (h *HybridService) actionHandlers() map[Action]ActionHandler {
	return map[Action]ActionHandler{
		ActionFindSlots: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p findSlotsPayload
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			return h.FindAvailableSlots(ctx, p.Country, p.VisaType, p.Consulate)
		},
		ActionBook: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p BookPayload
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			return h.BookAppointment(ctx, p.Request, p.ResolvedOptions())
		},
		ActionStartMonitoring: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p StartMonitoringPayload
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			ids, err := h.StartMonitoring(p.Targets, p.IntervalMinutes)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"targetIds": ids}, nil
		},
		ActionStopMonitoring: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p stopMonitoringPayload
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if err := h.StopMonitoring(ctx, p.TargetID); err != nil {
				return nil, err
			}
			return map[string]interface{}{"stopped": p.TargetID}, nil
		},
		ActionMonitoringStatus: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return h.GetMonitoringStatus(), nil
		},
		ActionPartnersStatus: func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return h.GetPartnersStatus(), nil
		},
		ActionSetAdapterEnabled: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p SetAdapterEnabledPayload
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if err := h.SetAdapterEnabled(p.ID, p.Enabled, p.LegalConfirmation); err != nil {
				return nil, err
			}
			d, _ := h.registry.Get(p.ID)
			return d, nil
		},
	}
}

// ResolvedOptions lays the supplied options over the defaults.
func (p BookPayload) ResolvedOptions() models.HybridBookingOptions {
	opts := models.DefaultBookingOptions()
	if p.Options == nil {
		return opts
	}
	if p.Options.PreferredMethod != "" {
		opts.PreferredMethod = p.Options.PreferredMethod
	}
	if p.Options.FallbackEnabled != nil {
		opts.FallbackEnabled = *p.Options.FallbackEnabled
	}
	if p.Options.Urgency != "" {
		opts.Urgency = p.Options.Urgency
	}
	if p.Options.MaxRetries != nil {
		opts.MaxRetries = *p.Options.MaxRetries
	}
	return opts
}

// Actions lists the registered actions in declaration order.
func (h *HybridService) Actions() []Action {
	out := make([]Action, 0, len(AllActions))
	for _, a := range AllActions {
		if _, ok := h.handlers[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Dispatch runs the handler registered for action.
func (h *HybridService) Dispatch(ctx context.Context, action string, payload json.RawMessage) (interface{}, error) {
	handler, ok := h.handlers[Action(action)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return handler(ctx, payload)
}

func checkActions(handlers map[Action]ActionHandler) error {
	for _, a := range AllActions {
		if handlers[a] == nil {
			return fmt.Errorf("hybrid action %q has no handler", a)
		}
	}
	if len(handlers) != len(AllActions) {
		return fmt.Errorf("hybrid service registers %d handlers for %d declared actions", len(handlers), len(AllActions))
	}
	return nil
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, v); err != nil {
			return &ValidationError{Reason: "malformed payload: " + err.Error()}
		}
	}
	return validateStruct(v)
}
