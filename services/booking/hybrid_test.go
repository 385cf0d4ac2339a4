package booking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"visaflow/models"
	"visaflow/services/adapters"
	"visaflow/services/adapters/adaptertest"
	"visaflow/services/availability"
	"visaflow/services/monitoring"
	"visaflow/services/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHybrid(t *testing.T) (*HybridService, map[string]*adaptertest.MockAdapter) {
	t.Helper()
	f := newFixture(t)
	byID := map[string]adapters.Adapter{}
	for id, m := range f.adapters {
		byID[id] = m
	}
	cons := availability.NewConsolidator(f.reg, byID, 100*time.Millisecond, zap.NewNop())
	mon := monitoring.NewSupervisor(monitoring.Config{DefaultInterval: time.Hour}, cons, nil, nil, nil, zap.NewNop())
	t.Cleanup(func() { _ = mon.Shutdown(context.Background()) })

	h, err := NewHybridService(HybridDeps{
		Registry:     f.reg,
		Consolidator: cons,
		Orchestrator: f.orch,
		Monitor:      mon,
		WindowDays:   30,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	return h, f.adapters
}

func TestHybridService_EveryActionHasHandler(t *testing.T) {
	h, _ := newTestHybrid(t)
	assert.Equal(t, AllActions, h.Actions())
	for _, a := range AllActions {
		assert.NotNil(t, h.handlers[a], "action %s", a)
	}
}

func TestCheckActions_MissingHandlerFails(t *testing.T) {
	h, _ := newTestHybrid(t)
	handlers := h.actionHandlers()
	delete(handlers, ActionStopMonitoring)

	err := checkActions(handlers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_monitoring")
}

func TestDispatch_UnknownAction(t *testing.T) {
	h, _ := newTestHybrid(t)
	_, err := h.Dispatch(context.Background(), "launch_rocket", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatch_Book(t *testing.T) {
	h, mocks := newTestHybrid(t)
	mocks["casv"].On("AttemptBooking", mock.Anything, mock.Anything).Return(appointment("CASV-7"), nil)

	payload, err := json.Marshal(BookPayload{Request: validRequest()})
	require.NoError(t, err)
	out, err := h.Dispatch(context.Background(), string(ActionBook), payload)

	require.NoError(t, err)
	result := out.(*models.BookingResult)
	assert.True(t, result.Success)
	assert.Equal(t, "casv", result.ProviderID)
}

func TestDispatch_MalformedPayloadIsValidationError(t *testing.T) {
	h, _ := newTestHybrid(t)
	_, err := h.Dispatch(context.Background(), string(ActionFindSlots), json.RawMessage(`{"country":`))

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDispatch_FindSlots(t *testing.T) {
	h, mocks := newTestHybrid(t)
	slot := models.SlotCandidate{Consulate: "Sao Paulo", VisaType: "B1/B2", Date: "2026-11-03", Time: "09:00"}
	mocks["casv"].On("DiscoverSlots", mock.Anything, mock.Anything).Return([]models.SlotCandidate{slot}, nil)
	mocks["portal"].On("DiscoverSlots", mock.Anything, mock.Anything).Return([]models.SlotCandidate{slot}, nil)
	mocks["vfs"].On("DiscoverSlots", mock.Anything, mock.Anything).Return([]models.SlotCandidate{}, nil)
	mocks["tls"].On("DiscoverSlots", mock.Anything, mock.Anything).Return(nil, adapters.NewUnavailableError("tls", "down", nil))

	out, err := h.Dispatch(context.Background(), string(ActionFindSlots), json.RawMessage(`{"country":"US","visaType":"B1/B2"}`))

	require.NoError(t, err)
	report := out.(models.SlotReport)
	require.Len(t, report.Consolidated, 1)
	assert.Equal(t, "casv", report.Consolidated[0].SourceID)
	assert.Len(t, report.Scraping, 1)
	assert.Contains(t, report.SourceErrors, "tls")
}

func TestDispatch_SetAdapterEnabledEnforcesLegalConfirmation(t *testing.T) {
	h, _ := newTestHybrid(t)
	_, err := h.Dispatch(context.Background(), string(ActionSetAdapterEnabled), json.RawMessage(`{"id":"portal","enabled":false}`))
	require.NoError(t, err)

	_, err = h.Dispatch(context.Background(), string(ActionSetAdapterEnabled), json.RawMessage(`{"id":"portal","enabled":true,"legalConfirmation":false}`))

	var legalErr *registry.LegalConstraintError
	require.ErrorAs(t, err, &legalErr)
	for _, d := range h.GetPartnersStatus() {
		if d.ID == "portal" {
			assert.False(t, d.Enabled)
		}
	}
}

func TestDispatch_MonitoringLifecycle(t *testing.T) {
	h, mocks := newTestHybrid(t)
	for _, m := range mocks {
		m.On("DiscoverSlots", mock.Anything, mock.Anything).Return([]models.SlotCandidate{}, nil)
	}

	out, err := h.Dispatch(context.Background(), string(ActionStartMonitoring),
		json.RawMessage(`{"targets":[{"country":"US","visaType":"B1/B2"}],"intervalMinutes":60}`))
	require.NoError(t, err)
	ids := out.(map[string]interface{})["targetIds"].([]string)
	require.Len(t, ids, 1)

	status, err := h.Dispatch(context.Background(), string(ActionMonitoringStatus), nil)
	require.NoError(t, err)
	require.Len(t, status.([]models.MonitoringStatus), 1)
	assert.Equal(t, time.Hour, status.([]models.MonitoringStatus)[0].Target.Interval)

	_, err = h.Dispatch(context.Background(), string(ActionStopMonitoring), json.RawMessage(`{"targetId":"`+ids[0]+`"}`))
	require.NoError(t, err)
	assert.Empty(t, h.GetMonitoringStatus())

	_, err = h.Dispatch(context.Background(), string(ActionStopMonitoring), json.RawMessage(`{"targetId":"missing"}`))
	assert.ErrorIs(t, err, monitoring.ErrTargetNotFound)
}

func TestBookPayload_PartialOptionsKeepDefaults(t *testing.T) {
	var p BookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"request":{},"options":{"preferredMethod":"partners"}}`), &p))

	opts := p.ResolvedOptions()
	assert.Equal(t, models.MethodPartners, opts.PreferredMethod)
	assert.True(t, opts.FallbackEnabled)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, models.UrgencyNormal, opts.Urgency)

	require.NoError(t, json.Unmarshal([]byte(`{"request":{},"options":{"fallbackEnabled":false,"maxRetries":0,"urgency":"express"}}`), &p))
	opts = p.ResolvedOptions()
	assert.Equal(t, models.MethodAuto, opts.PreferredMethod)
	assert.False(t, opts.FallbackEnabled)
	assert.Zero(t, opts.MaxRetries)
	assert.Equal(t, models.UrgencyExpress, opts.Urgency)

	assert.Equal(t, models.DefaultBookingOptions(), BookPayload{}.ResolvedOptions())
}
