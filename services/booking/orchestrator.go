package booking

import (
	"context"
	"strconv"
	"time"

	"visaflow/models"
	"visaflow/services/adapters"
	"visaflow/services/registry"
	"visaflow/utils"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder is the persistence collaborator for booking outcomes.
type Recorder interface {
	RecordBookingResult(ctx context.Context, result *models.BookingResult) error
}

// Orchestrator walks an ordered adapter chain for one booking request.
// Adapters are called strictly one at a time so a request can never be in
// flight at two providers.
type Orchestrator struct {
	registry       *registry.Registry
	adapters       map[string]adapters.Adapter
	recorder       Recorder
	retryBase      time.Duration
	persistTimeout time.Duration
	logger         *zap.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithRecorder sets the persistence collaborator.
func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithRetryBaseDelay sets the first wait between transient retries.
func WithRetryBaseDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.retryBase = d }
}

func WithPersistTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.persistTimeout = d }
}

func NewOrchestrator(reg *registry.Registry, byID map[string]adapters.Adapter, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = utils.GetLogger()
	}
	o := &Orchestrator{
		registry:       reg,
		adapters:       byID,
		retryBase:      500 * time.Millisecond,
		persistTimeout: 5 * time.Second,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BookAppointment runs Selecting then Attempting and always returns a
// result. The error is non-nil only for a *ValidationError, in which case
// no adapter was called.
func (o *Orchestrator) BookAppointment(ctx context.Context, req models.BookingRequest, opts models.HybridBookingOptions) (*models.BookingResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	opts = normalizeOptions(opts, req)
	result := &models.BookingResult{
		RequestID: req.RequestID,
		Country:   req.Country,
		VisaType:  req.VisaType,
		Attempts:  []models.BookingAttempt{},
	}

	if err := o.validate(req, opts); err != nil {
		result.State = models.StateAborted
		result.Recommendations = []string{"Correct the request data and resubmit: " + err.Error()}
		o.finish(ctx, result)
		return result, err
	}

	chain := o.selectChain(req, opts)
	logger := o.logger.With(zap.String("requestID", req.RequestID), zap.String("country", req.Country), zap.String("visaType", req.VisaType))
	logger.Info("booking chain selected", zap.Strings("chain", ids(chain)), zap.String("preferredMethod", string(opts.PreferredMethod)))

	result.State = o.attempt(ctx, logger, req, opts, chain, result)
	result.Warnings = warnings(result, opts, o.registry)
	if !result.Success {
		result.Recommendations = recommendations(result, chain, opts, o.registry)
	}
	o.finish(ctx, result)
	return result, nil
}

func normalizeOptions(opts models.HybridBookingOptions, req models.BookingRequest) models.HybridBookingOptions {
	if opts.PreferredMethod == "" {
		opts.PreferredMethod = models.MethodAuto
	}
	if opts.Urgency == "" {
		opts.Urgency = req.Urgency
	}
	if opts.Urgency == "" {
		opts.Urgency = models.UrgencyNormal
	}
	return opts
}

func (o *Orchestrator) validate(req models.BookingRequest, opts models.HybridBookingOptions) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := validateStruct(opts); err != nil {
		return err
	}
	if req.PreferredFrom != nil && req.PreferredTo != nil && req.PreferredTo.Before(*req.PreferredFrom) {
		return &ValidationError{Reason: "preferredTo is before preferredFrom"}
	}
	return nil
}

// selectChain orders adapters: the preferred family first, then the
// remaining families in auto order (official, ranked partners, scraping).
func (o *Orchestrator) selectChain(req models.BookingRequest, opts models.HybridBookingOptions) []models.AdapterDescriptor {
	families := map[models.BookingMethod][]models.AdapterDescriptor{
		models.MethodOfficial: o.registry.Candidates(models.KindOfficial, req.Country, req.VisaType),
		models.MethodPartners: o.registry.RankPartners(req.Country, req.VisaType, opts.Urgency),
		models.MethodScraping: o.registry.Candidates(models.KindScraping, req.Country, req.VisaType),
	}
	order := []models.BookingMethod{models.MethodOfficial, models.MethodPartners, models.MethodScraping}
	if opts.PreferredMethod != models.MethodAuto {
		rest := []models.BookingMethod{opts.PreferredMethod}
		for _, m := range order {
			if m != opts.PreferredMethod {
				rest = append(rest, m)
			}
		}
		order = rest
	}

	var chain []models.AdapterDescriptor
	for _, m := range order {
		for _, d := range families[m] {
			if _, ok := o.adapters[d.ID]; ok {
				chain = append(chain, d)
			}
		}
	}
	if !opts.FallbackEnabled && len(chain) > 1 {
		chain = chain[:1]
	}
	return chain
}

func (o *Orchestrator) attempt(ctx context.Context, logger *zap.Logger, req models.BookingRequest, opts models.HybridBookingOptions, chain []models.AdapterDescriptor, result *models.BookingResult) models.BookingState {
	tries := opts.MaxRetries
	if tries < 1 {
		tries = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryBase
	b.MaxInterval = 8 * o.retryBase

	for _, d := range chain {
		a := o.adapters[d.ID]
		b.Reset()

	tryLoop:
		for try := 1; try <= tries; try++ {
			if ctx.Err() != nil {
				return models.StateCanceled
			}

			start := time.Now()
			appt, err := a.AttemptBooking(ctx, req)
			if err == nil && appt == nil {
				err = adapters.NewNoSlotsError(d.ID, "backend returned no appointment")
			}
			att := models.BookingAttempt{
				AdapterID: d.ID,
				Kind:      d.Kind,
				Try:       try,
				Timestamp: start,
				Duration:  time.Since(start),
			}

			if err == nil {
				att.Success = true
				att.Cost = o.registry.CostFor(d.ID, opts.Urgency)
				att.Appointment = appt
				result.Attempts = append(result.Attempts, att)
				result.Success = true
				result.Method = models.MethodForKind(d.Kind)
				result.ProviderID = d.ID
				result.Appointment = appt
				result.TotalCost = att.Cost
				logger.Info("booking succeeded", zap.String("adapterID", d.ID), zap.Int("try", try))
				return models.StateSucceeded
			}

			ae := adapters.Classify(ctx, d.ID, err)
			att.ErrorKind = string(ae.Kind)
			att.Error = ae.Error()
			result.Attempts = append(result.Attempts, att)
			logger.Warn("booking attempt failed", zap.String("adapterID", d.ID), zap.Int("try", try), zap.String("kind", string(ae.Kind)), zap.Error(ae))

			switch ae.Kind {
			case adapters.KindValidation:
				return models.StateAborted
			case adapters.KindCanceled:
				return models.StateCanceled
			case adapters.KindTransient:
				if try == tries {
					break tryLoop
				}
				if err := wait(ctx, b.NextBackOff()); err != nil {
					return models.StateCanceled
				}
			default:
				break tryLoop
			}
		}
	}
	return models.StateExhausted
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// finish stamps the result, records metrics and hands it to the recorder.
// Persistence is bounded and its failures only get logged.
func (o *Orchestrator) finish(ctx context.Context, result *models.BookingResult) {
	result.CompletedAt = time.Now()
	method := string(result.Method)
	if method == "" {
		method = "none"
	}
	utils.BookingOutcomes.WithLabelValues(method, strconv.FormatBool(result.Success)).Inc()

	if o.recorder == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.persistTimeout)
	defer cancel()
	if err := o.recorder.RecordBookingResult(pctx, result); err != nil {
		o.logger.Warn("failed to record booking result", zap.String("requestID", result.RequestID), zap.Error(err))
	}
}

func ids(ds []models.AdapterDescriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
