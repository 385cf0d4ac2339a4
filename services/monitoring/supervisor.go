package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Discoverer is the consolidated discovery the supervisor polls.
type Discoverer interface {
	Discover(ctx context.Context, q models.SlotQuery, only []models.AdapterKind) (models.SlotReport, error)
}

// AlertSink delivers an alert to its subscribers.
type AlertSink interface {
	Dispatch(ctx context.Context, alert models.VacancyAlert) error
}

// AlertRecorder is the persistence collaborator for alerts.
type AlertRecorder interface {
	RecordVacancyAlert(ctx context.Context, alert *models.VacancyAlert) error
}

type Config struct {
	DefaultInterval time.Duration
	MaxBackoff      time.Duration
	DedupeTTL       time.Duration
	WindowDays      int
	PersistTimeout  time.Duration
}

func (c *Config) setDefaults() {
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = 5 * time.Minute
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 24 * time.Hour
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 90
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
}

// Supervisor owns one polling goroutine per active target. Targets live
// until Stop or Shutdown; a failing poll never ends its loop.
type Supervisor struct {
	cfg      Config
	discover Discoverer
	dedupe   Deduper
	sink     AlertSink
	recorder AlertRecorder
	logger   *zap.Logger
	validate *validator.Validate

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	targets  map[string]*runner
	order    []string
	shutdown bool
}

// NewSupervisor builds a supervisor. dedupe defaults to an in-memory store;
// sink and recorder may be nil.
func NewSupervisor(cfg Config, discover Discoverer, dedupe Deduper, sink AlertSink, recorder AlertRecorder, logger *zap.Logger) *Supervisor {
	cfg.setDefaults()
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:      cfg,
		discover: discover,
		dedupe:   dedupe,
		sink:     sink,
		recorder: recorder,
		logger:   logger,
		validate: validator.New(),
		root:     root,
		cancel:   cancel,
		targets:  make(map[string]*runner),
	}
}

// Start launches a loop per target and returns their ids. interval applies
// to targets without their own. Either every target starts or none does.
func (s *Supervisor) Start(targets []models.MonitoringTarget, interval time.Duration) ([]string, error) {
	if interval <= 0 {
		interval = s.cfg.DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil, ErrShuttingDown
	}

	active := make(map[string]string, len(s.targets))
	for id, r := range s.targets {
		active[targetKey(r.target)] = id
	}
	prepared := make([]models.MonitoringTarget, 0, len(targets))
	for _, t := range targets {
		if err := s.validate.Struct(t); err != nil {
			return nil, fmt.Errorf("%w %s/%s: %v", ErrInvalidTarget, t.Country, t.VisaType, err)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, ok := s.targets[t.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMonitoring, t.ID)
		}
		if id, ok := active[targetKey(t)]; ok {
			return nil, fmt.Errorf("%w: %s as %s", ErrAlreadyMonitoring, targetKey(t), id)
		}
		if t.Interval <= 0 && t.IntervalMinutes > 0 {
			t.Interval = time.Duration(t.IntervalMinutes) * time.Minute
		}
		if t.Interval <= 0 {
			t.Interval = interval
		}
		t.IntervalMinutes = int(t.Interval / time.Minute)
		active[targetKey(t)] = t.ID
		prepared = append(prepared, t)
	}

	ids := make([]string, 0, len(prepared))
	for _, t := range prepared {
		ctx, cancel := context.WithCancel(s.root)
		r := newRunner(t, cancel)
		s.targets[t.ID] = r
		s.order = append(s.order, t.ID)
		ids = append(ids, t.ID)
		go s.run(ctx, r)
		s.logger.Info("monitoring started", zap.String("targetID", t.ID), zap.String("country", t.Country),
			zap.String("consulate", t.Consulate), zap.String("visaType", t.VisaType), zap.Duration("interval", t.Interval))
	}
	return ids, nil
}

// Stop cancels a target's timer and any in-flight poll and waits for its
// goroutine to exit.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	r, ok := s.targets[id]
	if ok {
		delete(s.targets, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("monitoring stopped", zap.String("targetID", id))
	return nil
}

// Status snapshots every active target in start order.
func (s *Supervisor) Status() []models.MonitoringStatus {
	s.mu.Lock()
	runners := make([]*runner, 0, len(s.order))
	for _, id := range s.order {
		runners = append(runners, s.targets[id])
	}
	s.mu.Unlock()

	out := make([]models.MonitoringStatus, 0, len(runners))
	for _, r := range runners {
		out = append(out, r.snapshot())
	}
	return out
}

// StatusOf snapshots one target.
func (s *Supervisor) StatusOf(id string) (models.MonitoringStatus, error) {
	s.mu.Lock()
	r, ok := s.targets[id]
	s.mu.Unlock()
	if !ok {
		return models.MonitoringStatus{}, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	return r.snapshot(), nil
}

// Shutdown stops every target and waits for all loops or ctx.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	runners := make([]*runner, 0, len(s.targets))
	for _, r := range s.targets {
		runners = append(runners, r)
	}
	s.targets = make(map[string]*runner)
	s.order = nil
	s.mu.Unlock()

	s.cancel()
	for _, r := range runners {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.logger.Info("monitoring supervisor stopped", zap.Int("targets", len(runners)))
	return nil
}

func targetKey(t models.MonitoringTarget) string {
	return strings.ToLower(strings.Join([]string{t.Country, t.Consulate, t.VisaType}, "|"))
}

func (s *Supervisor) run(ctx context.Context, r *runner) {
	defer close(r.done)
	logger := s.logger.With(zap.String("targetID", r.target.ID))

	b := newPollBackoff(r.target.Interval, s.cfg.MaxBackoff)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.setState(models.MonitorStopped)
			return
		case <-timer.C:
		}

		delay := r.target.Interval
		if err := s.poll(ctx, r, logger); err != nil {
			if ctx.Err() != nil {
				r.setState(models.MonitorStopped)
				return
			}
			delay = errorDelay(b, r.target.Interval)
			r.setState(models.MonitorBackoff)
			logger.Warn("poll failed, backing off", zap.Duration("delay", delay), zap.Error(err))
		} else {
			b.Reset()
			r.setState(models.MonitorIdle)
		}
		timer.Reset(delay)
	}
}

// newPollBackoff grows error delays from interval up to maxDelay without
// jitter, so a failing target never polls faster than a healthy one.
func newPollBackoff(interval, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.RandomizationFactor = 0
	b.MaxInterval = maxDelay
	if b.MaxInterval < interval {
		b.MaxInterval = interval
	}
	b.Reset()
	return b
}

func errorDelay(b *backoff.ExponentialBackOff, interval time.Duration) time.Duration {
	delay := b.NextBackOff()
	if delay <= 0 || delay > b.MaxInterval {
		delay = b.MaxInterval
	}
	if delay < interval {
		delay = interval
	}
	return delay
}

// poll runs one Polling step and the SlotsFound/Notifying or NoChange
// transitions that follow it.
func (s *Supervisor) poll(ctx context.Context, r *runner, logger *zap.Logger) error {
	r.beginPoll()
	report, err := s.discover.Discover(ctx, r.target.Query(s.cfg.WindowDays), nil)
	if err == nil && report.AllFailed() {
		err = fmt.Errorf("all %d sources failed", report.Queried)
	}
	if err != nil {
		utils.MonitorPollErrors.WithLabelValues(r.target.ID).Inc()
		r.fail(err)
		return err
	}

	current := make(map[string]models.SlotCandidate, len(report.Consolidated))
	for _, slot := range report.Consolidated {
		current[slot.Key()] = slot
	}
	newSlots := r.advance(current, report.SourceErrors)
	key := DedupeKey(r.target.ID, r.knownSet())
	if stale := r.staleAlertKey(key); stale != "" {
		if err := s.dedupe.Forget(ctx, stale); err != nil {
			logger.Warn("failed to release alert dedupe key", zap.String("dedupeKey", stale), zap.Error(err))
		}
	}
	if len(newSlots) == 0 {
		r.setState(models.MonitorNoChange)
		return nil
	}

	r.setState(models.MonitorSlotsFound)
	first, err := s.dedupe.FirstSeen(ctx, key, s.cfg.DedupeTTL)
	if err != nil {
		logger.Warn("alert dedupe unavailable, alerting anyway", zap.Error(err))
		first = true
	}
	r.setAlertKey(key)
	if !first {
		r.setState(models.MonitorNoChange)
		return nil
	}

	r.setState(models.MonitorNotifying)
	alert := models.VacancyAlert{
		ID:          uuid.NewString(),
		TargetID:    r.target.ID,
		Country:     r.target.Country,
		Consulate:   r.target.Consulate,
		VisaType:    r.target.VisaType,
		NewSlots:    newSlots,
		DedupeKey:   key,
		Subscribers: r.target.Subscribers,
		CreatedAt:   time.Now(),
	}
	r.alerted()
	utils.VacancyAlerts.WithLabelValues(r.target.ID).Inc()
	logger.Info("vacancy alert raised", zap.String("alertID", alert.ID), zap.Int("newSlots", len(newSlots)))
	s.emit(ctx, alert, logger)
	return nil
}

// emit hands the alert to the recorder and the sink. Neither can fail the poll.
func (s *Supervisor) emit(ctx context.Context, alert models.VacancyAlert, logger *zap.Logger) {
	if s.recorder != nil {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.PersistTimeout)
		if err := s.recorder.RecordVacancyAlert(pctx, &alert); err != nil {
			logger.Warn("failed to record vacancy alert", zap.String("alertID", alert.ID), zap.Error(err))
		}
		cancel()
	}
	if s.sink != nil {
		if err := s.sink.Dispatch(ctx, alert); err != nil {
			logger.Warn("failed to dispatch vacancy alert", zap.String("alertID", alert.ID), zap.Error(err))
		}
	}
}

// runner is the per-target state owned by its goroutine; status fields are
// read concurrently through snapshot.
type runner struct {
	target models.MonitoringTarget
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   models.MonitoringStatus
	known    map[string]models.SlotCandidate
	alertKey string
}

func newRunner(t models.MonitoringTarget, cancel context.CancelFunc) *runner {
	return &runner{
		target: t,
		cancel: cancel,
		done:   make(chan struct{}),
		status: models.MonitoringStatus{
			Target:    t,
			State:     models.MonitorIdle,
			Active:    true,
			StartedAt: time.Now(),
		},
		known: make(map[string]models.SlotCandidate),
	}
}

func (r *runner) setState(st models.MonitorState) {
	r.mu.Lock()
	r.status.State = st
	if st == models.MonitorStopped {
		r.status.Active = false
	}
	r.mu.Unlock()
}

func (r *runner) beginPoll() {
	r.mu.Lock()
	r.status.State = models.MonitorPolling
	r.status.Polls++
	r.status.LastPollAt = time.Now()
	r.mu.Unlock()
}

func (r *runner) fail(err error) {
	r.mu.Lock()
	r.status.State = models.MonitorError
	r.status.LastError = err.Error()
	r.status.ConsecutiveErrors++
	r.mu.Unlock()
}

func (r *runner) alerted() {
	r.mu.Lock()
	r.status.Alerts++
	r.mu.Unlock()
}

// advance replaces the last-known set with current and returns the slots
// not known before, sorted. Known slots from sources that failed this poll
// are carried over so a flapping source does not re-alert.
func (r *runner) advance(current map[string]models.SlotCandidate, failed map[string]string) []models.SlotCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, slot := range r.known {
		if _, down := failed[slot.SourceID]; down {
			if _, ok := current[k]; !ok {
				current[k] = slot
			}
		}
	}
	var fresh []models.SlotCandidate
	for k, slot := range current {
		if _, ok := r.known[k]; !ok {
			fresh = append(fresh, slot)
		}
	}
	r.known = current
	r.status.ConsecutiveErrors = 0
	r.status.LastError = ""
	r.status.KnownSlots = len(current)

	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].Date != fresh[j].Date {
			return fresh[i].Date < fresh[j].Date
		}
		return fresh[i].Key() < fresh[j].Key()
	})
	return fresh
}

func (r *runner) setAlertKey(key string) {
	r.mu.Lock()
	r.alertKey = key
	r.mu.Unlock()
}

// staleAlertKey clears and returns the key last alerted on once the known
// set has moved away from it.
func (r *runner) staleAlertKey(current string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alertKey == "" || r.alertKey == current {
		return ""
	}
	stale := r.alertKey
	r.alertKey = ""
	return stale
}

func (r *runner) knownSet() map[string]models.SlotCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known
}

func (r *runner) snapshot() models.MonitoringStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
