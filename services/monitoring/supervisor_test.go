package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDiscoverer struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (models.SlotReport, error)
}

func (f *fakeDiscoverer) Discover(ctx context.Context, q models.SlotQuery, only []models.AdapterKind) (models.SlotReport, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call)
}

func (f *fakeDiscoverer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []models.VacancyAlert
}

func (s *recordingSink) Dispatch(ctx context.Context, alert models.VacancyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingSink) Alerts() []models.VacancyAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.VacancyAlert(nil), s.alerts...)
}

func slots(times ...string) []models.SlotCandidate {
	out := make([]models.SlotCandidate, 0, len(times))
	for _, tm := range times {
		out = append(out, models.SlotCandidate{
			Consulate: "Sao Paulo", Country: "US", VisaType: "B1/B2",
			Date: "2026-11-03", Time: tm, SourceID: "casv", SourceKind: models.KindOfficial,
		})
	}
	return out
}

func report(s []models.SlotCandidate) models.SlotReport {
	return models.SlotReport{Consolidated: s, Official: s, Queried: 1}
}

var target = models.MonitoringTarget{Country: "US", Consulate: "Sao Paulo", VisaType: "B1/B2"}

func newTestSupervisor(d Discoverer, sink AlertSink) *Supervisor {
	return NewSupervisor(Config{
		DefaultInterval: 5 * time.Millisecond,
		MaxBackoff:      20 * time.Millisecond,
		DedupeTTL:       time.Hour,
	}, d, nil, sink, nil, zap.NewNop())
}

func TestSupervisor_AlwaysErroringTargetKeepsPolling(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) {
		return models.SlotReport{}, errors.New("all adapters down")
	}}
	sink := &recordingSink{}
	s := newTestSupervisor(d, sink)
	defer s.Shutdown(context.Background())

	ids, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	assert.Eventually(t, func() bool { return d.Calls() >= 5 }, 3*time.Second, 5*time.Millisecond)

	st, err := s.StatusOf(ids[0])
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Zero(t, st.Alerts)
	assert.GreaterOrEqual(t, st.ConsecutiveErrors, 4)
	assert.Equal(t, "all adapters down", st.LastError)
	assert.Empty(t, sink.Alerts())
}

func TestSupervisor_UnchangedSlotSetAlertsOnce(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) {
		return report(slots("09:00", "10:00")), nil
	}}
	sink := &recordingSink{}
	s := newTestSupervisor(d, sink)
	defer s.Shutdown(context.Background())

	ids, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return d.Calls() >= 4 }, 3*time.Second, 5*time.Millisecond)

	alerts := sink.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, ids[0], alerts[0].TargetID)
	assert.Len(t, alerts[0].NewSlots, 2)
	assert.NotEmpty(t, alerts[0].DedupeKey)

	st, _ := s.StatusOf(ids[0])
	assert.Equal(t, 1, st.Alerts)
	assert.Equal(t, 2, st.KnownSlots)
}

func TestSupervisor_NewSlotAlertsWithOnlyNewSlots(t *testing.T) {
	d := &fakeDiscoverer{fn: func(call int) (models.SlotReport, error) {
		if call < 3 {
			return report(slots("09:00")), nil
		}
		return report(slots("09:00", "11:30")), nil
	}}
	sink := &recordingSink{}
	s := newTestSupervisor(d, sink)
	defer s.Shutdown(context.Background())

	_, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(sink.Alerts()) == 2 }, 3*time.Second, 5*time.Millisecond)
	second := sink.Alerts()[1]
	require.Len(t, second.NewSlots, 1)
	assert.Equal(t, "11:30", second.NewSlots[0].Time)
}

func TestSupervisor_RecoversAfterErrors(t *testing.T) {
	d := &fakeDiscoverer{fn: func(call int) (models.SlotReport, error) {
		if call <= 2 {
			return models.SlotReport{}, errors.New("timeout")
		}
		return report(slots("09:00")), nil
	}}
	sink := &recordingSink{}
	s := newTestSupervisor(d, sink)
	defer s.Shutdown(context.Background())

	ids, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(sink.Alerts()) == 1 }, 3*time.Second, 5*time.Millisecond)
	st, _ := s.StatusOf(ids[0])
	assert.Zero(t, st.ConsecutiveErrors)
	assert.Empty(t, st.LastError)
}

func TestSupervisor_StopCancelsLoop(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) { return report(nil), nil }}
	s := newTestSupervisor(d, nil)
	defer s.Shutdown(context.Background())

	ids, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return d.Calls() >= 2 }, 3*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx, ids[0]))

	calls := d.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, d.Calls())
	assert.Empty(t, s.Status())
	assert.ErrorIs(t, s.Stop(ctx, ids[0]), ErrTargetNotFound)
}

func TestSupervisor_StartRejectsDuplicatesAndInvalidTargets(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) { return report(nil), nil }}
	s := newTestSupervisor(d, nil)
	defer s.Shutdown(context.Background())

	_, err := s.Start([]models.MonitoringTarget{target}, time.Minute)
	require.NoError(t, err)

	_, err = s.Start([]models.MonitoringTarget{target}, time.Minute)
	assert.ErrorIs(t, err, ErrAlreadyMonitoring)

	_, err = s.Start([]models.MonitoringTarget{{Country: "USA", VisaType: "B1/B2"}}, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	other := models.MonitoringTarget{Country: "CA", VisaType: "TRV"}
	_, err = s.Start([]models.MonitoringTarget{other, {Country: ""}}, time.Minute)
	assert.Error(t, err)
	assert.Len(t, s.Status(), 1)
}

func TestSupervisor_ShutdownStopsEverything(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) { return report(nil), nil }}
	s := newTestSupervisor(d, nil)

	_, err := s.Start([]models.MonitoringTarget{target, {Country: "CA", VisaType: "TRV"}}, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Empty(t, s.Status())

	_, err = s.Start([]models.MonitoringTarget{target}, 0)
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestDedupeKey_IndependentOfOrder(t *testing.T) {
	a := map[string]models.SlotCandidate{}
	b := map[string]models.SlotCandidate{}
	for _, s := range slots("09:00", "10:00", "11:00") {
		a[s.Key()] = s
	}
	for _, s := range slots("11:00", "09:00", "10:00") {
		b[s.Key()] = s
	}
	assert.Equal(t, DedupeKey("t1", a), DedupeKey("t1", b))
	assert.NotEqual(t, DedupeKey("t1", a), DedupeKey("t2", a))
}

func TestMemoryDeduper_Expires(t *testing.T) {
	d := NewMemoryDeduper()
	now := time.Now()
	d.now = func() time.Time { return now }

	first, _ := d.FirstSeen(context.Background(), "k", time.Minute)
	again, _ := d.FirstSeen(context.Background(), "k", time.Minute)
	assert.True(t, first)
	assert.False(t, again)

	now = now.Add(2 * time.Minute)
	later, _ := d.FirstSeen(context.Background(), "k", time.Minute)
	assert.True(t, later)
}

func TestSupervisor_ReopenedSlotAlertsAgain(t *testing.T) {
	d := &fakeDiscoverer{fn: func(call int) (models.SlotReport, error) {
		switch call {
		case 1:
			return report(slots("09:00")), nil
		case 2:
			return report(slots("09:00", "10:00")), nil
		case 3:
			return report(slots("09:00")), nil
		default:
			return report(slots("09:00", "10:00")), nil
		}
	}}
	sink := &recordingSink{}
	s := newTestSupervisor(d, sink)
	defer s.Shutdown(context.Background())

	_, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return d.Calls() >= 6 }, 3*time.Second, 5*time.Millisecond)
	alerts := sink.Alerts()
	require.Len(t, alerts, 3)
	require.Len(t, alerts[2].NewSlots, 1)
	assert.Equal(t, "10:00", alerts[2].NewSlots[0].Time)
	assert.Equal(t, alerts[1].DedupeKey, alerts[2].DedupeKey)
}

func TestSupervisor_SharedDedupeSuppressesSecondInstance(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) {
		return report(slots("09:00")), nil
	}}
	shared := NewMemoryDeduper()
	cfg := Config{DefaultInterval: 5 * time.Millisecond, DedupeTTL: time.Hour}
	sink := &recordingSink{}
	first := NewSupervisor(cfg, d, shared, sink, nil, zap.NewNop())
	second := NewSupervisor(cfg, d, shared, sink, nil, zap.NewNop())
	defer first.Shutdown(context.Background())
	defer second.Shutdown(context.Background())

	tgt := target
	tgt.ID = "t-shared"
	_, err := first.Start([]models.MonitoringTarget{tgt}, 0)
	require.NoError(t, err)
	_, err = second.Start([]models.MonitoringTarget{tgt}, 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return d.Calls() >= 6 }, 3*time.Second, 5*time.Millisecond)
	assert.Len(t, sink.Alerts(), 1)
}

func TestPollBackoff_NeverBelowInterval(t *testing.T) {
	interval := 100 * time.Millisecond
	b := newPollBackoff(interval, time.Second)

	prev := time.Duration(0)
	for i := 0; i < 8; i++ {
		delay := errorDelay(b, interval)
		assert.GreaterOrEqual(t, delay, interval)
		assert.LessOrEqual(t, delay, time.Second)
		assert.GreaterOrEqual(t, delay, prev)
		prev = delay
	}
	assert.Equal(t, time.Second, prev)

	b.Reset()
	assert.Equal(t, interval, errorDelay(b, interval))

	capped := newPollBackoff(time.Minute, time.Second)
	assert.Equal(t, time.Minute, errorDelay(capped, time.Minute))
}

func TestMemoryDeduper_Forget(t *testing.T) {
	d := NewMemoryDeduper()
	ctx := context.Background()

	first, _ := d.FirstSeen(ctx, "k", time.Hour)
	require.True(t, first)
	require.NoError(t, d.Forget(ctx, "k"))
	again, _ := d.FirstSeen(ctx, "k", time.Hour)
	assert.True(t, again)
}

type fakeDedupeStore struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeDedupeStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeDedupeStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisDeduper_FirstSeenAndForget(t *testing.T) {
	store := &fakeDedupeStore{keys: map[string]time.Duration{}}
	d := NewRedisDeduper(store)
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "t1:abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, time.Hour, store.keys[utils.AlertDedupePrefix+"t1:abc"])

	again, err := d.FirstSeen(ctx, "t1:abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Forget(ctx, "t1:abc"))
	reopened, err := d.FirstSeen(ctx, "t1:abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, reopened)
}

func TestRedisDeduper_StoreErrors(t *testing.T) {
	d := NewRedisDeduper(&fakeDedupeStore{keys: map[string]time.Duration{}, err: errors.New("connection refused")})

	_, err := d.FirstSeen(context.Background(), "k", time.Hour)
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, d.Forget(context.Background(), "k"))
}

func TestSupervisor_DedupeOutageStillAlerts(t *testing.T) {
	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) {
		return report(slots("09:00")), nil
	}}
	sink := &recordingSink{}
	broken := NewRedisDeduper(&fakeDedupeStore{keys: map[string]time.Duration{}, err: errors.New("timeout")})
	s := NewSupervisor(Config{DefaultInterval: 5 * time.Millisecond}, d, broken, sink, nil, zap.NewNop())
	defer s.Shutdown(context.Background())

	_, err := s.Start([]models.MonitoringTarget{target}, 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return d.Calls() >= 3 }, 3*time.Second, 5*time.Millisecond)
	assert.Len(t, sink.Alerts(), 1)
}

func TestSupervisor_TargetIntervalInMinutes(t *testing.T) {
	var tgt models.MonitoringTarget
	require.NoError(t, json.Unmarshal([]byte(`{"country":"US","visaType":"B1/B2","intervalMinutes":7,"interval":5}`), &tgt))

	d := &fakeDiscoverer{fn: func(int) (models.SlotReport, error) { return report(nil), nil }}
	s := newTestSupervisor(d, nil)
	defer s.Shutdown(context.Background())

	ids, err := s.Start([]models.MonitoringTarget{tgt, {Country: "CA", VisaType: "TRV"}}, 2*time.Minute)
	require.NoError(t, err)

	own, err := s.StatusOf(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 7*time.Minute, own.Target.Interval)
	assert.Equal(t, 7, own.Target.IntervalMinutes)

	inherited, err := s.StatusOf(ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, inherited.Target.Interval)
	assert.Equal(t, 2, inherited.Target.IntervalMinutes)
}
