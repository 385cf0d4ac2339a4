package availability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"visaflow/models"
	"visaflow/services/adapters"
	"visaflow/services/registry"
	"visaflow/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Consolidator fans discovery out to every eligible adapter in parallel
// and merges the answers into one ranked, deduplicated list.
type Consolidator struct {
	registry *registry.Registry
	adapters map[string]adapters.Adapter
	timeout  time.Duration
	cache    SlotCache
	logger   *zap.Logger
}

// NewConsolidator builds a consolidator over guarded adapters keyed by id.
// timeout bounds each adapter individually.
func NewConsolidator(reg *registry.Registry, byID map[string]adapters.Adapter, timeout time.Duration, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Consolidator{registry: reg, adapters: byID, timeout: timeout, logger: logger}
}

// WithCache enables result caching for FindAvailableSlots.
func (c *Consolidator) WithCache(cache SlotCache) *Consolidator {
	c.cache = cache
	return c
}

// FindAvailableSlots answers a display query, served from cache when possible.
func (c *Consolidator) FindAvailableSlots(ctx context.Context, q models.SlotQuery) (models.SlotReport, error) {
	if c.cache != nil {
		if report, ok := c.cache.Get(ctx, q); ok {
			return report, nil
		}
	}
	report, err := c.Discover(ctx, q, nil)
	if err != nil {
		return report, err
	}
	if c.cache != nil && !report.AllFailed() {
		c.cache.Set(ctx, q, report)
	}
	return report, nil
}

// Discover queries every enabled adapter covering q (narrowed by only,
// when non-empty) and never fails because one of them did.
func (c *Consolidator) Discover(ctx context.Context, q models.SlotQuery, only []models.AdapterKind) (models.SlotReport, error) {
	sources := c.sources(q, only)
	report := models.SlotReport{
		Official:     []models.SlotCandidate{},
		Partners:     []models.SlotCandidate{},
		Scraping:     []models.SlotCandidate{},
		Consolidated: []models.SlotCandidate{},
		Queried:      len(sources),
	}
	if len(sources) == 0 {
		return report, fmt.Errorf("%w: %s/%s", ErrNoSources, q.Country, q.VisaType)
	}

	var mu sync.Mutex
	var all []models.SlotCandidate
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range sources {
		d := d
		a := c.adapters[d.ID]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			slots, err := a.DiscoverSlots(callCtx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("discovery failed",
					zap.String("adapterID", d.ID), zap.String("country", q.Country),
					zap.String("visaType", q.VisaType), zap.Error(err))
				if report.SourceErrors == nil {
					report.SourceErrors = make(map[string]string)
				}
				report.SourceErrors[d.ID] = err.Error()
				return nil
			}
			for i := range slots {
				stamp(&slots[i], d)
			}
			switch d.Kind {
			case models.KindOfficial:
				report.Official = append(report.Official, slots...)
			case models.KindPartner:
				report.Partners = append(report.Partners, slots...)
			case models.KindScraping:
				report.Scraping = append(report.Scraping, slots...)
			}
			all = append(all, slots...)
			return nil
		})
	}
	_ = g.Wait()

	report.Consolidated = Merge(all)
	return report, nil
}

func (c *Consolidator) sources(q models.SlotQuery, only []models.AdapterKind) []models.AdapterDescriptor {
	kinds := only
	if len(kinds) == 0 {
		kinds = []models.AdapterKind{models.KindOfficial, models.KindPartner, models.KindScraping}
	}
	var out []models.AdapterDescriptor
	for _, k := range kinds {
		for _, d := range c.registry.Candidates(k, q.Country, q.VisaType) {
			if _, ok := c.adapters[d.ID]; ok {
				out = append(out, d)
			}
		}
	}
	return out
}

// stamp overwrites source metadata with the registry's current view.
func stamp(s *models.SlotCandidate, d models.AdapterDescriptor) {
	s.SourceID = d.ID
	s.SourceKind = d.Kind
	s.SourceReliability = d.Reliability
	if d.Kind == models.KindScraping {
		s.Stale = true
		s.Warning = utils.StaleSlotWarning
	}
}

// Merge deduplicates by (consulate, visaType, date, time), keeping the
// entry from the most reliable source, and sorts by date ascending then
// source reliability descending.
func Merge(slots []models.SlotCandidate) []models.SlotCandidate {
	byKey := make(map[string]models.SlotCandidate, len(slots))
	for _, s := range slots {
		key := s.Key()
		if existing, ok := byKey[key]; ok && !outranks(s, existing) {
			continue
		}
		byKey[key] = s
	}

	out := make([]models.SlotCandidate, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SourceReliability != b.SourceReliability {
			return a.SourceReliability > b.SourceReliability
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.Key() < b.Key()
	})
	return out
}

// outranks reports whether a should replace b for the same key.
func outranks(a, b models.SlotCandidate) bool {
	if a.SourceReliability != b.SourceReliability {
		return a.SourceReliability > b.SourceReliability
	}
	if a.SourceKind.TrustRank() != b.SourceKind.TrustRank() {
		return a.SourceKind.TrustRank() > b.SourceKind.TrustRank()
	}
	return a.SourceID < b.SourceID
}
