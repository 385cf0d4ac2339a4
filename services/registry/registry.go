package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"visaflow/models"
)

// Registry holds the descriptor of every adapter. It is read-mostly and
// shared by the orchestrator, the consolidator and every monitoring task.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*models.AdapterDescriptor
	order       []string
	now         func() time.Time
}

// New builds a registry. Descriptors that violate the scraping
// legal-confirmation invariant are rejected.
func New(descs ...models.AdapterDescriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]*models.AdapterDescriptor, len(descs)),
		now:         time.Now,
	}
	for _, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("registry: descriptor without id")
		}
		if _, dup := r.descriptors[d.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate adapter id %s", d.ID)
		}
		if d.Kind == models.KindScraping && d.Enabled && !d.LegalConfirmation {
			return nil, &LegalConstraintError{AdapterID: d.ID}
		}
		if d.Reliability < 0 || d.Reliability > 100 {
			return nil, fmt.Errorf("registry: adapter %s reliability %.1f out of range", d.ID, d.Reliability)
		}
		d := d
		d.Coverage = append([]models.Coverage(nil), d.Coverage...)
		r.descriptors[d.ID] = &d
		r.order = append(r.order, d.ID)
	}
	return r, nil
}

// Get returns a copy of one descriptor.
func (r *Registry) Get(id string) (models.AdapterDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	if !ok {
		return models.AdapterDescriptor{}, false
	}
	return *d, true
}

// GetPartnersStatus returns every descriptor with its live enabled and
// health state, in registration order.
func (r *Registry) GetPartnersStatus() []models.AdapterDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AdapterDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.descriptors[id])
	}
	return out
}

// Candidates returns the enabled descriptors of one kind covering
// (country, visaType), best first.
func (r *Registry) Candidates(kind models.AdapterKind, country, visaType string) []models.AdapterDescriptor {
	r.mu.RLock()
	var out []models.AdapterDescriptor
	for _, id := range r.order {
		d := r.descriptors[id]
		if d.Kind == kind && d.Enabled && d.Covers(country, visaType) {
			out = append(out, *d)
		}
	}
	r.mu.RUnlock()
	sortByRank(out)
	return out
}

// RankPartners returns every enabled partner able to serve the request,
// ranked by reliability descending then latency ascending.
func (r *Registry) RankPartners(country, visaType string, urgency models.Urgency) []models.AdapterDescriptor {
	all := r.Candidates(models.KindPartner, country, visaType)
	out := all[:0]
	for _, d := range all {
		if d.Serves(urgency) {
			out = append(out, d)
		}
	}
	return out
}

// FindBestPartner returns the top-ranked partner covering (country,
// visaType) at the requested urgency, or false when none does.
func (r *Registry) FindBestPartner(country, visaType string, urgency models.Urgency) (models.AdapterDescriptor, bool) {
	ranked := r.RankPartners(country, visaType, urgency)
	if len(ranked) == 0 {
		return models.AdapterDescriptor{}, false
	}
	return ranked[0], true
}

// SetAdapterEnabled toggles an adapter. Enabling a scraping adapter
// requires legalConfirmation to be true, either passed here or already on
// record; otherwise a *LegalConstraintError is returned and nothing changes.
func (r *Registry) SetAdapterEnabled(id string, enabled bool, legalConfirmation *bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAdapter, id)
	}

	if d.Kind == models.KindScraping && enabled {
		confirmed := d.LegalConfirmation
		if legalConfirmation != nil {
			confirmed = *legalConfirmation
		}
		if !confirmed {
			return &LegalConstraintError{AdapterID: id}
		}
	}

	if legalConfirmation != nil {
		d.LegalConfirmation = *legalConfirmation
	}
	d.Enabled = enabled
	return nil
}

// UpdateReliability replaces the reliability weight of an adapter.
func (r *Registry) UpdateReliability(id string, score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("reliability %.1f out of range 0-100", score)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAdapter, id)
	}
	d.Reliability = score
	return nil
}

// MarkHealth records the outcome of the latest call to an adapter.
func (r *Registry) MarkHealth(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[id]
	if !ok {
		return
	}
	d.LastCheckedAt = r.now()
	if err != nil {
		d.Healthy = false
		d.LastError = err.Error()
		return
	}
	d.Healthy = true
	d.LastError = ""
}

// Reliability returns the current weight of an adapter, 0 when unknown.
func (r *Registry) Reliability(id string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.descriptors[id]; ok {
		return d.Reliability
	}
	return 0
}

// sortByRank orders by reliability descending, then latency ascending,
// then id for a stable result.
func sortByRank(ds []models.AdapterDescriptor) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Reliability != ds[j].Reliability {
			return ds[i].Reliability > ds[j].Reliability
		}
		if ds[i].AvgLatency != ds[j].AvgLatency {
			return ds[i].AvgLatency < ds[j].AvgLatency
		}
		return ds[i].ID < ds[j].ID
	})
}
