package models

import (
	"strings"
	"time"
)

// AdapterKind is the backend family an adapter belongs to.
type AdapterKind string

const (
	KindOfficial AdapterKind = "official"
	KindPartner  AdapterKind = "partner"
	KindScraping AdapterKind = "scraping"
)

// TrustRank orders kinds by trust tier, higher is more trusted.
func (k AdapterKind) TrustRank() int {
	switch k {
	case KindOfficial:
		return 2
	case KindPartner:
		return 1
	default:
		return 0
	}
}

// Pricing is what a backend charges.
type Pricing struct {
	Setup          float64 `json:"setup" bson:"setup"`
	Monthly        float64 `json:"monthly" bson:"monthly"`
	PerTransaction float64 `json:"perTransaction" bson:"perTransaction"`
}

// Coverage is one country and the visa types supported there. A visa type
// of "*" covers every type.
type Coverage struct {
	Country   string   `json:"country" bson:"country"`
	VisaTypes []string `json:"visaTypes" bson:"visaTypes"`
}

// AdapterDescriptor is the registry's view of one adapter.
type AdapterDescriptor struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Kind              AdapterKind   `json:"kind"`
	Coverage          []Coverage    `json:"coverage"`
	Reliability       float64       `json:"reliability"`
	AvgLatency        time.Duration `json:"avgLatency"`
	Pricing           Pricing       `json:"pricing"`
	Enabled           bool          `json:"enabled"`
	LegalConfirmation bool          `json:"legalConfirmation,omitempty"`
	MaxUrgency        Urgency       `json:"maxUrgency,omitempty"`

	// Live health, fed back from adapter calls.
	Healthy       bool      `json:"healthy"`
	LastError     string    `json:"lastError,omitempty"`
	LastCheckedAt time.Time `json:"lastCheckedAt,omitempty"`
}

// Covers reports whether the descriptor supports the country and visa type.
func (d AdapterDescriptor) Covers(country, visaType string) bool {
	for _, c := range d.Coverage {
		if !strings.EqualFold(c.Country, country) {
			continue
		}
		for _, vt := range c.VisaTypes {
			if vt == "*" || strings.EqualFold(vt, visaType) {
				return true
			}
		}
	}
	return false
}

// CoversCountry reports whether the descriptor supports any visa type in the country.
func (d AdapterDescriptor) CoversCountry(country string) bool {
	for _, c := range d.Coverage {
		if strings.EqualFold(c.Country, country) && len(c.VisaTypes) > 0 {
			return true
		}
	}
	return false
}

// Serves reports whether the descriptor accepts bookings at the given urgency.
func (d AdapterDescriptor) Serves(u Urgency) bool {
	if d.MaxUrgency == "" {
		return true
	}
	return u.Rank() <= d.MaxUrgency.Rank()
}
