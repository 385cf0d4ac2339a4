package models

import "strings"

// SlotQuery narrows a discovery call. An empty Consulate means every
// consulate in the country.
type SlotQuery struct {
	Country    string `json:"country"`
	Consulate  string `json:"consulate,omitempty"`
	VisaType   string `json:"visaType"`
	WindowDays int    `json:"windowDays"`
}

// SlotCandidate is one bookable appointment reported by one adapter.
type SlotCandidate struct {
	Consulate         string      `json:"consulate" bson:"consulate"`
	Country           string      `json:"country" bson:"country"`
	VisaType          string      `json:"visaType" bson:"visaType"`
	Date              string      `json:"date" bson:"date"`
	Time              string      `json:"time" bson:"time"`
	Location          string      `json:"location,omitempty" bson:"location,omitempty"`
	SourceID          string      `json:"sourceId" bson:"sourceId"`
	SourceKind        AdapterKind `json:"sourceKind" bson:"sourceKind"`
	SourceReliability float64     `json:"sourceReliability" bson:"sourceReliability"`
	Stale             bool        `json:"stale,omitempty" bson:"stale,omitempty"`
	Warning           string      `json:"warning,omitempty" bson:"warning,omitempty"`
}

// Key is the dedupe key shared by duplicates across sources.
func (s SlotCandidate) Key() string {
	return strings.Join([]string{
		strings.ToLower(s.Consulate),
		strings.ToLower(s.VisaType),
		s.Date,
		s.Time,
	}, "|")
}

// SlotReport is the answer to findAvailableSlots: per-family lists plus the
// consolidated, deduplicated view.
type SlotReport struct {
	Official     []SlotCandidate   `json:"official"`
	Partners     []SlotCandidate   `json:"partners"`
	Scraping     []SlotCandidate   `json:"scraping"`
	Consolidated []SlotCandidate   `json:"consolidated"`
	SourceErrors map[string]string `json:"sourceErrors,omitempty"`
	Queried      int               `json:"queried"`
}

// AllFailed reports whether every queried source errored.
func (r SlotReport) AllFailed() bool {
	return r.Queried > 0 && len(r.SourceErrors) >= r.Queried
}
