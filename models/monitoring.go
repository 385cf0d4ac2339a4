package models

import "time"

// MonitorState is the lifecycle state of one monitoring target.
type MonitorState string

const (
	MonitorIdle       MonitorState = "idle"
	MonitorPolling    MonitorState = "polling"
	MonitorSlotsFound MonitorState = "slots_found"
	MonitorNotifying  MonitorState = "notifying"
	MonitorNoChange   MonitorState = "no_change"
	MonitorError      MonitorState = "error"
	MonitorBackoff    MonitorState = "backoff"
	MonitorStopped    MonitorState = "stopped"
)

// Subscriber receives vacancy alerts for a target.
type Subscriber struct {
	Channel   string `json:"channel" bson:"channel"`
	Recipient string `json:"recipient" bson:"recipient"`
}

// MonitoringTarget is one (consulate, visa type) pair being polled.
type MonitoringTarget struct {
	ID        string `json:"id"`
	Country   string `json:"country" validate:"required,len=2"`
	Consulate string `json:"consulate,omitempty"`
	VisaType  string `json:"visaType" validate:"required"`
	// IntervalMinutes overrides the request-wide poll interval for this target.
	IntervalMinutes int           `json:"intervalMinutes,omitempty" validate:"gte=0"`
	Interval        time.Duration `json:"-"`
	Subscribers     []Subscriber  `json:"subscribers,omitempty"`
}

// Query is the discovery query polled for this target.
func (t MonitoringTarget) Query(windowDays int) SlotQuery {
	return SlotQuery{
		Country:    t.Country,
		Consulate:  t.Consulate,
		VisaType:   t.VisaType,
		WindowDays: windowDays,
	}
}

// MonitoringStatus is a snapshot of one target's supervisor state.
type MonitoringStatus struct {
	Target            MonitoringTarget `json:"target"`
	State             MonitorState     `json:"state"`
	Active            bool             `json:"active"`
	StartedAt         time.Time        `json:"startedAt"`
	LastPollAt        time.Time        `json:"lastPollAt,omitempty"`
	LastError         string           `json:"lastError,omitempty"`
	ConsecutiveErrors int              `json:"consecutiveErrors"`
	Polls             int              `json:"polls"`
	Alerts            int              `json:"alerts"`
	KnownSlots        int              `json:"knownSlots"`
}

// VacancyAlert is raised when a target's slot set gains new slots.
type VacancyAlert struct {
	ID          string          `json:"id" bson:"id"`
	TargetID    string          `json:"targetId" bson:"targetId"`
	Country     string          `json:"country" bson:"country"`
	Consulate   string          `json:"consulate,omitempty" bson:"consulate,omitempty"`
	VisaType    string          `json:"visaType" bson:"visaType"`
	NewSlots    []SlotCandidate `json:"newSlots" bson:"newSlots"`
	DedupeKey   string          `json:"dedupeKey" bson:"dedupeKey"`
	Subscribers []Subscriber    `json:"-" bson:"-"`
	CreatedAt   time.Time       `json:"createdAt" bson:"createdAt"`
}
