package models

import "time"

// AlertPayload is the queued unit of vacancy-alert delivery: one message to
// one subscriber.
type AlertPayload struct {
	AlertID   string `json:"alertId"`
	TargetID  string `json:"targetId"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// DeliveryAck confirms that a notification left this service.
type DeliveryAck struct {
	Channel     string    `json:"channel"`
	Recipient   string    `json:"recipient"`
	MessageID   string    `json:"messageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}
