package notification

import (
	"context"
	"fmt"
	"strings"

	"visaflow/models"
	"visaflow/utils"

	"go.uber.org/zap"
)

// Enqueuer puts one delivery on the background queue.
type Enqueuer interface {
	EnqueueAlert(ctx context.Context, payload models.AlertPayload) error
}

// AlertDispatcher fans a vacancy alert out to its subscribers, through the
// queue when one is configured and directly otherwise.
type AlertDispatcher struct {
	notifier Notifier
	queue    Enqueuer
	logger   *zap.Logger
}

// NewAlertDispatcher builds a dispatcher. queue may be nil.
func NewAlertDispatcher(notifier Notifier, queue Enqueuer, logger *zap.Logger) *AlertDispatcher {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &AlertDispatcher{notifier: notifier, queue: queue, logger: logger}
}

// Dispatch delivers to every subscriber. A failed delivery is logged and
// does not stop the others; the returned error counts the failures.
func (d *AlertDispatcher) Dispatch(ctx context.Context, alert models.VacancyAlert) error {
	failed := 0
	for _, p := range Payloads(alert) {
		if err := d.deliver(ctx, p); err != nil {
			failed++
			d.logger.Warn("alert delivery failed",
				zap.String("alertID", alert.ID), zap.String("channel", p.Channel),
				zap.String("recipient", p.Recipient), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d alert deliveries failed", failed, len(alert.Subscribers))
	}
	return nil
}

func (d *AlertDispatcher) deliver(ctx context.Context, p models.AlertPayload) error {
	if d.queue != nil {
		err := d.queue.EnqueueAlert(ctx, p)
		if err == nil {
			return nil
		}
		d.logger.Warn("alert queue unavailable, delivering directly", zap.String("alertID", p.AlertID), zap.Error(err))
	}
	_, err := Deliver(ctx, d.notifier, p)
	return err
}

// Deliver sends one queued payload through n.
func Deliver(ctx context.Context, n Notifier, p models.AlertPayload) (models.DeliveryAck, error) {
	return n.Notify(ctx, p.Channel, p.Recipient, Message{
		Title: p.Title,
		Body:  p.Body,
		Data: map[string]string{
			"type":     "vacancy_alert",
			"alertId":  p.AlertID,
			"targetId": p.TargetID,
		},
	})
}

// Payloads renders one payload per subscriber.
func Payloads(alert models.VacancyAlert) []models.AlertPayload {
	title, body := render(alert)
	out := make([]models.AlertPayload, 0, len(alert.Subscribers))
	for _, s := range alert.Subscribers {
		out = append(out, models.AlertPayload{
			AlertID:   alert.ID,
			TargetID:  alert.TargetID,
			Channel:   s.Channel,
			Recipient: s.Recipient,
			Title:     title,
			Body:      body,
		})
	}
	return out
}

const maxListedSlots = 5

func render(alert models.VacancyAlert) (string, string) {
	where := alert.Country
	if alert.Consulate != "" {
		where = alert.Consulate + ", " + alert.Country
	}
	title := fmt.Sprintf("%d new %s appointment%s in %s", len(alert.NewSlots), alert.VisaType, plural(len(alert.NewSlots)), where)

	lines := make([]string, 0, maxListedSlots+1)
	stale := false
	for i, s := range alert.NewSlots {
		if s.Stale {
			stale = true
		}
		if i < maxListedSlots {
			lines = append(lines, fmt.Sprintf("%s %s (%s)", s.Date, s.Time, s.SourceID))
		}
	}
	if extra := len(alert.NewSlots) - maxListedSlots; extra > 0 {
		lines = append(lines, fmt.Sprintf("and %d more", extra))
	}
	body := strings.Join(lines, "; ")
	if stale {
		body += ". Note: " + utils.StaleSlotWarning + "."
	}
	return title, body
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
