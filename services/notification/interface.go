package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Channels understood by the router.
const (
	ChannelPush     = "push"
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

var ErrUnsupportedChannel = errors.New("unsupported notification channel")

// Notifier delivers one message to one recipient on one channel.
type Notifier interface {
	Notify(ctx context.Context, channel, recipient string, msg Message) (models.DeliveryAck, error)
}

// Message is the channel-neutral content of a notification.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender is the part of *messaging.Client the FCM notifier needs.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier sends push notifications; the recipient is a device token.
type FCMNotifier struct {
	client Sender
}

func NewFCMNotifier(client Sender) *FCMNotifier {
	return &FCMNotifier{client: client}
}

func (n *FCMNotifier) Notify(ctx context.Context, channel, recipient string, msg Message) (models.DeliveryAck, error) {
	if recipient == "" {
		return models.DeliveryAck{}, fmt.Errorf("FCMNotifier: empty device token")
	}
	m := &messaging.Message{
		Token: recipient,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "vacancy_alerts",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	id, err := n.client.Send(ctx, m)
	if err != nil {
		return models.DeliveryAck{}, fmt.Errorf("FCMNotifier: failed to send FCM message: %w", err)
	}
	return models.DeliveryAck{Channel: channel, Recipient: recipient, MessageID: id, DeliveredAt: time.Now()}, nil
}

// LogNotifier hands messages to the log for channels delivered by an
// external gateway that tails it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, channel, recipient string, msg Message) (models.DeliveryAck, error) {
	id := fmt.Sprintf("log-%d", time.Now().UnixNano())
	n.logger.Info("notification",
		zap.String("channel", channel),
		zap.String("recipient", recipient),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.String("messageID", id))
	return models.DeliveryAck{Channel: channel, Recipient: recipient, MessageID: id, DeliveredAt: time.Now()}, nil
}

// Router picks a notifier by channel, falling back to the default one.
type Router struct {
	routes   map[string]Notifier
	fallback Notifier
}

func NewRouter(fallback Notifier) *Router {
	return &Router{routes: make(map[string]Notifier), fallback: fallback}
}

// Handle registers n for channel. Channels are case-insensitive.
func (r *Router) Handle(channel string, n Notifier) *Router {
	r.routes[strings.ToLower(channel)] = n
	return r
}

func (r *Router) Notify(ctx context.Context, channel, recipient string, msg Message) (models.DeliveryAck, error) {
	n, ok := r.routes[strings.ToLower(channel)]
	if !ok {
		n = r.fallback
	}
	if n == nil {
		return models.DeliveryAck{}, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}
	return n.Notify(ctx, channel, recipient, msg)
}
