package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"visaflow/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, channel, recipient string, msg Message) (models.DeliveryAck, error) {
	args := m.Called(ctx, channel, recipient, msg)
	return args.Get(0).(models.DeliveryAck), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueAlert(ctx context.Context, payload models.AlertPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func testAlert() models.VacancyAlert {
	return models.VacancyAlert{
		ID:        "alert-1",
		TargetID:  "target-1",
		Country:   "US",
		Consulate: "Sao Paulo",
		VisaType:  "B1/B2",
		NewSlots: []models.SlotCandidate{
			{Date: "2026-11-03", Time: "09:00", SourceID: "casv"},
			{Date: "2026-11-04", Time: "10:00", SourceID: "portal", Stale: true},
		},
		Subscribers: []models.Subscriber{
			{Channel: ChannelPush, Recipient: "device-token"},
			{Channel: ChannelEmail, Recipient: "ana@example.com"},
		},
		CreatedAt: time.Now(),
	}
}

func TestPayloads_RenderPerSubscriber(t *testing.T) {
	payloads := Payloads(testAlert())

	require.Len(t, payloads, 2)
	assert.Equal(t, "2 new B1/B2 appointments in Sao Paulo, US", payloads[0].Title)
	assert.Contains(t, payloads[0].Body, "2026-11-03 09:00 (casv)")
	assert.Contains(t, payloads[0].Body, "may be stale")
	assert.Equal(t, "ana@example.com", payloads[1].Recipient)
	assert.Equal(t, "alert-1", payloads[1].AlertID)
}

func TestRouter_PicksNotifierByChannel(t *testing.T) {
	push := &MockNotifier{}
	push.On("Notify", mock.Anything, "push", "tok", mock.Anything).Return(models.DeliveryAck{MessageID: "fcm-1"}, nil)
	fallback := &MockNotifier{}
	fallback.On("Notify", mock.Anything, "email", "a@b.c", mock.Anything).Return(models.DeliveryAck{MessageID: "log-1"}, nil)

	r := NewRouter(fallback).Handle("PUSH", push)

	ack, err := r.Notify(context.Background(), "push", "tok", Message{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "fcm-1", ack.MessageID)

	ack, err = r.Notify(context.Background(), "email", "a@b.c", Message{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "log-1", ack.MessageID)

	_, err = NewRouter(nil).Notify(context.Background(), "sms", "1", Message{})
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestFCMNotifier_SendsToToken(t *testing.T) {
	sender := &MockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(m *messaging.Message) bool {
		return m.Token == "device-token" && m.Notification.Title == "New slots"
	})).Return("projects/x/messages/1", nil)

	ack, err := NewFCMNotifier(sender).Notify(context.Background(), ChannelPush, "device-token", Message{Title: "New slots", Body: "b"})

	require.NoError(t, err)
	assert.Equal(t, "projects/x/messages/1", ack.MessageID)
	sender.AssertExpectations(t)

	_, err = NewFCMNotifier(sender).Notify(context.Background(), ChannelPush, "", Message{})
	assert.Error(t, err)
}

func TestAlertDispatcher_QueueFailureFallsBackToDirect(t *testing.T) {
	queue := &MockEnqueuer{}
	queue.On("EnqueueAlert", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(models.DeliveryAck{}, nil)

	err := NewAlertDispatcher(notifier, queue, zap.NewNop()).Dispatch(context.Background(), testAlert())

	require.NoError(t, err)
	queue.AssertNumberOfCalls(t, "EnqueueAlert", 2)
	notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestAlertDispatcher_QueuedDeliveriesSkipDirectPath(t *testing.T) {
	queue := &MockEnqueuer{}
	queue.On("EnqueueAlert", mock.Anything, mock.Anything).Return(nil)
	notifier := &MockNotifier{}

	err := NewAlertDispatcher(notifier, queue, zap.NewNop()).Dispatch(context.Background(), testAlert())

	require.NoError(t, err)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAlertDispatcher_OneFailureDoesNotStopOthers(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything, ChannelPush, mock.Anything, mock.Anything).Return(models.DeliveryAck{}, errors.New("token expired"))
	notifier.On("Notify", mock.Anything, ChannelEmail, mock.Anything, mock.Anything).Return(models.DeliveryAck{}, nil)

	err := NewAlertDispatcher(notifier, nil, zap.NewNop()).Dispatch(context.Background(), testAlert())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	notifier.AssertNumberOfCalls(t, "Notify", 2)
}
