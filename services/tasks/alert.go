package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visaflow/models"

	"github.com/hibiken/asynq"
)

const TypeAlertDeliver = "alert:deliver"

// NewAlertDeliveryTask builds one delivery task. The task id is derived from
// the alert and recipient so a re-enqueued alert is rejected as a duplicate.
func NewAlertDeliveryTask(payload models.AlertPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeAlertDeliver, b)
	opts := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:%s:%s", payload.AlertID, payload.Channel, payload.Recipient)),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	return task, opts, nil
}

// Enqueuer puts alert deliveries on the asynq queue.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueAlert(ctx context.Context, payload models.AlertPayload) error {
	task, opts, err := NewAlertDeliveryTask(payload)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeAlertDeliver, err)
	}
	return nil
}
