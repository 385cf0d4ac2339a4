package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"visaflow/config"
	"visaflow/models"
	"visaflow/services/notification"
	"visaflow/services/tasks"
	"visaflow/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RedisOpt is the asynq connection for the alert queue.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// AlertWorker drains alert:deliver tasks into a notifier.
type AlertWorker struct {
	srv    *asynq.Server
	cancel context.CancelFunc
	logger *zap.Logger
}

// InitAlertWorker runs the async worker in background. Start-up is retried
// a few times; a worker that never starts is logged and left stopped.
func InitAlertWorker(notifier notification.Notifier) *AlertWorker {
	logger := utils.GetLogger()
	srv := asynq.NewServer(
		RedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logger.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeAlertDeliver, handleAlertTask(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	w := &AlertWorker{srv: srv, cancel: cancel, logger: logger}

	go monitorRedisConnection(ctx, logger)

	go func() {
		logger.Info("starting alert worker")
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Start(mux)
			if err == nil {
				return
			}
			logger.Error("alert worker failed to start", zap.Int("attempt", attempts), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempts*2) * time.Second):
			}
		}
		logger.Error("alert worker not started, max attempts reached; alerts will be delivered inline")
	}()
	return w
}

// Shutdown stops the worker and the connection monitor.
func (w *AlertWorker) Shutdown() {
	w.cancel()
	w.srv.Shutdown()
	w.logger.Info("alert worker stopped")
}

func handleAlertTask(notifier notification.Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.AlertPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("invalid alert payload: %v: %w", err, asynq.SkipRetry)
		}

		ack, err := notification.Deliver(ctx, notifier, p)
		if err != nil {
			utils.GetLogger().Warn("alert delivery failed",
				zap.String("alertID", p.AlertID), zap.String("channel", p.Channel), zap.Error(err))
			return err
		}
		utils.GetLogger().Debug("alert delivered",
			zap.String("alertID", p.AlertID), zap.String("channel", ack.Channel), zap.String("messageID", ack.MessageID))
		return nil
	}
}

// monitorRedisConnection pings the queue Redis periodically to surface
// failures at runtime.
func monitorRedisConnection(ctx context.Context, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("alert queue redis connection lost", zap.Error(err))
			}
		}
	}
}
