// Package queue moves password reset emails off the request path onto an
// asynq queue backed by Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"account-service/internal/models"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const (
	TypePasswordResetEmail = "email:password_reset"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Dispatcher enqueues email tasks.
type Dispatcher struct {
	client *asynq.Client
	logger zerolog.Logger
}

func NewDispatcher(client *asynq.Client, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger,
	}
}

func NewPasswordResetTask(msg models.PasswordResetEmail) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypePasswordResetEmail, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

func (d *Dispatcher) NotifyPasswordReset(ctx context.Context, msg models.PasswordResetEmail) error {
	task, err := NewPasswordResetTask(msg)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue password reset email: %w", err)
	}
	d.logger.Debug().Str("task_id", info.ID).Int64("user_id", msg.UserID).Msg("Password reset email enqueued")
	return nil
}
