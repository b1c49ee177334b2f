// Package queue moves transactional email delivery off the request path
// through a Redis-backed job queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/socialimageapp/authentication-api-service/internal/mail"
)

const (
	emailQueueKey = "queue:email"
	popTimeout    = 5 * time.Second

	// Provider rate cap applied to outbound deliveries.
	sendsPerSecond = 14
)

// Enqueuer schedules email jobs for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

// EmailQueue pushes jobs onto the Redis list consumed by Worker.
type EmailQueue struct {
	client redis.UniversalClient
}

var _ Enqueuer = (*EmailQueue)(nil)

func NewEmailQueue(client redis.UniversalClient) *EmailQueue {
	return &EmailQueue{client: client}
}

func (q *EmailQueue) Enqueue(ctx context.Context, msg mail.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}
	if err := q.client.LPush(ctx, emailQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue email job: %w", err)
	}
	return nil
}

// Worker drains the email queue and delivers through the configured
// sender, throttled to the provider rate cap.
type Worker struct {
	client  redis.UniversalClient
	sender  mail.Sender
	logger  *zap.Logger
	limiter *rate.Limiter
}

func NewWorker(client redis.UniversalClient, sender mail.Sender, logger *zap.Logger) *Worker {
	return &Worker{
		client:  client,
		sender:  sender,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), sendsPerSecond),
	}
}

// Run consumes jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("email worker started", zap.String("queue", emailQueueKey))
	for {
		res, err := w.client.BRPop(ctx, popTimeout, emailQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.logger.Info("email worker stopped")
				return nil
			}
			w.logger.Warn("email queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		if err := w.handleJob(ctx, []byte(res[1])); err != nil {
			w.logger.Error("email delivery failed", zap.Error(err))
		}
	}
}

func (w *Worker) handleJob(ctx context.Context, payload []byte) error {
	var msg mail.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode email job: %w", err)
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Template, msg.To, err)
	}
	w.logger.Info("email delivered",
		zap.String("to", msg.To),
		zap.String("template", string(msg.Template)),
	)
	return nil
}
