package messaging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkline/identity-api/pkg/jobs"
)

// Event types emitted by the authentication flows.
const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
)

// Event is a domain occurrence other parts of the system may react to.
type Event struct {
	Type    string                 `json:"event_type"`
	Payload map[string]interface{} `json:"payload"`
}

// EventPublisher dispatches domain events, fire-and-forget. Delivery is
// at-least-once; consumers must tolerate duplicates.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// QueuePublisher pushes events onto an in-process worker queue which retries
// failed handler invocations.
type QueuePublisher struct {
	queue *jobs.Queue
}

// EventHandler consumes dispatched events.
type EventHandler func(ctx context.Context, event Event) error

// NewQueuePublisher wires a publisher to a queue running the given handler.
func NewQueuePublisher(handler EventHandler, cfg jobs.QueueConfig) *QueuePublisher {
	queue := jobs.NewQueue("domain-events", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			return nil
		}
		return handler(ctx, event)
	}, cfg)

	return &QueuePublisher{queue: queue}
}

// Start begins event consumption.
func (p *QueuePublisher) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop drains the workers.
func (p *QueuePublisher) Stop() {
	p.queue.Stop()
}

// Publish enqueues an event for async processing.
func (p *QueuePublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	return p.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    eventType,
		Payload: Event{Type: eventType, Payload: payload},
	})
}

// LogHandler returns an EventHandler that records events. It stands in for a
// real broker integration at process wiring time.
func LogHandler(logger *zap.Logger) EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event Event) error {
		logger.Info("domain_event",
			zap.String("event_type", event.Type),
			zap.Any("payload", event.Payload),
		)
		return nil
	}
}
