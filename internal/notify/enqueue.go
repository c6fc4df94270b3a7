package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/resilience"
)

// TaskPrefix prefixes every event task type.
const TaskPrefix = "event:"

// TaskType returns the asynq task type for an event topic.
func TaskType(topic string) string {
	return TaskPrefix + topic
}

// TaskClient is the subset of *asynq.Client used to enqueue tasks.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer fans emitted events out to the worker queue. The event id doubles
// as the task id so a re-emitted event is enqueued once. A non-nil Breaker
// stops enqueue attempts while the queue is failing; the event row is kept
// either way.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Breaker  *resilience.Breaker
}

// Notify implements events.Notifier.
func (e Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if e.Client == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	task := asynq.NewTask(TaskType(ev.Topic), data)
	err = e.Breaker.Do(ctx, func(ctx context.Context) error {
		_, err := e.Client.EnqueueContext(ctx, task, opts...)
		return err
	}, func(err error) bool { return !duplicate(err) })
	if duplicate(err) {
		return nil
	}
	return err
}

func duplicate(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
