package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Receipts handles event tasks in the worker. Completed orders produce a
// receipt log line; other topics are recorded for audit.
type Receipts struct {
	Log    zerolog.Logger
	Issued func(channel string)
}

// ProcessTask implements asynq.Handler.
func (r Receipts) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	switch ev.Topic {
	case events.TopicOrderCreated, events.TopicSaleCompleted:
		var rc order.Receipt
		if err := json.Unmarshal(ev.Payload, &rc); err != nil {
			return fmt.Errorf("decode receipt: %v: %w", err, asynq.SkipRetry)
		}
		r.Log.Info().
			Str("event_id", ev.ID).
			Str("order_id", rc.OrderID).
			Str("order_number", rc.OrderNumber).
			Str("channel", rc.Channel).
			Str("grand_total", pricing.Format(rc.Currency, rc.GrandTotal.Round(2))).
			Str("change", pricing.Format(rc.Currency, rc.Change.Round(2))).
			Msg("receipt issued")
		if r.Issued != nil {
			r.Issued(rc.Channel)
		}
	default:
		r.Log.Info().
			Str("event_id", ev.ID).
			Str("topic", ev.Topic).
			Str("aggregate_id", ev.AggregateID).
			Msg("event processed")
	}
	return nil
}

// NewServeMux routes every event task to h.
func NewServeMux(h asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TaskPrefix, h)
	return mux
}
