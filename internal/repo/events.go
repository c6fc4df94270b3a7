package repo

import (
	"context"

	"github.com/noah-isme/toko-pos/internal/events"
)

// Events stores domain events.
type Events struct {
	DB DBTX
}

// InsertEvent implements events.EventStore.
func (e Events) InsertEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	_, err := e.DB.Exec(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	if err != nil {
		return events.Event{}, err
	}
	return ev, nil
}
