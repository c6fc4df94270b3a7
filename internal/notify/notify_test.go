package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/notify"
	"github.com/noah-isme/toko-pos/internal/resilience"
)

type stubClient struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "x"}, nil
}

func TestEnqueuerPublishesEventTask(t *testing.T) {
	client := &stubClient{}
	e := notify.Enqueuer{Client: client, Queue: "events", MaxRetry: 3}
	ev := events.Event{ID: "e1", Topic: events.TopicSaleCompleted, AggregateID: "o1", Payload: json.RawMessage(`{}`)}
	require.NoError(t, e.Notify(context.Background(), ev))
	require.Len(t, client.tasks, 1)
	require.Equal(t, "event:sale.completed", client.tasks[0].Type())

	var decoded events.Event
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &decoded))
	require.Equal(t, "o1", decoded.AggregateID)
}

func TestEnqueuerTreatsDuplicateAsDelivered(t *testing.T) {
	e := notify.Enqueuer{Client: &stubClient{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, e.Notify(context.Background(), events.Event{ID: "e1", Topic: "t"}))

	boom := errors.New("redis down")
	e = notify.Enqueuer{Client: &stubClient{err: boom}}
	require.ErrorIs(t, e.Notify(context.Background(), events.Event{ID: "e1", Topic: "t"}), boom)
}

func TestEnqueuerStopsWhileBreakerOpen(t *testing.T) {
	boom := errors.New("redis down")
	client := &stubClient{err: boom}
	e := notify.Enqueuer{Client: client, Breaker: resilience.NewBreaker(2, 0.5, time.Hour)}
	ctx := context.Background()
	ev := events.Event{ID: "e1", Topic: events.TopicOrderCreated}

	require.ErrorIs(t, e.Notify(ctx, ev), boom)
	require.ErrorIs(t, e.Notify(ctx, ev), boom)
	require.Equal(t, resilience.Open, e.Breaker.State())

	client.err = nil
	require.ErrorIs(t, e.Notify(ctx, ev), resilience.ErrOpenCircuit)
	require.Empty(t, client.tasks)
}

func TestReceiptsProcessTask(t *testing.T) {
	var buf bytes.Buffer
	var issued []string
	r := notify.Receipts{Log: zerolog.New(&buf), Issued: func(ch string) { issued = append(issued, ch) }}

	ev := events.Event{
		ID:          "e1",
		Topic:       events.TopicSaleCompleted,
		AggregateID: "o1",
		Payload:     json.RawMessage(`{"orderId":"o1","orderNumber":"ORD-20250101-000007","channel":"pos","grandTotal":99.995,"paid":100,"change":0.005,"currency":"$"}`),
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, r.ProcessTask(context.Background(), asynq.NewTask(notify.TaskType(ev.Topic), data)))
	require.Contains(t, buf.String(), `"order_number":"ORD-20250101-000007"`)
	require.Contains(t, buf.String(), `"grand_total":"$100.00"`)
	require.Equal(t, []string{"pos"}, issued)

	err = r.ProcessTask(context.Background(), asynq.NewTask("event:x", []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
