package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingSink struct{}

func (failingSink) Append(context.Context, Event) error { return errors.New("down") }

func TestPublisherFansOut(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	p := NewPublisher(a, failingSink{}, b)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Emit(context.Background(), Event{Action: ActionRateProposed, BranchID: "2"})
	require.Error(t, err)

	for _, s := range []*MemorySink{a, b} {
		events := s.Events()
		require.Len(t, events, 1)
		assert.Equal(t, fixed, events[0].Timestamp)
	}
}

func TestQueueAndWorker(t *testing.T) {
	sink := NewMemorySink()
	q := NewQueue(2)
	require.NoError(t, q.Emit(context.Background(), Event{Action: ActionRateProposed}))
	require.NoError(t, q.Emit(context.Background(), Event{Action: ActionRateApplied}))
	require.ErrorIs(t, q.Emit(context.Background(), Event{Action: ActionRateCancelled}), ErrQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(NewPublisher(sink), q, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.Events()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []Action{ActionRateProposed, ActionRateApplied}, sink.Actions())
}

// stalledSink blocks like a producer whose broker never answers.
type stalledSink struct {
	calls chan struct{}
}

func (s *stalledSink) Append(ctx context.Context, _ Event) error {
	s.calls <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestWorkerFlushIsBounded(t *testing.T) {
	sink := &stalledSink{calls: make(chan struct{}, 8)}
	q := NewQueue(4)
	for range 3 {
		require.NoError(t, q.Emit(context.Background(), Event{Action: ActionRateApplied}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewWorker(NewPublisher(sink), q, nil, WithFlushTimeout(20*time.Millisecond)).Run(ctx)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker shutdown blocked on a stalled sink")
	}
	assert.Len(t, sink.calls, 3)
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}
func (f *fakeProducer) Close() {}

func TestKafkaSink(t *testing.T) {
	fp := &fakeProducer{}
	s := &KafkaSink{client: fp, topic: "rate-audit"}
	require.NoError(t, s.Append(context.Background(), Event{Action: ActionRateApplied, BranchID: "2", Rate: "6"}))

	require.Len(t, fp.records, 1)
	rec := fp.records[0]
	assert.Equal(t, "rate-audit", rec.Topic)
	assert.Equal(t, []byte("2"), rec.Key)
	var decoded Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, ActionRateApplied, decoded.Action)

	fp.err = errors.New("broker down")
	require.Error(t, s.Append(context.Background(), Event{Action: ActionRateApplied}))
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}
func (f *fakeChannel) Close() error { return nil }

func TestAMQPSinkRoutesByAction(t *testing.T) {
	ch := &fakeChannel{}
	s := &AMQPSink{channel: ch, exchange: "branchrate.audit"}
	require.NoError(t, s.Append(context.Background(), Event{Action: ActionRateCancelled, RequestID: "req-1"}))

	assert.Equal(t, "branchrate.audit", ch.exchange)
	assert.Equal(t, "rate_cancelled", ch.key)
	assert.Equal(t, "req-1", ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	require.NoError(t, s.Close())
}
