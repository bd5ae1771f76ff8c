package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultFlushTimeout bounds the shutdown flush of buffered events.
const DefaultFlushTimeout = 5 * time.Second

// ErrQueueFull is returned by Queue.Emit when the buffer is saturated.
var ErrQueueFull = errors.New("audit queue full")

// Queue decouples emitters from slow sinks. Emit never blocks.
type Queue struct {
	ch chan Event
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan Event, size)}
}

func (q *Queue) Emit(_ context.Context, e Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Worker drains a Queue into a Publisher until its context ends, then
// flushes whatever is still buffered within the flush timeout.
type Worker struct {
	publisher    *Publisher
	inbox        <-chan Event
	logger       *slog.Logger
	flushTimeout time.Duration
}

type WorkerOption func(*Worker)

// WithFlushTimeout bounds the shutdown flush. Non-positive values keep the
// default.
func WithFlushTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.flushTimeout = d
		}
	}
}

func NewWorker(publisher *Publisher, q *Queue, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Worker{publisher: publisher, inbox: q.ch, logger: logger, flushTimeout: DefaultFlushTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil
		case event := <-w.inbox:
			w.publish(ctx, event)
		}
	}
}

func (w *Worker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), w.flushTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.publish(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) publish(ctx context.Context, event Event) {
	if err := w.publisher.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit publish failed",
			"action", string(event.Action),
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
