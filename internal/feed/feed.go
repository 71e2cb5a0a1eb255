package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smallnest/chanx"

	"github.com/xtrntr/cadran/internal/models"
)

// Sink consumes lot events in publication order
type Sink interface {
	HandleLotEvent(ctx context.Context, ev models.LotEvent) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, ev models.LotEvent) error

func (f SinkFunc) HandleLotEvent(ctx context.Context, ev models.LotEvent) error {
	return f(ctx, ev)
}

type queue = chanx.UnboundedChan[models.LotEvent]

// Feed fans lot events out to subscribers. Every subscriber gets its own
// unbounded queue so Publish never waits on a slow consumer.
type Feed struct {
	mu     sync.RWMutex
	subs   map[*queue]context.CancelFunc
	closed bool

	sinks  sync.WaitGroup
	logger *slog.Logger
}

// New creates an open feed
func New(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		subs:   make(map[*queue]context.CancelFunc),
		logger: logger.With(slog.String("caller", "Feed")),
	}
}

// Publish enqueues ev for every subscriber. Events published after Close are dropped.
func (f *Feed) Publish(ev models.LotEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for q := range f.subs {
		q.In <- ev
	}
}

// Subscribe returns a stream of every event published from now on and a
// function that ends the subscription. Ending a subscription discards its
// backlog; closing the feed lets the backlog drain before the stream closes.
func (f *Feed) Subscribe() (<-chan models.LotEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	q := chanx.NewUnboundedChan[models.LotEvent](ctx, 64)
	if f.closed {
		close(q.In)
		return q.Out, cancel
	}
	f.subs[q] = cancel

	var once sync.Once
	return q.Out, func() {
		once.Do(func() { f.remove(q) })
	}
}

// Attach runs sink on its own subscription until the feed closes or ctx is done.
func (f *Feed) Attach(ctx context.Context, name string, sink Sink) {
	events, cancel := f.Subscribe()
	logger := f.logger.With(slog.String("sink", name))

	f.sinks.Add(1)
	go func() {
		defer f.sinks.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := sink.HandleLotEvent(ctx, ev); err != nil {
					logger.Error("sink failed",
						slog.String("lot", ev.Lot.ID),
						slog.String("kind", string(ev.Kind)),
						slog.Int64("version", ev.Version),
						slog.Any("error", err))
				}
			}
		}
	}()
}

// Close ends every subscription and waits for attached sinks to drain their backlog
func (f *Feed) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		for q := range f.subs {
			close(q.In)
		}
	}
	f.mu.Unlock()
	f.sinks.Wait()
}

func (f *Feed) remove(q *queue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cancel, ok := f.subs[q]
	if !ok {
		return
	}
	delete(f.subs, q)
	if !f.closed {
		close(q.In)
	}
	cancel()
}
