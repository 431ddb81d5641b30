// Package queued wraps a transport with a bounded in-memory queue so Send
// returns without waiting for the network. Flush blocks until everything
// accepted so far has been handed to the wrapped transport.
package queued

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
)

// DefaultSize is the queue capacity used when Options.Size is not positive.
const DefaultSize = 100

var (
	ErrQueueFull = errors.New("queued: queue is full")
	ErrClosed    = errors.New("queued: transport is closed")
)

// Options configures a Transport.
type Options struct {
	Size    int
	Workers int
	Logger  watermill.LoggerAdapter
	// OnResult receives the outcome of every delivery made by a worker.
	OnResult func(transport.Result)
}

type item struct {
	ctx context.Context
	evt *event.Event
}

// Transport is the asynchronous wrapper.
type Transport struct {
	next     transport.Transport
	logger   watermill.LoggerAdapter
	onResult func(transport.Result)
	queue    chan item

	mu      sync.Mutex
	closed  bool
	pending int
	idle    chan struct{}

	workers sync.WaitGroup
}

var (
	_ transport.Transport = (*Transport)(nil)
	_ transport.Flusher   = (*Transport)(nil)
)

// New starts the workers and returns the wrapper.
func New(next transport.Transport, opts Options) *Transport {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = watermill.NopLogger{}
	}

	idle := make(chan struct{})
	close(idle)

	t := &Transport{
		next:     next,
		logger:   opts.Logger,
		onResult: opts.OnResult,
		queue:    make(chan item, opts.Size),
		idle:     idle,
	}
	t.workers.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go t.work()
	}
	return t
}

// Unwrap returns the wrapped transport.
func (t *Transport) Unwrap() transport.Transport { return t.next }

// Send enqueues evt. A success result means the event was accepted; the
// delivery outcome goes to Options.OnResult.
func (t *Transport) Send(ctx context.Context, evt *event.Event) transport.Result {
	if evt == nil {
		return transport.Invalid("", transport.ErrEventRequired)
	}
	id := evt.ID()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.Failed(id, ErrClosed)
	}
	select {
	case t.queue <- item{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		t.logger.Info("Dropping event, queue is full", watermill.LogFields{
			"event_id": id,
			"capacity": cap(t.queue),
		})
		return transport.Result{Status: transport.StatusRateLimited, EventID: id, Err: ErrQueueFull}
	}
	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
	return transport.Success(id)
}

func (t *Transport) work() {
	defer t.workers.Done()
	for it := range t.queue {
		res := t.next.Send(it.ctx, it.evt)
		if !res.OK() {
			t.logger.Error("Queued delivery failed", res.Err, watermill.LogFields{
				"event_id": res.EventID,
				"status":   string(res.Status),
			})
		}
		if t.onResult != nil {
			t.onResult(res)
		}
		t.done()
	}
}

func (t *Transport) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}

// Pending returns the number of accepted events not yet delivered.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Flush waits until the queue drains or ctx ends, then flushes the wrapped
// transport.
func (t *Transport) Flush(ctx context.Context) transport.Result {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return transport.Failed("", ctx.Err())
	}
	return transport.Flush(ctx, t.next)
}

// Close stops accepting events, drains the queue within ctx and closes the
// wrapped transport.
func (t *Transport) Close(ctx context.Context) transport.Result {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.Success("")
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		t.workers.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		return transport.Failed("", ctx.Err())
	}
	return t.next.Close(ctx)
}
