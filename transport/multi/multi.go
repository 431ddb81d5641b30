// Package multi fans every event out to several transports concurrently.
package multi

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
)

// Transport sends to every member and reports the worst outcome.
type Transport struct {
	members []transport.Transport
}

var (
	_ transport.Transport = (*Transport)(nil)
	_ transport.Flusher   = (*Transport)(nil)
)

// New returns a fan-out transport. Nil members are ignored.
func New(members ...transport.Transport) *Transport {
	kept := make([]transport.Transport, 0, len(members))
	for _, m := range members {
		if m != nil {
			kept = append(kept, m)
		}
	}
	return &Transport{members: kept}
}

// Members returns the wrapped transports.
func (t *Transport) Members() []transport.Transport {
	return append([]transport.Transport(nil), t.members...)
}

func (t *Transport) Send(ctx context.Context, evt *event.Event) transport.Result {
	id := ""
	if evt != nil {
		id = evt.ID()
	}
	return t.each(ctx, id, func(ctx context.Context, m transport.Transport) transport.Result {
		return m.Send(ctx, evt)
	})
}

func (t *Transport) Flush(ctx context.Context) transport.Result {
	return t.each(ctx, "", transport.Flush)
}

func (t *Transport) Close(ctx context.Context) transport.Result {
	return t.each(ctx, "", func(ctx context.Context, m transport.Transport) transport.Result {
		return m.Close(ctx)
	})
}

func (t *Transport) each(ctx context.Context, id string, call func(context.Context, transport.Transport) transport.Result) transport.Result {
	if len(t.members) == 0 {
		return transport.Skipped(id)
	}
	results := make([]transport.Result, len(t.members))
	var g errgroup.Group
	for i, m := range t.members {
		g.Go(func() error {
			results[i] = call(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return combine(id, results)
}

// combine keeps success when any member succeeded, so a single healthy
// backend is enough for the event to count as delivered. Errors from the
// other members are joined into Err.
func combine(id string, results []transport.Result) transport.Result {
	var (
		errs      []error
		succeeded bool
		skipped   = true
		worst     = transport.StatusUnknown
	)
	for _, r := range results {
		switch r.Status {
		case transport.StatusSuccess:
			succeeded = true
			skipped = false
		case transport.StatusSkipped:
		default:
			skipped = false
			worst = r.Status
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	switch {
	case skipped:
		return transport.Skipped(id)
	case succeeded:
		return transport.Result{Status: transport.StatusSuccess, EventID: id, Err: errors.Join(errs...)}
	}
	return transport.Result{Status: worst, EventID: id, Err: errors.Join(errs...)}
}
