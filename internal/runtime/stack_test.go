package runtime

import (
	"context"
	"errors"
	"reflect"
	"testing"

	errspkg "github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/event"
)

type callLog struct {
	calls []string
}

func (l *callLog) stage(name string) Stage {
	return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
		l.calls = append(l.calls, name)
		return next(ctx, evt, hint)
	}
}

func (l *callLog) terminal() Next {
	return func(_ context.Context, evt *event.Event, _ *Hint) (*event.Event, error) {
		l.calls = append(l.calls, "terminal")
		return evt, nil
	}
}

func mustAdd(t *testing.T, s *Stack, name string, priority int, stage Stage) {
	t.Helper()
	added, err := s.Add(name, priority, stage)
	if err != nil || !added {
		t.Fatalf("add %s: added=%v err=%v", name, added, err)
	}
}

func TestStackOrderingIsPriorityDescendingAndStable(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	s := NewStack(log.terminal())
	mustAdd(t, s, "A", -10, log.stage("A"))
	mustAdd(t, s, "B", 0, log.stage("B"))
	mustAdd(t, s, "C", -10, log.stage("C"))

	evt := event.New()
	got, err := s.Execute(context.Background(), evt, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != evt {
		t.Fatal("expected terminal result to propagate")
	}
	want := []string{"B", "A", "C", "terminal"}
	if !reflect.DeepEqual(log.calls, want) {
		t.Fatalf("expected %v, got %v", want, log.calls)
	}
	if !reflect.DeepEqual(s.Names(), []string{"B", "A", "C"}) {
		t.Fatalf("unexpected names %v", s.Names())
	}

	log.calls = nil
	if _, err := s.Execute(context.Background(), event.New(), nil); err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if !reflect.DeepEqual(log.calls, want) {
		t.Fatalf("expected identical replay %v, got %v", want, log.calls)
	}
}

func TestStackVetoShortCircuits(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	s := NewStack(log.terminal())
	mustAdd(t, s, "first", 10, log.stage("first"))
	mustAdd(t, s, "veto", 5, func(context.Context, *event.Event, *Hint, Next) (*event.Event, error) {
		log.calls = append(log.calls, "veto")
		return nil, nil
	})
	mustAdd(t, s, "after", 0, log.stage("after"))

	got, err := s.Execute(context.Background(), event.New(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != nil {
		t.Fatalf("expected vetoed result, got %v", got)
	}
	if !reflect.DeepEqual(log.calls, []string{"first", "veto"}) {
		t.Fatalf("lower stages must not run, got %v", log.calls)
	}
}

func TestStackStageReplacesEvent(t *testing.T) {
	t.Parallel()

	replacement := event.New()
	s := NewStack(nil)
	mustAdd(t, s, "swap", 0, func(ctx context.Context, _ *event.Event, hint *Hint, next Next) (*event.Event, error) {
		return next(ctx, replacement, hint)
	})
	got, err := s.Execute(context.Background(), event.New(), nil)
	if err != nil || got != replacement {
		t.Fatalf("expected replacement event, got %v err=%v", got, err)
	}
}

func TestStackDedupesByName(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	s := NewStack(log.terminal())
	mustAdd(t, s, "once", 0, log.stage("once"))
	added, err := s.Add("once", 100, log.stage("once-again"))
	if err != nil || added {
		t.Fatalf("expected duplicate to be ignored, added=%v err=%v", added, err)
	}
	if _, err := s.Execute(context.Background(), event.New(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !reflect.DeepEqual(log.calls, []string{"once", "terminal"}) {
		t.Fatalf("expected single invocation, got %v", log.calls)
	}
}

func TestStackRemove(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	s := NewStack(log.terminal())
	mustAdd(t, s, "a", 0, log.stage("a"))

	removed, err := s.Remove("missing")
	if err != nil || removed {
		t.Fatalf("expected not found, removed=%v err=%v", removed, err)
	}
	removed, err = s.Remove("a")
	if err != nil || !removed {
		t.Fatalf("expected removal, removed=%v err=%v", removed, err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty stack, got %d", s.Len())
	}
}

func TestStackRejectsRegistrationWhileExecuting(t *testing.T) {
	t.Parallel()

	s := NewStack(nil)
	var addErr, removeErr error
	mustAdd(t, s, "reentrant", 0, func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
		if !s.Executing() {
			t.Error("expected stack to report executing")
		}
		_, addErr = s.Add("late", 1, func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
			return next(ctx, evt, hint)
		})
		_, removeErr = s.Remove("reentrant")
		return next(ctx, evt, hint)
	})

	if _, err := s.Execute(context.Background(), event.New(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !errors.Is(addErr, errspkg.ErrStackExecuting) || !errors.Is(removeErr, errspkg.ErrStackExecuting) {
		t.Fatalf("expected ErrStackExecuting, got add=%v remove=%v", addErr, removeErr)
	}
	if s.Executing() {
		t.Fatal("expected executing flag to reset")
	}
	if added, err := s.Add("late", 1, func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
		return next(ctx, evt, hint)
	}); err != nil || !added {
		t.Fatalf("expected registration after execution to succeed, added=%v err=%v", added, err)
	}
}

func TestStackInvalidResultFailsLoudly(t *testing.T) {
	t.Parallel()

	s := NewStack(nil)
	mustAdd(t, s, "broken", 0, func(context.Context, *event.Event, *Hint, Next) (*event.Event, error) {
		return &event.Event{}, nil
	})
	_, err := s.Execute(context.Background(), event.New(), nil)
	if !errors.Is(err, errspkg.ErrInvalidStageResult) {
		t.Fatalf("expected ErrInvalidStageResult, got %v", err)
	}
	var se *errspkg.StageError
	if !errors.As(err, &se) || se.Stage != "broken" {
		t.Fatalf("expected stage attribution, got %v", err)
	}
}

func TestStackInvalidForwardFailsLoudly(t *testing.T) {
	t.Parallel()

	s := NewStack(nil)
	mustAdd(t, s, "forward-nil", 0, func(ctx context.Context, _ *event.Event, hint *Hint, next Next) (*event.Event, error) {
		return next(ctx, nil, hint)
	})
	if _, err := s.Execute(context.Background(), event.New(), nil); !errors.Is(err, errspkg.ErrInvalidStageResult) {
		t.Fatalf("expected ErrInvalidStageResult, got %v", err)
	}
}

func TestStackNextCalledTwice(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	s := NewStack(log.terminal())
	mustAdd(t, s, "double", 0, func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
		if _, err := next(ctx, evt, hint); err != nil {
			return nil, err
		}
		return next(ctx, evt, hint)
	})
	_, err := s.Execute(context.Background(), event.New(), nil)
	if !errors.Is(err, errspkg.ErrNextCalledTwice) {
		t.Fatalf("expected ErrNextCalledTwice, got %v", err)
	}
	if len(log.calls) != 1 {
		t.Fatalf("expected terminal to run once, got %v", log.calls)
	}
}

func TestStackStageErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	log := &callLog{}
	s := NewStack(log.terminal())
	mustAdd(t, s, "outer", 10, log.stage("outer"))
	mustAdd(t, s, "failing", 0, func(context.Context, *event.Event, *Hint, Next) (*event.Event, error) {
		return nil, boom
	})

	_, err := s.Execute(context.Background(), event.New(), nil)
	var se *errspkg.StageError
	if !errors.As(err, &se) || se.Stage != "failing" || !errors.Is(err, boom) {
		t.Fatalf("expected failing stage error, got %v", err)
	}
	if !reflect.DeepEqual(log.calls, []string{"outer"}) {
		t.Fatalf("terminal must not run after a failure, got %v", log.calls)
	}

	// bookkeeping survives the failure
	if _, err := s.Remove("failing"); err != nil {
		t.Fatalf("remove after failure: %v", err)
	}
	log.calls = nil
	if _, err := s.Execute(context.Background(), event.New(), nil); err != nil {
		t.Fatalf("execute after removal: %v", err)
	}
	if !reflect.DeepEqual(log.calls, []string{"outer", "terminal"}) {
		t.Fatalf("unexpected calls %v", log.calls)
	}
}

func TestStackHandlerErrorsAreAttributed(t *testing.T) {
	t.Parallel()

	s := NewStack(func(context.Context, *event.Event, *Hint) (*event.Event, error) {
		return nil, errspkg.ErrClientClosed
	})
	_, err := s.Execute(context.Background(), event.New(), nil)
	var se *errspkg.StageError
	if !errors.As(err, &se) || se.Stage != HandlerStageName || !errors.Is(err, errspkg.ErrClientClosed) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStackValidation(t *testing.T) {
	t.Parallel()

	s := NewStack(nil)
	if _, err := s.Add("", 0, func(ctx context.Context, e *event.Event, h *Hint, n Next) (*event.Event, error) { return n(ctx, e, h) }); !errors.Is(err, errspkg.ErrStageNameRequired) {
		t.Fatalf("expected ErrStageNameRequired, got %v", err)
	}
	if _, err := s.Add("nil", 0, nil); !errors.Is(err, errspkg.ErrStageRequired) {
		t.Fatalf("expected ErrStageRequired, got %v", err)
	}
	if _, err := s.Execute(context.Background(), nil, nil); !errors.Is(err, errspkg.ErrEventRequired) {
		t.Fatalf("expected ErrEventRequired, got %v", err)
	}
	if _, err := s.Execute(context.Background(), &event.Event{}, nil); !errors.Is(err, errspkg.ErrInvalidStageResult) {
		t.Fatalf("expected ErrInvalidStageResult, got %v", err)
	}
}
