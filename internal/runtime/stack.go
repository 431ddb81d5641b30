package runtime

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sort"
	"sync"

	errspkg "github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
)

// Hint carries the capture-time inputs a stage may read alongside the event.
// Stages may replace fields before forwarding.
type Hint struct {
	Request   *http.Request
	Exception error
	// Recovered holds the raw value passed to panic, when the capture came
	// from a recover.
	Recovered any
	// Payload is merged into the event's extra data by the serialize stage.
	// Keys the event already carries win.
	Payload    map[string]any
	Stacktrace *stacktrace.Stacktrace
	Mechanism  *event.ExceptionMechanism
	// Frames is the call stack at the capture site, innermost first.
	Frames []stacktrace.RawFrame
}

// Next continues the pipeline with the next lower-priority stage, or the
// terminal handler once none remain.
type Next func(ctx context.Context, evt *event.Event, hint *Hint) (*event.Event, error)

// Stage enriches, rewrites or vetoes an event. A stage vetoes by returning
// without calling next; its return value becomes the pipeline result. A nil
// event means the capture was dropped.
type Stage func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error)

type stackEntry struct {
	name     string
	priority int
	stage    Stage
}

// Stack runs registered stages by descending priority. Stages with equal
// priority keep their registration order.
type Stack struct {
	mu        sync.Mutex
	entries   []stackEntry
	handler   Next
	executing int
}

// NewStack returns a stack whose terminal handler is handler. A nil handler
// returns the event unchanged.
func NewStack(handler Next) *Stack {
	if handler == nil {
		handler = func(_ context.Context, evt *event.Event, _ *Hint) (*event.Event, error) {
			return evt, nil
		}
	}
	return &Stack{handler: handler}
}

// Add registers stage under name. It reports false when a stage with the same
// name is already registered.
func (s *Stack) Add(name string, priority int, stage Stage) (bool, error) {
	if name == "" {
		return false, errspkg.ErrStageNameRequired
	}
	if stage == nil {
		return false, errspkg.ErrStageRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.executing > 0 {
		return false, errspkg.ErrStackExecuting
	}
	if s.indexLocked(name) >= 0 {
		return false, nil
	}
	s.entries = append(s.entries, stackEntry{name: name, priority: priority, stage: stage})
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].priority > s.entries[j].priority
	})
	return true, nil
}

// Remove unregisters the named stage. It reports false when nothing matched.
func (s *Stack) Remove(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.executing > 0 {
		return false, errspkg.ErrStackExecuting
	}
	idx := s.indexLocked(name)
	if idx < 0 {
		return false, nil
	}
	s.entries = slices.Delete(s.entries, idx, idx+1)
	return true, nil
}

func (s *Stack) indexLocked(name string) int {
	return slices.IndexFunc(s.entries, func(e stackEntry) bool { return e.name == name })
}

// Names lists the registered stages in execution order.
func (s *Stack) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Executing reports whether a pass is in flight.
func (s *Stack) Executing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executing > 0
}

// Execute runs one pass over a snapshot of the registered stages. Stage
// errors are wrapped in *errors.StageError. A stage that returns or forwards
// an event not built by an event constructor fails with
// ErrInvalidStageResult.
func (s *Stack) Execute(ctx context.Context, evt *event.Event, hint *Hint) (*event.Event, error) {
	if evt == nil {
		return nil, errspkg.ErrEventRequired
	}
	if !evt.Valid() {
		return nil, errspkg.ErrInvalidStageResult
	}
	if hint == nil {
		hint = &Hint{}
	}

	s.mu.Lock()
	snapshot := slices.Clone(s.entries)
	handler := s.handler
	s.executing++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.executing--
		s.mu.Unlock()
	}()

	return chain(snapshot, handler, 0)(ctx, evt, hint)
}

// HandlerStageName attributes errors raised by the terminal handler.
const HandlerStageName = "handler"

// chain builds the Next that runs entries[i:] and then handler.
func chain(entries []stackEntry, handler Next, i int) Next {
	if i >= len(entries) {
		return func(ctx context.Context, evt *event.Event, hint *Hint) (*event.Event, error) {
			result, err := handler(ctx, evt, hint)
			if err != nil {
				return nil, stageError(HandlerStageName, err)
			}
			if result != nil && !result.Valid() {
				return nil, stageError(HandlerStageName, errspkg.ErrInvalidStageResult)
			}
			return result, nil
		}
	}
	entry := entries[i]
	return func(ctx context.Context, evt *event.Event, hint *Hint) (*event.Event, error) {
		called := false
		downstream := chain(entries, handler, i+1)
		next := func(ctx context.Context, forwarded *event.Event, hint *Hint) (*event.Event, error) {
			if called {
				return nil, stageError(entry.name, errspkg.ErrNextCalledTwice)
			}
			called = true
			if !forwarded.Valid() {
				return nil, stageError(entry.name, errspkg.ErrInvalidStageResult)
			}
			if hint == nil {
				hint = &Hint{}
			}
			return downstream(ctx, forwarded, hint)
		}

		result, err := entry.stage(ctx, evt, hint, next)
		if err != nil {
			return nil, stageError(entry.name, err)
		}
		if result != nil && !result.Valid() {
			return nil, stageError(entry.name, errspkg.ErrInvalidStageResult)
		}
		return result, nil
	}
}

// stageError attributes err to stage unless a downstream stage already
// claimed it.
func stageError(stage string, err error) error {
	var se *errspkg.StageError
	if errors.As(err, &se) {
		return err
	}
	return &errspkg.StageError{Stage: stage, Err: err}
}
