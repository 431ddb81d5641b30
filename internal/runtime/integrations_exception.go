package runtime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/drblury/faultline/internal/runtime/event"
	loggingpkg "github.com/drblury/faultline/internal/runtime/logging"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
)

// maxErrorChain bounds chain walking so self-wrapping errors terminate.
const maxErrorChain = 32

const (
	MechanismGeneric = "generic"
	MechanismPanic   = "panic"
	MechanismChained = "chained"
)

// stackTracer is implemented by errors created with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// ExceptionMiddleware converts the hinted error chain into exception data
// bags, deepest cause first. Events whose chain contains an ignored error
// type are dropped.
func ExceptionMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "exception",
		Priority: PriorityException,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if hint.Exception == nil {
					return next(ctx, evt, hint)
				}
				chain := ErrorChain(hint.Exception)
				if name, ok := c.ignoredError(chain); ok {
					markDropped(ctx, DropIgnored, "exception")
					c.Logger.Debug("Ignoring error", loggingpkg.LogFields{
						"event_id":   evt.ID(),
						"error_type": name,
					})
					return nil, nil
				}
				if len(evt.Exceptions) == 0 {
					evt.Exceptions = c.exceptionBags(chain, hint)
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

// ErrorChain flattens err and everything it wraps, outermost first. Joined
// errors are walked depth first.
func ErrorChain(err error) []error {
	var out []error
	var walk func(error)
	walk = func(e error) {
		for e != nil && len(out) < maxErrorChain {
			out = append(out, e)
			switch x := e.(type) {
			case interface{ Unwrap() []error }:
				for _, inner := range x.Unwrap() {
					walk(inner)
				}
				return
			case interface{ Unwrap() error }:
				e = x.Unwrap()
			default:
				return
			}
		}
	}
	walk(err)
	return out
}

// ErrorTypeName names the dynamic type of err, for example "*fs.PathError".
func ErrorTypeName(err error) string {
	return fmt.Sprintf("%T", err)
}

func errorModule(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.PkgPath()
}

// ErrorMatcher reports whether an error of a captured chain is ignored.
type ErrorMatcher func(error) bool

// MatchErrorType matches errors whose dynamic type is T. When T is an
// interface, every error implementing it matches.
func MatchErrorType[T any]() ErrorMatcher {
	return func(err error) bool {
		_, ok := err.(T)
		return ok
	}
}

// MatchError matches target and errors that report being target through an
// Is method.
func MatchError(target error) ErrorMatcher {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// ignoredError reports the first error of chain whose type matches the
// ignore list or one of the configured matchers. Type name patterns match
// with or without the pointer star.
func (c *Client) ignoredError(chain []error) (string, bool) {
	if len(c.Conf.IgnoreErrors) == 0 && len(c.ignoreMatchers) == 0 {
		return "", false
	}
	for _, err := range chain {
		name := ErrorTypeName(err)
		for _, pattern := range c.Conf.IgnoreErrors {
			if matchesTypeName(name, pattern) {
				return name, true
			}
		}
		for _, match := range c.ignoreMatchers {
			if match(err) {
				return name, true
			}
		}
	}
	return "", false
}

func matchesTypeName(name, pattern string) bool {
	return name == pattern || strings.TrimPrefix(name, "*") == strings.TrimPrefix(pattern, "*")
}

func (c *Client) exceptionBags(chain []error, hint *Hint) []event.ExceptionDataBag {
	mechanism := hint.Mechanism
	if mechanism == nil {
		mechanism = &event.ExceptionMechanism{Type: MechanismGeneric, Handled: true}
	}

	bags := make([]event.ExceptionDataBag, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		err := chain[i]
		bag := event.ExceptionDataBag{
			Type:   ErrorTypeName(err),
			Value:  c.serializer.SerializeString(err.Error()),
			Module: errorModule(err),
		}
		if i == 0 {
			bag.Mechanism = mechanism
			bag.Stacktrace = c.errorStacktrace(err, hint)
		} else {
			bag.Mechanism = &event.ExceptionMechanism{Type: MechanismChained, Handled: mechanism.Handled}
			if st, ok := err.(stackTracer); ok {
				bag.Stacktrace = c.builder.BuildFrames(pkgFrames(st))
			}
		}
		bags = append(bags, bag)
	}
	return bags
}

// errorStacktrace prefers an explicit hint, then a stack recorded by the
// error itself, then the capture site.
func (c *Client) errorStacktrace(err error, hint *Hint) *stacktrace.Stacktrace {
	if hint.Stacktrace != nil {
		return hint.Stacktrace
	}
	if st, ok := err.(stackTracer); ok {
		if trace := c.builder.BuildFrames(pkgFrames(st)); trace != nil {
			return trace
		}
	}
	return c.builder.BuildFrames(hint.Frames)
}

func pkgFrames(st stackTracer) []stacktrace.RawFrame {
	trace := st.StackTrace()
	pcs := make([]uintptr, len(trace))
	for i, f := range trace {
		pcs[i] = uintptr(f)
	}
	return stacktrace.FromCallers(pcs)
}
