package runtime

import (
	"context"
	"time"

	errspkg "github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/event"
	loggingpkg "github.com/drblury/faultline/internal/runtime/logging"
)

// MiddlewareBuilder constructs a stage using the provided client instance.
// Returning a nil stage leaves the middleware disabled.
type MiddlewareBuilder func(*Client) (Stage, error)

// MiddlewareRegistration captures how a stage is registered on a client
// stack. Stage wins over Builder when both are set.
type MiddlewareRegistration struct {
	Name     string
	Priority int
	Stage    Stage
	Builder  MiddlewareBuilder
}

// Priorities of the built-in stages. Higher runs first.
const (
	PriorityMetrics     = 2000
	PrioritySampling    = 1000
	PriorityScope       = 300
	PriorityMessage     = 250
	PriorityException   = 200
	PriorityRequest     = 150
	PriorityUser        = 140
	PriorityBreadcrumbs = 100
	PriorityEnvironment = 90
	PriorityModules     = 80
	PriorityTracing     = 70
	PriorityStacktrace  = 60
	PrioritySerialize   = -900
	PrioritySanitize    = -1000
)

// DefaultMiddlewares returns the standard stage chain used by NewClient.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		MetricsMiddleware(),
		SamplingMiddleware(),
		ScopeMiddleware(),
		MessageMiddleware(),
		ExceptionMiddleware(),
		RequestMiddleware(),
		UserMiddleware(),
		BreadcrumbMiddleware(),
		EnvironmentMiddleware(),
		ModulesMiddleware(),
		TracingMiddleware(),
		StacktraceMiddleware(),
		SerializeMiddleware(),
		SanitizeMiddleware(nil),
	}
}

// MetricsMiddleware times the rest of the pipeline, delivery included. It is
// disabled unless metrics are enabled in the configuration.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "metrics",
		Priority: PriorityMetrics,
		Builder: func(c *Client) (Stage, error) {
			if !c.Conf.MetricsEnabled {
				return nil, nil
			}
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				start := c.clock.Now()
				typ := evt.Type()
				result, err := next(ctx, evt, hint)
				c.metrics.ObservePipeline(typ, c.clock.Now().Sub(start))
				return result, err
			}, nil
		},
	}
}

// RegisterMiddleware adds the supplied stage to the client stack.
func (c *Client) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if cfg.Name == "" {
		return errspkg.ErrStageNameRequired
	}

	stage := cfg.Stage
	switch {
	case stage != nil:
	case cfg.Builder != nil:
		var err error
		stage, err = cfg.Builder(c)
		if err != nil {
			return err
		}
	default:
		return errspkg.ErrStageRequired
	}

	if stage == nil {
		c.Logger.Debug("Middleware disabled", loggingpkg.LogFields{"middleware": cfg.Name})
		return nil
	}

	added, err := c.stack.Add(cfg.Name, cfg.Priority, stage)
	if err != nil {
		return err
	}
	if !added {
		c.Logger.Debug("Middleware already registered", loggingpkg.LogFields{"middleware": cfg.Name})
		return nil
	}
	c.Logger.Debug("Registered middleware", loggingpkg.LogFields{
		"middleware": cfg.Name,
		"priority":   cfg.Priority,
	})
	return nil
}

// AddMiddleware registers a stage after construction. It fails with
// ErrStackExecuting when called from inside a running stage.
func (c *Client) AddMiddleware(cfg MiddlewareRegistration) error {
	return c.RegisterMiddleware(cfg)
}

// RemoveMiddleware unregisters the named stage and reports whether it was
// present.
func (c *Client) RemoveMiddleware(name string) (bool, error) {
	removed, err := c.stack.Remove(name)
	if removed {
		c.Logger.Debug("Removed middleware", loggingpkg.LogFields{"middleware": name})
	}
	return removed, err
}

// Middlewares lists the registered stage names in execution order.
func (c *Client) Middlewares() []string {
	return c.stack.Names()
}

// durationMillis keeps log fields readable.
func durationMillis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
