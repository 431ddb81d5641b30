package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/clock"
	configpkg "github.com/drblury/faultline/internal/runtime/config"
	errspkg "github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/event"
	loggingpkg "github.com/drblury/faultline/internal/runtime/logging"
	"github.com/drblury/faultline/internal/runtime/serializer"
	"github.com/drblury/faultline/internal/runtime/severity"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
	"github.com/drblury/faultline/transport"
	"github.com/drblury/faultline/transport/queued"
)

// ClientDependencies holds the optional collaborators the Client can use.
// Leave fields nil to get the defaults.
type ClientDependencies struct {
	// Transport overrides the transport built from the configuration.
	Transport transport.Transport
	// Registry resolves Config.Transport when Transport is nil.
	Registry     *transport.Registry
	Clock        clock.Clock
	SourceReader stacktrace.SourceReader
	Rand         Rand
	Hooks        Hooks
	// IgnoreErrors drops captures whose error chain matches, next to the
	// type names of Config.IgnoreErrors.
	IgnoreErrors              []ErrorMatcher
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	MetricsRegisterer         prometheus.Registerer
}

// Client captures events, runs them through the middleware stack and hands
// the survivors to a transport.
type Client struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport transport.Transport
	async     bool

	stack    *Stack
	recorder *breadcrumb.Recorder
	scope    *Scope
	hooks    Hooks
	metrics  *ClientMetrics

	clock      clock.Clock
	rand       Rand
	serializer *serializer.Serializer
	builder    *stacktrace.Builder
	sources    *stacktrace.CachedSourceReader
	resources  *resourceTracker

	ignoreMatchers []ErrorMatcher

	sdkMu sync.RWMutex
	sdk   event.SDK

	lastErrMu sync.RWMutex
	lastErr   error

	closed atomic.Bool
}

// NewClient constructs a Client for the supplied configuration. A nil
// configuration is rejected; use config.Default for sensible values.
func NewClient(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ClientDependencies) (*Client, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.LogLevel != "" {
		log = loggingpkg.WithMinLevel(log, loggingpkg.ParseLevel(conf.LogLevel))
	}

	log.Info("Creating faultline client", loggingpkg.LogFields{
		"transport": conf.Transport,
		"config":    conf,
	})

	c := &Client{
		Conf:      conf,
		Logger:    log,
		stack:     nil,
		recorder:  breadcrumb.NewRecorder(conf.MaxBreadcrumbs),
		scope:     NewScope(),
		hooks:     deps.Hooks,
		metrics:   NewClientMetrics(deps.MetricsRegisterer),
		clock:     clock.OrSystem(deps.Clock),
		rand:      deps.Rand,
		resources: newResourceTracker(),
		sdk:       event.SDK{Name: event.SDKName, Version: event.SDKVersion},

		ignoreMatchers: slices.Clone(deps.IgnoreErrors),
	}
	if c.rand == nil {
		c.rand = defaultRand()
	}
	c.stack = NewStack(c.deliver)

	if conf.MetricsEnabled {
		if err := c.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	opts := serializer.Options{
		MaxDepth:        conf.SerializeDepth,
		MaxStringLength: conf.MaxValueLength,
		DetectOrder:     conf.MBDetectOrder,
	}
	c.serializer = serializer.New(opts)
	c.builder = &stacktrace.Builder{
		ContextLines:     conf.ContextLines,
		Reader:           c.sourceReader(deps.SourceReader),
		Serializer:       serializer.NewRepresentation(opts),
		InAppInclude:     conf.InAppInclude,
		InAppExclude:     conf.InAppExclude,
		PrefixesForPaths: conf.PrefixesForPaths,
	}

	if err := c.setupTransport(ctx, deps); err != nil {
		c.closeSources()
		return nil, err
	}

	if err := c.registerConfiguredMiddlewares(deps); err != nil {
		c.transport.Close(ctx)
		c.closeSources()
		return nil, err
	}

	return c, nil
}

func (c *Client) sourceReader(reader stacktrace.SourceReader) stacktrace.SourceReader {
	if reader != nil {
		return reader
	}
	cached, err := stacktrace.NewCachedSourceReader(stacktrace.FileSourceReader{}, 0)
	if err != nil {
		c.Logger.Error("Source cache unavailable, reading files directly", err, nil)
		return stacktrace.FileSourceReader{}
	}
	c.sources = cached
	return cached
}

func (c *Client) closeSources() {
	if c.sources != nil {
		c.sources.Close()
	}
}

func (c *Client) setupTransport(ctx context.Context, deps ClientDependencies) error {
	t := deps.Transport
	if t == nil {
		registry := deps.Registry
		if registry == nil {
			registry = transport.DefaultRegistry
		}
		built, err := registry.Build(ctx, c.Conf, loggingpkg.NewWatermillAdapter(c.Logger))
		if err != nil {
			return err
		}
		t = built
	}

	if c.Conf.QueueSize > 0 {
		t = queued.New(t, queued.Options{
			Size:     c.Conf.QueueSize,
			Logger:   loggingpkg.NewWatermillAdapter(c.Logger),
			OnResult: c.handleAsyncResult,
		})
		c.async = true
	}
	c.transport = t
	return nil
}

func (c *Client) registerConfiguredMiddlewares(deps ClientDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := c.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// Scope returns the data applied to every captured event.
func (c *Client) Scope() *Scope { return c.scope }

// Metrics returns the client counters.
func (c *Client) Metrics() *ClientMetrics { return c.metrics }

// MetricsHandler exposes the client counters in the Prometheus text format.
func (c *Client) MetricsHandler() http.Handler { return c.metrics.Handler() }

// Transport returns the transport events are delivered to.
func (c *Client) Transport() transport.Transport { return c.transport }

// SetSDKIdentifier overrides the sdk.name reported with every event.
func (c *Client) SetSDKIdentifier(name string) {
	c.sdkMu.Lock()
	defer c.sdkMu.Unlock()
	c.sdk.Name = name
}

// SetSDKVersion overrides the sdk.version reported with every event.
func (c *Client) SetSDKVersion(version string) {
	c.sdkMu.Lock()
	defer c.sdkMu.Unlock()
	c.sdk.Version = version
}

// SDK returns the identity reported with events.
func (c *Client) SDK() event.SDK {
	c.sdkMu.RLock()
	defer c.sdkMu.RUnlock()
	return c.sdk
}

func (c *Client) newEvent(level severity.Severity) *event.Event {
	evt := event.New(event.WithClock(c.clock), event.WithLevel(level))
	c.stampSDK(evt)
	return evt
}

func (c *Client) stampSDK(evt *event.Event) {
	sdk := c.SDK()
	evt.SetSDKIdentifier(sdk.Name)
	evt.SetSDKVersion(sdk.Version)
}

// CaptureMessage captures a printf-style message at error level.
func (c *Client) CaptureMessage(ctx context.Context, message string, params ...any) (string, error) {
	return c.CaptureMessageWithLevel(ctx, severity.Error, message, params...)
}

// CaptureMessageWithLevel captures a printf-style message.
func (c *Client) CaptureMessageWithLevel(ctx context.Context, level severity.Severity, message string, params ...any) (string, error) {
	if !level.Valid() {
		return "", fmt.Errorf("%w: %d", errspkg.ErrInvalidSeverity, int(level))
	}
	evt := c.newEvent(level)
	evt.SetMessage(message, params...)
	return c.capture(ctx, evt, &Hint{Frames: c.captureSite()})
}

// CaptureException captures err and the chain it wraps.
func (c *Client) CaptureException(ctx context.Context, err error) (string, error) {
	if err == nil {
		return "", errspkg.ErrEventRequired
	}
	return c.capture(ctx, c.newEvent(severity.Error), &Hint{Exception: err, Frames: c.captureSite()})
}

// CaptureEvent sends a prepared event through the pipeline. hint may be nil.
// Events still carrying the default SDK identity get the client's.
func (c *Client) CaptureEvent(ctx context.Context, evt *event.Event, hint *Hint) (string, error) {
	if evt == nil {
		return "", errspkg.ErrEventRequired
	}
	if hint == nil {
		hint = &Hint{}
	}
	if evt.SDK.Name == event.SDKName && evt.SDK.Version == event.SDKVersion {
		c.stampSDK(evt)
	}
	if hint.Frames == nil && (hint.Exception != nil || c.Conf.AttachStacktrace) {
		hint.Frames = c.captureSite()
	}
	return c.capture(ctx, evt, hint)
}

// CapturePanic captures a value obtained from recover as an unhandled fatal
// error. A nil value captures nothing.
func (c *Client) CapturePanic(ctx context.Context, recovered any) (string, error) {
	if recovered == nil {
		return "", nil
	}
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}
	hint := &Hint{
		Exception: err,
		Recovered: recovered,
		Mechanism: &event.ExceptionMechanism{Type: MechanismPanic, Handled: false},
		Frames:    c.captureSite(),
	}
	return c.capture(ctx, c.newEvent(severity.Fatal), hint)
}

// Recover captures an in-flight panic. It must be deferred directly:
//
//	defer client.Recover(ctx)
//
// The panic is not propagated further.
func (c *Client) Recover(ctx context.Context) {
	if r := recover(); r != nil {
		if _, err := c.CapturePanic(ctx, r); err != nil {
			c.Logger.Error("Failed to capture panic", err, nil)
		}
	}
}

// SetLastError stores err as the most recent error seen by the
// application. CaptureLastError reads it.
func (c *Client) SetLastError(err error) {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	c.lastErr = err
}

// ClearLastError empties the last error slot.
func (c *Client) ClearLastError() {
	c.SetLastError(nil)
}

// LastError returns the stored error, if any.
func (c *Client) LastError() error {
	c.lastErrMu.RLock()
	defer c.lastErrMu.RUnlock()
	return c.lastErr
}

// CaptureLastError captures the stored error. With an empty slot it returns
// immediately without building an event or running the pipeline.
func (c *Client) CaptureLastError(ctx context.Context) (string, error) {
	err := c.LastError()
	if err == nil {
		return "", nil
	}
	return c.capture(ctx, c.newEvent(severity.Error), &Hint{
		Exception: err,
		Mechanism: &event.ExceptionMechanism{Type: "last_error", Handled: true},
		Frames:    c.captureSite(),
	})
}

// capture runs the pipeline. It returns the event ID when the event reached
// the transport, an empty ID and nil error when it was dropped on purpose,
// and an error when the pipeline itself broke.
func (c *Client) capture(ctx context.Context, evt *event.Event, hint *Hint) (string, error) {
	if c.closed.Load() {
		return "", errspkg.ErrClientClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id, typ := evt.ID(), evt.Type()
	c.metrics.RecordCaptured(typ)

	ctx, drop := withDropTracker(ctx)
	result, err := c.stack.Execute(ctx, evt, hint)
	if err != nil {
		var se *errspkg.StageError
		stage := ""
		if errors.As(err, &se) {
			stage = se.Stage
		}
		c.Logger.Error("Event pipeline failed", err, loggingpkg.LogFields{
			"event_id": id,
			"stage":    stage,
		})
		return "", err
	}
	if result == nil {
		reason, stage := drop.get()
		c.dropped(DropContext{EventID: id, Type: typ, Reason: reason, Stage: stage})
		return "", nil
	}
	return result.ID(), nil
}

// deliver is the terminal handler: it applies the before-send hook for the
// event type and hands the event to the transport. Whatever the hook
// attached is bounded again, so the transport never sees raw values.
func (c *Client) deliver(ctx context.Context, evt *event.Event, hint *Hint) (*event.Event, error) {
	if hook := c.hooks.beforeSendFor(evt.Type()); hook != nil {
		evt = hook(ctx, evt, hint)
		if evt == nil {
			markDropped(ctx, DropBeforeSend, HandlerStageName)
			return nil, nil
		}
		c.boundEvent(evt)
	}

	res := c.transport.Send(ctx, evt)
	if res.EventID == "" {
		res.EventID = evt.ID()
	}
	if !c.async || !res.OK() {
		c.recordResult(evt.Type(), res)
	}
	return evt, nil
}

func (c *Client) dropped(d DropContext) {
	c.Logger.Info("Event dropped", loggingpkg.LogFields{
		"event_id":   d.EventID,
		"event_type": string(d.Type),
		"reason":     string(d.Reason),
		"stage":      d.Stage,
	})
	c.metrics.RecordDropped(d.Type, d.Reason)
	if c.hooks.OnDrop != nil {
		c.hooks.OnDrop(d)
	}
}

func (c *Client) recordResult(typ event.Type, res transport.Result) {
	c.metrics.RecordResult(typ, res)
	if res.OK() {
		c.Logger.Trace("Event delivered", loggingpkg.LogFields{
			"event_id": res.EventID,
			"status":   string(res.Status),
		})
		return
	}
	c.Logger.Error("Event delivery failed", res.Err, loggingpkg.LogFields{
		"event_id": res.EventID,
		"status":   string(res.Status),
	})
	if c.hooks.OnSendError != nil {
		c.hooks.OnSendError(res)
	}
}

// handleAsyncResult receives outcomes from the queue workers. The event
// type is no longer known at that point.
func (c *Client) handleAsyncResult(res transport.Result) {
	c.recordResult(event.TypeEvent, res)
}

// captureSite returns the caller's stack with the client's own frames
// removed, innermost first.
func (c *Client) captureSite() []stacktrace.RawFrame {
	frames := stacktrace.Capture(1)
	for len(frames) > 0 && isClientFrame(frames[0].Function) {
		frames = frames[1:]
	}
	return frames
}

const (
	runtimePackage = "github.com/drblury/faultline/internal/runtime."
	facadePackage  = "github.com/drblury/faultline."
)

func isClientFrame(function string) bool {
	return strings.HasPrefix(function, runtimePackage) || strings.HasPrefix(function, facadePackage)
}

// AddBreadcrumb records b after passing it through the BeforeBreadcrumb
// hook.
func (c *Client) AddBreadcrumb(b *breadcrumb.Breadcrumb) {
	if b == nil {
		return
	}
	if c.hooks.BeforeBreadcrumb != nil {
		if b = c.hooks.BeforeBreadcrumb(b); b == nil {
			return
		}
	}
	c.recorder.Record(b)
}

// Breadcrumbs returns the recorded breadcrumbs, oldest first.
func (c *Client) Breadcrumbs() []*breadcrumb.Breadcrumb {
	return c.recorder.Fetch()
}

func (c *Client) ClearBreadcrumbs() {
	c.recorder.Clear()
}

// BreadcrumbHandler returns an slog.Handler recording log records at or
// above level as breadcrumbs on this client.
func (c *Client) BreadcrumbHandler(level slog.Leveler) slog.Handler {
	return loggingpkg.NewBreadcrumbHandler(loggingpkg.BreadcrumbSinkFunc(c.AddBreadcrumb), level)
}

// Flush waits up to timeout for the transport to finish outstanding sends.
func (c *Client) Flush(timeout time.Duration) transport.Result {
	ctx, cancel := timeoutContext(timeout)
	defer cancel()

	start := time.Now()
	res := transport.Flush(ctx, c.transport)
	c.Logger.Debug("Flushed transport", loggingpkg.LogFields{
		"status":      string(res.Status),
		"duration_ms": durationMillis(time.Since(start)),
	})
	return res
}

// Close flushes and closes the transport. Captures after Close fail with
// ErrClientClosed. Closing twice is a no-op.
func (c *Client) Close(timeout time.Duration) transport.Result {
	if !c.closed.CompareAndSwap(false, true) {
		return transport.Skipped("")
	}
	ctx, cancel := timeoutContext(timeout)
	defer cancel()

	if res := transport.Flush(ctx, c.transport); !res.OK() {
		c.Logger.Error("Flush before close failed", res.Err, loggingpkg.LogFields{"status": string(res.Status)})
	}
	res := c.transport.Close(ctx)
	c.closeSources()
	c.Logger.Info("Closed faultline client", loggingpkg.LogFields{"status": string(res.Status)})
	return res
}

func timeoutContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

type dropContextKey struct{}

// dropTracker remembers why the pipeline returned no event.
type dropTracker struct {
	mu     sync.Mutex
	reason DropReason
	stage  string
}

func withDropTracker(ctx context.Context) (context.Context, *dropTracker) {
	d := &dropTracker{}
	return context.WithValue(ctx, dropContextKey{}, d), d
}

// markDropped records the reason for a veto. The first reason wins.
func markDropped(ctx context.Context, reason DropReason, stage string) {
	d, ok := ctx.Value(dropContextKey{}).(*dropTracker)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reason == "" {
		d.reason, d.stage = reason, stage
	}
}

func (d *dropTracker) get() (DropReason, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reason == "" {
		return DropEventProcessor, ""
	}
	return d.reason, d.stage
}
