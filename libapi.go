package faultline

import (
	"context"
	"log/slog"

	runtimepkg "github.com/drblury/faultline/internal/runtime"
	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/clock"
	configpkg "github.com/drblury/faultline/internal/runtime/config"
	errspkg "github.com/drblury/faultline/internal/runtime/errors"
	"github.com/drblury/faultline/internal/runtime/event"
	idspkg "github.com/drblury/faultline/internal/runtime/ids"
	jsoncodec "github.com/drblury/faultline/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/faultline/internal/runtime/logging"
	metadatapkg "github.com/drblury/faultline/internal/runtime/metadata"
	"github.com/drblury/faultline/internal/runtime/serializer"
	"github.com/drblury/faultline/internal/runtime/severity"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
	"github.com/drblury/faultline/transport"

	// The null transport backs the default configuration.
	_ "github.com/drblury/faultline/transport/null"
)

type (
	Config             = configpkg.Config
	BodySize           = configpkg.BodySize
	Client             = runtimepkg.Client
	ClientDependencies = runtimepkg.ClientDependencies
	Scope              = runtimepkg.Scope

	Event              = event.Event
	EventType          = event.Type
	EventOption        = event.Option
	ExceptionDataBag   = event.ExceptionDataBag
	ExceptionMechanism = event.ExceptionMechanism
	CheckIn            = event.CheckIn
	CheckInStatus      = event.CheckInStatus
	Metric             = event.Metric
	SDK                = event.SDK

	Severity         = severity.Severity
	Breadcrumb       = breadcrumb.Breadcrumb
	BreadcrumbOption = breadcrumb.Option
	Recorder         = breadcrumb.Recorder
	Stacktrace       = stacktrace.Stacktrace
	Frame            = stacktrace.Frame
	RawFrame         = stacktrace.RawFrame
	SourceReader     = stacktrace.SourceReader
	Serializer       = serializer.Serializer
	SerializeOptions = serializer.Options
	Clock            = clock.Clock
	Sanitizer        = runtimepkg.Sanitizer

	Stack                  = runtimepkg.Stack
	Stage                  = runtimepkg.Stage
	Next                   = runtimepkg.Next
	Hint                   = runtimepkg.Hint
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	HTTPOptions            = runtimepkg.HTTPOptions
	Rand                   = runtimepkg.Rand
	RandFunc               = runtimepkg.RandFunc
	ErrorMatcher           = runtimepkg.ErrorMatcher

	// Lifecycle hooks
	Hooks                = runtimepkg.Hooks
	DropContext          = runtimepkg.DropContext
	DropReason           = runtimepkg.DropReason
	BeforeSendFunc       = runtimepkg.BeforeSendFunc
	BeforeBreadcrumbFunc = runtimepkg.BeforeBreadcrumbFunc

	// Client metrics
	ClientMetrics         = runtimepkg.ClientMetrics
	ClientMetricsSnapshot = runtimepkg.ClientMetricsSnapshot
	ResourceUsage         = runtimepkg.ResourceUsage

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError
	StageError            = errspkg.StageError

	// Transports
	Transport             = transport.Transport
	TransportResult       = transport.Result
	TransportStatus       = transport.Status
	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

const (
	SeverityDebug   = severity.Debug
	SeverityInfo    = severity.Info
	SeverityWarning = severity.Warning
	SeverityError   = severity.Error
	SeverityFatal   = severity.Fatal

	EventTypeEvent       = event.TypeEvent
	EventTypeTransaction = event.TypeTransaction
	EventTypeCheckIn     = event.TypeCheckIn
	EventTypeMetrics     = event.TypeMetrics

	BodySizeNone   = configpkg.BodySizeNone
	BodySizeSmall  = configpkg.BodySizeSmall
	BodySizeMedium = configpkg.BodySizeMedium
	BodySizeAlways = configpkg.BodySizeAlways

	DropSampleRate     = runtimepkg.DropSampleRate
	DropIgnored        = runtimepkg.DropIgnored
	DropBeforeSend     = runtimepkg.DropBeforeSend
	DropEventProcessor = runtimepkg.DropEventProcessor

	MechanismGeneric = runtimepkg.MechanismGeneric
	MechanismPanic   = runtimepkg.MechanismPanic
	MechanismChained = runtimepkg.MechanismChained

	BreadcrumbTypeDefault    = breadcrumb.TypeDefault
	BreadcrumbTypeUser       = breadcrumb.TypeUser
	BreadcrumbTypeHTTP       = breadcrumb.TypeHTTP
	BreadcrumbTypeError      = breadcrumb.TypeError
	BreadcrumbTypeNavigation = breadcrumb.TypeNavigation
	BreadcrumbTypeQuery      = breadcrumb.TypeQuery
	BreadcrumbTypeDebug      = breadcrumb.TypeDebug

	PriorityMetrics     = runtimepkg.PriorityMetrics
	PrioritySampling    = runtimepkg.PrioritySampling
	PriorityScope       = runtimepkg.PriorityScope
	PriorityMessage     = runtimepkg.PriorityMessage
	PriorityException   = runtimepkg.PriorityException
	PriorityRequest     = runtimepkg.PriorityRequest
	PriorityUser        = runtimepkg.PriorityUser
	PriorityBreadcrumbs = runtimepkg.PriorityBreadcrumbs
	PriorityEnvironment = runtimepkg.PriorityEnvironment
	PriorityModules     = runtimepkg.PriorityModules
	PriorityTracing     = runtimepkg.PriorityTracing
	PriorityStacktrace  = runtimepkg.PriorityStacktrace
	PrioritySerialize   = runtimepkg.PrioritySerialize
	PrioritySanitize    = runtimepkg.PrioritySanitize

	// Mask replaces sanitized values.
	Mask = runtimepkg.Mask
)

var (
	NewClient      = runtimepkg.NewClient
	NewScope       = runtimepkg.NewScope
	NewStack       = runtimepkg.NewStack
	NewSanitizer   = runtimepkg.NewSanitizer
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.LoadFile
	ParseConfig    = configpkg.Parse
	ValidateConfig = configpkg.ValidateConfig

	NewEvent       = event.New
	NewTransaction = event.NewTransaction
	NewCheckIn     = event.NewCheckIn
	NewMetrics     = event.NewMetrics
	WithClock      = event.WithClock
	WithLevel      = event.WithLevel

	ParseSeverity      = severity.Parse
	NewBreadcrumb      = breadcrumb.New
	NewRecorder        = breadcrumb.NewRecorder
	BreadcrumbMessage  = breadcrumb.Message
	BreadcrumbData     = breadcrumb.Data
	BreadcrumbAt       = breadcrumb.At
	NewSerializer      = serializer.New
	CaptureStack       = stacktrace.Capture
	SystemClock        = clock.System
	ErrorChain         = runtimepkg.ErrorChain
	ErrorTypeName      = runtimepkg.ErrorTypeName
	ClientIP           = runtimepkg.ClientIP
	ContextWithRequest = runtimepkg.ContextWithRequest
	RequestFromContext = runtimepkg.RequestFromContext
	NewClientMetrics   = runtimepkg.NewClientMetrics

	DefaultMiddlewares    = runtimepkg.DefaultMiddlewares
	MetricsMiddleware     = runtimepkg.MetricsMiddleware
	SamplingMiddleware    = runtimepkg.SamplingMiddleware
	ScopeMiddleware       = runtimepkg.ScopeMiddleware
	MessageMiddleware     = runtimepkg.MessageMiddleware
	ExceptionMiddleware   = runtimepkg.ExceptionMiddleware
	RequestMiddleware     = runtimepkg.RequestMiddleware
	UserMiddleware        = runtimepkg.UserMiddleware
	BreadcrumbMiddleware  = runtimepkg.BreadcrumbMiddleware
	EnvironmentMiddleware = runtimepkg.EnvironmentMiddleware
	ModulesMiddleware     = runtimepkg.ModulesMiddleware
	TracingMiddleware     = runtimepkg.TracingMiddleware
	StacktraceMiddleware  = runtimepkg.StacktraceMiddleware
	SerializeMiddleware   = runtimepkg.SerializeMiddleware
	SanitizeMiddleware    = runtimepkg.SanitizeMiddleware

	// Lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	// Transport registry. Import the built-in transports via
	// _ "github.com/drblury/faultline/transport/transports".
	DefaultTransportRegistry = transport.DefaultRegistry
	NewTransportRegistry     = transport.NewRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build
	FlushTransport           = transport.Flush
	GetCapabilities          = transport.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrTransportRequired  = errspkg.ErrTransportRequired
	ErrEventRequired      = errspkg.ErrEventRequired
	ErrInvalidSeverity    = errspkg.ErrInvalidSeverity
	ErrInvalidSampleRate  = errspkg.ErrInvalidSampleRate
	ErrStackExecuting     = errspkg.ErrStackExecuting
	ErrInvalidStageResult = errspkg.ErrInvalidStageResult
	ErrNextCalledTwice    = errspkg.ErrNextCalledTwice
	ErrStageRequired      = errspkg.ErrStageRequired
	ErrStageNameRequired  = errspkg.ErrStageNameRequired
	ErrUnknownTransport   = errspkg.ErrUnknownTransport
	ErrClientClosed       = errspkg.ErrClientClosed

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.NopLogger

	NewMetadata = metadatapkg.New

	// MatchError ignores captures whose chain contains target.
	MatchError = runtimepkg.MatchError

	// NewEventID returns a fresh 32 character hex event ID.
	NewEventID = idspkg.NewEventID
	IsEventID  = idspkg.IsEventID
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// MatchErrorType ignores captures whose chain contains an error of type T,
// or implementing T when T is an interface.
func MatchErrorType[T any]() ErrorMatcher {
	return runtimepkg.MatchErrorType[T]()
}

// New builds a client that logs through slog.Default. It is the shortest
// path from a Config to capturing events; use NewClient for full control.
func New(ctx context.Context, conf Config) (*Client, error) {
	return NewClient(ctx, &conf, NewSlogServiceLogger(slog.Default()), ClientDependencies{})
}
