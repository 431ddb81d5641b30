package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/faultline/internal/runtime/config"
	loggingpkg "github.com/drblury/faultline/internal/runtime/logging"
	"github.com/drblury/faultline/transport/transporttest"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

type loggedEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

// recordingLogger keeps every entry so tests can assert on client logging.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]loggedEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]loggedEntry{}}
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: merged}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, loggedEntry{level: level, msg: msg, err: err, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) Entries() []loggedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]loggedEntry(nil), *l.entries...)
}

func (l *recordingLogger) find(msg string) (loggedEntry, bool) {
	for _, e := range l.Entries() {
		if e.msg == msg {
			return e, true
		}
	}
	return loggedEntry{}, false
}

// countingRand returns value and counts how often it was drawn.
type countingRand struct {
	mu    sync.Mutex
	value float64
	draws int
}

func (r *countingRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws++
	return r.value
}

func (r *countingRand) Draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws
}

type testClient struct {
	*Client
	recorder *transporttest.Recorder
	logger   *recordingLogger
	registry *prometheus.Registry
}

// newTestClient builds a client delivering to an in-memory recorder. mutate
// may adjust the configuration and dependencies before construction.
func newTestClient(t *testing.T, mutate func(*configpkg.Config, *ClientDependencies)) *testClient {
	t.Helper()

	conf := configpkg.Default()
	rec := &transporttest.Recorder{}
	registry := prometheus.NewRegistry()
	deps := ClientDependencies{
		Transport:         rec,
		MetricsRegisterer: registry,
	}
	if mutate != nil {
		mutate(&conf, &deps)
	}

	logger := newRecordingLogger()
	client, err := NewClient(context.Background(), &conf, logger, deps)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close(0) })

	return &testClient{Client: client, recorder: rec, logger: logger, registry: registry}
}
