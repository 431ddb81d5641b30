package logging

import "github.com/ThreeDotsLabs/watermill"

// EntryLogger is the non-generic form of EntryLoggerAdapter.
type EntryLogger interface {
	EntryLoggerAdapter[EntryLogger]
}

// EntryLoggerAdapter matches logrus-style entries whose With* methods return
// their own type.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("faultline: watermill logger cannot be nil")
	}
	return watermillLogger{inner: logger}
}

type watermillLogger struct {
	inner watermill.LoggerAdapter
}

func (w watermillLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return w
	}
	return watermillLogger{inner: w.inner.With(watermill.LogFields(fields))}
}

func (w watermillLogger) Debug(msg string, fields LogFields) { w.inner.Debug(msg, asWatermill(fields)) }
func (w watermillLogger) Info(msg string, fields LogFields)  { w.inner.Info(msg, asWatermill(fields)) }
func (w watermillLogger) Trace(msg string, fields LogFields) { w.inner.Trace(msg, asWatermill(fields)) }

func (w watermillLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, asWatermill(fields))
}

// NewEntryServiceLogger wraps an entry logger such as a logrus.Entry.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	if any(entry) == nil {
		panic("faultline: entry logger cannot be nil")
	}
	return entryLogger[T]{entry: entry}
}

type entryLogger[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (e entryLogger[T]) With(fields LogFields) ServiceLogger {
	return entryLogger[T]{entry: withEntryFields(e.entry, fields)}
}

func (e entryLogger[T]) Debug(msg string, fields LogFields) {
	withEntryFields(e.entry, fields).Debug(msg)
}

func (e entryLogger[T]) Info(msg string, fields LogFields) {
	withEntryFields(e.entry, fields).Info(msg)
}

func (e entryLogger[T]) Trace(msg string, fields LogFields) {
	withEntryFields(e.entry, fields).Trace(msg)
}

func (e entryLogger[T]) Error(msg string, err error, fields LogFields) {
	entry := withEntryFields(e.entry, fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

func withEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	for key, value := range fields {
		entry = entry.WithField(key, value)
	}
	return entry
}

// NewWatermillAdapter exposes a ServiceLogger as the LoggerAdapter that
// Watermill publishers expect.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("faultline: ServiceLogger cannot be nil")
	}
	return publisherLogger{base: log}
}

type publisherLogger struct {
	base ServiceLogger
}

func (p publisherLogger) Error(msg string, err error, fields watermill.LogFields) {
	p.base.Error(msg, err, asFields(fields))
}

func (p publisherLogger) Info(msg string, fields watermill.LogFields) {
	p.base.Info(msg, asFields(fields))
}

func (p publisherLogger) Debug(msg string, fields watermill.LogFields) {
	p.base.Debug(msg, asFields(fields))
}

func (p publisherLogger) Trace(msg string, fields watermill.LogFields) {
	p.base.Trace(msg, asFields(fields))
}

func (p publisherLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return publisherLogger{base: p.base.With(asFields(fields))}
}

func asWatermill(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func asFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}
