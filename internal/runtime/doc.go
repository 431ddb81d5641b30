/*
Package runtime implements the faultline client and its event pipeline.

# Architecture Overview

A Client turns captures (messages, errors, panics, raw events) into
event.Event values, runs them through a Stack of named stages and delivers
the survivors to a transport.Transport. Delivery is synchronous unless the
configuration asks for a bounded queue.

# Package Structure

## Client (client.go)

The Client wires together:
  - the middleware Stack and its default stages
  - the client Scope and breadcrumb Recorder
  - lifecycle Hooks and Prometheus ClientMetrics
  - the transport selected from a registry

## Stack (stack.go, middleware.go)

Stages run by descending priority; equal priorities keep registration order.
A stage vetoes an event by returning without calling next. Stages may not
call next twice and may not return an event when next dropped it.

## Stages (integrations_*.go, sanitize.go, scope.go)

  - Sampling: a single random draw against Config.SampleRate
  - Scope: user, tags, extras and contexts set on the client
  - Message and Exception: formatting and error chain unwrapping
  - Request and User: HTTP request data, client IP when PII is allowed
  - Breadcrumbs, Environment, Modules, Tracing, Stacktrace
  - Serialize: depth limits, clips and cycle-cuts user, extra, contexts,
    tags and breadcrumb data
  - Sanitize: masks secrets and card numbers, safe to run twice

## Integrations (http.go)

HTTPMiddleware stores the request for the Request stage, captures panics
and optionally captures responses above a status threshold.

# Sub-packages

  - breadcrumb/: breadcrumbs and the bounded Recorder
  - clock/: injectable time source
  - config/: client configuration with validation
  - errors/: sentinel errors and error types
  - event/: the event model
  - ids/: event ID generation
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: transport metadata
  - serializer/: depth and cycle safe value rendering
  - severity/: event levels
  - stacktrace/: frame capture and source context
*/
package runtime
