package pubsub

import "errors"

var (
	ErrInvalidEvent    = errors.New("pubsub: event is missing or has no id")
	ErrPayloadTooLarge = errors.New("pubsub: payload exceeds backend limit")
	ErrClosed          = errors.New("pubsub: transport is closed")
)
