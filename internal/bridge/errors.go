package bridge

import "errors"

// Package errors. Wrapped with fmt.Errorf("%w: ...") where callers need
// context; tested with errors.Is.
var (
	// ErrUnsupportedKind is returned when a controller action kind has no
	// channel mapping.
	ErrUnsupportedKind = errors.New("bridge: unsupported action kind")

	// ErrUnknownEndpoint is returned for commands addressing an endpoint
	// the bridge is not configured for.
	ErrUnknownEndpoint = errors.New("bridge: unknown endpoint")

	// ErrInvalidCommand is returned when a command message cannot be
	// decoded into a typed command.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrQueueFull is returned when the worker queue is saturated and a
	// task could not be scheduled.
	ErrQueueFull = errors.New("bridge: worker queue full")

	// ErrNoConnection is returned when no controller session has been
	// established yet.
	ErrNoConnection = errors.New("bridge: no controller connection")
)
