// Package events provides the synchronous named-event emitter shared by the
// draw engine and the inventory model. Handlers run inline on the emitting
// goroutine in registration order; the package performs no buffering and no
// concurrency of its own.
package events

import "errors"

// Name identifies an event. Each emitting package declares its own fixed
// set of Name constants together with the payload types it delivers.
type Name string

// Handler receives the variadic payload passed to Emit.
//
// Handlers run synchronously on the caller's goroutine. A panic inside a
// handler propagates to the Emit caller.
type Handler func(args ...any)

// Subscription is an opaque token identifying a registered handler. Tokens
// are unique across the lifetime of an Emitter.
type Subscription string

// CapMode selects how an Emitter reacts when a registration would exceed
// the listener cap.
type CapMode int

const (
	// CapWarn logs a warning and registers the handler anyway.
	CapWarn CapMode = iota
	// CapError rejects the registration with ErrTooManyListeners.
	CapError
)

// DefaultMaxListeners is the per-event listener cap applied to new emitters.
const DefaultMaxListeners = 10

var (
	// ErrInvalidArgument reports an empty event name or nil handler.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTooManyListeners reports a registration rejected by the listener
	// cap in CapError mode.
	ErrTooManyListeners = errors.New("too many listeners")
)
