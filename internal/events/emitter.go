package events

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// entry is one registered handler.
type entry struct {
	id      Subscription
	handler Handler
	once    bool
}

// Emitter dispatches named events to registered handlers.
//
// Emitter is not safe for concurrent use: the owning core is
// single-threaded by contract, and callers that share an emitter across
// goroutines must serialize access themselves.
//
// Invariant: handlers for an event run in registration order, with
// prepended handlers first. Registrations and removals made by a handler
// take effect for subsequent emits, not the one in flight.
type Emitter struct {
	handlers     map[Name][]entry
	maxListeners int
	capMode      CapMode
	logger       *zap.Logger
}

// NewEmitter creates an Emitter with the default listener cap in CapWarn
// mode. A nil logger disables logging.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		handlers:     make(map[Name][]entry),
		maxListeners: DefaultMaxListeners,
		logger:       logger,
	}
}

// SetMaxListeners sets the per-event listener cap. Zero disables the cap.
//
// Precondition: n >= 0.
func (e *Emitter) SetMaxListeners(n int) error {
	if n < 0 {
		return fmt.Errorf("events: Emitter.SetMaxListeners: negative cap %d: %w", n, ErrInvalidArgument)
	}
	e.maxListeners = n
	return nil
}

// MaxListeners returns the current per-event listener cap (0 = unlimited).
func (e *Emitter) MaxListeners() int {
	return e.maxListeners
}

// SetCapMode selects warn-and-register or reject behavior for registrations
// beyond the listener cap.
func (e *Emitter) SetCapMode(mode CapMode) {
	e.capMode = mode
}

// On registers h for name and returns its subscription token.
//
// Postcondition: h runs after all previously appended handlers for name.
func (e *Emitter) On(name Name, h Handler) (Subscription, error) {
	return e.add(name, h, false, false)
}

// Once registers h to run at most once. The registration is consumed before
// h's first delivery completes, so h never observes itself as registered.
func (e *Emitter) Once(name Name, h Handler) (Subscription, error) {
	return e.add(name, h, true, false)
}

// Prepend registers h ahead of all existing handlers for name.
func (e *Emitter) Prepend(name Name, h Handler) (Subscription, error) {
	return e.add(name, h, false, true)
}

// PrependOnce registers a one-shot handler ahead of all existing handlers.
func (e *Emitter) PrependOnce(name Name, h Handler) (Subscription, error) {
	return e.add(name, h, true, true)
}

func (e *Emitter) add(name Name, h Handler, once, prepend bool) (Subscription, error) {
	if name == "" {
		return "", fmt.Errorf("events: Emitter: empty event name: %w", ErrInvalidArgument)
	}
	if h == nil {
		return "", fmt.Errorf("events: Emitter: nil handler for event %q: %w", name, ErrInvalidArgument)
	}
	current := len(e.handlers[name])
	if e.maxListeners > 0 && current+1 > e.maxListeners {
		if e.capMode == CapError {
			return "", fmt.Errorf("events: Emitter: event %q already has %d listeners (cap %d): %w",
				name, current, e.maxListeners, ErrTooManyListeners)
		}
		e.logger.Warn("listener cap exceeded",
			zap.String("event", string(name)),
			zap.Int("listeners", current+1),
			zap.Int("cap", e.maxListeners),
		)
	}
	ent := entry{id: Subscription(uuid.New().String()), handler: h, once: once}
	if prepend {
		e.handlers[name] = append([]entry{ent}, e.handlers[name]...)
	} else {
		e.handlers[name] = append(e.handlers[name], ent)
	}
	return ent.id, nil
}

// Off removes the handler registered under sub for name. It reports whether
// a handler was removed.
func (e *Emitter) Off(name Name, sub Subscription) bool {
	list := e.handlers[name]
	for i, ent := range list {
		if ent.id == sub {
			e.handlers[name] = append(list[:i:i], list[i+1:]...)
			if len(e.handlers[name]) == 0 {
				delete(e.handlers, name)
			}
			return true
		}
	}
	return false
}

// RemoveAll drops every handler registered for name.
func (e *Emitter) RemoveAll(name Name) {
	delete(e.handlers, name)
}

// Emit delivers args to every handler registered for name, in order.
// The handler list is snapshotted first: handlers added or removed during
// delivery do not affect the emit in flight. One-shot registrations are
// consumed before their handler runs.
func (e *Emitter) Emit(name Name, args ...any) {
	list := e.handlers[name]
	if len(list) == 0 {
		return
	}
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	for _, ent := range snapshot {
		if ent.once {
			e.Off(name, ent.id)
		}
		ent.handler(args...)
	}
}

// ListenerCount returns the number of handlers registered for name.
func (e *Emitter) ListenerCount(name Name) int {
	return len(e.handlers[name])
}

// EventNames returns the names with at least one registered handler, sorted.
func (e *Emitter) EventNames() []Name {
	names := make([]Name, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
