// Package raffle implements the weighted random draw engine: an
// insertion-ordered item registry with groups and exclusions, a weight
// pipeline (base weights, modifiers, pity boosts), probability
// normalization, and draw orchestration with optional batch uniqueness.
//
// Engines are single-threaded by contract: callers must not reenter an
// engine from a modifier, rule, or event handler, and must serialize
// access when sharing an engine across goroutines.
package raffle

import (
	"errors"
	"fmt"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/events"
)

var (
	// ErrInvalidArgument reports a malformed argument: empty ids, negative
	// or non-finite weights, bad option values, or malformed snapshots.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports an operation on an id the engine does not know.
	ErrNotFound = errors.New("not found")
	// ErrSerialization reports an unreadable or unwritable export payload.
	ErrSerialization = errors.New("serialization failure")
)

// Event names emitted by an Engine. Payloads are documented per constant.
const (
	// EventItemAdded carries the added Item (a copy).
	EventItemAdded events.Name = "itemAdded"
	// EventItemRemoved carries the removed item's id (string).
	EventItemRemoved events.Name = "itemRemoved"
	// EventWeightChanged carries a WeightChange.
	EventWeightChanged events.Name = "weightChanged"
	// EventDraw carries the drawn Result.
	EventDraw events.Name = "draw"
)

// Item is one drawable entry.
type Item struct {
	// ID uniquely identifies the item within an engine.
	ID string
	// Label is the display name. Defaults to ID when empty.
	Label string
	// BaseWeight is the pipeline's starting weight. Must be finite and >= 0.
	BaseWeight float64
	// Groups lists the named groups the item belongs to.
	Groups []string
	// Meta carries free-form item data, deep-copied on the way in and out.
	Meta map[string]any
	// Locked is carried through serialization but never gates draws.
	Locked bool
}

// WeightChange is the payload of EventWeightChanged.
type WeightChange struct {
	ID     string
	Weight float64
}

// Result is one draw outcome.
type Result struct {
	// ID is the drawn item's id.
	ID string `json:"id"`
	// Label is the drawn item's display name.
	Label string `json:"label"`
	// Meta is a deep copy of the item's metadata at draw time.
	Meta map[string]any `json:"meta,omitempty"`
	// Prob is the item's probability in the distribution it was drawn from.
	Prob float64 `json:"prob"`
}

// Context is the input to the weight pipeline. Modifiers and rules receive
// it read-only.
type Context struct {
	// PreviousDraws holds earlier results in draw order. DrawMany appends
	// each batch result before the next iteration.
	PreviousDraws []Result
	// Metadata carries caller-supplied draw data for rules to inspect.
	Metadata map[string]any
	// ActiveModifiers is the snapshot of temporary modifiers taken when the
	// draw started.
	ActiveModifiers []ModifierInfo
}

// Normalization selects how working weights become probabilities.
type Normalization string

const (
	// NormalizationRelative divides each weight by the weight sum.
	NormalizationRelative Normalization = "relative"
	// NormalizationSoftmax applies a max-shifted exponential transform.
	NormalizationSoftmax Normalization = "softmax"
)

// ParseNormalization validates and converts a normalization name.
//
// Postcondition: returns ErrInvalidArgument for anything but "relative"
// and "softmax".
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case NormalizationRelative, NormalizationSoftmax:
		return Normalization(s), nil
	default:
		return "", fmt.Errorf("raffle: ParseNormalization: unknown normalization %q: %w", s, ErrInvalidArgument)
	}
}
