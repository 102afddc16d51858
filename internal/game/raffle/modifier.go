package raffle

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ModifierFunc adjusts working weights. It receives a copy of the current
// working weights and the draw context, and returns per-item weight deltas.
// A nil return means no adjustment. Deltas for ids absent from the working
// weights are ignored.
//
// Modifier functions must not reenter the engine.
type ModifierFunc func(weights map[string]float64, ctx *Context) map[string]float64

// ModifierKind tags the lifecycle of a registered modifier.
type ModifierKind string

const (
	// KindGlobal modifiers persist until the engine is cleared or imported over.
	KindGlobal ModifierKind = "global"
	// KindTemporary modifiers expire after a fixed number of completed draws.
	KindTemporary ModifierKind = "temporary"
	// KindConditional rules persist like globals; they conventionally gate
	// their deltas on the draw context.
	KindConditional ModifierKind = "conditional"
)

// ModifierInfo describes one registered modifier. Contexts carry it so
// rules can inspect which temporary modifiers were live at draw start.
type ModifierInfo struct {
	// ID is the registration token.
	ID string
	// Kind tags the modifier's lifecycle.
	Kind ModifierKind
	// UsesLeft is the remaining draw count for temporary modifiers, 0 otherwise.
	UsesLeft int
}

// modifierRecord is a registered modifier and its lifecycle state.
type modifierRecord struct {
	id   string
	kind ModifierKind
	fn   ModifierFunc
	uses int
}

func (m *modifierRecord) info() ModifierInfo {
	return ModifierInfo{ID: m.id, Kind: m.kind, UsesLeft: m.uses}
}

// AddGlobalModifier registers fn as a persistent modifier and returns its id.
//
// Precondition: fn must be non-nil.
func (e *Engine) AddGlobalModifier(fn ModifierFunc) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("raffle: Engine.AddGlobalModifier: nil modifier: %w", ErrInvalidArgument)
	}
	rec := &modifierRecord{id: uuid.New().String(), kind: KindGlobal, fn: fn}
	e.globals = append(e.globals, rec)
	return rec.id, nil
}

// AddTemporaryModifier registers fn to influence exactly the next uses
// completed draws, then expire.
//
// Precondition: fn must be non-nil; uses >= 1.
func (e *Engine) AddTemporaryModifier(fn ModifierFunc, uses int) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("raffle: Engine.AddTemporaryModifier: nil modifier: %w", ErrInvalidArgument)
	}
	if uses < 1 {
		return "", fmt.Errorf("raffle: Engine.AddTemporaryModifier: uses must be >= 1, got %d: %w", uses, ErrInvalidArgument)
	}
	rec := &modifierRecord{id: uuid.New().String(), kind: KindTemporary, fn: fn, uses: uses}
	e.temporaries = append(e.temporaries, rec)
	return rec.id, nil
}

// AddConditionalRule registers fn as a persistent context-gated modifier.
//
// Precondition: fn must be non-nil.
func (e *Engine) AddConditionalRule(fn ModifierFunc) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("raffle: Engine.AddConditionalRule: nil rule: %w", ErrInvalidArgument)
	}
	rec := &modifierRecord{id: uuid.New().String(), kind: KindConditional, fn: fn}
	e.rules = append(e.rules, rec)
	return rec.id, nil
}

// RemoveModifier deregisters the modifier or rule with the given id. It
// reports whether one was removed.
func (e *Engine) RemoveModifier(id string) bool {
	for _, list := range []*[]*modifierRecord{&e.globals, &e.temporaries, &e.rules} {
		for i, rec := range *list {
			if rec.id == id {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Modifiers returns descriptors for every registered modifier and rule, in
// pipeline application order.
func (e *Engine) Modifiers() []ModifierInfo {
	out := make([]ModifierInfo, 0, len(e.globals)+len(e.temporaries)+len(e.rules))
	for _, rec := range e.globals {
		out = append(out, rec.info())
	}
	for _, rec := range e.temporaries {
		out = append(out, rec.info())
	}
	for _, rec := range e.rules {
		out = append(out, rec.info())
	}
	return out
}

// applyModifiers runs each record's function against a copy of the working
// weights and folds the returned deltas in with saturating-at-zero addition.
func applyModifiers(weights map[string]float64, ctx *Context, records []*modifierRecord) {
	for _, rec := range records {
		view := make(map[string]float64, len(weights))
		for id, w := range weights {
			view[id] = w
		}
		deltas := rec.fn(view, ctx)
		if deltas == nil {
			continue
		}
		for id, d := range deltas {
			w, ok := weights[id]
			if !ok {
				continue
			}
			w += d
			if w < 0 || math.IsNaN(w) {
				w = 0
			}
			weights[id] = w
		}
	}
}
