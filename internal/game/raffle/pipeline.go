package raffle

import "fmt"

// computeWeights runs the weight pipeline and returns the prunable working
// weights: base weights, then global, temporary, and conditional modifiers
// in registration order, then pity boosts, then exclusion removal, then a
// final prune of non-positive entries.
//
// The computation is pure: pity records are read, never written. Ids in
// extraExcluded are removed alongside the engine's exclusions; DrawMany
// threads its batch-transient set through here.
func (e *Engine) computeWeights(ctx *Context, extraExcluded map[string]struct{}) map[string]float64 {
	weights := make(map[string]float64, len(e.items))
	for _, it := range e.items {
		weights[it.ID] = it.BaseWeight
	}

	applyModifiers(weights, ctx, e.globals)
	applyModifiers(weights, ctx, e.temporaries)
	applyModifiers(weights, ctx, e.rules)

	for id, rec := range e.pity {
		if !rec.boosted() {
			continue
		}
		w, ok := weights[id]
		if !ok {
			continue
		}
		w += rec.nextAdd()
		if w < 0 {
			w = 0
		}
		weights[id] = w
	}

	for id := range e.excluded {
		delete(weights, id)
	}
	for id := range extraExcluded {
		delete(weights, id)
	}

	for id, w := range weights {
		if !(w > 0) {
			delete(weights, id)
		}
	}
	return weights
}

// EffectiveWeights returns the pruned working weights the next draw would
// sample from, given ctx. The engine is not mutated: pity advancement,
// temporary-modifier consumption, and frequency counting happen only in
// draws.
//
// Precondition: ctx must be non-nil. Nil PreviousDraws and Metadata are
// treated as empty.
func (e *Engine) EffectiveWeights(ctx *Context) (map[string]float64, error) {
	if ctx == nil {
		return nil, fmt.Errorf("raffle: Engine.EffectiveWeights: nil context: %w", ErrInvalidArgument)
	}
	view := Context{
		PreviousDraws:   ctx.PreviousDraws,
		Metadata:        ctx.Metadata,
		ActiveModifiers: e.activeModifierInfos(),
	}
	return e.computeWeights(&view, nil), nil
}

// activeModifierInfos snapshots the temporary modifiers for a draw context.
func (e *Engine) activeModifierInfos() []ModifierInfo {
	if len(e.temporaries) == 0 {
		return nil
	}
	out := make([]ModifierInfo, 0, len(e.temporaries))
	for _, rec := range e.temporaries {
		out = append(out, rec.info())
	}
	return out
}
