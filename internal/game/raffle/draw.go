package raffle

import (
	"fmt"

	"go.uber.org/zap"
)

// DrawOptions parameterizes a single draw.
type DrawOptions struct {
	// PreviousDraws seeds the pipeline context, for rules that react to
	// earlier outcomes.
	PreviousDraws []Result
	// Metadata carries caller data into the pipeline context.
	Metadata map[string]any
}

// ManyOptions parameterizes a batch draw.
type ManyOptions struct {
	DrawOptions
	// WithoutReplacement forbids an id from being drawn twice in the batch.
	// The restriction is batch-transient: the engine's exclusion set is
	// never touched.
	WithoutReplacement bool
	// EnsureUnique additionally guarantees the returned results carry
	// distinct ids. It implies WithoutReplacement.
	EnsureUnique bool
}

// DrawOne runs the pipeline once and samples a result.
//
// Returns (nil, nil) when every item was pruned or excluded: an empty
// distribution is a silent no-result outcome, and the engine is left
// completely untouched by it. On a selection the engine advances pity
// state, consumes temporary modifier uses, counts the frequency, and emits
// EventDraw before returning.
func (e *Engine) DrawOne(opts DrawOptions) (*Result, error) {
	return e.drawOne(opts, nil)
}

func (e *Engine) drawOne(opts DrawOptions, batchExcluded map[string]struct{}) (*Result, error) {
	ctx := &Context{
		PreviousDraws:   opts.PreviousDraws,
		Metadata:        opts.Metadata,
		ActiveModifiers: e.activeModifierInfos(),
	}

	// The temporary modifiers present at draw start are exactly the ones a
	// completed draw consumes.
	activeTemps := make([]*modifierRecord, len(e.temporaries))
	copy(activeTemps, e.temporaries)

	weights := e.computeWeights(ctx, batchExcluded)
	entries := e.distribution(weights)
	if len(entries) == 0 {
		e.logger.Debug("draw produced no result", zap.Int("items", len(e.items)))
		return nil, nil
	}

	r := e.rng.Float64()
	idx := sample(entries, r)
	chosen := entries[idx]

	item := e.index[chosen.id]
	result := &Result{
		ID:    item.ID,
		Label: item.Label,
		Meta:  copyMeta(item.Meta),
		Prob:  chosen.prob,
	}

	e.advancePity(chosen.id)
	e.consumeTemporaries(activeTemps)
	e.frequency[chosen.id]++

	e.logger.Debug("draw",
		zap.String("id", result.ID),
		zap.Float64("prob", result.Prob),
		zap.Float64("roll", r),
	)
	e.emitter.Emit(EventDraw, *result)
	return result, nil
}

// consumeTemporaries charges one use to each temporary modifier that was
// live at draw start and drops the exhausted ones.
func (e *Engine) consumeTemporaries(active []*modifierRecord) {
	if len(active) == 0 {
		return
	}
	for _, rec := range active {
		rec.uses--
	}
	remaining := e.temporaries[:0]
	for _, rec := range e.temporaries {
		if rec.uses > 0 {
			remaining = append(remaining, rec)
		}
	}
	e.temporaries = remaining
}

// DrawMany runs up to count sequential draws. Each result is appended to
// the context's PreviousDraws before the next iteration, and the batch
// stops early at the first empty draw.
//
// Precondition: count >= 1.
// Postcondition: results arrive in draw order and may number fewer than
// count.
func (e *Engine) DrawMany(count int, opts ManyOptions) ([]Result, error) {
	if count < 1 {
		return nil, fmt.Errorf("raffle: Engine.DrawMany: count must be >= 1, got %d: %w", count, ErrInvalidArgument)
	}

	var batchExcluded map[string]struct{}
	if opts.WithoutReplacement || opts.EnsureUnique {
		batchExcluded = make(map[string]struct{})
	}

	prev := make([]Result, len(opts.PreviousDraws), len(opts.PreviousDraws)+count)
	copy(prev, opts.PreviousDraws)

	results := make([]Result, 0, count)
	for i := 0; i < count; i++ {
		res, err := e.drawOne(DrawOptions{PreviousDraws: prev, Metadata: opts.Metadata}, batchExcluded)
		if err != nil {
			return results, err
		}
		if res == nil {
			break
		}
		results = append(results, *res)
		prev = append(prev, *res)
		if batchExcluded != nil {
			batchExcluded[res.ID] = struct{}{}
		}
	}
	return results, nil
}
