package raffle

import (
	"fmt"
	"math"
)

// PityConfig tunes the guarantee mechanism for one item.
type PityConfig struct {
	// Threshold is the number of consecutive non-selections after which the
	// boost starts. The boost applies strictly beyond it: the counter must
	// exceed Threshold.
	Threshold int
	// Increment is the weight added per boosted draw.
	Increment float64
	// Cap bounds the cumulative added weight. Use math.Inf(1) for unbounded.
	Cap float64
}

// validate checks the configuration invariants.
func (c PityConfig) validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be >= 1, got %d", c.Threshold)
	}
	if math.IsNaN(c.Increment) || math.IsInf(c.Increment, 0) {
		return fmt.Errorf("increment must be finite, got %v", c.Increment)
	}
	if math.IsNaN(c.Cap) || c.Cap < 0 {
		return fmt.Errorf("cap must be >= 0 or +Inf, got %v", c.Cap)
	}
	return nil
}

// PityState is a PityConfig plus its runtime counters.
//
// Invariant: Counter >= 0 and CurrentAdd <= Cap.
type PityState struct {
	PityConfig
	// Counter is the number of consecutive draws that selected another item.
	Counter int
	// CurrentAdd is the cumulative weight added so far.
	CurrentAdd float64
}

// pityRecord is the mutable engine-side pity state for one item.
type pityRecord struct {
	cfg        PityConfig
	counter    int
	currentAdd float64
}

// boosted reports whether the record is past its threshold.
func (p *pityRecord) boosted() bool {
	return p.counter > p.cfg.Threshold
}

// nextAdd returns the cumulative added weight the next draw applies,
// without mutating the record.
func (p *pityRecord) nextAdd() float64 {
	add := p.currentAdd + p.cfg.Increment
	if add > p.cfg.Cap {
		add = p.cfg.Cap
	}
	return add
}

func (p *pityRecord) state() PityState {
	return PityState{PityConfig: p.cfg, Counter: p.counter, CurrentAdd: p.currentAdd}
}

// SetPity installs or replaces the pity configuration for an item,
// resetting its counters.
//
// Precondition: the item must be registered; cfg must satisfy its invariants.
func (e *Engine) SetPity(id string, cfg PityConfig) error {
	if _, ok := e.index[id]; !ok {
		return fmt.Errorf("raffle: Engine.SetPity: unknown item %q: %w", id, ErrNotFound)
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("raffle: Engine.SetPity: item %q: %s: %w", id, err, ErrInvalidArgument)
	}
	e.pity[id] = &pityRecord{cfg: cfg}
	return nil
}

// RemovePity deletes the pity configuration for an item. It reports whether
// a configuration was present.
func (e *Engine) RemovePity(id string) bool {
	_, ok := e.pity[id]
	delete(e.pity, id)
	return ok
}

// PityOf returns a copy of the item's pity state and whether one is configured.
func (e *Engine) PityOf(id string) (PityState, bool) {
	rec, ok := e.pity[id]
	if !ok {
		return PityState{}, false
	}
	return rec.state(), true
}

// advancePity performs the post-selection pity step: records past their
// threshold bank the boost they just applied, the chosen item resets, and
// every other configured record's counter increments.
func (e *Engine) advancePity(chosenID string) {
	for _, rec := range e.pity {
		if rec.boosted() {
			rec.currentAdd = rec.nextAdd()
		}
	}
	for id, rec := range e.pity {
		if id == chosenID {
			rec.counter = 0
			rec.currentAdd = 0
		} else {
			rec.counter++
		}
	}
}
