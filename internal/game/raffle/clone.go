package raffle

import (
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/events"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/random"
)

// Clone returns an engine with deep-copied items, groups, exclusions, pity
// records, frequencies, and modifier registrations (the functions themselves
// are shared by reference).
//
// A seed-driven engine clones its generator at the current position, so the
// clone's future draws match the original's. An injected Source is shared
// by reference; interleaved draws on the two engines then consume the same
// stream. Event subscriptions are not cloned.
func (e *Engine) Clone() *Engine {
	n := &Engine{
		items:         make([]*Item, 0, len(e.items)),
		index:         make(map[string]*Item, len(e.index)),
		groups:        make(map[string]map[string]struct{}, len(e.groups)),
		excluded:      make(map[string]struct{}, len(e.excluded)),
		pity:          make(map[string]*pityRecord, len(e.pity)),
		normalization: e.normalization,
		frequency:     make(map[string]int, len(e.frequency)),
		emitter:       events.NewEmitter(e.logger),
		logger:        e.logger,
	}

	for _, it := range e.items {
		copied := &Item{
			ID:         it.ID,
			Label:      it.Label,
			BaseWeight: it.BaseWeight,
			Meta:       copyMeta(it.Meta),
			Locked:     it.Locked,
		}
		n.items = append(n.items, copied)
		n.index[copied.ID] = copied
	}
	for name, members := range e.groups {
		copied := make(map[string]struct{}, len(members))
		for id := range members {
			copied[id] = struct{}{}
		}
		n.groups[name] = copied
	}
	for id := range e.excluded {
		n.excluded[id] = struct{}{}
	}
	for id, rec := range e.pity {
		n.pity[id] = &pityRecord{cfg: rec.cfg, counter: rec.counter, currentAdd: rec.currentAdd}
	}
	for id, count := range e.frequency {
		n.frequency[id] = count
	}

	n.globals = cloneModifiers(e.globals)
	n.temporaries = cloneModifiers(e.temporaries)
	n.rules = cloneModifiers(e.rules)

	if e.seed != nil && e.mulberry != nil {
		seed := *e.seed
		n.seed = &seed
		m := random.NewMulberry32At(seed, e.mulberry.Position())
		n.rng = m
		n.mulberry = m
	} else {
		n.rng = e.rng
	}
	return n
}

// cloneModifiers copies registration records; the functions are shared.
func cloneModifiers(records []*modifierRecord) []*modifierRecord {
	if len(records) == 0 {
		return nil
	}
	out := make([]*modifierRecord, 0, len(records))
	for _, rec := range records {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}
