package raffle

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Snapshot is the engine's serializable state: items (with groups and
// metadata), pity records, exclusions, normalization, and the recorded
// seed. Modifier functions, rules, and draw frequencies are runtime-only
// and never serialize.
type Snapshot struct {
	Items         []ItemSnapshot `json:"items"`
	Pity          []PitySnapshot `json:"pity"`
	Exclusions    []string       `json:"exclusions"`
	Normalization string         `json:"normalization"`
	Seed          *int64         `json:"seed"`
}

// ItemSnapshot is the wire form of one item.
type ItemSnapshot struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	BaseWeight float64        `json:"baseWeight"`
	Groups     []string       `json:"groups,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Locked     bool           `json:"locked,omitempty"`
}

// PitySnapshot is the wire form of one pity record. A nil Cap means
// unbounded.
type PitySnapshot struct {
	ID         string   `json:"id"`
	Threshold  int      `json:"threshold"`
	Increment  float64  `json:"increment"`
	Cap        *float64 `json:"cap"`
	Counter    int      `json:"counter"`
	CurrentAdd float64  `json:"currentAdd"`
}

// Export captures the serializable state.
//
// Postcondition: items appear in insertion order, pity records in their
// items' insertion order, exclusions sorted.
func (e *Engine) Export() Snapshot {
	snap := Snapshot{
		Items:         make([]ItemSnapshot, 0, len(e.items)),
		Pity:          make([]PitySnapshot, 0, len(e.pity)),
		Exclusions:    make([]string, 0, len(e.excluded)),
		Normalization: string(e.normalization),
	}
	for _, it := range e.items {
		snap.Items = append(snap.Items, ItemSnapshot{
			ID:         it.ID,
			Label:      it.Label,
			BaseWeight: it.BaseWeight,
			Groups:     e.groupsOf(it.ID),
			Meta:       copyMeta(it.Meta),
			Locked:     it.Locked,
		})
	}
	for _, it := range e.items {
		rec, ok := e.pity[it.ID]
		if !ok {
			continue
		}
		ps := PitySnapshot{
			ID:         it.ID,
			Threshold:  rec.cfg.Threshold,
			Increment:  rec.cfg.Increment,
			Counter:    rec.counter,
			CurrentAdd: rec.currentAdd,
		}
		if !math.IsInf(rec.cfg.Cap, 1) {
			c := rec.cfg.Cap
			ps.Cap = &c
		}
		snap.Pity = append(snap.Pity, ps)
	}
	for id := range e.excluded {
		snap.Exclusions = append(snap.Exclusions, id)
	}
	sort.Strings(snap.Exclusions)
	if e.seed != nil {
		seed := *e.seed
		snap.Seed = &seed
	}
	return snap
}

// Import replaces the engine's serializable state with snap. Items, groups,
// pity, exclusions, and normalization are rebuilt; draw frequencies reset;
// a non-nil seed reseeds the random source at position zero. Registered
// modifiers and event subscriptions are runtime state and survive.
//
// Postcondition: on error the engine is unchanged.
func (e *Engine) Import(snap Snapshot) error {
	norm, err := ParseNormalization(snap.Normalization)
	if err != nil {
		return fmt.Errorf("raffle: Engine.Import: %w", err)
	}

	items := make([]*Item, 0, len(snap.Items))
	index := make(map[string]*Item, len(snap.Items))
	groups := make(map[string]map[string]struct{})
	for _, is := range snap.Items {
		item := Item{
			ID:         is.ID,
			Label:      is.Label,
			BaseWeight: is.BaseWeight,
			Groups:     is.Groups,
			Meta:       is.Meta,
			Locked:     is.Locked,
		}
		if err := validateItem(item); err != nil {
			return fmt.Errorf("raffle: Engine.Import: item %q: %s: %w", is.ID, err, ErrInvalidArgument)
		}
		if _, dup := index[is.ID]; dup {
			return fmt.Errorf("raffle: Engine.Import: duplicate item %q: %w", is.ID, ErrInvalidArgument)
		}
		stored := &Item{
			ID:         is.ID,
			Label:      is.Label,
			BaseWeight: is.BaseWeight,
			Meta:       copyMeta(is.Meta),
			Locked:     is.Locked,
		}
		if stored.Label == "" {
			stored.Label = is.ID
		}
		items = append(items, stored)
		index[is.ID] = stored
		for _, g := range is.Groups {
			members, ok := groups[g]
			if !ok {
				members = make(map[string]struct{})
				groups[g] = members
			}
			members[is.ID] = struct{}{}
		}
	}

	pity := make(map[string]*pityRecord, len(snap.Pity))
	for _, ps := range snap.Pity {
		if _, ok := index[ps.ID]; !ok {
			return fmt.Errorf("raffle: Engine.Import: pity record for unknown item %q: %w", ps.ID, ErrInvalidArgument)
		}
		cfg := PityConfig{Threshold: ps.Threshold, Increment: ps.Increment, Cap: math.Inf(1)}
		if ps.Cap != nil {
			cfg.Cap = *ps.Cap
		}
		if err := cfg.validate(); err != nil {
			return fmt.Errorf("raffle: Engine.Import: pity record %q: %s: %w", ps.ID, err, ErrInvalidArgument)
		}
		if ps.Counter < 0 {
			return fmt.Errorf("raffle: Engine.Import: pity record %q: counter must be >= 0: %w", ps.ID, ErrInvalidArgument)
		}
		pity[ps.ID] = &pityRecord{cfg: cfg, counter: ps.Counter, currentAdd: ps.CurrentAdd}
	}

	excluded := make(map[string]struct{}, len(snap.Exclusions))
	for _, id := range snap.Exclusions {
		if id == "" {
			return fmt.Errorf("raffle: Engine.Import: empty exclusion id: %w", ErrInvalidArgument)
		}
		excluded[id] = struct{}{}
	}

	e.items = items
	e.index = index
	e.groups = groups
	e.pity = pity
	e.excluded = excluded
	e.normalization = norm
	e.frequency = make(map[string]int)
	if snap.Seed != nil {
		e.SetSeed(*snap.Seed)
	}
	return nil
}

// ExportJSON marshals the snapshot.
func (e *Engine) ExportJSON() ([]byte, error) {
	data, err := json.Marshal(e.Export())
	if err != nil {
		return nil, fmt.Errorf("raffle: Engine.ExportJSON: %s: %w", err, ErrSerialization)
	}
	return data, nil
}

// ImportJSON unmarshals and imports a snapshot produced by ExportJSON.
func (e *Engine) ImportJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("raffle: Engine.ImportJSON: %s: %w", err, ErrSerialization)
	}
	return e.Import(snap)
}
