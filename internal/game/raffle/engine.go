package raffle

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/events"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/random"
)

// Engine is a weighted draw engine. See the package documentation for the
// threading contract.
//
// Invariant: items iterate in insertion order; every id in index, groups,
// pity, and frequency refers to a registered item.
type Engine struct {
	items []*Item
	index map[string]*Item

	groups   map[string]map[string]struct{}
	excluded map[string]struct{}
	pity     map[string]*pityRecord

	globals     []*modifierRecord
	temporaries []*modifierRecord
	rules       []*modifierRecord

	normalization Normalization
	frequency     map[string]int

	rng      random.Source
	mulberry *random.Mulberry32
	seed     *int64

	emitter *events.Emitter
	logger  *zap.Logger
}

// Options configures a new Engine.
type Options struct {
	// RNG injects a random source. Takes precedence over Seed.
	RNG random.Source
	// Seed builds a deterministic generator when RNG is nil.
	Seed *int64
	// Normalization defaults to NormalizationRelative when empty.
	Normalization Normalization
	// Logger receives debug/warn output. Nil disables logging.
	Logger *zap.Logger
	// MaxListeners overrides the emitter's per-event listener cap when > 0.
	MaxListeners int
}

// New creates an Engine.
//
// Postcondition: the engine has no items and draws report no result until
// items are added.
func New(opts Options) (*Engine, error) {
	norm := opts.Normalization
	if norm == "" {
		norm = NormalizationRelative
	}
	if _, err := ParseNormalization(string(norm)); err != nil {
		return nil, fmt.Errorf("raffle: New: %w", err)
	}
	if opts.MaxListeners < 0 {
		return nil, fmt.Errorf("raffle: New: max listeners must be >= 0, got %d: %w", opts.MaxListeners, ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		index:         make(map[string]*Item),
		groups:        make(map[string]map[string]struct{}),
		excluded:      make(map[string]struct{}),
		pity:          make(map[string]*pityRecord),
		normalization: norm,
		frequency:     make(map[string]int),
		emitter:       events.NewEmitter(logger),
		logger:        logger,
	}
	if opts.MaxListeners > 0 {
		if err := e.emitter.SetMaxListeners(opts.MaxListeners); err != nil {
			return nil, fmt.Errorf("raffle: New: %w", err)
		}
	}

	switch {
	case opts.RNG != nil:
		e.rng = opts.RNG
	case opts.Seed != nil:
		e.SetSeed(*opts.Seed)
	default:
		e.rng = random.NewSystemSource()
	}
	return e, nil
}

// Events returns the engine's emitter for subscribing to draw and registry
// events.
func (e *Engine) Events() *events.Emitter {
	return e.emitter
}

// SetSeed replaces the random source with a deterministic generator built
// from seed at position zero, and records the seed for export.
func (e *Engine) SetSeed(seed int64) {
	m := random.NewMulberry32(seed)
	e.rng = m
	e.mulberry = m
	e.seed = &seed
}

// Seed returns the recorded seed and whether the engine is seed-driven.
func (e *Engine) Seed() (int64, bool) {
	if e.seed == nil {
		return 0, false
	}
	return *e.seed, true
}

// SetRNG injects a random source, clearing any recorded seed. Pity state,
// items, and the distribution configuration are untouched.
//
// Precondition: src must be non-nil.
func (e *Engine) SetRNG(src random.Source) error {
	if src == nil {
		return fmt.Errorf("raffle: Engine.SetRNG: nil source: %w", ErrInvalidArgument)
	}
	e.rng = src
	e.mulberry = nil
	e.seed = nil
	return nil
}

// SetNormalization switches the probability transform.
func (e *Engine) SetNormalization(n Normalization) error {
	if _, err := ParseNormalization(string(n)); err != nil {
		return fmt.Errorf("raffle: Engine.SetNormalization: %w", err)
	}
	e.normalization = n
	return nil
}

// Normalization returns the active probability transform.
func (e *Engine) Normalization() Normalization {
	return e.normalization
}

// validateItem checks AddItem's argument invariants.
func validateItem(item Item) error {
	if item.ID == "" {
		return fmt.Errorf("id must not be empty")
	}
	if math.IsNaN(item.BaseWeight) || math.IsInf(item.BaseWeight, 0) || item.BaseWeight < 0 {
		return fmt.Errorf("base weight must be finite and >= 0, got %v", item.BaseWeight)
	}
	for _, g := range item.Groups {
		if g == "" {
			return fmt.Errorf("group names must not be empty")
		}
	}
	return nil
}

// AddItem registers a new item. The item's metadata is deep-copied; the
// caller's value is never aliased.
//
// Precondition: item.ID is non-empty and unused; item.BaseWeight is finite
// and >= 0.
// Postcondition: the item draws after all previously added items in
// pipeline iteration order; EventItemAdded is emitted with a copy.
func (e *Engine) AddItem(item Item) error {
	if err := validateItem(item); err != nil {
		return fmt.Errorf("raffle: Engine.AddItem: %s: %w", err, ErrInvalidArgument)
	}
	if _, exists := e.index[item.ID]; exists {
		return fmt.Errorf("raffle: Engine.AddItem: item %q already registered: %w", item.ID, ErrInvalidArgument)
	}

	stored := &Item{
		ID:         item.ID,
		Label:      item.Label,
		BaseWeight: item.BaseWeight,
		Meta:       copyMeta(item.Meta),
		Locked:     item.Locked,
	}
	if stored.Label == "" {
		stored.Label = item.ID
	}
	e.items = append(e.items, stored)
	e.index[item.ID] = stored
	for _, g := range item.Groups {
		e.addGroupMember(g, item.ID)
	}

	e.logger.Debug("item added",
		zap.String("id", stored.ID),
		zap.Float64("baseWeight", stored.BaseWeight),
	)
	e.emitter.Emit(EventItemAdded, e.snapshotItem(stored))
	return nil
}

// RemoveItem deregisters an item, detaching it from every group and
// deleting its pity record and draw frequency.
//
// Postcondition: EventItemRemoved is emitted with the id.
func (e *Engine) RemoveItem(id string) error {
	if _, ok := e.index[id]; !ok {
		return fmt.Errorf("raffle: Engine.RemoveItem: unknown item %q: %w", id, ErrNotFound)
	}
	for i, it := range e.items {
		if it.ID == id {
			e.items = append(e.items[:i:i], e.items[i+1:]...)
			break
		}
	}
	delete(e.index, id)
	for name, members := range e.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(e.groups, name)
		}
	}
	delete(e.pity, id)
	delete(e.frequency, id)

	e.emitter.Emit(EventItemRemoved, id)
	return nil
}

// SetBaseWeight replaces an item's base weight.
//
// Precondition: w is finite and >= 0; the item exists.
// Postcondition: EventWeightChanged is emitted.
func (e *Engine) SetBaseWeight(id string, w float64) error {
	item, ok := e.index[id]
	if !ok {
		return fmt.Errorf("raffle: Engine.SetBaseWeight: unknown item %q: %w", id, ErrNotFound)
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("raffle: Engine.SetBaseWeight: weight must be finite and >= 0, got %v: %w", w, ErrInvalidArgument)
	}
	item.BaseWeight = w
	e.emitter.Emit(EventWeightChanged, WeightChange{ID: id, Weight: w})
	return nil
}

// GetItem returns a copy of the item and whether it is registered.
func (e *Engine) GetItem(id string) (Item, bool) {
	item, ok := e.index[id]
	if !ok {
		return Item{}, false
	}
	return e.snapshotItem(item), true
}

// ListItems returns copies of all items in insertion order.
func (e *Engine) ListItems() []Item {
	out := make([]Item, 0, len(e.items))
	for _, it := range e.items {
		out = append(out, e.snapshotItem(it))
	}
	return out
}

// Len returns the number of registered items.
func (e *Engine) Len() int {
	return len(e.items)
}

// ClearItems drops every item together with all groups, pity records, and
// draw frequencies. Exclusions, modifiers, normalization, and the random
// source survive.
func (e *Engine) ClearItems() {
	e.items = nil
	e.index = make(map[string]*Item)
	e.groups = make(map[string]map[string]struct{})
	e.pity = make(map[string]*pityRecord)
	e.frequency = make(map[string]int)
}

// snapshotItem builds the public copy of a stored item, with groups
// reconstructed from the group registry.
func (e *Engine) snapshotItem(item *Item) Item {
	return Item{
		ID:         item.ID,
		Label:      item.Label,
		BaseWeight: item.BaseWeight,
		Groups:     e.groupsOf(item.ID),
		Meta:       copyMeta(item.Meta),
		Locked:     item.Locked,
	}
}

// groupsOf returns the sorted group names containing id.
func (e *Engine) groupsOf(id string) []string {
	var out []string
	for name, members := range e.groups {
		if _, ok := members[id]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (e *Engine) addGroupMember(group, id string) {
	members, ok := e.groups[group]
	if !ok {
		members = make(map[string]struct{})
		e.groups[group] = members
	}
	members[id] = struct{}{}
}

// AddToGroup adds a registered item to a named group, creating the group on
// first use.
//
// Precondition: group is non-empty; the item exists.
func (e *Engine) AddToGroup(group, id string) error {
	if group == "" {
		return fmt.Errorf("raffle: Engine.AddToGroup: empty group name: %w", ErrInvalidArgument)
	}
	if _, ok := e.index[id]; !ok {
		return fmt.Errorf("raffle: Engine.AddToGroup: unknown item %q: %w", id, ErrNotFound)
	}
	e.addGroupMember(group, id)
	return nil
}

// RemoveFromGroup detaches an item from a group. Removing the last member
// drops the group.
//
// Precondition: group is non-empty; the item exists.
func (e *Engine) RemoveFromGroup(group, id string) error {
	if group == "" {
		return fmt.Errorf("raffle: Engine.RemoveFromGroup: empty group name: %w", ErrInvalidArgument)
	}
	if _, ok := e.index[id]; !ok {
		return fmt.Errorf("raffle: Engine.RemoveFromGroup: unknown item %q: %w", id, ErrNotFound)
	}
	members, ok := e.groups[group]
	if !ok {
		return nil
	}
	delete(members, id)
	if len(members) == 0 {
		delete(e.groups, group)
	}
	return nil
}

// HasInGroup reports whether the item belongs to the group.
func (e *Engine) HasInGroup(group, id string) bool {
	members, ok := e.groups[group]
	if !ok {
		return false
	}
	_, ok = members[id]
	return ok
}

// GroupMembers returns the sorted member ids of a group.
func (e *Engine) GroupMembers(group string) []string {
	members, ok := e.groups[group]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExcludeItem removes an id from every future distribution until included
// again. Ids that are not registered may be excluded; the entry simply has
// no effect until an item with that id exists.
//
// Precondition: id is non-empty.
func (e *Engine) ExcludeItem(id string) error {
	if id == "" {
		return fmt.Errorf("raffle: Engine.ExcludeItem: empty id: %w", ErrInvalidArgument)
	}
	e.excluded[id] = struct{}{}
	return nil
}

// IncludeItem lifts an exclusion.
//
// Precondition: id is non-empty.
func (e *Engine) IncludeItem(id string) error {
	if id == "" {
		return fmt.Errorf("raffle: Engine.IncludeItem: empty id: %w", ErrInvalidArgument)
	}
	delete(e.excluded, id)
	return nil
}

// HasExclusion reports whether the id is currently excluded.
func (e *Engine) HasExclusion(id string) bool {
	_, ok := e.excluded[id]
	return ok
}

// Frequency returns how many times the id has been drawn since the engine
// was created, cleared, or imported.
func (e *Engine) Frequency(id string) int {
	return e.frequency[id]
}

// Frequencies returns a copy of the full draw-count map.
func (e *Engine) Frequencies() map[string]int {
	out := make(map[string]int, len(e.frequency))
	for id, n := range e.frequency {
		out[id] = n
	}
	return out
}
