package inventory

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/events"
)

// Schema tag and version every snapshot carries.
const (
	SchemaName    = "TinyInventory"
	SchemaVersion = 1
)

// Snapshot is the wire form of an inventory. Exactly one of Sections and
// Items is non-null, matching UseSections.
type Snapshot struct {
	Schema       string                     `json:"__schema"`
	Version      int                        `json:"version"`
	MaxWeight    *float64                   `json:"maxWeight"`
	MaxSlots     *int                       `json:"maxSlots"`
	UseSections  bool                       `json:"useSections"`
	Sections     []SectionSnapshot          `json:"sections"`
	Items        []*StackSnapshot           `json:"items"`
	SpecialSlots map[string]SpecialSnapshot `json:"specialSlots"`
}

// StackSnapshot is the wire form of one stack.
type StackSnapshot struct {
	ID       string         `json:"id"`
	Quantity int            `json:"quantity"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SectionSnapshot is the wire form of one section, nil holes included.
type SectionSnapshot struct {
	ID    string           `json:"id"`
	Slots int              `json:"slots"`
	Items []*StackSnapshot `json:"items"`
}

// SpecialSnapshot is the wire form of one special slot. A null type means
// the slot is untyped.
type SpecialSnapshot struct {
	Type *string        `json:"type"`
	Item *StackSnapshot `json:"item"`
}

// LoadOptions configures FromObject.
type LoadOptions struct {
	// ValidateDefinitions rejects stacks whose ids are not registered.
	ValidateDefinitions bool
	// EnforceLimits re-checks the slot and weight limits after the rebuild.
	EnforceLimits bool
	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger
	// MaxListeners overrides the emitter's per-event listener cap when > 0.
	MaxListeners int
}

// ToObject captures the inventory as a schema-tagged snapshot.
func (inv *Inventory) ToObject() Snapshot {
	snap := Snapshot{
		Schema:       SchemaName,
		Version:      SchemaVersion,
		UseSections:  inv.useSections,
		SpecialSlots: make(map[string]SpecialSnapshot, len(inv.special)),
	}
	if inv.maxWeight != nil {
		w := *inv.maxWeight
		snap.MaxWeight = &w
	}
	if inv.maxSlots != nil {
		s := *inv.maxSlots
		snap.MaxSlots = &s
	}

	if inv.useSections {
		snap.Sections = make([]SectionSnapshot, 0, len(inv.sections))
		for _, sec := range inv.sections {
			snap.Sections = append(snap.Sections, SectionSnapshot{
				ID:    sec.ID,
				Slots: sec.Slots,
				Items: stackSnapshots(sec.items),
			})
		}
	} else {
		snap.Items = stackSnapshots(inv.items)
	}

	for _, slotID := range inv.specialOrder {
		slot := inv.special[slotID]
		ss := SpecialSnapshot{Item: stackSnapshot(slot.Item)}
		if slot.Type != "" {
			t := slot.Type
			ss.Type = &t
		}
		snap.SpecialSlots[slotID] = ss
	}
	return snap
}

// FromObject rebuilds an inventory from a snapshot.
//
// Postcondition: special slots register in sorted id order; the returned
// inventory carries a fresh emitter with no subscriptions.
func FromObject(reg *Registry, snap Snapshot, opts LoadOptions) (*Inventory, error) {
	if reg == nil {
		return nil, fmt.Errorf("inventory: FromObject: nil registry: %w", ErrInvalidArgument)
	}
	if snap.Schema != SchemaName {
		return nil, fmt.Errorf("inventory: FromObject: unsupported schema %q: %w", snap.Schema, ErrSerialization)
	}
	if snap.Version != SchemaVersion {
		return nil, fmt.Errorf("inventory: FromObject: unsupported version %d: %w", snap.Version, ErrSerialization)
	}
	if snap.MaxWeight != nil && (math.IsNaN(*snap.MaxWeight) || math.IsInf(*snap.MaxWeight, 0) || *snap.MaxWeight < 0) {
		return nil, fmt.Errorf("inventory: FromObject: max weight must be finite and >= 0: %w", ErrSerialization)
	}
	if snap.MaxSlots != nil && *snap.MaxSlots < 0 {
		return nil, fmt.Errorf("inventory: FromObject: max slots must be >= 0: %w", ErrSerialization)
	}
	if opts.MaxListeners < 0 {
		return nil, fmt.Errorf("inventory: FromObject: max listeners must be >= 0: %w", ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := &Inventory{
		reg:         reg,
		useSections: snap.UseSections,
		sectionIdx:  make(map[string]*Section),
		special:     make(map[string]*SpecialSlot),
		emitter:     events.NewEmitter(logger),
		logger:      logger,
	}
	if snap.MaxWeight != nil {
		w := *snap.MaxWeight
		inv.maxWeight = &w
	}
	if snap.MaxSlots != nil {
		s := *snap.MaxSlots
		inv.maxSlots = &s
	}
	if opts.MaxListeners > 0 {
		if err := inv.emitter.SetMaxListeners(opts.MaxListeners); err != nil {
			return nil, fmt.Errorf("inventory: FromObject: %w", err)
		}
	}

	restore := func(where string, ss *StackSnapshot) (*Stack, error) {
		if ss == nil {
			return nil, nil
		}
		if ss.ID == "" {
			return nil, fmt.Errorf("inventory: FromObject: %s: stack id must not be empty: %w", where, ErrSerialization)
		}
		if ss.Quantity < 1 {
			return nil, fmt.Errorf("inventory: FromObject: %s: stack %q quantity must be >= 1, got %d: %w",
				where, ss.ID, ss.Quantity, ErrSerialization)
		}
		if opts.ValidateDefinitions && !reg.Has(ss.ID) {
			return nil, fmt.Errorf("inventory: FromObject: %s: unknown definition %q: %w", where, ss.ID, ErrNotFound)
		}
		return &Stack{ID: ss.ID, Quantity: ss.Quantity, Metadata: copyMetadata(ss.Metadata)}, nil
	}

	if snap.UseSections {
		for _, ss := range snap.Sections {
			if ss.ID == "" {
				return nil, fmt.Errorf("inventory: FromObject: section id must not be empty: %w", ErrSerialization)
			}
			if ss.Slots < 0 {
				return nil, fmt.Errorf("inventory: FromObject: section %q: slots must be >= 0: %w", ss.ID, ErrSerialization)
			}
			if len(ss.Items) > ss.Slots {
				return nil, fmt.Errorf("inventory: FromObject: section %q holds %d items over its %d slots: %w",
					ss.ID, len(ss.Items), ss.Slots, ErrSerialization)
			}
			if _, dup := inv.sectionIdx[ss.ID]; dup {
				return nil, fmt.Errorf("inventory: FromObject: duplicate section %q: %w", ss.ID, ErrSerialization)
			}
			sec := &Section{ID: ss.ID, Slots: ss.Slots}
			for _, item := range ss.Items {
				st, err := restore(fmt.Sprintf("section %q", ss.ID), item)
				if err != nil {
					return nil, err
				}
				sec.items = append(sec.items, st)
			}
			inv.sections = append(inv.sections, sec)
			inv.sectionIdx[ss.ID] = sec
		}
	} else {
		for _, item := range snap.Items {
			st, err := restore(flatCollection, item)
			if err != nil {
				return nil, err
			}
			inv.items = append(inv.items, st)
		}
	}

	slotIDs := make([]string, 0, len(snap.SpecialSlots))
	for slotID := range snap.SpecialSlots {
		slotIDs = append(slotIDs, slotID)
	}
	sort.Strings(slotIDs)
	for _, slotID := range slotIDs {
		if slotID == "" {
			return nil, fmt.Errorf("inventory: FromObject: special slot id must not be empty: %w", ErrSerialization)
		}
		ss := snap.SpecialSlots[slotID]
		st, err := restore(fmt.Sprintf("special slot %q", slotID), ss.Item)
		if err != nil {
			return nil, err
		}
		if st != nil && st.Quantity != 1 {
			return nil, fmt.Errorf("inventory: FromObject: special slot %q must hold quantity 1, got %d: %w",
				slotID, st.Quantity, ErrSerialization)
		}
		slot := &SpecialSlot{Item: st}
		if ss.Type != nil {
			slot.Type = *ss.Type
		}
		inv.special[slotID] = slot
		inv.specialOrder = append(inv.specialOrder, slotID)
	}

	if opts.EnforceLimits {
		if inv.maxSlots != nil && inv.StackCount() > *inv.maxSlots {
			return nil, fmt.Errorf("inventory: FromObject: %d stacks over the %d slot limit: %w",
				inv.StackCount(), *inv.maxSlots, ErrOutOfSpace)
		}
		if inv.maxWeight != nil && inv.CalculateWeight() > *inv.maxWeight {
			return nil, fmt.Errorf("inventory: FromObject: weight %.2f over the %.2f limit: %w",
				inv.CalculateWeight(), *inv.maxWeight, ErrOutOfSpace)
		}
	}
	return inv, nil
}

// ToJSON marshals the snapshot.
func (inv *Inventory) ToJSON() ([]byte, error) {
	data, err := json.Marshal(inv.ToObject())
	if err != nil {
		return nil, fmt.Errorf("inventory: Inventory.ToJSON: %s: %w", err, ErrSerialization)
	}
	return data, nil
}

// FromJSON unmarshals and rebuilds a snapshot produced by ToJSON.
func FromJSON(reg *Registry, data []byte, opts LoadOptions) (*Inventory, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("inventory: FromJSON: %s: %w", err, ErrSerialization)
	}
	return FromObject(reg, snap, opts)
}

func stackSnapshot(st *Stack) *StackSnapshot {
	if st == nil {
		return nil
	}
	return &StackSnapshot{ID: st.ID, Quantity: st.Quantity, Metadata: copyMetadata(st.Metadata)}
}

func stackSnapshots(stacks []*Stack) []*StackSnapshot {
	out := make([]*StackSnapshot, len(stacks))
	for i, st := range stacks {
		out[i] = stackSnapshot(st)
	}
	return out
}
