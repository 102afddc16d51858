// Package inventory implements stackable item storage: a definition
// registry, flat or sectioned stack collections with slot and weight
// limits, special equipment slots, metadata-aware stack merging, and a
// trader for transactional transfers between two inventories.
//
// Inventories are single-threaded by contract: callers must not reenter an
// inventory from an event handler or use callback, and must serialize
// access when sharing an inventory across goroutines.
package inventory

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/events"
)

var (
	// ErrInvalidArgument reports a malformed argument: empty ids, negative
	// quantities, bad limits, or out-of-range slot indices.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports a missing definition, section, slot, or stack.
	ErrNotFound = errors.New("not found")
	// ErrOutOfSpace reports that slot or weight limits refuse more units.
	ErrOutOfSpace = errors.New("out of space")
	// ErrIllegalState reports an operation the current state precludes,
	// such as equipping an item the inventory does not hold.
	ErrIllegalState = errors.New("illegal state")
	// ErrSerialization reports an unreadable or unwritable snapshot.
	ErrSerialization = errors.New("serialization failure")
)

// Inventory holds stacks in either one flat list or named sections, plus
// special equipment slots. See the package documentation for the threading
// contract.
//
// Invariant: every section's item list stays within its slot bound; special
// slots hold at most one stack of quantity 1.
type Inventory struct {
	reg *Registry

	maxWeight *float64
	maxSlots  *int

	useSections bool
	items       []*Stack
	sections    []*Section
	sectionIdx  map[string]*Section

	specialOrder []string
	special      map[string]*SpecialSlot

	emitter *events.Emitter
	logger  *zap.Logger
}

// SectionConfig declares one named sub-container and its slot bound.
type SectionConfig struct {
	ID    string
	Slots int
}

// SpecialSlotConfig declares one equipment slot. An empty Type accepts any
// item.
type SpecialSlotConfig struct {
	ID   string
	Type string
}

// Options configures a new Inventory.
type Options struct {
	// MaxWeight bounds the computed total weight. Nil means unbounded.
	MaxWeight *float64
	// MaxSlots bounds the main-storage stack count. Nil means unbounded.
	MaxSlots *int
	// Sections switches the inventory to sectioned storage when non-empty.
	Sections []SectionConfig
	// SpecialSlots declares equipment slots, registered in order.
	SpecialSlots []SpecialSlotConfig
	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger
	// MaxListeners overrides the emitter's per-event listener cap when > 0.
	MaxListeners int
}

// New creates an Inventory backed by the given definition registry.
//
// Precondition: reg must be non-nil.
// Postcondition: the inventory is empty; sectioned mode is active iff
// opts.Sections is non-empty.
func New(reg *Registry, opts Options) (*Inventory, error) {
	if reg == nil {
		return nil, fmt.Errorf("inventory: New: nil registry: %w", ErrInvalidArgument)
	}
	if opts.MaxWeight != nil && (math.IsNaN(*opts.MaxWeight) || math.IsInf(*opts.MaxWeight, 0) || *opts.MaxWeight < 0) {
		return nil, fmt.Errorf("inventory: New: max weight must be finite and >= 0: %w", ErrInvalidArgument)
	}
	if opts.MaxSlots != nil && *opts.MaxSlots < 0 {
		return nil, fmt.Errorf("inventory: New: max slots must be >= 0, got %d: %w", *opts.MaxSlots, ErrInvalidArgument)
	}
	if opts.MaxListeners < 0 {
		return nil, fmt.Errorf("inventory: New: max listeners must be >= 0, got %d: %w", opts.MaxListeners, ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	inv := &Inventory{
		reg:        reg,
		maxWeight:  opts.MaxWeight,
		maxSlots:   opts.MaxSlots,
		sectionIdx: make(map[string]*Section),
		special:    make(map[string]*SpecialSlot),
		emitter:    events.NewEmitter(logger),
		logger:     logger,
	}
	if opts.MaxListeners > 0 {
		if err := inv.emitter.SetMaxListeners(opts.MaxListeners); err != nil {
			return nil, fmt.Errorf("inventory: New: %w", err)
		}
	}

	inv.useSections = len(opts.Sections) > 0
	for _, sc := range opts.Sections {
		if sc.ID == "" {
			return nil, fmt.Errorf("inventory: New: section id must not be empty: %w", ErrInvalidArgument)
		}
		if sc.Slots < 0 {
			return nil, fmt.Errorf("inventory: New: section %q: slots must be >= 0, got %d: %w", sc.ID, sc.Slots, ErrInvalidArgument)
		}
		if _, dup := inv.sectionIdx[sc.ID]; dup {
			return nil, fmt.Errorf("inventory: New: duplicate section %q: %w", sc.ID, ErrInvalidArgument)
		}
		sec := &Section{ID: sc.ID, Slots: sc.Slots}
		inv.sections = append(inv.sections, sec)
		inv.sectionIdx[sc.ID] = sec
	}

	for _, sc := range opts.SpecialSlots {
		if sc.ID == "" {
			return nil, fmt.Errorf("inventory: New: special slot id must not be empty: %w", ErrInvalidArgument)
		}
		if _, dup := inv.special[sc.ID]; dup {
			return nil, fmt.Errorf("inventory: New: duplicate special slot %q: %w", sc.ID, ErrInvalidArgument)
		}
		inv.special[sc.ID] = &SpecialSlot{Type: sc.Type}
		inv.specialOrder = append(inv.specialOrder, sc.ID)
	}
	return inv, nil
}

// Events returns the inventory's emitter for subscribing to add, set,
// remove, and use events.
func (inv *Inventory) Events() *events.Emitter {
	return inv.emitter
}

// Registry returns the definition registry the inventory resolves against.
func (inv *Inventory) Registry() *Registry {
	return inv.reg
}

// UseSections reports whether the inventory stores stacks in named sections.
func (inv *Inventory) UseSections() bool {
	return inv.useSections
}

// collection is one scannable stack list: the flat list or a section.
// A negative slot bound means the list grows without a structural limit.
type collection struct {
	name  string
	items *[]*Stack
	slots int
}

// flatCollection is the collection name of the unsectioned stack list.
const flatCollection = "items"

func (inv *Inventory) collections() []collection {
	if !inv.useSections {
		// The flat list has no structural bound; MaxSlots is a soft gate
		// applied through HasSpace and can be overridden by a forced add.
		return []collection{{name: flatCollection, items: &inv.items, slots: -1}}
	}
	out := make([]collection, 0, len(inv.sections))
	for _, sec := range inv.sections {
		out = append(out, collection{name: sec.ID, items: &sec.items, slots: sec.Slots})
	}
	return out
}

// findPlacement returns the first free position for a new stack: a nil hole
// if one exists, otherwise an append position in a list that still has
// structural room.
func (inv *Inventory) findPlacement() (*collection, int, bool) {
	cols := inv.collections()
	for i := range cols {
		for idx, st := range *cols[i].items {
			if st == nil {
				return &cols[i], idx, true
			}
		}
	}
	for i := range cols {
		if cols[i].slots < 0 || len(*cols[i].items) < cols[i].slots {
			return &cols[i], -1, true
		}
	}
	return nil, 0, false
}

// StackCount returns the number of stacks in main storage. Special slots do
// not count against the slot limit.
func (inv *Inventory) StackCount() int {
	count := 0
	for _, col := range inv.collections() {
		for _, st := range *col.items {
			if st != nil {
				count++
			}
		}
	}
	return count
}

// CountOf returns the total units of the given item id across main storage
// and special slots.
func (inv *Inventory) CountOf(id string) int {
	total := 0
	for _, col := range inv.collections() {
		for _, st := range *col.items {
			if st != nil && st.ID == id {
				total += st.Quantity
			}
		}
	}
	for _, slotID := range inv.specialOrder {
		if st := inv.special[slotID].Item; st != nil && st.ID == id {
			total += st.Quantity
		}
	}
	return total
}

// CalculateWeight returns the sum of definition weight times quantity over
// all stacks, special slots included. Stacks without a registered
// definition weigh nothing.
func (inv *Inventory) CalculateWeight() float64 {
	var total float64
	add := func(st *Stack) {
		if st == nil {
			return
		}
		if def, ok := inv.reg.Definition(st.ID); ok {
			total += def.Weight * float64(st.Quantity)
		}
	}
	for _, col := range inv.collections() {
		for _, st := range *col.items {
			add(st)
		}
	}
	for _, slotID := range inv.specialOrder {
		add(inv.special[slotID].Item)
	}
	return total
}

// HasSpace reports whether the inventory can accept one more stack: the
// main-storage stack count is under MaxSlots (when set) and the computed
// weight is within MaxWeight (when set).
func (inv *Inventory) HasSpace() bool {
	if inv.maxSlots != nil && inv.StackCount() >= *inv.maxSlots {
		return false
	}
	if inv.maxWeight != nil && inv.CalculateWeight() > *inv.maxWeight {
		return false
	}
	return true
}

// MaxWeight returns the weight limit and whether one is set.
func (inv *Inventory) MaxWeight() (float64, bool) {
	if inv.maxWeight == nil {
		return 0, false
	}
	return *inv.maxWeight, true
}

// MaxSlots returns the stack-count limit and whether one is set.
func (inv *Inventory) MaxSlots() (int, bool) {
	if inv.maxSlots == nil {
		return 0, false
	}
	return *inv.maxSlots, true
}

// Sections returns the section ids in registration order. Empty in flat
// mode.
func (inv *Inventory) Sections() []string {
	out := make([]string, 0, len(inv.sections))
	for _, sec := range inv.sections {
		out = append(out, sec.ID)
	}
	return out
}

// SpecialSlots returns the special slot ids in registration order.
func (inv *Inventory) SpecialSlots() []string {
	out := make([]string, len(inv.specialOrder))
	copy(out, inv.specialOrder)
	return out
}
