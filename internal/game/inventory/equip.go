package inventory

import "fmt"

// EquipOption adjusts a single Equip call.
type EquipOption func(*equipConfig)

type equipConfig struct {
	metadata      map[string]any
	matchMetadata bool
}

// WithEquipMetadata restricts the source stack to one whose metadata is
// structurally equal to m.
func WithEquipMetadata(m map[string]any) EquipOption {
	return func(cfg *equipConfig) {
		cfg.metadata = m
		cfg.matchMetadata = true
	}
}

// Equip moves one unit of the given item from main storage into a special
// slot. An occupied slot is unequipped first, returning its unit to main
// storage.
//
// Precondition: the slot and definition exist; a typed slot requires the
// definition's matching type; main storage holds at least one matching unit.
// Postcondition: the slot holds a quantity-1 stack carrying the source
// stack's metadata.
func (inv *Inventory) Equip(slotID, itemID string, opts ...EquipOption) error {
	slot, ok := inv.special[slotID]
	if !ok {
		return fmt.Errorf("inventory: Inventory.Equip: unknown slot %q: %w", slotID, ErrNotFound)
	}
	def, ok := inv.reg.Definition(itemID)
	if !ok {
		return fmt.Errorf("inventory: Inventory.Equip: unknown definition %q: %w", itemID, ErrNotFound)
	}
	if slot.Type != "" && def.Type != slot.Type {
		return fmt.Errorf("inventory: Inventory.Equip: item type %q does not match slot type %q: %w",
			def.Type, slot.Type, ErrIllegalState)
	}

	var cfg equipConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if slot.Item != nil {
		if err := inv.Unequip(slotID); err != nil {
			return fmt.Errorf("inventory: Inventory.Equip: cannot clear slot %q: %w", slotID, err)
		}
	}

	// The source is located after any unequip: the returned unit may have
	// merged into the stack being equipped from.
	src := inv.findMainStack(itemID, &cfg)
	if src == nil {
		return fmt.Errorf("inventory: Inventory.Equip: no stack of %q in main storage: %w", itemID, ErrIllegalState)
	}

	equipped := &Stack{ID: itemID, Quantity: 1, Metadata: copyMetadata(src.stack.Metadata)}
	src.stack.Quantity--
	if src.stack.Quantity == 0 {
		(*src.items)[src.index] = nil
	}
	inv.emitRemove(src.index, itemID, 1, src.collection)

	slot.Item = equipped
	return nil
}

// Unequip returns a special slot's unit to main storage and clears the
// slot. The unit goes through the normal add path, so a full inventory
// refuses it and the slot keeps its item.
//
// Precondition: the slot exists and holds an item.
func (inv *Inventory) Unequip(slotID string) error {
	slot, ok := inv.special[slotID]
	if !ok {
		return fmt.Errorf("inventory: Inventory.Unequip: unknown slot %q: %w", slotID, ErrNotFound)
	}
	if slot.Item == nil {
		return fmt.Errorf("inventory: Inventory.Unequip: slot %q is empty: %w", slotID, ErrIllegalState)
	}

	// The slot clears before the add so its unit is not double-counted
	// against the weight limit; a refused add restores it.
	st := slot.Item
	slot.Item = nil
	if _, err := inv.AddItem(st.ID, st.Quantity, WithMetadata(st.Metadata)); err != nil {
		slot.Item = st
		return fmt.Errorf("inventory: Inventory.Unequip: cannot return %q to main storage: %w", st.ID, err)
	}
	return nil
}

// Equipped returns a copy of the stack in the given special slot, nil when
// the slot is empty.
func (inv *Inventory) Equipped(slotID string) (*Stack, error) {
	slot, ok := inv.special[slotID]
	if !ok {
		return nil, fmt.Errorf("inventory: Inventory.Equipped: unknown slot %q: %w", slotID, ErrNotFound)
	}
	return slot.Item.clone(), nil
}

// mainStackRef locates one stack inside main storage.
type mainStackRef struct {
	stack      *Stack
	items      *[]*Stack
	index      int
	collection string
}

func (inv *Inventory) findMainStack(id string, cfg *equipConfig) *mainStackRef {
	for _, col := range inv.collections() {
		for idx, st := range *col.items {
			if st == nil || st.ID != id {
				continue
			}
			if cfg.matchMetadata && !MetadataEqual(st.Metadata, cfg.metadata) {
				continue
			}
			return &mainStackRef{stack: st, items: col.items, index: idx, collection: col.name}
		}
	}
	return nil
}
