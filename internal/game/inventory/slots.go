package inventory

import "fmt"

// SetSlot writes a stack, or nil to clear, at an explicit index. Flat
// inventories address the main list with sectionID == ""; sectioned ones
// name the target section. Short lists are padded with nil holes up to the
// index.
//
// Precondition: 0 <= index, and index stays under the section's slot bound
// (or MaxSlots in flat mode, when set).
func (inv *Inventory) SetSlot(sectionID string, index int, st *Stack) error {
	col, err := inv.lookupCollection(sectionID)
	if err != nil {
		return fmt.Errorf("inventory: Inventory.SetSlot: %w", err)
	}
	if index < 0 {
		return fmt.Errorf("inventory: Inventory.SetSlot: index must be >= 0, got %d: %w", index, ErrInvalidArgument)
	}
	if col.slots >= 0 && index >= col.slots {
		return fmt.Errorf("inventory: Inventory.SetSlot: index %d out of range for %q (%d slots): %w",
			index, col.name, col.slots, ErrInvalidArgument)
	}
	if st != nil {
		if st.ID == "" {
			return fmt.Errorf("inventory: Inventory.SetSlot: stack id must not be empty: %w", ErrInvalidArgument)
		}
		if st.Quantity < 1 {
			return fmt.Errorf("inventory: Inventory.SetSlot: stack quantity must be >= 1, got %d: %w", st.Quantity, ErrInvalidArgument)
		}
	}

	for len(*col.items) <= index {
		*col.items = append(*col.items, nil)
	}
	(*col.items)[index] = st.clone()

	inv.emitter.Emit(EventSet, SetEvent{
		SlotIndex:     index,
		Item:          st.clone(),
		TargetSection: sectionID,
	})
	return nil
}

// SlotAt returns a copy of the stack at the given index, or nil for an
// empty or never-written position.
func (inv *Inventory) SlotAt(sectionID string, index int) (*Stack, error) {
	col, err := inv.lookupCollection(sectionID)
	if err != nil {
		return nil, fmt.Errorf("inventory: Inventory.SlotAt: %w", err)
	}
	if index < 0 || (col.slots >= 0 && index >= col.slots) {
		return nil, fmt.Errorf("inventory: Inventory.SlotAt: index %d out of range for %q: %w",
			index, col.name, ErrInvalidArgument)
	}
	if index >= len(*col.items) {
		return nil, nil
	}
	return (*col.items)[index].clone(), nil
}

// Stacks returns copies of every stack in the named collection, nil holes
// included, in slot order.
func (inv *Inventory) Stacks(sectionID string) ([]*Stack, error) {
	col, err := inv.lookupCollection(sectionID)
	if err != nil {
		return nil, fmt.Errorf("inventory: Inventory.Stacks: %w", err)
	}
	out := make([]*Stack, len(*col.items))
	for i, st := range *col.items {
		out[i] = st.clone()
	}
	return out, nil
}

// SpecialSlotOf returns the slot's type and a copy of its stack.
func (inv *Inventory) SpecialSlotOf(slotID string) (SpecialSlot, error) {
	slot, ok := inv.special[slotID]
	if !ok {
		return SpecialSlot{}, fmt.Errorf("inventory: Inventory.SpecialSlotOf: unknown slot %q: %w", slotID, ErrNotFound)
	}
	return SpecialSlot{Type: slot.Type, Item: slot.Item.clone()}, nil
}

func (inv *Inventory) lookupCollection(sectionID string) (*collection, error) {
	if !inv.useSections {
		if sectionID != "" {
			return nil, fmt.Errorf("unknown section %q in flat inventory: %w", sectionID, ErrNotFound)
		}
		// Explicit addressing respects MaxSlots even though placement
		// treats the flat list as unbounded.
		slots := -1
		if inv.maxSlots != nil {
			slots = *inv.maxSlots
		}
		return &collection{name: flatCollection, items: &inv.items, slots: slots}, nil
	}
	sec, ok := inv.sectionIdx[sectionID]
	if !ok {
		return nil, fmt.Errorf("unknown section %q: %w", sectionID, ErrNotFound)
	}
	return &collection{name: sec.ID, items: &sec.items, slots: sec.Slots}, nil
}
