package inventory

import "fmt"

// UseFunc runs when a unit of a definition is used.
//
// Use callbacks must not reenter the inventory except through the provided
// UseContext.Remove.
type UseFunc func(ctx UseContext, args ...any) (any, error)

// UseContext is the state handed to a definition's OnUse callback.
type UseContext struct {
	// Inventory is the instance the use happened in.
	Inventory *Inventory
	// Item is a copy of the stack the use resolved to.
	Item Stack
	// Metadata is a copy of the stack's metadata.
	Metadata map[string]any
	// Remove takes exactly one unit from the resolved stack. It reports
	// false once the stack is spent.
	Remove func() bool
}

// UseItem resolves the first stack with the given id (main storage in slot
// order, then special slots), runs the definition's OnUse callback when one
// is set, emits a use event, and returns the callback's result.
//
// Precondition: a stack with the id exists and its definition is registered.
// Postcondition: a nil result with a nil error means the definition has no
// callback.
func (inv *Inventory) UseItem(id string, args ...any) (any, error) {
	if id == "" {
		return nil, fmt.Errorf("inventory: Inventory.UseItem: id must not be empty: %w", ErrInvalidArgument)
	}
	def, ok := inv.reg.Definition(id)
	if !ok {
		return nil, fmt.Errorf("inventory: Inventory.UseItem: unknown definition %q: %w", id, ErrNotFound)
	}

	st, remove := inv.resolveFirst(id)
	if st == nil {
		return nil, fmt.Errorf("inventory: Inventory.UseItem: no stack of %q in inventory: %w", id, ErrNotFound)
	}

	// The snapshot is taken before the callback so a Remove inside it does
	// not show up in the context or the event payload.
	snapshot := *st.clone()

	var result any
	if def.OnUse != nil {
		ctx := UseContext{
			Inventory: inv,
			Item:      snapshot,
			Metadata:  copyMetadata(snapshot.Metadata),
			Remove:    remove,
		}
		out, err := def.OnUse(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("inventory: Inventory.UseItem: use callback for %q: %w", id, err)
		}
		result = out
	}

	inv.emitter.Emit(EventUse, UseEvent{
		Inventory: inv,
		ItemID:    id,
		Item:      snapshot,
		Metadata:  copyMetadata(snapshot.Metadata),
		Args:      args,
	})
	return result, nil
}

// resolveFirst locates the first stack with the given id and returns it
// together with a closure that removes one unit from that exact stack.
func (inv *Inventory) resolveFirst(id string) (*Stack, func() bool) {
	for _, col := range inv.collections() {
		for idx, st := range *col.items {
			if st == nil || st.ID != id {
				continue
			}
			stack := st
			index := idx
			items := col.items
			name := col.name
			return stack, func() bool {
				if stack.Quantity < 1 {
					return false
				}
				stack.Quantity--
				if stack.Quantity == 0 {
					(*items)[index] = nil
				}
				inv.emitRemove(index, id, 1, name)
				return true
			}
		}
	}
	for _, slotID := range inv.specialOrder {
		slot := inv.special[slotID]
		if slot.Item == nil || slot.Item.ID != id {
			continue
		}
		name := slotID
		return slot.Item, func() bool {
			if slot.Item == nil || slot.Item.Quantity < 1 {
				return false
			}
			slot.Item.Quantity--
			if slot.Item.Quantity == 0 {
				slot.Item = nil
			}
			inv.emitRemove(-1, id, 1, name)
			return true
		}
	}
	return nil, nil
}
