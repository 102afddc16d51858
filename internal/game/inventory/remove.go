package inventory

import (
	"fmt"

	"go.uber.org/zap"
)

// RemoveOption adjusts a single RemoveItem call.
type RemoveOption func(*removeConfig)

type removeConfig struct {
	metadata      map[string]any
	matchMetadata bool
}

// WithMetadataMatch restricts removal to stacks whose metadata is
// structurally equal to m.
func WithMetadataMatch(m map[string]any) RemoveOption {
	return func(cfg *removeConfig) {
		cfg.metadata = m
		cfg.matchMetadata = true
	}
}

// RemoveItem takes up to qty units of the given id, scanning main storage
// in slot order and then special slots in registration order. Emptied
// stacks leave nil holes; emptied special slots clear. A remove event fires
// per stack touched.
//
// Precondition: qty >= 1.
// Postcondition: reports whether the full quantity was removed.
func (inv *Inventory) RemoveItem(id string, qty int, opts ...RemoveOption) (bool, error) {
	if qty < 1 {
		return false, fmt.Errorf("inventory: Inventory.RemoveItem: quantity must be >= 1, got %d: %w", qty, ErrInvalidArgument)
	}
	if id == "" {
		return false, fmt.Errorf("inventory: Inventory.RemoveItem: id must not be empty: %w", ErrInvalidArgument)
	}

	var cfg removeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	matches := func(st *Stack) bool {
		if st == nil || st.ID != id {
			return false
		}
		return !cfg.matchMetadata || MetadataEqual(st.Metadata, cfg.metadata)
	}

	need := qty
	for _, col := range inv.collections() {
		for idx, st := range *col.items {
			if need == 0 {
				break
			}
			if !matches(st) {
				continue
			}
			take := st.Quantity
			if take > need {
				take = need
			}
			st.Quantity -= take
			need -= take
			if st.Quantity == 0 {
				(*col.items)[idx] = nil
			}
			inv.emitRemove(idx, id, take, col.name)
		}
	}
	for _, slotID := range inv.specialOrder {
		if need == 0 {
			break
		}
		slot := inv.special[slotID]
		if !matches(slot.Item) {
			continue
		}
		take := slot.Item.Quantity
		if take > need {
			take = need
		}
		slot.Item.Quantity -= take
		need -= take
		if slot.Item.Quantity == 0 {
			slot.Item = nil
		}
		inv.emitRemove(-1, id, take, slotID)
	}
	return need == 0, nil
}

func (inv *Inventory) emitRemove(index int, id string, qty int, col string) {
	inv.logger.Debug("items removed",
		zap.String("id", id),
		zap.Int("quantity", qty),
		zap.String("collection", col),
	)
	inv.emitter.Emit(EventRemove, RemoveEvent{
		Index:      index,
		ItemID:     id,
		Quantity:   qty,
		Collection: col,
	})
}
