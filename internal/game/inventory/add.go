package inventory

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// AddOption adjusts a single AddItem call.
type AddOption func(*addConfig)

type addConfig struct {
	metadata map[string]any
	force    bool
}

// WithMetadata attaches metadata to the added units. Stacks only merge when
// their metadata is structurally equal.
func WithMetadata(m map[string]any) AddOption {
	return func(cfg *addConfig) { cfg.metadata = m }
}

// WithForceSpace lifts the slot and weight gates for this call. Section
// bounds still apply.
func WithForceSpace() AddOption {
	return func(cfg *addConfig) { cfg.force = true }
}

// AddItem delivers qty units of the given definition into the inventory:
// existing stacks with equal metadata absorb units up to the stack limit,
// then new stacks fill the first free positions. Delivery stops when the
// slot or weight limits refuse the rest.
//
// Precondition: qty >= 1 and the id is registered.
// Postcondition: remaining is the undelivered count, 0 on full success;
// remaining > 0 reports ErrOutOfSpace alongside. An add event carries the
// delivered quantity when it is positive.
func (inv *Inventory) AddItem(id string, qty int, opts ...AddOption) (int, error) {
	if qty < 1 {
		return 0, fmt.Errorf("inventory: Inventory.AddItem: quantity must be >= 1, got %d: %w", qty, ErrInvalidArgument)
	}
	def, ok := inv.reg.Definition(id)
	if !ok {
		return qty, fmt.Errorf("inventory: Inventory.AddItem: unknown definition %q: %w", id, ErrNotFound)
	}

	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	deliverable := qty
	if inv.maxWeight != nil && !cfg.force && def.Weight > 0 {
		budget := *inv.maxWeight - inv.CalculateWeight()
		byWeight := 0
		if budget > 0 {
			byWeight = int(math.Floor(budget / def.Weight))
		}
		if byWeight < deliverable {
			deliverable = byWeight
		}
	}

	remaining := deliverable
	limit := def.stackLimit()

	if def.CanStack && remaining > 0 {
		for _, col := range inv.collections() {
			for _, st := range *col.items {
				if remaining == 0 {
					break
				}
				if st == nil || st.ID != id || st.Quantity >= limit {
					continue
				}
				if !MetadataEqual(st.Metadata, cfg.metadata) {
					continue
				}
				take := limit - st.Quantity
				if take > remaining {
					take = remaining
				}
				st.Quantity += take
				remaining -= take
			}
		}
	}

	for remaining > 0 {
		if !cfg.force && !inv.HasSpace() {
			break
		}
		col, idx, ok := inv.findPlacement()
		if !ok {
			break
		}
		size := remaining
		if size > limit {
			size = limit
		}
		st := &Stack{ID: id, Quantity: size, Metadata: copyMetadata(cfg.metadata)}
		if idx >= 0 {
			(*col.items)[idx] = st
		} else {
			*col.items = append(*col.items, st)
		}
		remaining -= size
	}

	undelivered := remaining + (qty - deliverable)
	added := qty - undelivered
	if added > 0 {
		inv.logger.Debug("items added",
			zap.String("id", id),
			zap.Int("quantity", added),
			zap.Int("remaining", undelivered),
		)
		inv.emitter.Emit(EventAdd, AddEvent{
			ItemID:   id,
			Quantity: added,
			Metadata: copyMetadata(cfg.metadata),
		})
	}
	if undelivered > 0 {
		return undelivered, fmt.Errorf("inventory: Inventory.AddItem: %d of %d units of %q undeliverable: %w",
			undelivered, qty, id, ErrOutOfSpace)
	}
	return 0, nil
}
