package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trader moves stacks between a sender and a receiver inventory. Transfers
// commit whatever the receiver accepts; there is no partial-then-rollback.
type Trader struct {
	sender   *Inventory
	receiver *Inventory
	logger   *zap.Logger
}

// NewTrader connects two inventories.
//
// Precondition: sender and receiver must be non-nil.
func NewTrader(sender, receiver *Inventory) (*Trader, error) {
	if sender == nil || receiver == nil {
		return nil, fmt.Errorf("inventory: NewTrader: nil inventory: %w", ErrInvalidArgument)
	}
	return &Trader{sender: sender, receiver: receiver, logger: sender.logger}, nil
}

// Sender returns the current sending inventory.
func (t *Trader) Sender() *Inventory {
	return t.sender
}

// Receiver returns the current receiving inventory.
func (t *Trader) Receiver() *Inventory {
	return t.receiver
}

// Invert swaps the sender and receiver roles.
func (t *Trader) Invert() {
	t.sender, t.receiver = t.receiver, t.sender
}

// TransferRequest addresses one source stack and the amount to move.
// Exactly one of SlotIndex and SpecialSlot selects the source.
type TransferRequest struct {
	// SectionID names the sender section holding the stack. Empty in flat
	// mode.
	SectionID string
	// SlotIndex addresses a main-storage slot.
	SlotIndex *int
	// SpecialSlot addresses a sender equipment slot instead.
	SpecialSlot string
	// Quantity is the unit count to move. Must be >= 1.
	Quantity int
	// ForceSpace lifts the receiver's slot and weight gates.
	ForceSpace bool
	// Metadata, when non-nil, must equal the source stack's metadata.
	Metadata map[string]any
}

// TransferResult reports one transfer. Delivered is what the receiver
// accepted and the sender gave up; Remaining is the refused rest.
type TransferResult struct {
	TransferID string `json:"transferId"`
	ItemID     string `json:"itemId"`
	Requested  int    `json:"requested"`
	Delivered  int    `json:"delivered"`
	Remaining  int    `json:"remaining"`
}

// TransferItem moves up to req.Quantity units of the addressed stack from
// the sender to the receiver. The receiver decides how many units fit; the
// sender loses exactly that many. A refusal of part or all of the quantity
// is not an error.
//
// Precondition: the addressed stack exists, matches req.Metadata when
// given, and covers req.Quantity.
func (t *Trader) TransferItem(req TransferRequest) (TransferResult, error) {
	if req.Quantity < 1 {
		return TransferResult{}, fmt.Errorf("inventory: Trader.TransferItem: quantity must be >= 1, got %d: %w",
			req.Quantity, ErrInvalidArgument)
	}
	if (req.SlotIndex == nil) == (req.SpecialSlot == "") {
		return TransferResult{}, fmt.Errorf("inventory: Trader.TransferItem: exactly one of slot index and special slot must address the source: %w",
			ErrInvalidArgument)
	}

	src, err := t.locateSource(req)
	if err != nil {
		return TransferResult{}, err
	}
	if req.Metadata != nil && !MetadataEqual(src.stack.Metadata, req.Metadata) {
		return TransferResult{}, fmt.Errorf("inventory: Trader.TransferItem: metadata does not match stack %q: %w",
			src.stack.ID, ErrIllegalState)
	}
	if src.stack.Quantity < req.Quantity {
		return TransferResult{}, fmt.Errorf("inventory: Trader.TransferItem: stack %q holds %d of %d requested units: %w",
			src.stack.ID, src.stack.Quantity, req.Quantity, ErrIllegalState)
	}

	itemID := src.stack.ID
	addOpts := []AddOption{WithMetadata(src.stack.Metadata)}
	if req.ForceSpace {
		addOpts = append(addOpts, WithForceSpace())
	}
	remaining, err := t.receiver.AddItem(itemID, req.Quantity, addOpts...)
	if err != nil && !errors.Is(err, ErrOutOfSpace) {
		return TransferResult{}, fmt.Errorf("inventory: Trader.TransferItem: receiver refused %q: %w", itemID, err)
	}

	delivered := req.Quantity - remaining
	if delivered > 0 {
		src.take(delivered)
	}

	result := TransferResult{
		TransferID: uuid.New().String(),
		ItemID:     itemID,
		Requested:  req.Quantity,
		Delivered:  delivered,
		Remaining:  remaining,
	}
	t.logger.Debug("transfer",
		zap.String("transfer_id", result.TransferID),
		zap.String("id", result.ItemID),
		zap.Int("requested", result.Requested),
		zap.Int("delivered", result.Delivered),
	)
	return result, nil
}

// TransferMultiple applies the requests in order, stopping at the first
// error. Partial refusals do not stop the batch.
//
// Postcondition: results holds one entry per completed transfer, in order.
func (t *Trader) TransferMultiple(reqs []TransferRequest) ([]TransferResult, error) {
	results := make([]TransferResult, 0, len(reqs))
	for i, req := range reqs {
		res, err := t.TransferItem(req)
		if err != nil {
			return results, fmt.Errorf("inventory: Trader.TransferMultiple: request %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// transferSource is the addressed sender stack plus a taker that removes
// units from that exact stack with the sender's remove bookkeeping.
type transferSource struct {
	stack *Stack
	take  func(n int)
}

func (t *Trader) locateSource(req TransferRequest) (*transferSource, error) {
	sender := t.sender
	if req.SpecialSlot != "" {
		slot, ok := sender.special[req.SpecialSlot]
		if !ok {
			return nil, fmt.Errorf("inventory: Trader.TransferItem: unknown special slot %q: %w",
				req.SpecialSlot, ErrNotFound)
		}
		if slot.Item == nil {
			return nil, fmt.Errorf("inventory: Trader.TransferItem: special slot %q is empty: %w",
				req.SpecialSlot, ErrNotFound)
		}
		st := slot.Item
		return &transferSource{stack: st, take: func(n int) {
			st.Quantity -= n
			if st.Quantity == 0 {
				slot.Item = nil
			}
			sender.emitRemove(-1, st.ID, n, req.SpecialSlot)
		}}, nil
	}

	col, err := sender.lookupCollection(req.SectionID)
	if err != nil {
		return nil, fmt.Errorf("inventory: Trader.TransferItem: %w", err)
	}
	idx := *req.SlotIndex
	if idx < 0 || idx >= len(*col.items) {
		return nil, fmt.Errorf("inventory: Trader.TransferItem: no stack at index %d of %q: %w",
			idx, col.name, ErrNotFound)
	}
	st := (*col.items)[idx]
	if st == nil {
		return nil, fmt.Errorf("inventory: Trader.TransferItem: no stack at index %d of %q: %w",
			idx, col.name, ErrNotFound)
	}
	items := col.items
	name := col.name
	return &transferSource{stack: st, take: func(n int) {
		st.Quantity -= n
		if st.Quantity == 0 {
			(*items)[idx] = nil
		}
		sender.emitRemove(idx, st.ID, n, name)
	}}, nil
}
