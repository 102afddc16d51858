package inventory

import "github.com/JasminDreasond/Tiny-Essentials-sub002/internal/events"

// Event names emitted by an Inventory. Payloads are documented per constant.
const (
	// EventAdd carries an AddEvent after units are delivered.
	EventAdd events.Name = "add"
	// EventSet carries a SetEvent after an explicit slot write.
	EventSet events.Name = "set"
	// EventRemove carries a RemoveEvent per stack a removal touched.
	EventRemove events.Name = "remove"
	// EventUse carries a UseEvent after a unit is used.
	EventUse events.Name = "use"
)

// AddEvent reports units delivered by AddItem. Quantity is the amount
// actually placed, which partial deliveries make smaller than the request.
type AddEvent struct {
	ItemID   string
	Quantity int
	Metadata map[string]any
}

// SetEvent reports an explicit slot write. Item is a copy and nil when the
// slot was cleared; TargetSection is empty in flat mode.
type SetEvent struct {
	SlotIndex     int
	Item          *Stack
	TargetSection string
}

// RemoveEvent reports units taken from one stack. Collection names the list
// that was touched: "items" in flat mode, the section id, or a special
// slot's id with Index -1.
type RemoveEvent struct {
	Index      int
	ItemID     string
	Quantity   int
	Collection string
}

// UseEvent reports a completed use. Item is a copy of the stack at use time.
type UseEvent struct {
	Inventory *Inventory
	ItemID    string
	Item      Stack
	Metadata  map[string]any
	Args      []any
}
