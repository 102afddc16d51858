package inventory

// Stack is an in-inventory bundle of identical units of one item id with
// matching metadata.
//
// Invariant: Quantity >= 1; empty stacks become nil holes in their list.
type Stack struct {
	ID       string
	Quantity int
	Metadata map[string]any
}

// clone deep-copies the stack.
func (s *Stack) clone() *Stack {
	if s == nil {
		return nil
	}
	return &Stack{ID: s.ID, Quantity: s.Quantity, Metadata: copyMetadata(s.Metadata)}
}

// Section is a named sub-container with a bounded slot sequence. Items may
// contain nil holes left by removals.
type Section struct {
	ID    string
	Slots int
	items []*Stack
}

// SpecialSlot is an equipment slot holding at most one quantity-1 stack. A
// typed slot only accepts definitions of the same type.
type SpecialSlot struct {
	Type string
	Item *Stack
}
