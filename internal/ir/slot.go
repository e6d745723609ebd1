package ir

// Slot is the identity of a storage location or an instruction result.
// Slots are small integers handed out by a SlotTable, one per distinct name.
type Slot int32

// NoSlot marks an instruction that defines nothing, or an operand that is a literal.
const NoSlot Slot = -1

// SlotTable interns slot names for a single function.
type SlotTable struct {
	names []string
	index map[string]Slot
}

// NewSlotTable creates an empty table.
func NewSlotTable() *SlotTable {
	return &SlotTable{index: make(map[string]Slot)}
}

// Intern returns the slot for name, allocating a new one on first sight.
func (t *SlotTable) Intern(name string) Slot {
	if s, ok := t.index[name]; ok {
		return s
	}
	s := Slot(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = s
	return s
}

// Lookup returns the slot for name without allocating.
func (t *SlotTable) Lookup(name string) (Slot, bool) {
	s, ok := t.index[name]
	return s, ok
}

// Name returns the name a slot was interned with.
func (t *SlotTable) Name(s Slot) string {
	if s < 0 || int(s) >= len(t.names) {
		return "?"
	}
	return t.names[s]
}

// Len reports the number of interned slots.
func (t *SlotTable) Len() int {
	return len(t.names)
}
