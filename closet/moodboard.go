package closet

import (
	"context"
	"fmt"

	"github.com/ynl8015/otfit/store"
)

// Slot names the four fixed mood-board positions.
type Slot string

const (
	SlotTop       Slot = "top"
	SlotBottom    Slot = "bottom"
	SlotShoes     Slot = "shoes"
	SlotAccessory Slot = "accessory"
)

// ErrUnknownSlot is returned for a slot outside the fixed four.
var ErrUnknownSlot = fmt.Errorf("closet: unknown mood-board slot")

// ValidSlot reports whether s is one of the four fixed slots.
func ValidSlot(s Slot) bool {
	switch s {
	case SlotTop, SlotBottom, SlotShoes, SlotAccessory:
		return true
	}
	return false
}

// Slots holds the current mood-board assignment. Empty slots are nil.
type Slots struct {
	Top       *Item `json:"top"`
	Bottom    *Item `json:"bottom"`
	Shoes     *Item `json:"shoes"`
	Accessory *Item `json:"accessory"`
}

func (s *Slots) ref(slot Slot) **Item {
	switch slot {
	case SlotTop:
		return &s.Top
	case SlotBottom:
		return &s.Bottom
	case SlotShoes:
		return &s.Shoes
	case SlotAccessory:
		return &s.Accessory
	}
	return nil
}

// Empty reports whether no slot is assigned.
func (s Slots) Empty() bool {
	return s.Top == nil && s.Bottom == nil && s.Shoes == nil && s.Accessory == nil
}

// Moodboard is the persisted four-slot board. Load once, then mutate;
// every mutation persists the whole board. The initial load never
// writes back, so opening the board does not generate a store change.
type Moodboard struct {
	store store.Store
	slots Slots
}

// NewMoodboard returns an unloaded Moodboard over the shared store.
func NewMoodboard(s store.Store) *Moodboard {
	return &Moodboard{store: s}
}

// Load reads the saved board. Absent state leaves all slots empty.
func (m *Moodboard) Load(ctx context.Context) error {
	m.slots = Slots{}
	if _, err := store.GetJSON(ctx, m.store, store.KeyMoodboardSlots, &m.slots); err != nil {
		return fmt.Errorf("closet: load mood board: %w", err)
	}
	return nil
}

// Slots returns the current assignment.
func (m *Moodboard) Slots() Slots { return m.slots }

func (m *Moodboard) persist(ctx context.Context) error {
	if err := m.store.Set(ctx, map[string]any{store.KeyMoodboardSlots: m.slots}); err != nil {
		return fmt.Errorf("closet: save mood board: %w", err)
	}
	return nil
}

// Assign puts item into slot, replacing whatever was there, and
// persists the board.
func (m *Moodboard) Assign(ctx context.Context, slot Slot, item Item) error {
	ref := m.slots.ref(slot)
	if ref == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	*ref = &item
	return m.persist(ctx)
}

// Clear empties one slot and persists the board.
func (m *Moodboard) Clear(ctx context.Context, slot Slot) error {
	ref := m.slots.ref(slot)
	if ref == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	*ref = nil
	return m.persist(ctx)
}

// ClearAll empties every slot and persists the board.
func (m *Moodboard) ClearAll(ctx context.Context) error {
	m.slots = Slots{}
	return m.persist(ctx)
}
