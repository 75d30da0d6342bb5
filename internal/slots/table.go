// Package slots keeps the native callback bindings of a recognition engine.
package slots

import (
	"fmt"
	"sync"

	"dictation/internal/domain"
	"dictation/internal/ports"
)

// Table is a multicast binding table keyed by engine slot.
type Table struct {
	mu       sync.RWMutex
	next     ports.Binding
	bindings map[ports.Slot]map[ports.Binding]ports.Callback
}

func NewTable() *Table {
	return &Table{bindings: make(map[ports.Slot]map[ports.Binding]ports.Callback)}
}

// Bind registers cb on slot and returns its binding.
func (t *Table) Bind(slot ports.Slot, cb ports.Callback) (ports.Binding, error) {
	if cb == nil {
		return 0, fmt.Errorf("bind %s: nil callback", slot)
	}
	if !validSlot(slot) {
		return 0, fmt.Errorf("bind: unknown slot %q", slot)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	if t.bindings[slot] == nil {
		t.bindings[slot] = make(map[ports.Binding]ports.Callback)
	}
	t.bindings[slot][t.next] = cb
	return t.next, nil
}

// Unbind removes a binding. Unknown bindings are ignored.
func (t *Table) Unbind(slot ports.Slot, binding ports.Binding) error {
	if !validSlot(slot) {
		return fmt.Errorf("unbind: unknown slot %q", slot)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bindings[slot], binding)
	return nil
}

// Emit delivers result to every callback bound on slot.
func (t *Table) Emit(slot ports.Slot, result domain.Result) {
	t.mu.RLock()
	callbacks := make([]ports.Callback, 0, len(t.bindings[slot]))
	for _, cb := range t.bindings[slot] {
		callbacks = append(callbacks, cb)
	}
	t.mu.RUnlock()

	for _, cb := range callbacks {
		cb(result)
	}
}

// Count returns the number of active bindings on slot.
func (t *Table) Count(slot ports.Slot) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bindings[slot])
}

// Clear drops every binding.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings = make(map[ports.Slot]map[ports.Binding]ports.Callback)
}

func validSlot(slot ports.Slot) bool {
	switch slot {
	case ports.SlotHypothesis, ports.SlotRecognized, ports.SlotCompleted:
		return true
	}
	return false
}
