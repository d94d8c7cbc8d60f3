package monitor

import "sync"

// Cell is a mutex-guarded value box with change tracking.
//
// It holds the latest confirmed value (current), the value before the last
// consumed change (old), and a one-shot changed flag. The flag is raised by
// Set when the new value differs from old, stays up across further writes,
// and is cleared by Consume, which also synchronizes old to current. This
// lets a single consumer drain "what changed since I last looked" without
// missing transitions that happened between reads.
//
// A cell starts without a value; the first Set always raises the flag.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The lock is never held
//     across anything but field access.
type Cell[T comparable] struct {
	mu       sync.Mutex
	current  T
	old      T
	hasValue bool
	changed  bool
}

// Set stores v as the current value, raising the changed flag when v differs
// from the last consumed value.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasValue {
		c.hasValue = true
		c.current = v
		c.changed = true
		return
	}

	c.current = v
	if v != c.old {
		c.changed = true
	}
}

// Get returns the current value and whether the cell has ever been set.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.hasValue
}

// Value returns the current value, or the zero value if the cell is unset.
func (c *Cell[T]) Value() T {
	v, _ := c.Get()
	return v
}

// Old returns the value before the last consumed change.
func (c *Cell[T]) Old() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.old
}

// Changed reports the flag without consuming it.
func (c *Cell[T]) Changed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Consume returns the changed flag and clears it, synchronizing old to the
// current value so only future transitions raise it again.
func (c *Cell[T]) Consume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := c.changed
	c.changed = false
	c.old = c.current
	return changed
}
