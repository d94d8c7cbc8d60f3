package monitor

import "testing"

func TestCell_FirstSetRaisesFlag(t *testing.T) {
	var c Cell[string]

	if c.Changed() {
		t.Error("new cell should not report a change")
	}
	if _, ok := c.Get(); ok {
		t.Error("new cell should not have a value")
	}

	c.Set("alice")
	if !c.Changed() {
		t.Error("first Set should raise the changed flag")
	}
	if v := c.Value(); v != "alice" {
		t.Errorf("Value() = %q, want %q", v, "alice")
	}
}

func TestCell_ConsumeClearsFlagOnce(t *testing.T) {
	var c Cell[int]
	c.Set(1)

	if !c.Consume() {
		t.Error("Consume() = false after first Set, want true")
	}
	if c.Consume() {
		t.Error("second Consume() = true, want false")
	}
}

func TestCell_SameValueNoChange(t *testing.T) {
	var c Cell[int]
	c.Set(5)
	c.Consume()

	c.Set(5)
	if c.Changed() {
		t.Error("re-setting the consumed value should not raise the flag")
	}
}

func TestCell_FlapBackToOldSuppressed(t *testing.T) {
	var c Cell[int]
	c.Set(1)
	c.Consume()

	// Change away and back before anyone consumes: the flag stays up
	// because an intermediate transition happened.
	c.Set(2)
	c.Set(1)
	if !c.Changed() {
		t.Error("transition away and back should leave the flag raised")
	}
	if !c.Consume() {
		t.Error("Consume() should report the flapped change")
	}

	// After consuming, setting the same value again is quiet.
	c.Set(1)
	if c.Changed() {
		t.Error("stable value after consume should not raise the flag")
	}
}

func TestCell_OldTracksConsumedValue(t *testing.T) {
	var c Cell[string]
	c.Set("a")
	c.Consume()
	c.Set("b")

	if old := c.Old(); old != "a" {
		t.Errorf("Old() = %q, want %q before consume", old, "a")
	}
	c.Consume()
	if old := c.Old(); old != "b" {
		t.Errorf("Old() = %q, want %q after consume", old, "b")
	}
}

func TestCell_ChangesAccumulateUntilConsumed(t *testing.T) {
	var c Cell[int]
	c.Set(1)
	c.Set(2)
	c.Set(3)

	if !c.Consume() {
		t.Error("Consume() should report accumulated changes")
	}
	if v := c.Value(); v != 3 {
		t.Errorf("Value() = %d, want latest write 3", v)
	}
}
