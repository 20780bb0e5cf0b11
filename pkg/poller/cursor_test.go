package poller

import "testing"

func TestCursor_InitIsLazyAndOnce(t *testing.T) {
	c := NewCursor(10)
	if c.Initialized() {
		t.Fatal("new cursor should not be initialized")
	}
	c.Init(500)
	if got := c.LastScannedBlock(); got != 490 {
		t.Fatalf("expected 490, got %d", got)
	}
	c.Init(900)
	if got := c.LastScannedBlock(); got != 490 {
		t.Fatalf("second Init moved cursor to %d", got)
	}
}

func TestCursor_InitNearGenesis(t *testing.T) {
	c := NewCursor(10)
	c.Init(4)
	if got := c.LastScannedBlock(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestCursor_AdvanceIsMonotonic(t *testing.T) {
	c := NewCursor(0)
	c.Advance(20)
	c.Advance(15)
	if got := c.LastScannedBlock(); got != 20 {
		t.Fatalf("cursor went backwards to %d", got)
	}
	c.Advance(21)
	if got := c.LastScannedBlock(); got != 21 {
		t.Fatalf("expected 21, got %d", got)
	}
}

func TestCursor_Range(t *testing.T) {
	c := NewCursor(0)
	c.Advance(100)

	if _, _, ok := c.Range(100); ok {
		t.Fatal("expected empty range when head equals cursor")
	}
	if _, _, ok := c.Range(99); ok {
		t.Fatal("expected empty range when head is behind cursor")
	}
	from, to, ok := c.Range(105)
	if !ok || from != 101 || to != 105 {
		t.Fatalf("unexpected range %d-%d ok=%v", from, to, ok)
	}
}

func TestCursor_RangeBeforeInit(t *testing.T) {
	c := NewCursor(10)
	from, to, ok := c.Range(500)
	if !ok || from != 491 || to != 500 {
		t.Fatalf("unexpected range %d-%d ok=%v", from, to, ok)
	}
	if c.Initialized() {
		t.Fatal("Range must not initialize the cursor")
	}
}
