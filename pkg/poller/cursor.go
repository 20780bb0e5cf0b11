package poller

import "sync"

// Cursor is the watermark of the highest fully scanned block. Only the
// poller advances it; reads are safe from any goroutine.
type Cursor struct {
	mu           sync.RWMutex
	last         uint64
	initialized  bool
	safetyMargin uint64
}

func NewCursor(safetyMargin uint64) *Cursor {
	return &Cursor{safetyMargin: safetyMargin}
}

// Init positions an uninitialized cursor safetyMargin blocks behind head.
// It is a no-op once the cursor has been set.
func (c *Cursor) Init(head uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return
	}
	if head > c.safetyMargin {
		c.last = head - c.safetyMargin
	} else {
		c.last = 0
	}
	c.initialized = true
}

// Range returns the inclusive block range still to scan up to head. ok is
// false when the chain has not moved past the cursor. An uninitialized cursor
// reports the range Init(head) would leave, without moving.
func (c *Cursor) Range(head uint64) (from, to uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	last := c.last
	if !c.initialized {
		last = 0
		if head > c.safetyMargin {
			last = head - c.safetyMargin
		}
	}
	from = last + 1
	return from, head, from <= head
}

// Advance moves the cursor to block. Moving backwards is ignored.
func (c *Cursor) Advance(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if block > c.last {
		c.last = block
	}
	c.initialized = true
}

func (c *Cursor) LastScannedBlock() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Cursor) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}
