package monitor

import "sync"

// PositionCounter enforces the global maximum of concurrently open positions
// across all watchers. Admission is a compare-and-increment under the lock;
// a candidate entry at the cap is dropped, never queued.
type PositionCounter struct {
	mu   sync.Mutex
	open int
	max  int
}

// NewPositionCounter creates a counter with the given cap.
func NewPositionCounter(max int) *PositionCounter {
	return &PositionCounter{max: max}
}

// TryAcquire reserves one position slot. Returns false when at the cap.
func (c *PositionCounter) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open >= c.max {
		return false
	}
	c.open++
	return true
}

// Release frees a previously acquired slot.
func (c *PositionCounter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open > 0 {
		c.open--
	}
}

// Open returns the number of currently held slots.
func (c *PositionCounter) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
