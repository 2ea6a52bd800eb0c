package transfer

import (
	"sync"
	"time"
)

// Clock supplies the monotonic timestamp a built transfer record is
// stamped with (glossary: "UTC-derived 64-bit timestamp that is
// strictly increased by 10^6 whenever the current second has already
// produced one, ensuring uniqueness within process lifetime").
type Clock interface {
	Now() uint64
}

// SystemClock is the default Clock, derived from wall-clock time.
type SystemClock struct {
	mu         sync.Mutex
	lastSecond int64
	lastValue  uint64
}

// NewSystemClock returns a ready-to-use SystemClock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (c *SystemClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	second := time.Now().Unix()
	value := uint64(second) * 1_000_000
	if value <= c.lastValue {
		value = c.lastValue + 1_000_000
	}
	c.lastSecond = second
	c.lastValue = value
	return value
}
