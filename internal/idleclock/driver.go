package idleclock

import (
	"context"
	"sync"
	"time"
)

// Driver ticks every registered clock from one process-wide ticker.
type Driver struct {
	mu       sync.Mutex
	clocks   map[*Clock]struct{}
	interval time.Duration
}

func NewDriver(interval time.Duration) *Driver {
	if interval <= 0 {
		interval = time.Second
	}
	return &Driver{clocks: make(map[*Clock]struct{}), interval: interval}
}

func (d *Driver) Add(c *Clock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clocks[c] = struct{}{}
}

func (d *Driver) Remove(c *Clock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clocks, c)
}

func (d *Driver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clocks)
}

// TickAll advances every registered clock to now.
func (d *Driver) TickAll(now time.Time) {
	d.mu.Lock()
	clocks := make([]*Clock, 0, len(d.clocks))
	for c := range d.clocks {
		clocks = append(clocks, c)
	}
	d.mu.Unlock()

	for _, c := range clocks {
		c.Tick(now)
	}
}

// Run ticks until ctx is done.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.TickAll(now)
		}
	}
}
