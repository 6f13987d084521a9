// Package idleclock is the single timer source for everything that polls a
// session's last-activity time. Each Clock reads its source once per tick and
// hands the same Reading to every subscriber that is due, so the idle check,
// the warning poll and the countdown never disagree about elapsed time.
package idleclock

import (
	"sort"
	"sync"
	"time"
)

// Source reports the last recorded activity. ok is false when there is no
// session to read, for example after a logout from another tab.
type Source interface {
	LastActivity() (at time.Time, ok bool)
}

type SourceFunc func() (time.Time, bool)

func (f SourceFunc) LastActivity() (time.Time, bool) { return f() }

type Reading struct {
	Now          time.Time
	LastActivity time.Time
	Elapsed      time.Duration
	Present      bool
}

type subscription struct {
	id      uint64
	name    string
	every   time.Duration
	lastRun time.Time
	fn      func(Reading)
}

type Clock struct {
	mu      sync.Mutex
	source  Source
	now     func() time.Time
	nextID  uint64
	subs    map[uint64]*subscription
	stopped bool
}

func New(source Source) *Clock {
	return NewWithNow(source, time.Now)
}

func NewWithNow(source Source, now func() time.Time) *Clock {
	return &Clock{source: source, now: now, subs: make(map[uint64]*subscription)}
}

// Subscribe runs fn every period, first one period from now. The returned
// func cancels the subscription and is safe to call more than once.
func (c *Clock) Subscribe(name string, every time.Duration, fn func(Reading)) func() {
	return c.SubscribeAt(name, c.now(), every, fn)
}

// SubscribeAt is Subscribe with the period counted from start. Callbacks that
// subscribe during a tick pass the tick's time so the new subscription stays
// in phase with the ticker.
func (c *Clock) SubscribeAt(name string, start time.Time, every time.Duration, fn func(Reading)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || every <= 0 {
		return func() {}
	}
	c.nextID++
	id := c.nextID
	c.subs[id] = &subscription{id: id, name: name, every: every, lastRun: start, fn: fn}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Tick fires every subscription whose period has elapsed by now. Callbacks
// run without the clock's lock held and may subscribe or cancel.
func (c *Clock) Tick(now time.Time) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	due := make([]*subscription, 0, len(c.subs))
	for _, s := range c.subs {
		if now.Sub(s.lastRun) >= s.every {
			s.lastRun = now
			due = append(due, s)
		}
	}
	c.mu.Unlock()
	if len(due) == 0 {
		return
	}
	// Subscription order keeps callbacks deterministic within a tick.
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	reading := c.read(now)
	for _, s := range due {
		c.mu.Lock()
		_, live := c.subs[s.id]
		stopped := c.stopped
		c.mu.Unlock()
		if !live || stopped {
			continue
		}
		s.fn(reading)
	}
}

// Read returns a reading of the source at now without firing anything.
func (c *Clock) Read(now time.Time) Reading {
	return c.read(now)
}

func (c *Clock) read(now time.Time) Reading {
	at, ok := c.source.LastActivity()
	if !ok {
		return Reading{Now: now}
	}
	elapsed := now.Sub(at)
	if elapsed < 0 {
		elapsed = 0
	}
	return Reading{Now: now, LastActivity: at, Elapsed: elapsed, Present: true}
}

// Stop cancels every subscription; later ticks do nothing.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.subs = make(map[uint64]*subscription)
}

func (c *Clock) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
