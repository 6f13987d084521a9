// Package warning drives the "your session is about to end" countdown.
//
// The controller polls the shared idle clock. When the elapsed idle time
// enters the warning window it shows a countdown that ticks once a second;
// reaching zero logs the user out exactly once. Extending hides the warning
// and hands off to the host's extend callback, which is expected to record
// fresh activity.
package warning

import (
	"sync"
	"time"

	"studio-session/internal/idleclock"
	"studio-session/internal/metrics"
	"studio-session/internal/model"
)

const (
	DefaultPollInterval = 5 * time.Second
	CountdownInterval   = time.Second
)

type Phase string

const (
	Hidden    Phase = "hidden"
	Showing   Phase = "warning"
	LoggedOut Phase = "logged-out"
)

type State struct {
	Phase       Phase `json:"phase"`
	SecondsLeft int   `json:"secondsLeft"`
}

type Options struct {
	Config       model.SessionWarningConfig
	PollInterval time.Duration
	OnLogout     func()
	OnExtend     func()
	OnChange     func(State)
}

type Controller struct {
	clock *idleclock.Clock
	opts  Options

	mu              sync.Mutex
	state           State
	polledAt        time.Time
	cancelPoll      func()
	cancelCountdown func()
}

func New(clock *idleclock.Clock, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Config.SessionTimeoutMinutes <= 0 || opts.Config.WarningMinutes <= 0 {
		opts.Config = model.DefaultSessionWarningConfig()
	}
	return &Controller{clock: clock, opts: opts, state: State{Phase: Hidden}}
}

// Start begins polling the clock.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelPoll != nil || c.state.Phase == LoggedOut {
		return
	}
	c.cancelPoll = c.clock.Subscribe("warning-poll", c.opts.PollInterval, c.Poll)
}

// Stop cancels polling and any running countdown.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancelPoll != nil {
		c.cancelPoll()
		c.cancelPoll = nil
	}
	c.stopCountdownLocked()
}

func (c *Controller) stopCountdownLocked() {
	if c.cancelCountdown != nil {
		c.cancelCountdown()
		c.cancelCountdown = nil
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Poll re-evaluates the warning from a clock reading. A reading with no
// session behind it leaves the state untouched. A warning that is still
// showing when the timeout is reached ends the session as if the countdown
// had run out.
func (c *Controller) Poll(r idleclock.Reading) {
	if !r.Present {
		return
	}
	timeout := c.opts.Config.Timeout()
	window := timeout - c.opts.Config.Warning()

	c.mu.Lock()
	if c.state.Phase == LoggedOut {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.polledAt = r.Now
	switch {
	case r.Elapsed >= window && r.Elapsed < timeout:
		c.state = State{Phase: Showing, SecondsLeft: int((timeout - r.Elapsed) / time.Second)}
		if c.cancelCountdown == nil {
			c.cancelCountdown = c.clock.SubscribeAt("warning-countdown", r.Now, CountdownInterval, c.countdown)
		}
	case prev.Phase == Showing && r.Elapsed >= timeout:
		c.logoutLocked()
		return
	default:
		c.state = State{Phase: Hidden}
		c.stopCountdownLocked()
	}
	next := c.state
	c.mu.Unlock()

	if prev.Phase != Showing && next.Phase == Showing {
		metrics.WarningsShown.Inc()
	}
	if prev != next {
		c.notify(next)
	}
}

// countdown skips the tick a poll already accounted for.
func (c *Controller) countdown(r idleclock.Reading) {
	c.mu.Lock()
	polled := r.Now.Equal(c.polledAt)
	c.mu.Unlock()
	if polled {
		return
	}
	c.Tick()
}

// Tick advances the countdown by one second.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.state.Phase != Showing {
		c.mu.Unlock()
		return
	}
	if c.state.SecondsLeft > 0 {
		c.state.SecondsLeft--
	}
	if c.state.SecondsLeft > 0 {
		next := c.state
		c.mu.Unlock()
		c.notify(next)
		return
	}
	c.logoutLocked()
}

// logoutLocked moves to LoggedOut and releases c.mu before running the
// callbacks.
func (c *Controller) logoutLocked() {
	c.state = State{Phase: LoggedOut}
	c.stopLocked()
	next := c.state
	c.mu.Unlock()

	c.notify(next)
	if c.opts.OnLogout != nil {
		c.opts.OnLogout()
	}
}

// Extend hides a showing warning and invokes the extend callback. It does
// nothing once the user has been logged out.
func (c *Controller) Extend() {
	c.mu.Lock()
	if c.state.Phase == LoggedOut {
		c.mu.Unlock()
		return
	}
	changed := c.state.Phase != Hidden
	c.state = State{Phase: Hidden}
	c.stopCountdownLocked()
	next := c.state
	c.mu.Unlock()

	if changed {
		c.notify(next)
	}
	if c.opts.OnExtend != nil {
		c.opts.OnExtend()
	}
}

func (c *Controller) notify(s State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}
