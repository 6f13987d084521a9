// Package activity tracks user interaction for one signed-in session and ends
// the session once it has been idle longer than the configured timeout.
package activity

import (
	"context"
	"sync"
	"time"

	"studio-session/internal/activitysync"
	"studio-session/internal/idleclock"
	"studio-session/internal/log"
)

const (
	DefaultCheckInterval = 30 * time.Second
	DefaultSyncInterval  = 60 * time.Second
	syncTimeout          = 10 * time.Second
)

type Phase string

const (
	Idle    Phase = "idle"
	Active  Phase = "active"
	Expired Phase = "expired"
)

// SessionWriter mirrors activity into the persisted session record.
type SessionWriter interface {
	RecordActivity(userID string, atMillis int64, page string) error
}

type Syncer interface {
	Sync(ctx context.Context, email string) activitysync.Result
}

type Options struct {
	UserID        string
	Email         string
	Timeout       time.Duration
	CheckInterval time.Duration
	SyncInterval  time.Duration
	Writer        SessionWriter
	Syncer        Syncer
	// OnExpire runs once, when the idle check finds the session timed out.
	OnExpire func()
	// OnGone runs once, when the idle check finds the persisted session
	// removed, for example by a logout in another tab.
	OnGone func()
}

type Monitor struct {
	clock *idleclock.Clock
	opts  Options

	mu           sync.Mutex
	phase        Phase
	lastActivity time.Time
	cancels      []func()
	syncWG       sync.WaitGroup
}

func New(clock *idleclock.Clock, opts Options) *Monitor {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	return &Monitor{clock: clock, opts: opts, phase: Idle}
}

// Start moves an idle monitor to Active with activity stamped at now.
func (m *Monitor) Start(now time.Time) {
	m.mu.Lock()
	if m.phase != Idle {
		m.mu.Unlock()
		return
	}
	m.phase = Active
	m.lastActivity = now
	m.cancels = append(m.cancels,
		m.clock.Subscribe("activity-check", m.opts.CheckInterval, m.check),
		m.clock.Subscribe("activity-sync", m.opts.SyncInterval, m.syncTick),
	)
	m.mu.Unlock()

	m.persist(now, "")
}

// Stop tears down the timers. The monitor returns to Idle unless it already
// expired.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	if m.phase == Active {
		m.phase = Idle
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until in-flight syncs have finished.
func (m *Monitor) Wait() {
	m.syncWG.Wait()
}

func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Touch records a qualifying interaction. Last activity never moves
// backwards; events are ignored unless the monitor is Active.
func (m *Monitor) Touch(at time.Time, page string) bool {
	m.mu.Lock()
	if m.phase != Active {
		m.mu.Unlock()
		return false
	}
	if at.After(m.lastActivity) {
		m.lastActivity = at
	}
	stamp := m.lastActivity
	m.mu.Unlock()

	m.persist(stamp, page)
	return true
}

func (m *Monitor) persist(at time.Time, page string) {
	if m.opts.Writer == nil {
		return
	}
	if err := m.opts.Writer.RecordActivity(m.opts.UserID, at.UnixMilli(), page); err != nil {
		log.Warn().Err(err).Str("user", m.opts.UserID).Msg("activity: persist failed")
	}
}

// check expires the session once the idle time exceeds the timeout. The
// reading comes from the persisted record, so activity from any tab counts;
// the in-memory stamp covers a record that lagged behind. A missing record
// means the session ended elsewhere and is never reported as a timeout.
func (m *Monitor) check(r idleclock.Reading) {
	m.mu.Lock()
	if m.phase != Active {
		m.mu.Unlock()
		return
	}
	if !r.Present {
		m.phase = Idle
		cancels := m.cancels
		m.cancels = nil
		m.mu.Unlock()

		for _, cancel := range cancels {
			cancel()
		}
		log.Info().Str("user", m.opts.UserID).Msg("activity: session record gone")
		if m.opts.OnGone != nil {
			m.opts.OnGone()
		}
		return
	}
	elapsed := r.Now.Sub(m.lastActivity)
	if r.Elapsed < elapsed {
		elapsed = r.Elapsed
	}
	if elapsed <= m.opts.Timeout {
		m.mu.Unlock()
		return
	}
	m.phase = Expired
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	log.Info().Str("user", m.opts.UserID).Dur("idle", elapsed).Msg("activity: session expired")
	if m.opts.OnExpire != nil {
		m.opts.OnExpire()
	}
}

func (m *Monitor) syncTick(idleclock.Reading) {
	m.Sync()
}

// Sync sends the still-active signal in the background. Failures are logged
// and otherwise ignored.
func (m *Monitor) Sync() {
	if m.opts.Syncer == nil || m.Phase() != Active {
		return
	}
	m.syncWG.Add(1)
	go func() {
		defer m.syncWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		res := m.opts.Syncer.Sync(ctx, m.opts.Email)
		if !res.OK() {
			log.Warn().Err(res.Err).Str("user", m.opts.UserID).Msg("activity: sync failed")
		}
	}()
}
