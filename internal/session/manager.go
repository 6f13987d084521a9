// Package session owns the lifecycle of signed-in users: it starts activity
// tracking and the timeout warning at login, routes activity and extend
// requests to them, and tears everything down at logout or expiry.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"studio-session/internal/activity"
	"studio-session/internal/idleclock"
	"studio-session/internal/log"
	"studio-session/internal/metrics"
	"studio-session/internal/model"
	"studio-session/internal/store"
	"studio-session/internal/warning"
)

var ErrNoSession = errors.New("no active session")

const (
	ReasonLogout  = "logout"
	ReasonIdle    = "idle-timeout"
	ReasonWarning = "warning-countdown"
	ReasonReplace = "replaced"
)

type ConfigLoader interface {
	LoadWarningConfig(ctx context.Context) model.SessionWarningConfig
}

type Syncer interface {
	activity.Syncer
	Forget(email string)
}

// Notifier pushes lifecycle events to every connected tab of a user.
type Notifier interface {
	Notify(userID, event string, body any)
}

type Options struct {
	Store         *store.Store
	Driver        *idleclock.Driver
	Config        ConfigLoader
	Syncer        Syncer
	Notifier      Notifier
	CheckInterval time.Duration
	SyncInterval  time.Duration
	PollInterval  time.Duration
	Now           func() time.Time
}

type Status struct {
	UserID       string                     `json:"userId"`
	Email        string                     `json:"email"`
	Activity     activity.Phase             `json:"activity"`
	Warning      warning.State              `json:"warning"`
	LastActivity int64                      `json:"lastActivity"`
	Config       model.SessionWarningConfig `json:"config"`
}

type runtime struct {
	userID  string
	email   string
	config  model.SessionWarningConfig
	clock   *idleclock.Clock
	monitor *activity.Monitor
	warning *warning.Controller
	endOnce sync.Once
}

type Manager struct {
	opts Options

	mu       sync.Mutex
	runtimes map[string]*runtime
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{opts: opts, runtimes: make(map[string]*runtime)}
}

// Login starts tracking userID. The warning thresholds are resolved once here
// and fixed for the life of the session. A previous session of the same user
// is replaced.
func (m *Manager) Login(ctx context.Context, userID, email string, isAdmin bool) (Status, error) {
	cfg := model.DefaultSessionWarningConfig()
	if m.opts.Config != nil {
		cfg = m.opts.Config.LoadWarningConfig(ctx)
	}

	now := m.opts.Now()
	if _, err := m.opts.Store.StartSession(userID, email, isAdmin, now.UnixMilli()); err != nil {
		return Status{}, err
	}

	rt := &runtime{userID: userID, email: email, config: cfg}
	rt.clock = idleclock.NewWithNow(idleclock.SourceFunc(func() (time.Time, bool) {
		return m.opts.Store.LastActivity(userID)
	}), m.opts.Now)

	var syncer activity.Syncer
	if m.opts.Syncer != nil {
		syncer = m.opts.Syncer
	}
	rt.monitor = activity.New(rt.clock, activity.Options{
		UserID:        userID,
		Email:         email,
		Timeout:       cfg.Timeout(),
		CheckInterval: m.opts.CheckInterval,
		SyncInterval:  m.opts.SyncInterval,
		Writer:        m.opts.Store,
		Syncer:        syncer,
		OnExpire:      func() { m.end(rt, ReasonIdle) },
		OnGone:        func() { m.end(rt, ReasonLogout) },
	})
	rt.warning = warning.New(rt.clock, warning.Options{
		Config:       cfg,
		PollInterval: m.opts.PollInterval,
		OnLogout:     func() { m.end(rt, ReasonWarning) },
		OnExtend:     func() { m.extend(rt) },
		OnChange:     func(s warning.State) { m.notify(userID, "warning", s) },
	})

	m.mu.Lock()
	prev := m.runtimes[userID]
	m.runtimes[userID] = rt
	m.mu.Unlock()
	if prev != nil {
		m.teardown(prev, ReasonReplace)
	}

	rt.monitor.Start(now)
	rt.warning.Start()
	if m.opts.Driver != nil {
		m.opts.Driver.Add(rt.clock)
	}
	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Set(float64(m.count()))
	log.Info().Str("user", userID).Int("warningMinutes", cfg.WarningMinutes).Int("timeoutMinutes", cfg.SessionTimeoutMinutes).Msg("session: started")
	return m.status(rt), nil
}

// Touch records activity for the user's session.
func (m *Manager) Touch(userID, page string) error {
	rt, ok := m.get(userID)
	if !ok {
		return ErrNoSession
	}
	if !rt.monitor.Touch(m.opts.Now(), page) {
		return ErrNoSession
	}
	return nil
}

// Extend dismisses the warning; the controller calls back into extend.
func (m *Manager) Extend(userID string) error {
	rt, ok := m.get(userID)
	if !ok {
		return ErrNoSession
	}
	if rt.warning.State().Phase == warning.LoggedOut {
		return ErrNoSession
	}
	rt.warning.Extend()
	return nil
}

func (m *Manager) extend(rt *runtime) {
	rt.monitor.Touch(m.opts.Now(), "")
	rt.monitor.Sync()
}

func (m *Manager) Status(userID string) (Status, error) {
	rt, ok := m.get(userID)
	if !ok {
		return Status{}, ErrNoSession
	}
	return m.status(rt), nil
}

func (m *Manager) Config(userID string) (model.SessionWarningConfig, error) {
	rt, ok := m.get(userID)
	if !ok {
		return model.SessionWarningConfig{}, ErrNoSession
	}
	return rt.config, nil
}

// Logout ends the user's session. Ending a session that is already gone is
// not an error.
func (m *Manager) Logout(userID string) {
	rt, ok := m.get(userID)
	if !ok {
		if _, err := m.opts.Store.EndSession(userID); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("session: clear record failed")
		}
		return
	}
	m.end(rt, ReasonLogout)
}

// Shutdown stops every runtime without deleting the persisted records, so a
// restarted process can pick sessions back up from storage.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rts := make([]*runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		rts = append(rts, rt)
	}
	m.runtimes = make(map[string]*runtime)
	m.mu.Unlock()

	for _, rt := range rts {
		m.stop(rt)
		rt.monitor.Wait()
	}
	metrics.ActiveSessions.Set(0)
}

func (m *Manager) end(rt *runtime, reason string) {
	rt.endOnce.Do(func() {
		m.mu.Lock()
		if m.runtimes[rt.userID] == rt {
			delete(m.runtimes, rt.userID)
		}
		m.mu.Unlock()

		m.stop(rt)
		if _, err := m.opts.Store.EndSession(rt.userID); err != nil {
			log.Warn().Err(err).Str("user", rt.userID).Msg("session: clear record failed")
		}
		if m.opts.Syncer != nil {
			m.opts.Syncer.Forget(rt.email)
		}
		metrics.SessionsEnded.WithLabelValues(reason).Inc()
		metrics.ActiveSessions.Set(float64(m.count()))
		log.Info().Str("user", rt.userID).Str("reason", reason).Msg("session: ended")

		event := "logged-out"
		if reason == ReasonIdle || reason == ReasonWarning {
			event = "session-expired"
		}
		m.notify(rt.userID, event, map[string]string{"reason": reason})
	})
}

// teardown retires a replaced runtime without touching the record that the
// new runtime now owns.
func (m *Manager) teardown(rt *runtime, reason string) {
	rt.endOnce.Do(func() {
		m.stop(rt)
		metrics.SessionsEnded.WithLabelValues(reason).Inc()
	})
}

func (m *Manager) stop(rt *runtime) {
	if m.opts.Driver != nil {
		m.opts.Driver.Remove(rt.clock)
	}
	rt.monitor.Stop()
	rt.warning.Stop()
	rt.clock.Stop()
}

func (m *Manager) status(rt *runtime) Status {
	return Status{
		UserID:       rt.userID,
		Email:        rt.email,
		Activity:     rt.monitor.Phase(),
		Warning:      rt.warning.State(),
		LastActivity: rt.monitor.LastActivity().UnixMilli(),
		Config:       rt.config,
	}
}

func (m *Manager) notify(userID, event string, body any) {
	if m.opts.Notifier != nil {
		m.opts.Notifier.Notify(userID, event, body)
	}
}

func (m *Manager) get(userID string) (*runtime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.runtimes[userID]
	return rt, ok
}

func (m *Manager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runtimes)
}

// Tracked reports whether userID currently has a runtime.
func (m *Manager) Tracked(userID string) bool {
	_, ok := m.get(userID)
	return ok
}
