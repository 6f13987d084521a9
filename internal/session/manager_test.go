package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-session/internal/activity"
	"studio-session/internal/activitysync"
	"studio-session/internal/hub"
	"studio-session/internal/idleclock"
	"studio-session/internal/kv"
	"studio-session/internal/model"
	"studio-session/internal/store"
	"studio-session/internal/warning"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixedConfig struct {
	cfg   model.SessionWarningConfig
	calls int
}

func (f *fixedConfig) LoadWarningConfig(context.Context) model.SessionWarningConfig {
	f.calls++
	return f.cfg
}

type recordingSyncer struct {
	mu     sync.Mutex
	synced []string
	forgot []string
}

func (s *recordingSyncer) Sync(_ context.Context, email string) activitysync.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, email)
	return activitysync.Result{Sent: true}
}

func (s *recordingSyncer) Forget(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgot = append(s.forgot, email)
}

type event struct {
	userID string
	name   string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Notify(userID, name string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{userID, name})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.name)
	}
	return out
}

type fixture struct {
	mu       sync.Mutex
	now      time.Time
	store    *store.Store
	driver   *idleclock.Driver
	config   *fixedConfig
	syncer   *recordingSyncer
	notifier *recordingNotifier
	mgr      *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:      base,
		store:    store.New(kv.NewMemory()),
		driver:   idleclock.NewDriver(time.Second),
		config:   &fixedConfig{cfg: model.DefaultSessionWarningConfig()},
		syncer:   &recordingSyncer{},
		notifier: &recordingNotifier{},
	}
	f.mgr = NewManager(Options{
		Store:    f.store,
		Driver:   f.driver,
		Config:   f.config,
		Syncer:   f.syncer,
		Notifier: f.notifier,
		Now:      f.clock,
	})
	t.Cleanup(f.mgr.Shutdown)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	for i := time.Duration(0); i < d; i += time.Second {
		f.mu.Lock()
		f.now = f.now.Add(time.Second)
		now := f.now
		f.mu.Unlock()
		f.driver.TickAll(now)
	}
}

func TestLogin_StartsTrackedSession(t *testing.T) {
	f := newFixture(t)
	st, err := f.mgr.Login(context.Background(), "u1", "anna@example.com", false)
	require.NoError(t, err)

	assert.Equal(t, activity.Active, st.Activity)
	assert.Equal(t, warning.Hidden, st.Warning.Phase)
	assert.Equal(t, base.UnixMilli(), st.LastActivity)
	assert.Equal(t, 1, f.driver.Len())
	assert.Equal(t, 1, f.config.calls)

	sess, ok := f.store.GetSession("u1")
	require.True(t, ok)
	assert.True(t, sess.IsAuthenticated)
	assert.Equal(t, "anna@example.com", sess.UserEmail)
}

func TestLogin_InvalidUserID(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "bad_id", "", false)
	require.Error(t, err)
	assert.False(t, f.mgr.Tracked("bad_id"))
}

func TestTouch_PersistsActivity(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "u1", "", false)
	require.NoError(t, err)

	f.advance(2 * time.Minute)
	require.NoError(t, f.mgr.Touch("u1", "/projects"))

	sess, ok := f.store.GetSession("u1")
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Minute).UnixMilli(), sess.LastActivity)
	assert.Equal(t, "/projects", sess.CurrentPage)

	assert.ErrorIs(t, f.mgr.Touch("nobody", ""), ErrNoSession)
}

func TestIdleSession_WarnsThenLogsOut(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "u1", "anna@example.com", false)
	require.NoError(t, err)

	f.advance(6*time.Minute + 5*time.Second)
	st, err := f.mgr.Status("u1")
	require.NoError(t, err)
	assert.Equal(t, warning.Showing, st.Warning.Phase)
	assert.Contains(t, f.notifier.names(), "warning")

	f.advance(2 * time.Minute)
	assert.False(t, f.mgr.Tracked("u1"))
	_, ok := f.store.GetSession("u1")
	assert.False(t, ok)
	assert.Zero(t, f.driver.Len())
	assert.Contains(t, f.notifier.names(), "session-expired")
	assert.Equal(t, []string{"anna@example.com"}, f.syncer.forgot)

	_, err = f.mgr.Status("u1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestExtend_KeepsSessionAlive(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "u1", "anna@example.com", false)
	require.NoError(t, err)

	f.advance(6*time.Minute + 30*time.Second)
	require.NoError(t, f.mgr.Extend("u1"))

	st, err := f.mgr.Status("u1")
	require.NoError(t, err)
	assert.Equal(t, warning.Hidden, st.Warning.Phase)
	assert.Equal(t, base.Add(6*time.Minute+30*time.Second).UnixMilli(), st.LastActivity)

	f.advance(3 * time.Minute)
	assert.True(t, f.mgr.Tracked("u1"))
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "u1", "anna@example.com", false)
	require.NoError(t, err)

	f.mgr.Logout("u1")
	f.mgr.Logout("u1")

	assert.False(t, f.mgr.Tracked("u1"))
	_, ok := f.store.GetSession("u1")
	assert.False(t, ok)
	assert.Equal(t, []string{"logged-out"}, f.notifier.names())
	assert.ErrorIs(t, f.mgr.Extend("u1"), ErrNoSession)
}

func TestLogin_ReplacesPreviousRuntime(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "u1", "", false)
	require.NoError(t, err)
	_, err = f.mgr.Login(context.Background(), "u1", "", false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.driver.Len())
	assert.True(t, f.mgr.Tracked("u1"))
	_, ok := f.store.GetSession("u1")
	assert.True(t, ok, "replacing a runtime keeps the new record")
}

func TestConfig_ResolvedOnceAtLogin(t *testing.T) {
	f := newFixture(t)
	f.config.cfg = model.SessionWarningConfig{WarningMinutes: 2, SessionTimeoutMinutes: 10}
	_, err := f.mgr.Login(context.Background(), "u1", "", false)
	require.NoError(t, err)

	f.config.cfg = model.DefaultSessionWarningConfig()
	cfg, err := f.mgr.Config("u1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionWarningConfig{WarningMinutes: 2, SessionTimeoutMinutes: 10}, cfg)

	// Under the default 7 minute timeout this would already have ended.
	f.advance(8 * time.Minute)
	assert.True(t, f.mgr.Tracked("u1"))
}

func TestLogoutElsewhere_EndsAsLogout(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Login(context.Background(), "u1", "anna@example.com", false)
	require.NoError(t, err)

	// Another process cleared the record.
	_, err = f.store.EndSession("u1")
	require.NoError(t, err)

	f.advance(8 * time.Minute)
	assert.False(t, f.mgr.Tracked("u1"))
	assert.Equal(t, []string{"logged-out"}, f.notifier.names(), "no warning and no expiry for a session ended elsewhere")
	assert.Zero(t, f.driver.Len())
	assert.Equal(t, []string{"anna@example.com"}, f.syncer.forgot)
}

type stalledWriter struct {
	release chan struct{}
	once    sync.Once
}

func (w *stalledWriter) Write([]byte) error {
	<-w.release
	return nil
}

func (w *stalledWriter) Close() error {
	w.once.Do(func() { close(w.release) })
	return nil
}

type capturingWriter struct {
	mu     sync.Mutex
	frames int
}

func (w *capturingWriter) Write([]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames++
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func (w *capturingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func TestStalledTab_DoesNotDelayOtherUsers(t *testing.T) {
	f := newFixture(t)
	h := hub.New()
	f.mgr = NewManager(Options{Store: f.store, Driver: f.driver, Config: f.config, Notifier: h, Now: f.clock})
	t.Cleanup(f.mgr.Shutdown)

	slow := &stalledWriter{release: make(chan struct{})}
	t.Cleanup(func() { _ = slow.Close() })
	fast := &capturingWriter{}
	h.Register(hub.NewConnection("slow", slow))
	h.Register(hub.NewConnection("fast", fast))

	_, err := f.mgr.Login(context.Background(), "slow", "", false)
	require.NoError(t, err)
	_, err = f.mgr.Login(context.Background(), "fast", "", false)
	require.NoError(t, err)

	start := time.Now()
	f.advance(6*time.Minute + 50*time.Second)
	assert.Less(t, time.Since(start), 2*time.Second, "ticks waited on a stalled socket")

	for _, user := range []string{"slow", "fast"} {
		st, err := f.mgr.Status(user)
		require.NoError(t, err)
		assert.Equal(t, warning.Showing, st.Warning.Phase, user)
		assert.LessOrEqual(t, st.Warning.SecondsLeft, 10, user)
	}
	assert.Eventually(t, func() bool { return fast.count() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.Count("slow") == 0 }, 2*time.Second, 10*time.Millisecond,
		"the stalled tab is dropped once its queue overflows")
}
