package store

import (
	"errors"
	"testing"

	"studio-session/internal/keyspace"
	"studio-session/internal/kv"
)

func TestStore_AccountsByPublicKey(t *testing.T) {
	s := New(kv.NewMemory())

	acc, created := s.GetOrCreateAccount("pk", "", 1000)
	if !created {
		t.Fatalf("expected created")
	}
	again, created := s.GetOrCreateAccount("pk", "anna@example.com", 2000)
	if created {
		t.Fatalf("expected existing account")
	}
	if again.ID != acc.ID || again.Email != "anna@example.com" || again.CreatedAt != 1000 {
		t.Fatalf("unexpected account: %+v", again)
	}

	got, ok := s.GetAccount(acc.ID)
	if !ok || got.Email != "anna@example.com" {
		t.Fatalf("GetAccount: %+v %v", got, ok)
	}
	if !keyspace.ValidID(acc.ID) {
		t.Fatalf("account id %q must be usable in keys", acc.ID)
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	backend := kv.NewMemory()
	s := New(backend)

	if _, ok := s.GetSession("u1"); ok {
		t.Fatalf("expected no session")
	}

	sess, err := s.StartSession("u1", "anna@example.com", true, 1000)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.ID == "" || !sess.IsAuthenticated || string(sess.UserID) != "u1" || !sess.IsAdmin {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if _, ok, _ := backend.Get(keyspace.AuthSession("u1")); !ok {
		t.Fatalf("expected record under %s", keyspace.AuthSession("u1"))
	}

	if err := s.RecordActivity("u1", 5000, "/clients"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	// Stale stamps from a slower tab must not move the clock back.
	if err := s.RecordActivity("u1", 3000, ""); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	got, ok := s.GetSession("u1")
	if !ok || got.LastActivity != 5000 || got.CurrentPage != "/clients" {
		t.Fatalf("unexpected session: %+v", got)
	}
	at, ok := s.LastActivity("u1")
	if !ok || at.UnixMilli() != 5000 {
		t.Fatalf("LastActivity: %v %v", at, ok)
	}

	existed, err := s.EndSession("u1")
	if err != nil || !existed {
		t.Fatalf("EndSession: %v %v", existed, err)
	}
	existed, err = s.EndSession("u1")
	if err != nil || existed {
		t.Fatalf("second EndSession: %v %v", existed, err)
	}
	if _, ok := s.LastActivity("u1"); ok {
		t.Fatalf("expected no activity after end")
	}
}

func TestStore_RecordActivityWithoutSession(t *testing.T) {
	s := New(kv.NewMemory())
	if err := s.RecordActivity("u1", 1, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := s.StartSession("a_b", "", false, 1); !errors.Is(err, keyspace.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestStore_BrowserRecordIsReadable(t *testing.T) {
	backend := kv.NewMemory()
	if err := backend.Set(keyspace.AuthSession("42"), `{"isAuthenticated":true,"userId":42,"userEmail":"a@b.c","isAdmin":false,"currentPage":"/","lastActivity":1700000000000}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s := New(backend)
	sess, ok := s.GetSession("42")
	if !ok || sess.UserID != "42" || sess.LastActivity != 1700000000000 {
		t.Fatalf("unexpected session: %+v %v", sess, ok)
	}
}

func TestStore_CorruptSessionIsDropped(t *testing.T) {
	backend := kv.NewMemory()
	if err := backend.Set(keyspace.AuthSession("u1"), "{"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s := New(backend)
	if _, ok := s.GetSession("u1"); ok {
		t.Fatalf("expected corrupt session to read as absent")
	}
	if _, ok, _ := backend.Get(keyspace.AuthSession("u1")); ok {
		t.Fatalf("expected corrupt record removed")
	}
}

func TestStore_RecordActivityDropsCorruptSession(t *testing.T) {
	backend := kv.NewMemory()
	if err := backend.Set(keyspace.AuthSession("u1"), "{"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s := New(backend)
	if err := s.RecordActivity("u1", 1000, "/"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, ok, _ := backend.Get(keyspace.AuthSession("u1")); ok {
		t.Fatalf("expected corrupt record removed by the failed update")
	}
}
