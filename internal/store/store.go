package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"studio-session/internal/keyspace"
	"studio-session/internal/kv"
	"studio-session/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

type Store struct {
	mu sync.RWMutex

	kv kv.Store

	accountsByPublicKey map[string]model.Account
}

func New(backend kv.Store) *Store {
	return &Store{
		kv:                  backend,
		accountsByPublicKey: make(map[string]model.Account),
	}
}

// KV exposes the backing store for the draft and open-card components.
func (s *Store) KV() kv.Store {
	return s.kv
}

func (s *Store) GetOrCreateAccount(publicKey, email string, nowMillis int64) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accountsByPublicKey[publicKey]; ok {
		if email != "" && email != existing.Email {
			existing.Email = email
			s.accountsByPublicKey[publicKey] = existing
		}
		return existing, false
	}

	acc := model.Account{
		ID:        uuid.NewString(),
		PublicKey: publicKey,
		Email:     email,
		CreatedAt: nowMillis,
	}
	s.accountsByPublicKey[publicKey] = acc
	return acc, true
}

func (s *Store) GetAccount(userID string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accountsByPublicKey {
		if acc.ID == userID {
			return acc, true
		}
	}
	return model.Account{}, false
}

// StartSession writes a fresh authenticated session record for the user,
// replacing any previous one.
func (s *Store) StartSession(userID, email string, isAdmin bool, nowMillis int64) (model.ActivitySession, error) {
	if !keyspace.ValidID(userID) {
		return model.ActivitySession{}, keyspace.ErrInvalidID
	}
	sess := model.ActivitySession{
		ID:              uuid.NewString(),
		IsAuthenticated: true,
		UserID:          model.Text(userID),
		UserEmail:       email,
		IsAdmin:         isAdmin,
		LastActivity:    nowMillis,
	}
	if err := kv.SetJSON(s.kv, keyspace.AuthSession(userID), sess); err != nil {
		return model.ActivitySession{}, err
	}
	return sess, nil
}

func (s *Store) GetSession(userID string) (model.ActivitySession, bool) {
	if !keyspace.ValidID(userID) {
		return model.ActivitySession{}, false
	}
	var sess model.ActivitySession
	if !kv.GetJSON(s.kv, keyspace.AuthSession(userID), &sess) {
		return model.ActivitySession{}, false
	}
	if !sess.IsAuthenticated {
		return model.ActivitySession{}, false
	}
	return sess, true
}

// RecordActivity moves the session's last activity forward to atMillis and
// updates the current page when one is given. Older stamps leave the
// timestamp unchanged, so concurrent tabs converge on the latest.
func (s *Store) RecordActivity(userID string, atMillis int64, page string) error {
	if !keyspace.ValidID(userID) {
		return keyspace.ErrInvalidID
	}
	key := keyspace.AuthSession(userID)
	missing := false
	// A corrupt record is removed by the read; returning nil commits that.
	err := s.kv.Update(func(tx kv.Tx) error {
		var sess model.ActivitySession
		if !kv.GetJSON(tx, key, &sess) || !sess.IsAuthenticated {
			missing = true
			return nil
		}
		changed := false
		if atMillis > sess.LastActivity {
			sess.LastActivity = atMillis
			changed = true
		}
		if page != "" && page != sess.CurrentPage {
			sess.CurrentPage = page
			changed = true
		}
		if !changed {
			return nil
		}
		return kv.SetJSON(tx, key, sess)
	})
	if err != nil {
		return err
	}
	if missing {
		return ErrSessionNotFound
	}
	return nil
}

// LastActivity reads the persisted stamp; ok is false when the user has no
// live session.
func (s *Store) LastActivity(userID string) (time.Time, bool) {
	sess, ok := s.GetSession(userID)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(sess.LastActivity), true
}

func (s *Store) EndSession(userID string) (bool, error) {
	if !keyspace.ValidID(userID) {
		return false, keyspace.ErrInvalidID
	}
	key := keyspace.AuthSession(userID)
	existed := false
	err := s.kv.Update(func(tx kv.Tx) error {
		_, ok, err := tx.Get(key)
		if err != nil {
			return err
		}
		existed = ok
		if !ok {
			return nil
		}
		return tx.Remove(key)
	})
	return existed, err
}
