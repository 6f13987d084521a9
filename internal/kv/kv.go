// Package kv is the persistent key-value layer shared by drafts, open-card
// markers and activity sessions. Values are opaque strings; callers own the
// JSON encoding of what they store.
package kv

import (
	"encoding/json"
	"errors"

	"studio-session/internal/log"
)

var ErrClosed = errors.New("kv: store closed")

// Reader is the read side of a store or transaction.
type Reader interface {
	Get(key string) (string, bool, error)
	// Keys returns every key with the given prefix in lexicographic order.
	Keys(prefix string) ([]string, error)
}

// Tx is a unit of work. Writes made through a Tx are visible to later reads
// in the same Tx and are committed together.
type Tx interface {
	Reader
	Set(key, value string) error
	Remove(key string) error
}

type Store interface {
	Tx
	Update(fn func(tx Tx) error) error
	Close() error
}

// GetJSON decodes the value stored under key into v. A missing key reports
// false. A value that does not parse is logged, removed and reported as
// missing so a corrupt record never surfaces to callers.
func GetJSON(tx Tx, key string, v any) bool {
	raw, ok, err := tx.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv: get failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Error().Err(err).Str("key", key).Msg("kv: corrupt value removed")
		if err := tx.Remove(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("kv: remove corrupt value failed")
		}
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func SetJSON(tx Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(key, string(data))
}
