// Package recordset stores TTL records in a kv.Store, either as single
// per-user records or as per-user collections keyed by a member id with an
// ordered index alongside.
package recordset

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"studio-session/internal/kv"
	"studio-session/internal/log"
	"studio-session/internal/metrics"
	"studio-session/internal/ttl"
)

// Single is one record per user.
type Single[T any] struct {
	Store kv.Store
	Kind  string
	TTL   time.Duration
	Key   func(userID string) string
}

func (s Single[T]) Put(userID string, payload T, nowMillis int64) error {
	raw, err := ttl.Encode(ttl.Wrap(payload, nowMillis))
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.Kind, err)
	}
	if err := s.Store.Set(s.Key(userID), raw); err != nil {
		return fmt.Errorf("save %s: %w", s.Kind, err)
	}
	metrics.RecordsSaved.WithLabelValues(s.Kind).Inc()
	return nil
}

// Peek never mutates the store.
func (s Single[T]) Peek(userID string, nowMillis int64) (ttl.Record[T], ttl.Status) {
	return peek[T](s.Store, s.Key(userID), s.TTL, nowMillis)
}

// Load returns the record when it is fresh. Expired and corrupt records are
// removed as part of the read.
func (s Single[T]) Load(userID string, nowMillis int64) (ttl.Record[T], bool) {
	key := s.Key(userID)
	rec, status := peek[T](s.Store, key, s.TTL, nowMillis)
	switch status {
	case ttl.Fresh:
		return rec, true
	case ttl.Expired, ttl.Corrupt:
		evict(s.Store, s.Kind, key, status)
	}
	return ttl.Record[T]{}, false
}

func (s Single[T]) Clear(userID string) error {
	if err := s.Store.Remove(s.Key(userID)); err != nil {
		return fmt.Errorf("clear %s: %w", s.Kind, err)
	}
	return nil
}

// EvictExpired removes the record if it is stale or unreadable.
func (s Single[T]) EvictExpired(userID string, nowMillis int64) (int, error) {
	key := s.Key(userID)
	_, status := peek[T](s.Store, key, s.TTL, nowMillis)
	if status != ttl.Expired && status != ttl.Corrupt {
		return 0, nil
	}
	if err := s.Store.Remove(key); err != nil {
		return 0, fmt.Errorf("evict %s: %w", s.Kind, err)
	}
	metrics.RecordsEvicted.WithLabelValues(s.Kind, status.String()).Inc()
	return 1, nil
}

// Collection is many records per user, one per member id.
type Collection[T any] struct {
	Store  kv.Store
	Kind   string
	TTL    time.Duration
	Prefix func(userID string) string
	Index  func(userID string) string
}

// Entry is a fresh member of a collection.
type Entry[T any] struct {
	ID     string
	Record ttl.Record[T]
}

func (c Collection[T]) key(userID, id string) string {
	return c.Prefix(userID) + id
}

func (c Collection[T]) index(userID string) kv.Index {
	return kv.Index{Key: c.Index(userID), MemberPrefix: c.Prefix(userID)}
}

// Put writes the record and moves id to the front of the user's index in
// one transaction.
func (c Collection[T]) Put(userID, id string, payload T, nowMillis int64) error {
	raw, err := ttl.Encode(ttl.Wrap(payload, nowMillis))
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Kind, err)
	}
	err = c.Store.Update(func(tx kv.Tx) error {
		if err := tx.Set(c.key(userID, id), raw); err != nil {
			return err
		}
		return c.index(userID).Touch(tx, id)
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", c.Kind, err)
	}
	metrics.RecordsSaved.WithLabelValues(c.Kind).Inc()
	return nil
}

func (c Collection[T]) Peek(userID, id string, nowMillis int64) (ttl.Record[T], ttl.Status) {
	return peek[T](c.Store, c.key(userID, id), c.TTL, nowMillis)
}

func (c Collection[T]) Load(userID, id string, nowMillis int64) (ttl.Record[T], bool) {
	rec, status := c.Peek(userID, id, nowMillis)
	switch status {
	case ttl.Fresh:
		return rec, true
	case ttl.Expired, ttl.Corrupt:
		if err := c.remove(userID, id); err != nil {
			log.Warn().Err(err).Str("kind", c.Kind).Msg("recordset: evict on read failed")
		} else {
			metrics.RecordsEvicted.WithLabelValues(c.Kind, status.String()).Inc()
		}
	}
	return ttl.Record[T]{}, false
}

func (c Collection[T]) Clear(userID, id string) error {
	if err := c.remove(userID, id); err != nil {
		return fmt.Errorf("clear %s: %w", c.Kind, err)
	}
	return nil
}

func (c Collection[T]) remove(userID, id string) error {
	return c.Store.Update(func(tx kv.Tx) error {
		if err := tx.Remove(c.key(userID, id)); err != nil {
			return err
		}
		return c.index(userID).Drop(tx, id)
	})
}

// First walks the user's index, most recent first, and returns the first
// fresh record accepted by match. Stale or unreadable records met on the way
// are removed.
func (c Collection[T]) First(userID string, nowMillis int64, match func(T) bool) (Entry[T], bool) {
	var (
		found   Entry[T]
		ok      bool
		evicted = map[ttl.Status]int{}
	)
	err := c.Store.Update(func(tx kv.Tx) error {
		ids, err := c.index(userID).Reconcile(tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, status := peek[T](tx, c.key(userID, id), c.TTL, nowMillis)
			switch status {
			case ttl.Expired, ttl.Corrupt:
				if err := c.removeTx(tx, userID, id); err != nil {
					return err
				}
				evicted[status]++
			case ttl.Fresh:
				if !ok && (match == nil || match(rec.Payload)) {
					found, ok = Entry[T]{ID: id, Record: rec}, true
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("kind", c.Kind).Str("user", userID).Msg("recordset: scan failed")
		return Entry[T]{}, false
	}
	c.countEvicted(evicted)
	return found, ok
}

// List returns all fresh records in index order without mutating the store.
func (c Collection[T]) List(userID string, nowMillis int64) ([]Entry[T], error) {
	keys, err := c.Store.Keys(c.Prefix(userID))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.Kind, err)
	}
	order := c.index(userID).List(c.Store)
	byID := make(map[string]bool, len(keys))
	for _, k := range keys {
		byID[k[len(c.Prefix(userID)):]] = true
	}

	ids := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, id := range order {
		if byID[id] && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	for _, k := range keys {
		id := k[len(c.Prefix(userID)):]
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	result := make([]Entry[T], 0, len(ids))
	for _, id := range ids {
		rec, status := c.Peek(userID, id, nowMillis)
		if status == ttl.Fresh {
			result = append(result, Entry[T]{ID: id, Record: rec})
		}
	}
	return result, nil
}

// EvictExpired removes every stale or unreadable record of the user.
func (c Collection[T]) EvictExpired(userID string, nowMillis int64) (int, error) {
	keys, err := c.Store.Keys(c.Prefix(userID))
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", c.Kind, err)
	}

	var (
		errs    *multierror.Error
		removed int
		evicted = map[ttl.Status]int{}
	)
	for _, k := range keys {
		id := k[len(c.Prefix(userID)):]
		_, status := c.Peek(userID, id, nowMillis)
		if status != ttl.Expired && status != ttl.Corrupt {
			continue
		}
		if err := c.remove(userID, id); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("evict %s %s: %w", c.Kind, id, err))
			continue
		}
		removed++
		evicted[status]++
	}
	c.countEvicted(evicted)
	return removed, errs.ErrorOrNil()
}

func (c Collection[T]) removeTx(tx kv.Tx, userID, id string) error {
	if err := tx.Remove(c.key(userID, id)); err != nil {
		return err
	}
	return c.index(userID).Drop(tx, id)
}

func (c Collection[T]) countEvicted(evicted map[ttl.Status]int) {
	for status, n := range evicted {
		metrics.RecordsEvicted.WithLabelValues(c.Kind, status.String()).Add(float64(n))
	}
}

func peek[T any](r kv.Reader, key string, maxAge time.Duration, nowMillis int64) (ttl.Record[T], ttl.Status) {
	raw, ok, err := r.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("recordset: get failed")
		return ttl.Record[T]{}, ttl.Absent
	}
	rec, status := ttl.Peek[T](raw, ok, maxAge, nowMillis)
	if status == ttl.Corrupt {
		log.Error().Str("key", key).Msg("recordset: unreadable record")
	}
	return rec, status
}

func evict(store kv.Store, kind, key string, status ttl.Status) {
	if err := store.Remove(key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("recordset: evict on read failed")
		return
	}
	metrics.RecordsEvicted.WithLabelValues(kind, status.String()).Inc()
}
