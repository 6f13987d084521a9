// Package opencard remembers client cards that were opened but not finished,
// so the next visit can offer to pick up where the user left off. Markers are
// only cleared when the caller reports the expected completion.
package opencard

import (
	"time"

	"studio-session/internal/keyspace"
	"studio-session/internal/kv"
	"studio-session/internal/model"
	"studio-session/internal/recordset"
	"studio-session/internal/ttl"
)

type Tracker struct {
	cards recordset.Collection[model.OpenCard]
}

type Pending struct {
	HasOpen    bool   `json:"hasOpen"`
	ClientID   string `json:"clientId,omitempty"`
	ClientName string `json:"clientName,omitempty"`
}

type Marker struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	Timestamp  int64  `json:"timestamp"`
}

func New(store kv.Store, maxAge time.Duration) *Tracker {
	if maxAge <= 0 {
		maxAge = ttl.DefaultTTL
	}
	return &Tracker{cards: recordset.Collection[model.OpenCard]{
		Store:  store,
		Kind:   "open_card",
		TTL:    maxAge,
		Prefix: keyspace.OpenCardPrefix,
		Index:  keyspace.OpenCardIndex,
	}}
}

func (t *Tracker) MarkOpen(userID, clientID, clientName string, nowMillis int64) error {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return keyspace.ErrInvalidID
	}
	card := model.OpenCard{ClientID: model.Text(clientID), ClientName: model.Text(clientName)}
	return t.cards.Put(userID, clientID, card, nowMillis)
}

func (t *Tracker) ClearOpen(userID, clientID string) error {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return keyspace.ErrInvalidID
	}
	return t.cards.Clear(userID, clientID)
}

func (t *Tracker) Peek(userID, clientID string, nowMillis int64) (Marker, ttl.Status) {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return Marker{}, ttl.Absent
	}
	rec, status := t.cards.Peek(userID, clientID, nowMillis)
	if status != ttl.Fresh && status != ttl.Expired {
		return Marker{}, status
	}
	return toMarker(clientID, rec), status
}

// HasAnyOpenCard reports the most recently opened card that is still fresh.
// Stale markers found along the way are deleted.
func (t *Tracker) HasAnyOpenCard(userID string, nowMillis int64) Pending {
	if !keyspace.ValidID(userID) {
		return Pending{}
	}
	entry, ok := t.cards.First(userID, nowMillis, nil)
	if !ok {
		return Pending{}
	}
	m := toMarker(entry.ID, entry.Record)
	return Pending{HasOpen: true, ClientID: m.ClientID, ClientName: m.ClientName}
}

func (t *Tracker) List(userID string, nowMillis int64) ([]Marker, error) {
	if !keyspace.ValidID(userID) {
		return nil, keyspace.ErrInvalidID
	}
	entries, err := t.cards.List(userID, nowMillis)
	if err != nil {
		return nil, err
	}
	result := make([]Marker, 0, len(entries))
	for _, e := range entries {
		result = append(result, toMarker(e.ID, e.Record))
	}
	return result, nil
}

func (t *Tracker) EvictExpired(userID string, nowMillis int64) (int, error) {
	if !keyspace.ValidID(userID) {
		return 0, keyspace.ErrInvalidID
	}
	return t.cards.EvictExpired(userID, nowMillis)
}

func toMarker(id string, rec ttl.Record[model.OpenCard]) Marker {
	clientID := string(rec.Payload.ClientID)
	if clientID == "" {
		clientID = id
	}
	return Marker{ClientID: clientID, ClientName: string(rec.Payload.ClientName), Timestamp: rec.Timestamp}
}
