// Package draft keeps in-progress "new client" and "new project" forms so a
// user who navigates away can resume them. Persistence is best effort: a
// failed write is reported to the caller but never blocks the form itself.
package draft

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"studio-session/internal/keyspace"
	"studio-session/internal/kv"
	"studio-session/internal/model"
	"studio-session/internal/recordset"
	"studio-session/internal/ttl"
)

type Manager struct {
	clients  recordset.Single[model.ClientDraft]
	projects recordset.Collection[model.ProjectDraft]
}

// Pending is the answer to "does this user have a project draft to resume".
type Pending struct {
	HasUnsaved bool   `json:"hasUnsaved"`
	ClientID   string `json:"clientId,omitempty"`
}

type ProjectEntry struct {
	ClientID  string             `json:"clientId"`
	Draft     model.ProjectDraft `json:"draft"`
	Timestamp int64              `json:"timestamp"`
}

func New(store kv.Store, maxAge time.Duration) *Manager {
	if maxAge <= 0 {
		maxAge = ttl.DefaultTTL
	}
	return &Manager{
		clients: recordset.Single[model.ClientDraft]{
			Store: store,
			Kind:  "client_draft",
			TTL:   maxAge,
			Key:   keyspace.ClientDraft,
		},
		projects: recordset.Collection[model.ProjectDraft]{
			Store:  store,
			Kind:   "project_draft",
			TTL:    maxAge,
			Prefix: keyspace.ProjectDraftPrefix,
			Index:  keyspace.ProjectDraftIndex,
		},
	}
}

// SaveClientDraft overwrites the user's client draft. A draft with every
// field empty clears it instead.
func (m *Manager) SaveClientDraft(userID string, fields model.ClientDraft, nowMillis int64) error {
	if !keyspace.ValidID(userID) {
		return keyspace.ErrInvalidID
	}
	if fields.Empty() {
		return m.clients.Clear(userID)
	}
	return m.clients.Put(userID, fields, nowMillis)
}

func (m *Manager) LoadClientDraft(userID string, nowMillis int64) (model.ClientDraft, bool) {
	if !keyspace.ValidID(userID) {
		return model.ClientDraft{}, false
	}
	rec, ok := m.clients.Load(userID, nowMillis)
	return rec.Payload, ok
}

func (m *Manager) PeekClientDraft(userID string, nowMillis int64) (model.ClientDraft, ttl.Status) {
	if !keyspace.ValidID(userID) {
		return model.ClientDraft{}, ttl.Absent
	}
	rec, status := m.clients.Peek(userID, nowMillis)
	return rec.Payload, status
}

func (m *Manager) ClearClientDraft(userID string) error {
	if !keyspace.ValidID(userID) {
		return keyspace.ErrInvalidID
	}
	return m.clients.Clear(userID)
}

func (m *Manager) SaveProjectDraft(userID, clientID string, fields model.ProjectDraft, nowMillis int64) error {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return keyspace.ErrInvalidID
	}
	if fields.Empty() {
		return m.projects.Clear(userID, clientID)
	}
	return m.projects.Put(userID, clientID, fields, nowMillis)
}

func (m *Manager) LoadProjectDraft(userID, clientID string, nowMillis int64) (model.ProjectDraft, bool) {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return model.ProjectDraft{}, false
	}
	rec, ok := m.projects.Load(userID, clientID, nowMillis)
	return rec.Payload, ok
}

func (m *Manager) PeekProjectDraft(userID, clientID string, nowMillis int64) (model.ProjectDraft, ttl.Status) {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return model.ProjectDraft{}, ttl.Absent
	}
	rec, status := m.projects.Peek(userID, clientID, nowMillis)
	return rec.Payload, status
}

func (m *Manager) ClearProjectDraft(userID, clientID string) error {
	if !keyspace.ValidID(userID) || !keyspace.ValidID(clientID) {
		return keyspace.ErrInvalidID
	}
	return m.projects.Clear(userID, clientID)
}

// HasAnyUnsavedProject reports the most recently saved project draft that
// still has a name, budget or description. Stale drafts found along the way
// are deleted.
func (m *Manager) HasAnyUnsavedProject(userID string, nowMillis int64) Pending {
	if !keyspace.ValidID(userID) {
		return Pending{}
	}
	entry, ok := m.projects.First(userID, nowMillis, model.ProjectDraft.Substantive)
	if !ok {
		return Pending{}
	}
	return Pending{HasUnsaved: true, ClientID: entry.ID}
}

func (m *Manager) ListProjectDrafts(userID string, nowMillis int64) ([]ProjectEntry, error) {
	if !keyspace.ValidID(userID) {
		return nil, keyspace.ErrInvalidID
	}
	entries, err := m.projects.List(userID, nowMillis)
	if err != nil {
		return nil, err
	}
	result := make([]ProjectEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, ProjectEntry{ClientID: e.ID, Draft: e.Record.Payload, Timestamp: e.Record.Timestamp})
	}
	return result, nil
}

// EvictExpired sweeps the user's client and project drafts.
func (m *Manager) EvictExpired(userID string, nowMillis int64) (int, error) {
	if !keyspace.ValidID(userID) {
		return 0, keyspace.ErrInvalidID
	}
	var errs *multierror.Error
	clients, err := m.clients.EvictExpired(userID, nowMillis)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	projects, err := m.projects.EvictExpired(userID, nowMillis)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return clients + projects, errs.ErrorOrNil()
}
