// Package keyspace names the persisted records. The draft and open-card keys
// match what browser clients already keep in local storage, so records can be
// imported and exported without translation.
package keyspace

import (
	"errors"
	"strings"
)

var ErrInvalidID = errors.New("invalid id")

// ValidID reports whether id can be embedded in a key. Ids are joined with
// '_', so an id containing one would make two users' keys collide.
func ValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "_\x00")
}

func ClientDraft(userID string) string {
	return "unsaved_client_data_" + userID
}

func ProjectDraftPrefix(userID string) string {
	return "unsaved_project_" + userID + "_"
}

func ProjectDraft(userID, clientID string) string {
	return ProjectDraftPrefix(userID) + clientID
}

func ProjectDraftIndex(userID string) string {
	return "index:" + ProjectDraftPrefix(userID)
}

func OpenCardPrefix(userID string) string {
	return "open_card_" + userID + "_"
}

func OpenCard(userID, clientID string) string {
	return OpenCardPrefix(userID) + clientID
}

func OpenCardIndex(userID string) string {
	return "index:" + OpenCardPrefix(userID)
}

// AuthSession is the per-user activity session record. A browser keeps a
// single "authSession" entry; the service holds one per signed-in user.
func AuthSession(userID string) string {
	return "authSession_" + userID
}
