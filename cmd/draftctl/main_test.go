package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-session/internal/draft"
	"studio-session/internal/kv"
	"studio-session/internal/model"
	"studio-session/internal/opencard"
)

func seed(t *testing.T, path string) {
	t.Helper()
	store, err := kv.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	now := time.Now().UnixMilli()
	stale := now - int64(48*time.Hour/time.Millisecond)
	drafts := draft.New(store, 24*time.Hour)
	cards := opencard.New(store, 24*time.Hour)
	require.NoError(t, drafts.SaveProjectDraft("7", "3", model.ProjectDraft{Name: "Wedding"}, now))
	require.NoError(t, drafts.SaveProjectDraft("7", "4", model.ProjectDraft{Name: "Old"}, stale))
	require.NoError(t, cards.MarkOpen("7", "3", "Anna", now))
}

func run(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	cmd := BuildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--driver", "sqlite", "--path", path}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDraftctl_ListPendingSweep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	seed(t, path)

	out, err := run(t, path, "pending", "7")
	require.NoError(t, err)
	var pending struct {
		Project  draft.Pending    `json:"project"`
		OpenCard opencard.Pending `json:"openCard"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	assert.Equal(t, draft.Pending{HasUnsaved: true, ClientID: "3"}, pending.Project)
	assert.True(t, pending.OpenCard.HasOpen)
	assert.Equal(t, "Anna", pending.OpenCard.ClientName)

	out, err = run(t, path, "list", "7")
	require.NoError(t, err)
	var listed struct {
		ClientDraftStatus string           `json:"clientDraftStatus"`
		ProjectDrafts     []map[string]any `json:"projectDrafts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, "absent", listed.ClientDraftStatus)
	assert.Len(t, listed.ProjectDrafts, 1)

	_, err = run(t, path, "clear", "7", "--client-id", "3")
	require.NoError(t, err)
	out, err = run(t, path, "sweep", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 expired records")
}

func TestDraftctl_SweepRemovesExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := kv.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	stale := time.Now().Add(-48 * time.Hour).UnixMilli()
	require.NoError(t, draft.New(store, 24*time.Hour).SaveProjectDraft("7", "4", model.ProjectDraft{Name: "Old"}, stale))
	require.NoError(t, store.Close())

	out, err := run(t, path, "sweep", "7", "8")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "removed 1 expired records"), out)
}

func TestDraftctl_RejectsBadTTL(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "x.db"), "--ttl-hours", "0", "list", "7")
	assert.Error(t, err)
}
