package keyspace

import (
	"strings"
	"testing"
)

func TestKeys(t *testing.T) {
	cases := map[string]string{
		ClientDraft("7"):       "unsaved_client_data_7",
		ProjectDraft("7", "3"): "unsaved_project_7_3",
		OpenCard("7", "3"):     "open_card_7_3",
		AuthSession("7"):       "authSession_7",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if !strings.HasPrefix(ProjectDraft("7", "3"), ProjectDraftPrefix("7")) {
		t.Fatalf("project key must start with its prefix")
	}
	if !strings.HasPrefix(OpenCard("7", "3"), OpenCardPrefix("7")) {
		t.Fatalf("open card key must start with its prefix")
	}
	if strings.HasPrefix(ProjectDraftIndex("7"), ProjectDraftPrefix("7")) {
		t.Fatalf("index key must not be listed as a member")
	}
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"1", "abc", "0b6f-42"} {
		if !ValidID(id) {
			t.Fatalf("expected %q valid", id)
		}
	}
	// "1" + "_2_3" and "1_2" + "_3" would share a key.
	for _, id := range []string{"", "1_2", "a\x00b"} {
		if ValidID(id) {
			t.Fatalf("expected %q invalid", id)
		}
	}
}
