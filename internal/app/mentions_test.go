package app

import (
	"reflect"
	"testing"
	"time"

	"chatctl/internal/conversation"
	"chatctl/internal/types"
)

func TestTrailingMentionPrefix(t *testing.T) {
	tests := []struct {
		text   string
		prefix string
		ok     bool
	}{
		{"hello @dep", "dep", true},
		{"@r", "r", true},
		{"hello @deploy pipeline", "", false},
		{"hello", "", false},
		{"mail me at foo@bar", "", false},
		{"hello @", "", false},
	}
	for _, tt := range tests {
		prefix, ok := trailingMentionPrefix(tt.text)
		if prefix != tt.prefix || ok != tt.ok {
			t.Fatalf("trailingMentionPrefix(%q) = %q, %v; want %q, %v", tt.text, prefix, ok, tt.prefix, tt.ok)
		}
	}
}

func TestCollectMentionMatches(t *testing.T) {
	conv := &types.Conversation{ID: "c1", Messages: []*types.Message{
		{ID: "1", Role: types.MessageRoleUser, Text: "check the deploy pipeline and the deployment logs"},
		{ID: "2", Role: types.MessageRoleAssistant, Text: "The deploy finished. Deployment is green."},
	}}

	got := collectMentionMatches(conv, "dep")
	want := []string{"Deployment", "deploy", "deployment"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}

	if got := collectMentionMatches(nil, "dep"); got != nil {
		t.Fatalf("nil conversation returned %v", got)
	}
	if got := collectMentionMatches(conv, "zzz"); got != nil {
		t.Fatalf("no-match prefix returned %v", got)
	}
}

func TestMentionSearchSupersededResultDiscarded(t *testing.T) {
	store := conversation.NewStore()
	store.Open(&types.Conversation{ID: "c1", Messages: []*types.Message{
		{ID: "1", Role: types.MessageRoleUser, Text: "deploy the service"},
	}})
	search := newMentionSearch(store)

	// First keystroke schedules a lookup; the second supersedes it
	// before the debounce fires.
	search.OnInput("run @dep")
	search.OnInput("run @se")

	var msg mentionResultsMsg
	select {
	case msg = <-search.results:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced lookup never fired")
	}

	if msg.query != "se" {
		t.Fatalf("fired query = %q, want the latest keystroke", msg.query)
	}
	if !search.Apply(msg) {
		t.Fatal("current-generation result must apply")
	}
	if want := []string{"service"}; !reflect.DeepEqual(search.Matches(), want) {
		t.Fatalf("matches = %v, want %v", search.Matches(), want)
	}

	// A result from a dead generation must be discarded.
	stale := mentionResultsMsg{generation: msg.generation - 1, query: "se", matches: []string{"wrong"}}
	if search.Apply(stale) {
		t.Fatal("stale-generation result must be discarded")
	}
	if want := []string{"service"}; !reflect.DeepEqual(search.Matches(), want) {
		t.Fatalf("stale apply mutated matches: %v", search.Matches())
	}
}

func TestMentionSearchResetOnPlainText(t *testing.T) {
	store := conversation.NewStore()
	search := newMentionSearch(store)
	search.matches = []string{"leftover"}

	search.OnInput("no mention here")
	if search.Matches() != nil {
		t.Fatal("plain text should clear the popup")
	}
}
