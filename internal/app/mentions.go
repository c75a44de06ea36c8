package app

import (
	"sort"
	"strings"
	"time"

	"chatctl/internal/conversation"
	"chatctl/internal/types"
)

const (
	mentionDebounce    = 200 * time.Millisecond
	maxMentionMatches  = 5
	minMentionPrefix   = 1
	mentionTriggerRune = '@'
)

// mentionSearch drives @-mention autocomplete over the active
// conversation's history. Each keystroke supersedes the pending lookup;
// a result is applied only if its generation is still the latest, the
// same identity-guard pattern the reconciler uses for message reloads.
type mentionSearch struct {
	debouncer *conversation.Debouncer
	store     *conversation.Store
	results   chan mentionResultsMsg

	query   string
	matches []string
}

func newMentionSearch(store *conversation.Store) *mentionSearch {
	return &mentionSearch{
		debouncer: conversation.NewDebouncer(),
		store:     store,
		results:   make(chan mentionResultsMsg, 8),
	}
}

// OnInput inspects the draft text for a trailing @-prefix and schedules
// a debounced lookup for it. Anything else clears the popup.
func (s *mentionSearch) OnInput(text string) {
	prefix, ok := trailingMentionPrefix(text)
	if !ok {
		s.reset()
		return
	}
	s.query = prefix
	s.debouncer.Trigger(mentionDebounce, func(generation uint64) {
		matches := collectMentionMatches(s.store.Active(), prefix)
		select {
		case s.results <- mentionResultsMsg{generation: generation, query: prefix, matches: matches}:
		default:
		}
	})
}

// Apply commits a lookup result unless a newer keystroke superseded it.
func (s *mentionSearch) Apply(msg mentionResultsMsg) bool {
	if !s.debouncer.Valid(msg.generation) || msg.query != s.query {
		return false
	}
	s.matches = msg.matches
	return true
}

func (s *mentionSearch) Matches() []string {
	return s.matches
}

func (s *mentionSearch) reset() {
	s.debouncer.Cancel()
	s.query = ""
	s.matches = nil
}

func trailingMentionPrefix(text string) (string, bool) {
	at := strings.LastIndexByte(text, byte(mentionTriggerRune))
	if at < 0 {
		return "", false
	}
	if at > 0 && text[at-1] != ' ' {
		return "", false
	}
	prefix := text[at+1:]
	if len(prefix) < minMentionPrefix || strings.ContainsAny(prefix, " \t") {
		return "", false
	}
	return prefix, true
}

func collectMentionMatches(conv *types.Conversation, prefix string) []string {
	if conv == nil {
		return nil
	}
	lower := strings.ToLower(prefix)
	seen := map[string]struct{}{}
	var matches []string
	for _, msg := range conv.Messages {
		for _, word := range strings.Fields(msg.Text) {
			word = strings.Trim(word, ".,;:!?\"'()[]")
			if len(word) <= len(prefix) {
				continue
			}
			if !strings.HasPrefix(strings.ToLower(word), lower) {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			matches = append(matches, word)
		}
	}
	sort.Strings(matches)
	if len(matches) > maxMentionMatches {
		matches = matches[:maxMentionMatches]
	}
	return matches
}
