package activity

import (
	"strings"

	"chatctl/internal/types"
)

type EntryKind string

const (
	KindProgress EntryKind = "progress"
	KindSearch   EntryKind = "search"
	KindDelegate EntryKind = "delegate"
)

type DelegateStatus string

const (
	DelegateRunning   DelegateStatus = "running"
	DelegateCompleted DelegateStatus = "completed"
	DelegateFailed    DelegateStatus = "failed"
)

const (
	delegateToolName = "delegate_task"
	searchToolMarker = "web_search"
)

// Entry is one classified feed item. For delegates the entry opens on
// the tool_call and is mutated in place when the matching tool_result
// closes it.
type Entry struct {
	ActivityID int64
	Kind       EntryKind
	Text       string

	// Delegate fields.
	Status DelegateStatus
	Output string
}

// Classify buckets a job's events, in id order, into feed entries.
// Delegate start/end pairing is positional: events carry no correlation
// id, so a tool_result closes the oldest still-open delegate entry.
func Classify(events []*types.ActivityEvent) []*Entry {
	entries := make([]*Entry, 0, len(events))
	var openDelegates []*Entry
	for _, event := range events {
		if event == nil {
			continue
		}
		switch {
		case isDelegateCall(event):
			entry := &Entry{
				ActivityID: event.ID,
				Kind:       KindDelegate,
				Text:       extractTaskText(event.Message),
				Status:     DelegateRunning,
			}
			entries = append(entries, entry)
			openDelegates = append(openDelegates, entry)
		case isDelegateResult(event):
			if len(openDelegates) == 0 {
				continue
			}
			entry := openDelegates[0]
			openDelegates = openDelegates[1:]
			if event.IsError {
				entry.Status = DelegateFailed
				entry.Output = truncatePreview(strings.TrimSpace(event.Message))
			} else {
				entry.Status = DelegateCompleted
				entry.Output = extractOutputPreview(event.Message)
			}
		case isSearchCall(event):
			entries = append(entries, &Entry{
				ActivityID: event.ID,
				Kind:       KindSearch,
				Text:       extractSearchQuery(event.Message),
			})
		case isProgress(event):
			entries = append(entries, &Entry{
				ActivityID: event.ID,
				Kind:       KindProgress,
				Text:       progressText(event),
			})
		}
	}
	return entries
}

func isDelegateCall(event *types.ActivityEvent) bool {
	return event.Type == types.ActivityToolCall && event.ToolName == delegateToolName
}

func isDelegateResult(event *types.ActivityEvent) bool {
	return event.Type == types.ActivityToolResult && event.ToolName == delegateToolName
}

func isSearchCall(event *types.ActivityEvent) bool {
	return event.Type == types.ActivityToolCall &&
		strings.Contains(event.ToolName, searchToolMarker)
}

func isProgress(event *types.ActivityEvent) bool {
	switch event.Type {
	case types.ActivityThinkingStream, types.ActivityPlanning,
		types.ActivityRouting, types.ActivityProgressStep:
		return true
	case types.ActivityToolCall:
		// Search and delegate calls are handled above; any other tool
		// call renders as a generic progress step.
		return true
	}
	return strings.HasPrefix(string(event.Type), "explore_")
}

func progressText(event *types.ActivityEvent) string {
	text := strings.TrimSpace(event.Message)
	if text == "" && event.ToolName != "" {
		text = event.ToolName
	}
	return truncatePreview(text)
}
