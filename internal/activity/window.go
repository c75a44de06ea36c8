package activity

const defaultWindowSize = 8

// VisibleEntry wraps a feed entry with its display flag. Active marks
// the tail of the window while the job is still polling, so the UI can
// show ongoing work without implying every historical step is current.
type VisibleEntry struct {
	*Entry
	Active bool
}

// Window returns the most recent bounded slice of the feed. While
// polling, the last two entries (or the single entry, if that is all
// there is) are flagged active.
func Window(entries []*Entry, size int, polling bool) []VisibleEntry {
	if size <= 0 {
		size = defaultWindowSize
	}
	start := 0
	if len(entries) > size {
		start = len(entries) - size
	}
	visible := make([]VisibleEntry, 0, len(entries)-start)
	for _, entry := range entries[start:] {
		visible = append(visible, VisibleEntry{Entry: entry})
	}
	if polling {
		activeTail := 2
		if activeTail > len(visible) {
			activeTail = len(visible)
		}
		for i := len(visible) - activeTail; i < len(visible); i++ {
			visible[i].Active = true
		}
	}
	return visible
}
