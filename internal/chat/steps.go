package chat

import (
	"sync"
	"time"
)

// Entry is one progress notice shown while a turn is being produced.
type Entry struct {
	Icon string
	Text string
}

// TrackerSnapshot is an immutable view of the tracker state, handed to the
// change callback and to renderers.
type TrackerSnapshot struct {
	Entries  []Entry
	Visible  bool
	Expanded bool
	Finished bool
}

// Tracker keeps the append-only progress log for the turn in flight. Entries
// are never reordered or removed individually; Reset is the only bulk clear.
// The change callback fires after every mutation so the owning surface can
// re-render, which is what reveals the newest entry.
type Tracker struct {
	mu       sync.Mutex
	entries  []Entry
	visible  bool
	expanded bool
	finished bool

	hideDelay time.Duration
	hideTimer *time.Timer
	onChange  func(TrackerSnapshot)
}

// NewTracker creates a tracker that hides itself hideDelay after a turn
// finishes. onChange may be nil.
func NewTracker(hideDelay time.Duration, onChange func(TrackerSnapshot)) *Tracker {
	if onChange == nil {
		onChange = func(TrackerSnapshot) {}
	}
	return &Tracker{
		expanded:  true,
		hideDelay: hideDelay,
		onChange:  onChange,
	}
}

// Reset clears the log and shows the tracker for a new turn.
func (t *Tracker) Reset() {
	t.mu.Lock()
	if t.hideTimer != nil {
		t.hideTimer.Stop()
		t.hideTimer = nil
	}
	t.entries = nil
	t.visible = true
	t.finished = false
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.onChange(snap)
}

// Append adds one entry to the end of the log.
func (t *Tracker) Append(icon, text string) {
	t.mu.Lock()
	t.entries = append(t.entries, Entry{Icon: icon, Text: text})
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.onChange(snap)
}

// MarkFinished switches the tracker to its terminal state and schedules it to
// hide after the grace delay.
func (t *Tracker) MarkFinished() {
	t.mu.Lock()
	t.finished = true
	if t.hideTimer != nil {
		t.hideTimer.Stop()
	}
	t.hideTimer = time.AfterFunc(t.hideDelay, t.hide)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.onChange(snap)
}

// ToggleExpanded flips the presentation-only collapsed state. The log content
// is unaffected.
func (t *Tracker) ToggleExpanded() {
	t.mu.Lock()
	t.expanded = !t.expanded
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.onChange(snap)
}

// Snapshot returns the current tracker state.
func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) hide() {
	t.mu.Lock()
	t.visible = false
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.onChange(snap)
}

func (t *Tracker) snapshotLocked() TrackerSnapshot {
	entries := make([]Entry, len(t.entries))
	copy(entries, t.entries)
	return TrackerSnapshot{
		Entries:  entries,
		Visible:  t.visible,
		Expanded: t.expanded,
		Finished: t.finished,
	}
}
