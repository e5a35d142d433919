package testsupport

import (
	"context"
	"sync"

	"pagepass/internal/events"
)

// RecordingNotifier captures notices instead of delivering them.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []events.Notice
	// Err, when set, is returned from every Notify after recording.
	Err error
}

func (r *RecordingNotifier) Notify(_ context.Context, notice events.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	return r.Err
}

// Notices returns a copy of everything recorded so far.
func (r *RecordingNotifier) Notices() []events.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Kinds returns the kinds of notices sent to userID, in order.
func (r *RecordingNotifier) Kinds(userID string) []events.NoticeKind {
	var kinds []events.NoticeKind
	for _, n := range r.Notices() {
		if n.UserID == userID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

// Reset forgets recorded notices.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}

// RecordingLedger captures history entries.
type RecordingLedger struct {
	mu      sync.Mutex
	entries []events.HistoryEntry
	Err     error
}

func (r *RecordingLedger) Append(_ context.Context, entry events.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns recorded entries, optionally filtered to the given types.
func (r *RecordingLedger) Entries(types ...events.HistoryType) []events.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.HistoryEntry
	for _, e := range r.entries {
		if len(types) == 0 {
			out = append(out, e)
			continue
		}
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// RecordingVisibility captures visibility resets.
type RecordingVisibility struct {
	mu     sync.Mutex
	resets []events.VisibilityReset
}

func (r *RecordingVisibility) ResetVisibility(_ context.Context, bookID int64, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, events.VisibilityReset{BookID: bookID, OwnerID: ownerID})
	return nil
}

// Resets returns recorded resets.
func (r *RecordingVisibility) Resets() []events.VisibilityReset {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.VisibilityReset, len(r.resets))
	copy(out, r.resets)
	return out
}
