package api

import (
	"sort"
	"time"
)

// SortHandoffsNewestFirst orders handoffs by CreatedAt descending, breaking
// ties by ID.
func SortHandoffsNewestFirst(items []Handoff) []Handoff {
	if len(items) == 0 {
		return items
	}
	sorted := make([]Handoff, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti := parseTime(sorted[i].CreatedAt)
		tj := parseTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseTime exposes API timestamp parsing for consumers that need display
// formatting. Unparseable values yield the zero time.
func ParseTime(value string) time.Time {
	return parseTime(value)
}

// Overdue reports whether a borrowed book is past its due date at now.
func (b Book) Overdue(now time.Time) bool {
	due := parseTime(b.DueDate)
	return !due.IsZero() && now.After(due)
}

// AwaitingRole returns the role that userID still has to confirm on h, or ""
// when userID has nothing left to do.
func (h Handoff) AwaitingRole(userID string) string {
	switch {
	case userID == h.GiverID && h.GiverConfirmedAt == "":
		return "giver"
	case userID == h.ReceiverID && h.ReceiverConfirmedAt == "":
		return "receiver"
	default:
		return ""
	}
}
