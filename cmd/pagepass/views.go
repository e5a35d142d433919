package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"pagepass/internal/api"
)

func formatDisplayTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDisplayDate(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func bookFlags(b api.Book, now time.Time) string {
	var flags []string
	if b.GiftOnBorrow {
		flags = append(flags, "gift")
	}
	if b.OwnerRecallActive {
		flags = append(flags, "recalled")
	}
	if b.OffShelfOnReturn {
		flags = append(flags, "shelve-off")
	}
	if b.Overdue(now) {
		flags = append(flags, "overdue")
	}
	return dashIfEmpty(strings.Join(flags, ","))
}

func buildBookRows(books []api.Book, now time.Time) [][]string {
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10),
			b.Title,
			dashIfEmpty(b.Author),
			b.OwnerID,
			dashIfEmpty(b.HolderID),
			b.Status,
			formatDisplayDate(b.DueDate),
			bookFlags(b, now),
		})
	}
	return rows
}

var bookColumns = []column{
	numCol("ID"), wideCol("Title", 32), wideCol("Author", 24), col("Owner"), col("Holder"),
	statusCol("Status"), col("Due"), flagsCol("Flags"),
}

func containsFlag(flags, flag string) bool {
	return slices.Contains(strings.Split(flags, ","), flag)
}

func buildHandoffRows(handoffs []api.Handoff, user string) [][]string {
	rows := make([][]string, 0, len(handoffs))
	for _, h := range handoffs {
		rows = append(rows, []string{
			h.ID,
			strconv.FormatInt(h.BookID, 10),
			h.Kind,
			h.GiverID,
			h.ReceiverID,
			confirmMark(h.GiverConfirmedAt),
			confirmMark(h.ReceiverConfirmedAt),
			dashIfEmpty(h.AwaitingRole(user)),
		})
	}
	return rows
}

var handoffColumns = []column{
	col("Handoff"), numCol("Book"), col("Kind"), col("Giver"), col("Receiver"),
	col("Giver OK"), col("Receiver OK"), col("You Confirm As"),
}

func confirmMark(value string) string {
	if value == "" {
		return "no"
	}
	return "yes"
}

func buildQueueRows(entries []api.QueueEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Position),
			strconv.FormatInt(e.BookID, 10),
			e.UserID,
			strconv.Itoa(e.PassCount),
			dashIfEmpty(e.LastPassReason),
			formatDisplayTime(e.JoinedAt),
		})
	}
	return rows
}

var queueColumns = []column{
	numCol("Pos"), numCol("Book"), col("User"), numCol("Passes"), wideCol("Last Pass Reason", 32), col("Joined"),
}

func buildOwnershipRows(records []api.OwnershipRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.OwnerID,
			r.AcquiredVia,
			formatDisplayTime(r.AcquiredAt),
			formatDisplayTime(r.EndedAt),
			dashIfEmpty(r.PreviousOwnerID),
		})
	}
	return rows
}

var ownershipColumns = []column{col("Owner"), col("Via"), col("Acquired"), col("Ended"), col("Previous Owner")}

func buildHistoryRows(events []api.HistoryEvent) [][]string {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		book := "-"
		if e.BookID != 0 {
			book = strconv.FormatInt(e.BookID, 10)
		}
		rows = append(rows, []string{
			formatDisplayTime(e.OccurredAt),
			e.Type,
			book,
			dashIfEmpty(e.UserID),
			summarizeMetadata(e.Metadata),
		})
	}
	return rows
}

var historyColumns = []column{col("When"), col("Event"), numCol("Book"), col("User"), wideCol("Details", 48)}

func summarizeMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}

func buildBatchRows(summary api.BatchSummary) [][]string {
	rows := make([][]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		book := "-"
		if item.BookID != 0 {
			book = strconv.FormatInt(item.BookID, 10)
		}
		detail := item.Message
		if item.ErrorKind != "" {
			detail = item.ErrorKind + ": " + item.Message
		}
		rows = append(rows, []string{item.HandoffID, book, item.Role, item.Result, dashIfEmpty(detail)})
	}
	return rows
}

var batchColumns = []column{
	col("Handoff"), numCol("Book"), col("Role"), {title: "Result", paint: batchResultColors}, wideCol("Detail", 48),
}

func describeConfirm(result api.ConfirmResult) string {
	h := result.Handoff
	switch result.Outcome {
	case "closed":
		switch {
		case result.Gifted:
			return fmt.Sprintf("Handoff complete. Book %d now belongs to %s.", h.BookID, h.ReceiverID)
		case result.Book != nil && result.Book.HolderID != "":
			return fmt.Sprintf("Handoff complete. %s holds book %d until %s.", result.Book.HolderID, h.BookID, formatDisplayDate(result.Book.DueDate))
		default:
			return fmt.Sprintf("Handoff complete. Book %d is back with its owner.", h.BookID)
		}
	default:
		return fmt.Sprintf("Confirmed. Waiting for the other side of handoff %s.", h.ID)
	}
}
