package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"pagepass/internal/config"
	"pagepass/internal/events"
	"pagepass/internal/logging"
	"pagepass/internal/store"
)

const (
	dialectSQLite = "sqlite3"
	tableEvents   = "history_events"

	colID         = "id"
	colEventType  = "event_type"
	colBookID     = "book_id"
	colUserID     = "user_id"
	colOccurredAt = "occurred_at"
	colMetadata   = "metadata_json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is one stored ledger entry.
type Event struct {
	ID         int64              `json:"id"`
	Type       events.HistoryType `json:"event_type"`
	BookID     int64              `json:"book_id,omitempty"`
	UserID     string             `json:"user_id,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

type eventRow struct {
	ID         int64          `db:"id"`
	EventType  string         `db:"event_type"`
	BookID     sql.NullInt64  `db:"book_id"`
	UserID     sql.NullString `db:"user_id"`
	OccurredAt string         `db:"occurred_at"`
	Metadata   sql.NullString `db:"metadata_json"`
}

// Filter narrows Query and Stats. Zero fields match everything.
type Filter struct {
	BookID int64
	UserID string
	Types  []events.HistoryType
	Since  time.Time
	Until  time.Time
	Limit  int
}

// TypeCount is the number of events of one type.
type TypeCount struct {
	Type  events.HistoryType `db:"event_type" json:"event_type"`
	Count int                `db:"total" json:"count"`
}

// Ledger reads and writes the history_events table.
type Ledger struct {
	db     *sqlx.DB
	retry  retryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// Options configures a Ledger.
type Options struct {
	Attempts  int
	BaseDelay time.Duration
	Logger    *slog.Logger
	Clock     func() time.Time
}

// OptionsFromConfig maps the [history] section onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Attempts:  cfg.History.AppendAttempts,
		BaseDelay: time.Duration(cfg.History.AppendBaseDelayMS) * time.Millisecond,
		Logger:    logger,
	}
}

// New wraps db, the connection pool of the circulation store.
func New(db *sql.DB, opts Options) *Ledger {
	policy := retryPolicy{attempts: opts.Attempts, baseDelay: opts.BaseDelay, jitter: defaultJitterFactor}
	if policy.attempts <= 0 {
		policy.attempts = defaultAttempts
	}
	if policy.baseDelay <= 0 {
		policy.baseDelay = defaultBaseDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		db:     sqlx.NewDb(db, "sqlite"),
		retry:  policy,
		logger: logging.NewComponentLogger(logger, "history"),
		now:    clock,
	}
}

// Append stores entry, retrying on lock contention.
func (l *Ledger) Append(ctx context.Context, entry events.HistoryEntry) error {
	if entry.Type == "" {
		return fmt.Errorf("append history: empty event type")
	}
	occurred := entry.OccurredAt
	if occurred.IsZero() {
		occurred = l.now()
	}
	record := goqu.Record{
		colEventType:  string(entry.Type),
		colOccurredAt: store.FormatTime(occurred),
	}
	if entry.BookID != 0 {
		record[colBookID] = entry.BookID
	}
	if entry.UserID != "" {
		record[colUserID] = entry.UserID
	}
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode history metadata: %w", err)
		}
		record[colMetadata] = string(encoded)
	}

	query, args, err := goqu.Dialect(dialectSQLite).
		Insert(tableEvents).
		Rows(record).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}

	err = l.retry.run(ctx, func(ctx context.Context) error {
		_, execErr := l.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", entry.Type, err)
	}
	return nil
}

// Query returns matching events, newest first.
func (l *Ledger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	ds := goqu.Dialect(dialectSQLite).
		From(tableEvents).
		Select(colID, colEventType, colBookID, colUserID, colOccurredAt, colMetadata).
		Order(goqu.I(colOccurredAt).Desc(), goqu.I(colID).Desc())
	ds = applyFilter(ds, filter)
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}
	var rows []eventRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

// Stats counts matching events per type, most frequent first.
func (l *Ledger) Stats(ctx context.Context, filter Filter) ([]TypeCount, error) {
	ds := goqu.Dialect(dialectSQLite).
		From(tableEvents).
		Select(goqu.C(colEventType), goqu.COUNT(goqu.Star()).As("total")).
		GroupBy(colEventType).
		Order(goqu.I("total").Desc(), goqu.I(colEventType).Asc())
	ds = applyFilter(ds, filter)

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build history stats: %w", err)
	}
	var counts []TypeCount
	if err := l.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	return counts, nil
}

func applyFilter(ds *goqu.SelectDataset, filter Filter) *goqu.SelectDataset {
	where := make([]goqu.Expression, 0, 5)
	if filter.BookID != 0 {
		where = append(where, goqu.C(colBookID).Eq(filter.BookID))
	}
	if filter.UserID != "" {
		where = append(where, goqu.C(colUserID).Eq(filter.UserID))
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		where = append(where, goqu.C(colEventType).In(types))
	}
	if !filter.Since.IsZero() {
		where = append(where, goqu.C(colOccurredAt).Gte(store.FormatTime(filter.Since)))
	}
	if !filter.Until.IsZero() {
		where = append(where, goqu.C(colOccurredAt).Lt(store.FormatTime(filter.Until)))
	}
	if len(where) == 0 {
		return ds
	}
	return ds.Where(goqu.And(where...))
}

func (r eventRow) toEvent() (Event, error) {
	occurred, err := store.ParseTime(r.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("history event %d: %w", r.ID, err)
	}
	event := Event{
		ID:         r.ID,
		Type:       events.HistoryType(r.EventType),
		BookID:     r.BookID.Int64,
		UserID:     r.UserID.String,
		OccurredAt: occurred,
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		if err := json.Unmarshal([]byte(r.Metadata.String), &event.Metadata); err != nil {
			return Event{}, fmt.Errorf("decode history event %d metadata: %w", r.ID, err)
		}
	}
	return event, nil
}
