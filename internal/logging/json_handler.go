package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"pagepass/internal/faults"
)

// jsonTimeLayout keeps milliseconds so the lines of one handoff close sort
// in order under `pagepass logs`.
const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// newJSONHandler writes one object per line keyed the way the logs filters
// read them: ts, level, msg, then book_id and user_id from the request.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return errorKindHandler{Handler: slog.NewJSONHandler(w, &opts)}
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(jsonTimeLayout))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

// errorKindHandler adds error_kind beside an error attribute so operators can
// tell a refused request (gift_locked, not_authorized) from an internal fault.
type errorKindHandler struct {
	slog.Handler
}

func (h errorKindHandler) Handle(ctx context.Context, record slog.Record) error {
	var kind faults.Kind
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key != "error" {
			return true
		}
		if err, ok := attr.Value.Any().(error); ok {
			kind = faults.KindOf(err)
		}
		return false
	})
	if kind != "" {
		record = record.Clone()
		record.AddAttrs(slog.String(FieldErrorKind, string(kind)))
	}
	return h.Handler.Handle(ctx, record)
}

func (h errorKindHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return errorKindHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h errorKindHandler) WithGroup(name string) slog.Handler {
	return errorKindHandler{Handler: h.Handler.WithGroup(name)}
}
