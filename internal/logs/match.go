package logs

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// LevelAtLeast keeps lines at or above level. Lines whose level cannot be
// read are kept.
func LevelAtLeast(level string) Matcher {
	minRank, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if !ok || minRank == 0 {
		return nil
	}
	return func(line string) bool {
		rank, ok := levelRank[lineLevel(line)]
		return !ok || rank >= minRank
	}
}

// ForBook keeps lines that carry the given book id.
func ForBook(bookID int64) Matcher {
	if bookID <= 0 {
		return nil
	}
	want := strconv.FormatInt(bookID, 10)
	return func(line string) bool {
		if isJSON(line) {
			return jsoniter.Get([]byte(line), "book_id").ToString() == want
		}
		start := strings.Index(line, " [")
		if start < 0 {
			return false
		}
		end := strings.IndexByte(line[start:], ']')
		if end < 0 {
			return false
		}
		for _, token := range strings.Fields(line[start+2 : start+end]) {
			if token == "book="+want {
				return true
			}
		}
		return false
	}
}

// All combines matchers; nil entries are ignored.
func All(matchers ...Matcher) Matcher {
	active := make([]Matcher, 0, len(matchers))
	for _, m := range matchers {
		if m != nil {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, m := range active {
			if !m(line) {
				return false
			}
		}
		return true
	}
}

func lineLevel(line string) string {
	if isJSON(line) {
		return strings.ToLower(jsoniter.Get([]byte(line), "level").ToString())
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return strings.ToLower(fields[1])
}

func isJSON(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "{")
}
