package testsupport

import (
	"testing"

	"pagepass/internal/config"
	"pagepass/internal/store"
)

// MustOpenStore opens the circulation database for cfg and closes it when the
// test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
