package testsupport

import (
	"testing"

	"vareview/internal/config"
	"vareview/internal/kvstore"
)

// MustOpenKV opens the key-value store for tests and registers cleanup.
func MustOpenKV(t testing.TB, cfg *config.Config) *kvstore.Store {
	t.Helper()

	store, err := kvstore.Open(cfg)
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
