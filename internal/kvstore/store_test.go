package kvstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"vareview/internal/kvstore"
	"vareview/internal/testsupport"
)

func TestSetGetDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenKV(t, cfg)
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected missing key, found=%v err=%v", found, err)
	}
	if err := store.Set(ctx, "library.root_dir", []byte("/data/library")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, found, err := store.Get(ctx, "library.root_dir")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(value) != "/data/library" {
		t.Fatalf("unexpected value %q", value)
	}
	if err := store.Set(ctx, "library.root_dir", []byte("/other")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _, _ = store.Get(ctx, "library.root_dir")
	if string(value) != "/other" {
		t.Fatalf("overwrite not applied, got %q", value)
	}
	if err := store.Delete(ctx, "library.root_dir"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "library.root_dir"); found {
		t.Fatalf("expected key to be deleted")
	}
	if err := store.Delete(ctx, "library.root_dir"); err != nil {
		t.Fatalf("deleting a missing key should succeed: %v", err)
	}
}

func TestSetRejectsEmptyKey(t *testing.T) {
	store := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	if err := store.Set(context.Background(), "  ", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestJSONHelpers(t *testing.T) {
	store := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	ctx := context.Background()

	type entry struct {
		DatasetID string `json:"datasetId"`
	}
	if err := store.SetJSON(ctx, "entry", entry{DatasetID: "abc"}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got entry
	found, err := store.GetJSON(ctx, "entry", &got)
	if err != nil || !found || got.DatasetID != "abc" {
		t.Fatalf("GetJSON: found=%v err=%v got=%+v", found, err, got)
	}
	if err := store.Set(ctx, "broken", []byte("{")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if found, err := store.GetJSON(ctx, "broken", &got); !found || err == nil {
		t.Fatalf("expected decode error for broken value")
	}
}

func TestUpdateReadModifyWrite(t *testing.T) {
	store := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, "counter", func(current []byte, found bool) ([]byte, error) {
				n := 0
				if found {
					parsed, err := strconv.Atoi(string(current))
					if err != nil {
						return nil, err
					}
					n = parsed
				}
				return []byte(strconv.Itoa(n + 1)), nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	value, _, err := store.Get(ctx, "counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != "20" {
		t.Fatalf("expected 20 serialized increments, got %s", value)
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	store := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := store.Set(ctx, "key", []byte("before")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	boom := errors.New("boom")
	err := store.Update(ctx, "key", func([]byte, bool) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	value, _, _ := store.Get(ctx, "key")
	if string(value) != "before" {
		t.Fatalf("failed update should not change the value, got %q", value)
	}

	if err := store.Update(ctx, "key", func([]byte, bool) ([]byte, error) { return nil, nil }); err != nil {
		t.Fatalf("delete via Update: %v", err)
	}
	if _, found, _ := store.Get(ctx, "key"); found {
		t.Fatalf("nil result should delete the key")
	}
}

func TestReopenKeepsValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := kvstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenKV(t, cfg)
	value, found, err := reopened.Get(context.Background(), "k")
	if err != nil || !found || string(value) != "v" {
		t.Fatalf("value lost across reopen: %q found=%v err=%v", value, found, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := kvstore.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := kvstore.OpenPath(path); !errors.Is(err, kvstore.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
