package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestCache(store Store, ttl time.Duration, now time.Time) *TextCache {
	c := NewTextCache(store, ttl, discardLogger, nil)
	c.now = func() time.Time { return now }
	return c
}

func TestTextCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.UnixMilli(1_700_000_000_000)
	c := newTestCache(store, time.Hour, now)

	if _, ok := c.Lookup(ctx, "https://example.test/a.csv"); ok {
		t.Fatal("empty cache reported a hit")
	}
	if err := c.Save(ctx, "https://example.test/a.csv", "NO\n1\n"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, ok, _ := store.Get(ctx, "csv-cache:v1:https://example.test/a.csv")
	if !ok {
		t.Fatal("entry not stored under the versioned key")
	}
	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("stored entry is not JSON: %v", err)
	}
	if env["timestamp"] != float64(now.UnixMilli()) || env["data"] != "NO\n1\n" {
		t.Errorf("stored entry = %v", env)
	}

	got, ok := c.Lookup(ctx, "https://example.test/a.csv")
	if !ok || got != "NO\n1\n" {
		t.Errorf("Lookup = %q, %v", got, ok)
	}
}

func TestTextCache_Misses(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	fresh := now.Add(-time.Minute).UnixMilli()
	stale := now.Add(-2 * time.Hour).UnixMilli()

	tests := []struct {
		name  string
		entry string
	}{
		{"expired", `{"timestamp":` + jsonNum(stale) + `,"data":"x"}`},
		{"malformed json", `{"timestamp":`},
		{"string timestamp", `{"timestamp":"` + jsonNum(fresh) + `","data":"x"}`},
		{"missing timestamp", `{"data":"x"}`},
		{"numeric data", `{"timestamp":` + jsonNum(fresh) + `,"data":42}`},
		{"null data", `{"timestamp":` + jsonNum(fresh) + `,"data":null}`},
		{"not an object", `"just a string"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			key := CacheKey("loc")
			_ = store.Set(ctx, key, []byte(tt.entry))

			c := newTestCache(store, time.Hour, now)
			if got, ok := c.Lookup(ctx, "loc"); ok {
				t.Fatalf("Lookup = %q, true; want miss", got)
			}
			if _, ok, _ := store.Get(ctx, key); ok {
				t.Error("unusable entry was not deleted")
			}
		})
	}
}

func jsonNum(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "source.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	if _, ok, err := store.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on empty store = %v, %v", ok, err)
	}
	if err := store.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v2" {
		t.Errorf("Get = %q, %v, %v", got, ok, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Entries survive reopening.
	store, err = NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	c := NewTextCache(store, time.Hour, discardLogger, nil)
	if err := c.Save(ctx, "loc", "text"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if text, ok := c.Lookup(ctx, "loc"); !ok || text != "text" {
		t.Errorf("Lookup = %q, %v", text, ok)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("entry present after Delete")
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("NURSERYMAP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NURSERYMAP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer store.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	defer func() { _ = store.Delete(ctx, key) }()

	if err := store.Set(ctx, key, []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, key)
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get = %q, %v, %v", got, ok, err)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, "memory", "", "")
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("memory driver returned %T", s)
	}

	s, err = OpenStore(ctx, "none", "", "")
	if err != nil || s != nil {
		t.Errorf("none driver = %v, %v", s, err)
	}

	if _, err := OpenStore(ctx, "postgres", "", ""); err == nil {
		t.Error("postgres without DSN should fail")
	}
	if _, err := OpenStore(ctx, "redis", "", ""); err == nil {
		t.Error("unknown driver should fail")
	}
}
