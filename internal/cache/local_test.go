package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"decklens/internal/core"
)

func TestLocalCache(t *testing.T) {
	entry := &Entry{
		Profile:  core.DeckProfile{CompanyName: "Acme", Industry: "Fintech;Payments"},
		Status:   "ok",
		Model:    "gpt-4o-mini",
		CachedAt: time.Now().UTC(),
	}

	t.Run("GetSetRoundTrip", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheFile := filepath.Join(tmpDir, "results.json")

		cache := NewLocalCache(cacheFile)
		ctx := context.Background()

		// Initially empty
		result, err := cache.Get(ctx, "deadbeef:gpt-4o-mini")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Fatalf("expected nil result for empty cache, got %v", result)
		}

		if err := cache.Set(ctx, "deadbeef:gpt-4o-mini", entry); err != nil {
			t.Fatalf("unexpected error on set: %v", err)
		}

		result, err = cache.Get(ctx, "deadbeef:gpt-4o-mini")
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if result == nil {
			t.Fatal("expected result, got nil")
		}
		if result.Profile.CompanyName != "Acme" {
			t.Errorf("expected Acme in cache, got %q", result.Profile.CompanyName)
		}
		if result.Status != "ok" {
			t.Errorf("expected status ok, got %q", result.Status)
		}
	})

	t.Run("KeysDoNotCollide", func(t *testing.T) {
		cacheFile := filepath.Join(t.TempDir(), "results.json")
		cache := NewLocalCache(cacheFile)
		ctx := context.Background()

		if err := cache.Set(ctx, "deadbeef:gpt-4o-mini", entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := cache.Get(ctx, "deadbeef:gpt-4o")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Fatal("a different model must miss the cache")
		}
	})

	t.Run("CreateDirectoryIfNeeded", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheFile := filepath.Join(tmpDir, "nested", "dir", "results.json")

		cache := NewLocalCache(cacheFile)

		if err := cache.Set(context.Background(), "k", entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Verify file was created
		if _, err := os.Stat(cacheFile); os.IsNotExist(err) {
			t.Fatal("cache file was not created")
		}
	})

	t.Run("EmptyFilePath", func(t *testing.T) {
		cache := NewLocalCache("")
		ctx := context.Background()

		// Get should return nil
		result, err := cache.Get(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Fatal("expected nil result for empty path")
		}

		// Set should be a no-op
		if err := cache.Set(ctx, "k", entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheFile := filepath.Join(tmpDir, "results.json")

		// Write invalid JSON
		if err := os.WriteFile(cacheFile, []byte("not valid json"), 0o644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}

		cache := NewLocalCache(cacheFile)

		if _, err := cache.Get(context.Background(), "k"); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})
}

func TestKey(t *testing.T) {
	k1 := Key([]byte("deck one"), "gpt-4o-mini")
	k2 := Key([]byte("deck one"), "gpt-4o-mini")
	if k1 != k2 {
		t.Errorf("same bytes and model must produce the same key: %q vs %q", k1, k2)
	}

	if Key([]byte("deck one"), "gpt-4o") == k1 {
		t.Error("different model must produce a different key")
	}
	if Key([]byte("deck two"), "gpt-4o-mini") == k1 {
		t.Error("different bytes must produce a different key")
	}
}

func TestNew(t *testing.T) {
	t.Run("DisabledWhenTypeEmpty", func(t *testing.T) {
		c, err := New(Config{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c != nil {
			t.Fatal("expected nil cache when type is empty")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		if _, err := New(Config{Type: "memcached"}); err == nil {
			t.Fatal("expected error for unknown cache type")
		}
	})
}
