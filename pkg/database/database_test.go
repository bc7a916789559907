package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func TestStore(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		store, err := Open(filepath.Join(t.TempDir(), "docs.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		if err := store.Put("d1", "first"); err != nil {
			t.Fatal(err)
		}
		if err := store.Put("d1", "replaced"); err != nil {
			t.Fatal(err)
		}
		got, err := store.Get("d1")
		if err != nil {
			t.Fatal(err)
		}
		if got != "replaced" {
			t.Errorf("value = %q, want replaced", got)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		store, err := Open(filepath.Join(t.TempDir(), "docs.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		if _, err := store.Get("nope"); err == nil {
			t.Fatal("expected error for missing key")
		}
	})

	t.Run("insert rejects duplicates", func(t *testing.T) {
		store, err := Open(filepath.Join(t.TempDir(), "docs.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		if err := store.Insert("d1", "v"); err != nil {
			t.Fatal(err)
		}
		err = store.Insert("d1", "other")
		var dup *DuplicateKeyError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateKeyError, got %v", err)
		}
		if dup.Key != "d1" {
			t.Errorf("key = %s", dup.Key)
		}
	})
}

func TestMergeStores(t *testing.T) {
	t.Run("unique keys merge", func(t *testing.T) {
		dir := t.TempDir()
		// 10 docs split across 2 shards
		for shard := 0; shard < 2; shard++ {
			store, err := Open(filepath.Join(dir, fmt.Sprintf("s%d.db", shard)))
			if err != nil {
				t.Fatal(err)
			}
			for i := shard; i < 10; i += 2 {
				if err := store.Put(fmt.Sprintf("d%d", i), "text"); err != nil {
					t.Fatal(err)
				}
			}
			store.Close()
		}

		merged, err := Open(filepath.Join(dir, "merged.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer merged.Close()
		for shard := 0; shard < 2; shard++ {
			src, err := Open(filepath.Join(dir, fmt.Sprintf("s%d.db", shard)))
			if err != nil {
				t.Fatal(err)
			}
			err = src.Each(func(key, value string) error {
				return merged.Insert(key, value)
			})
			src.Close()
			if err != nil {
				t.Fatal(err)
			}
		}
		n, err := merged.Count()
		if err != nil {
			t.Fatal(err)
		}
		if n != 10 {
			t.Errorf("merged count = %d, want 10", n)
		}
	})

	t.Run("overlapping keys rejected", func(t *testing.T) {
		dir := t.TempDir()
		merged, err := Open(filepath.Join(dir, "merged.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer merged.Close()

		if err := merged.Insert("d1", "v"); err != nil {
			t.Fatal(err)
		}
		err = merged.Insert("d1", "v2")
		var dup *DuplicateKeyError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateKeyError, got %v", err)
		}
	})
}
