package threadstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "threads.json")
	s, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s, path
}

func TestSetAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "u1", "t1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got != "t1" {
		t.Errorf("Get(u1) = %q, %v, want t1, true", got, ok)
	}
}

func TestSetOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "t1")
	s.Set(ctx, "u1", "t2")

	got, _, _ := s.Get(ctx, "u1")
	if got != "t2" {
		t.Errorf("Get(u1) after overwrite = %q, want t2", got)
	}
	if n, _ := s.Size(ctx); n != 1 {
		t.Errorf("Size() = %d, want 1", n)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "t1")
	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok, _ := s.Get(ctx, "u1"); ok {
		t.Error("Get(u1) after Delete should be absent")
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestSizeAfterMixedMutations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "t1")
	s.Set(ctx, "u2", "t2")
	s.Set(ctx, "u3", "t3")
	s.Set(ctx, "u2", "t2b")
	s.Delete(ctx, "u1")

	if n, _ := s.Size(ctx); n != 2 {
		t.Errorf("Size() = %d, want 2", n)
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "t1")
	s.Set(ctx, "u2", "t2")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := s.Size(ctx); n != 0 {
		t.Errorf("Size() after Clear = %d, want 0", n)
	}
}

func TestAllReturnsSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "t1")
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	all["u2"] = "t2" // mutating the snapshot must not leak into the store

	if has, _ := s.Has(ctx, "u2"); has {
		t.Error("mutating the All() snapshot leaked into the store")
	}
}

func TestPersistenceAcrossReconstruction(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "t1")
	s.Set(ctx, "u2", "t2")

	reopened, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}

	got, ok, _ := reopened.Get(ctx, "u2")
	if !ok || got != "t2" {
		t.Errorf("reopened Get(u2) = %q, %v, want t2, true", got, ok)
	}
}

func TestCorruptFileSelfHeals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() with corrupt file error = %v", err)
	}

	if n, _ := s.Size(context.Background()); n != 0 {
		t.Errorf("Size() after corrupt load = %d, want 0", n)
	}

	// The corrupt file must have been rewritten as a valid empty mapping.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("backing file not rewritten as valid JSON: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("backing file has %d entries after self-heal, want 0", len(m))
	}
}

func TestMissingFileIsCreatedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "threads.json")

	if _, err := NewFileStore(path, nil); err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("backing file was not created: %v", err)
	}
}
