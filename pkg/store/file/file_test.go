package file

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/graphloom/loom/pkg/common"
)

func TestFileStoreRoundtrip(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(NewFileStoreParams{
		Path: filepath.Join(t.TempDir(), "snapshots", "graph.json"),
	})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	payload := []byte(`{"revision":3,"nodes":[],"edges":[]}`)
	if err := store.Persist(ctx, 3, payload); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	data, revision, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if revision != 3 {
		t.Fatalf("revision = %d, want 3", revision)
	}
	if !reflect.DeepEqual(data, payload) {
		t.Fatalf("data = %s, want %s", data, payload)
	}
}

func TestFileStoreKeepsLatestOnly(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(NewFileStoreParams{
		Path: filepath.Join(t.TempDir(), "graph.json"),
	})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Persist(ctx, 1, []byte(`{"revision":1,"nodes":[],"edges":[]}`)); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := store.Persist(ctx, 2, []byte(`{"revision":2,"nodes":[],"edges":[]}`)); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	_, revision, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if revision != 2 {
		t.Fatalf("revision = %d, want 2", revision)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(NewFileStoreParams{
		Path: filepath.Join(t.TempDir(), "graph.json"),
	})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	_, _, err = store.LoadLatest(context.Background())
	if !errors.Is(err, common.ErrNotFound()) {
		t.Fatalf("LoadLatest error = %v, want not found error", err)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.json")
	store, err := NewFileStore(NewFileStoreParams{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Persist(ctx, 1, []byte("{not json")); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if _, _, err := store.LoadLatest(ctx); !errors.Is(err, common.ErrPersistence()) {
		t.Fatalf("LoadLatest error = %v, want persistence error", err)
	}
}
