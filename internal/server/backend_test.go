package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/graphloom/loom/pkg/store/file"
)

func TestNewSnapshotStoreFromEnvFileBackend(t *testing.T) {
	t.Setenv("SNAPSHOT_BACKEND", "file")
	t.Setenv("SNAPSHOT_PATH", filepath.Join(t.TempDir(), "graph.snapshot"))

	sink, err := NewSnapshotStoreFromEnv(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewSnapshotStoreFromEnv(file) error = %v", err)
	}
	if _, ok := sink.(*file.FileStore); !ok {
		t.Errorf("NewSnapshotStoreFromEnv(file) = %T, want *file.FileStore", sink)
	}
}

func TestNewSnapshotStoreFromEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv("SNAPSHOT_BACKEND", "dynamo")

	if _, err := NewSnapshotStoreFromEnv(context.Background(), nil); err == nil {
		t.Fatal("NewSnapshotStoreFromEnv(dynamo) error = nil, want unknown backend error")
	}
}
