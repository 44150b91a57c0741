package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/graphloom/loom/pkg/common"
)

func seedStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore()
	batch := Batch{Changes: []Change{
		MergeNode(common.Node{
			ID:   "person:alice",
			Name: "Alice",
			Type: common.EntityTypePerson,
			Attributes: map[string]string{
				"role": "developer",
			},
		}),
		MergeNode(common.Node{
			ID:   "organization:acme",
			Name: "Acme",
			Type: common.EntityTypeOrganization,
		}),
		MergeNode(common.Node{
			ID:   "location:berlin",
			Name: "Berlin",
			Type: common.EntityTypeLocation,
		}),
		CreateEdge(common.Edge{
			Source: "person:alice",
			Target: "organization:acme",
			Label:  "works_at",
			Weight: 0.9,
		}),
		CreateEdge(common.Edge{
			Source: "organization:acme",
			Target: "location:berlin",
			Label:  "located_in",
		}),
	}}
	if _, err := store.Commit(context.Background(), batch); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}
	return store
}

func TestStoreCommitBumpsRevisionOnce(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	if got := store.Revision(); got != 1 {
		t.Fatalf("Revision() = %d, want 1 after a single batch", got)
	}

	revision, err := store.Commit(context.Background(), Batch{Changes: []Change{
		MergeNode(common.Node{ID: "concept:grpc", Name: "gRPC", Type: common.EntityTypeConcept}),
		MergeNode(common.Node{ID: "concept:rest", Name: "REST", Type: common.EntityTypeConcept}),
	}})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if revision != 2 {
		t.Fatalf("Commit() revision = %d, want 2 for multi-change batch", revision)
	}
}

func TestStoreCommitAtomicOnFailure(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	before := store.Revision()

	_, err := store.Commit(context.Background(), Batch{Changes: []Change{
		MergeNode(common.Node{ID: "system:api", Name: "API", Type: common.EntityTypeSystem}),
		CreateEdge(common.Edge{Source: "system:api", Target: "person:ghost", Label: "owned_by"}),
	}})
	if !errors.Is(err, common.ErrValidation()) {
		t.Fatalf("Commit() error = %v, want validation error", err)
	}

	if got := store.Revision(); got != before {
		t.Fatalf("Revision() = %d after failed batch, want %d", got, before)
	}
	if store.Snapshot().HasNode("system:api") {
		t.Fatal("node from failed batch leaked into the snapshot")
	}
}

func TestStoreCommitRevisionCheck(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	batch := Batch{
		Changes:          []Change{DeleteNode("location:berlin")},
		ExpectedRevision: store.Revision() + 7,
		CheckRevision:    true,
	}
	if _, err := store.Commit(context.Background(), batch); !errors.Is(err, common.ErrConflict()) {
		t.Fatalf("Commit() error = %v, want conflict error", err)
	}

	batch.ExpectedRevision = store.Revision()
	if _, err := store.Commit(context.Background(), batch); err != nil {
		t.Fatalf("commit with matching revision failed: %v", err)
	}
}

func TestStoreMergeNodeKeepsExistingValues(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	_, err := store.Commit(context.Background(), Batch{Changes: []Change{
		MergeNode(common.Node{
			ID:   "person:alice",
			Name: "ALICE",
			Type: common.EntityTypePerson,
			Attributes: map[string]string{
				"role": "manager",
				"team": "platform",
			},
		}),
	}})
	if err != nil {
		t.Fatalf("merge commit failed: %v", err)
	}

	node, err := store.GetNode("person:alice")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if node.Name != "Alice" {
		t.Fatalf("Name = %q, want first-seen %q", node.Name, "Alice")
	}
	want := map[string]string{"role": "developer", "team": "platform"}
	if !reflect.DeepEqual(node.Attributes, want) {
		t.Fatalf("Attributes = %v, want %v", node.Attributes, want)
	}
}

func TestStoreDeleteNodeCascades(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	if _, err := store.Commit(context.Background(), Batch{Changes: []Change{
		DeleteNode("organization:acme"),
	}}); err != nil {
		t.Fatalf("delete commit failed: %v", err)
	}

	snap := store.Snapshot()
	if snap.HasNode("organization:acme") {
		t.Fatal("deleted node still present")
	}
	if snap.EdgeCount() != 0 {
		t.Fatalf("EdgeCount() = %d, want 0 after cascade", snap.EdgeCount())
	}

	edges, err := snap.GetEdges("person:alice", common.DirectionBoth)
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("alice still has %d edges, want 0", len(edges))
	}
}

func TestStoreCreateEdgeRejectsDuplicate(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	_, err := store.Commit(context.Background(), Batch{Changes: []Change{
		CreateEdge(common.Edge{Source: "person:alice", Target: "organization:acme", Label: "works_at"}),
	}})
	if !errors.Is(err, common.ErrValidation()) {
		t.Fatalf("Commit() error = %v, want validation error for duplicate triple", err)
	}

	// Same endpoints under a different label is a distinct edge.
	if _, err := store.Commit(context.Background(), Batch{Changes: []Change{
		CreateEdge(common.Edge{Source: "person:alice", Target: "organization:acme", Label: "founded"}),
	}}); err != nil {
		t.Fatalf("commit of distinct label failed: %v", err)
	}
}

func TestStoreMergeEdgeAveragesWeight(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	if _, err := store.Commit(context.Background(), Batch{Changes: []Change{
		MergeEdge(common.Edge{Source: "person:alice", Target: "organization:acme", Label: "works_at", Weight: 0.5}),
	}}); err != nil {
		t.Fatalf("merge commit failed: %v", err)
	}

	edge, err := store.Snapshot().GetEdge(common.EdgeKey{
		Source: "person:alice",
		Target: "organization:acme",
		Label:  "works_at",
	})
	if err != nil {
		t.Fatalf("GetEdge failed: %v", err)
	}
	if edge.Weight != 0.7 {
		t.Fatalf("Weight = %v, want 0.7", edge.Weight)
	}
}

func TestStorePatchNode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch Patch
		want  map[string]string
	}{
		{
			name:  "fill only keeps existing keys",
			patch: Patch{Attributes: map[string]string{"role": "manager", "team": "platform"}},
			want:  map[string]string{"role": "developer", "team": "platform"},
		},
		{
			name:  "authoritative overwrites",
			patch: Patch{Attributes: map[string]string{"role": "manager"}, Authoritative: true},
			want:  map[string]string{"role": "manager"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := seedStore(t)
			if _, err := store.Commit(context.Background(), Batch{Changes: []Change{
				PatchNode("person:alice", tc.patch),
			}}); err != nil {
				t.Fatalf("patch commit failed: %v", err)
			}

			node, err := store.GetNode("person:alice")
			if err != nil {
				t.Fatalf("GetNode failed: %v", err)
			}
			if !reflect.DeepEqual(node.Attributes, tc.want) {
				t.Fatalf("Attributes = %v, want %v", node.Attributes, tc.want)
			}
		})
	}
}

func TestStorePatchMissingNode(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	_, err := store.Commit(context.Background(), Batch{Changes: []Change{
		PatchNode("person:ghost", Patch{Attributes: map[string]string{"x": "y"}}),
	}})
	if !errors.Is(err, common.ErrNotFound()) {
		t.Fatalf("Commit() error = %v, want not found error", err)
	}
}

func TestStoreNeighbors(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	snap := store.Snapshot()

	tests := []struct {
		name   string
		nodeID string
		filter string
		want   []string
	}{
		{
			name:   "both directions",
			nodeID: "organization:acme",
			want:   []string{"location:berlin", "person:alice"},
		},
		{
			name:   "relation filter",
			nodeID: "organization:acme",
			filter: "works_at",
			want:   []string{"person:alice"},
		},
		{
			name:   "filter is normalized",
			nodeID: "organization:acme",
			filter: "Works At",
			want:   []string{"person:alice"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := snap.Neighbors(tc.nodeID, tc.filter)
			if err != nil {
				t.Fatalf("Neighbors failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Neighbors(%q, %q) = %v, want %v", tc.nodeID, tc.filter, got, tc.want)
			}
		})
	}

	if _, err := snap.Neighbors("person:ghost", ""); !errors.Is(err, common.ErrNotFound()) {
		t.Fatalf("Neighbors on missing node = %v, want not found error", err)
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	snap := store.Snapshot()

	if _, err := store.Commit(context.Background(), Batch{Changes: []Change{
		DeleteNode("person:alice"),
	}}); err != nil {
		t.Fatalf("delete commit failed: %v", err)
	}

	if !snap.HasNode("person:alice") {
		t.Fatal("old snapshot lost a node after a later commit")
	}
	if store.Snapshot().HasNode("person:alice") {
		t.Fatal("new snapshot still has the deleted node")
	}
}

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	data, revision, err := store.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if revision != store.Revision() {
		t.Fatalf("Save revision = %d, want %d", revision, store.Revision())
	}

	again, _, err := store.Save()
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if !reflect.DeepEqual(data, again) {
		t.Fatal("Save is not byte-deterministic")
	}

	restored := NewStore()
	if err := restored.Load(data); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored.Revision() != revision {
		t.Fatalf("restored revision = %d, want %d", restored.Revision(), revision)
	}
	if !reflect.DeepEqual(restored.Snapshot().Nodes(), store.Snapshot().Nodes()) {
		t.Fatal("restored nodes differ from original")
	}
	if !reflect.DeepEqual(restored.Snapshot().Edges(), store.Snapshot().Edges()) {
		t.Fatal("restored edges differ from original")
	}
}

func TestStoreLoadRejectsCorruptData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{
			name: "not json",
			data: "{nodes",
		},
		{
			name: "edge with missing endpoint",
			data: `{"revision":1,"nodes":[{"id":"person:alice","name":"Alice","type":"Person"}],"edges":[{"source":"person:alice","target":"person:ghost","label":"knows"}]}`,
		},
		{
			name: "node without id",
			data: `{"revision":1,"nodes":[{"name":"Alice","type":"Person"}],"edges":[]}`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := NewStore()
			if err := store.Load([]byte(tc.data)); err == nil {
				t.Fatal("Load accepted corrupt data")
			}
			if store.Revision() != 0 {
				t.Fatalf("failed Load changed revision to %d", store.Revision())
			}
		})
	}
}
