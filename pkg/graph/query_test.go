package graph

import (
	"context"
	"reflect"
	"testing"

	"github.com/graphloom/loom/pkg/common"
)

// chainStore builds a -> b -> c -> d -> e so hop bounds are easy to reason
// about.
func chainStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore()
	names := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}
	batch := Batch{}
	for _, name := range names {
		batch.Changes = append(batch.Changes, MergeNode(common.Node{
			ID:   DeriveNodeID(name, common.EntityTypeConcept),
			Name: name,
			Type: common.EntityTypeConcept,
		}))
	}
	for i := 0; i+1 < len(names); i++ {
		batch.Changes = append(batch.Changes, CreateEdge(common.Edge{
			Source: DeriveNodeID(names[i], common.EntityTypeConcept),
			Target: DeriveNodeID(names[i+1], common.EntityTypeConcept),
			Label:  "precedes",
		}))
	}
	if _, err := store.Commit(context.Background(), batch); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}
	return store
}

func subgraphIDs(sub *common.Subgraph) []string {
	ids := make([]string, 0, len(sub.Nodes))
	for _, node := range sub.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

func TestPlannerAnswerContext(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})

	sub, err := planner.AnswerContext(context.Background(), []string{"Alice", "Acme"}, 1, 0)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}

	if sub.Empty {
		t.Fatal("Empty set despite matching seeds")
	}
	wantSeeds := []string{"organization:acme", "person:alice"}
	if !reflect.DeepEqual(sub.Seeds, wantSeeds) {
		t.Fatalf("Seeds = %v, want %v", sub.Seeds, wantSeeds)
	}
	// One hop from acme reaches berlin; the works_at edge between the two
	// seeds comes along since both endpoints are selected.
	wantNodes := []string{"location:berlin", "organization:acme", "person:alice"}
	if got := subgraphIDs(sub); !reflect.DeepEqual(got, wantNodes) {
		t.Fatalf("nodes = %v, want %v", got, wantNodes)
	}
	if len(sub.Edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(sub.Edges))
	}
}

func TestPlannerNoMatchIsEmptyNotError(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})

	sub, err := planner.AnswerContext(context.Background(), []string{"quantum chromodynamics"}, 2, 0)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	if !sub.Empty {
		t.Fatal("want Empty subgraph for unmatched keywords")
	}
	if len(sub.Nodes) != 0 || len(sub.Edges) != 0 {
		t.Fatalf("Empty subgraph carries %d nodes / %d edges", len(sub.Nodes), len(sub.Edges))
	}
}

func TestPlannerHopBound(t *testing.T) {
	t.Parallel()

	store := chainStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})

	tests := []struct {
		name    string
		maxHops int
		want    []string
	}{
		{
			name:    "zero hops is seeds only",
			maxHops: 0,
			want:    []string{"concept:alpha"},
		},
		{
			name:    "one hop",
			maxHops: 1,
			want:    []string{"concept:alpha", "concept:beta"},
		},
		{
			name:    "two hops",
			maxHops: 2,
			want:    []string{"concept:alpha", "concept:beta", "concept:gamma"},
		},
		{
			name:    "hops beyond the chain",
			maxHops: 10,
			want: []string{
				"concept:alpha", "concept:beta", "concept:delta",
				"concept:epsilon", "concept:gamma",
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sub, err := planner.AnswerContext(context.Background(), []string{"Alpha"}, tc.maxHops, 0)
			if err != nil {
				t.Fatalf("AnswerContext failed: %v", err)
			}
			if got := subgraphIDs(sub); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("nodes = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPlannerNodeBoundTruncatesDeterministically(t *testing.T) {
	t.Parallel()

	store := chainStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})

	sub, err := planner.AnswerContext(context.Background(), []string{"Gamma"}, 1, 2)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	// The frontier holds beta and delta; the node budget admits only the
	// smaller id.
	want := []string{"concept:beta", "concept:gamma"}
	if got := subgraphIDs(sub); !reflect.DeepEqual(got, want) {
		t.Fatalf("nodes = %v, want %v", got, want)
	}
}

func TestPlannerIsDeterministic(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})
	ctx := context.Background()

	first, err := planner.AnswerContext(ctx, []string{"Alice"}, 2, 0)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := planner.AnswerContext(ctx, []string{"Alice"}, 2, 0)
		if err != nil {
			t.Fatalf("AnswerContext failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged: %v vs %v", i, again, first)
		}
	}
}

func TestPlannerSeedScoring(t *testing.T) {
	t.Parallel()

	store := NewStore()
	batch := Batch{Changes: []Change{
		MergeNode(common.Node{ID: "person:alice", Name: "Alice", Type: common.EntityTypePerson}),
		MergeNode(common.Node{
			ID:   "person:alice_smith",
			Name: "Alice Smith",
			Type: common.EntityTypePerson,
		}),
		MergeNode(common.Node{
			ID:   "organization:acme",
			Name: "Acme",
			Type: common.EntityTypeOrganization,
			Attributes: map[string]string{
				"ceo": "alice",
			},
		}),
	}}
	if _, err := store.Commit(context.Background(), batch); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	planner := NewPlanner(NewPlannerParams{Store: store, TopSeeds: 1})
	sub, err := planner.AnswerContext(context.Background(), []string{"alice"}, 0, 0)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	// Exact name match outranks the partial and attribute matches.
	if !reflect.DeepEqual(sub.Seeds, []string{"person:alice"}) {
		t.Fatalf("Seeds = %v, want exact match only", sub.Seeds)
	}
}

func TestPlannerContextFromSeeds(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})
	ctx := context.Background()

	sub, err := planner.ContextFromSeeds(ctx, []string{"organization:acme", "person:ghost"}, 1, 0)
	if err != nil {
		t.Fatalf("ContextFromSeeds failed: %v", err)
	}
	if !reflect.DeepEqual(sub.Seeds, []string{"organization:acme"}) {
		t.Fatalf("Seeds = %v, want unknown ids dropped", sub.Seeds)
	}
	want := []string{"location:berlin", "organization:acme", "person:alice"}
	if got := subgraphIDs(sub); !reflect.DeepEqual(got, want) {
		t.Fatalf("nodes = %v, want %v", got, want)
	}

	empty, err := planner.ContextFromSeeds(ctx, []string{"person:ghost"}, 1, 0)
	if err != nil {
		t.Fatalf("ContextFromSeeds failed: %v", err)
	}
	if !empty.Empty {
		t.Fatal("want Empty subgraph when no seed exists")
	}
}

func TestPlannerQueryAgainstSingleSnapshot(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	planner := NewPlanner(NewPlannerParams{Store: store})
	ctx := context.Background()

	before, err := planner.AnswerContext(ctx, []string{"Alice"}, 1, 0)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}

	if _, err := store.Commit(ctx, Batch{Changes: []Change{
		DeleteNode("organization:acme"),
	}}); err != nil {
		t.Fatalf("delete commit failed: %v", err)
	}

	after, err := planner.AnswerContext(ctx, []string{"Alice"}, 1, 0)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	if reflect.DeepEqual(subgraphIDs(before), subgraphIDs(after)) {
		t.Fatal("query result did not reflect the committed delete")
	}
	if got := subgraphIDs(after); !reflect.DeepEqual(got, []string{"person:alice"}) {
		t.Fatalf("nodes = %v, want alice only after delete", got)
	}
}

func TestPlannerTruncationPrefersKeywordRelevantLabels(t *testing.T) {
	t.Parallel()

	store := NewStore()
	batch := Batch{}
	for _, n := range []struct {
		name string
		typ  common.EntityType
	}{
		{"Alice", common.EntityTypePerson},
		{"Acme", common.EntityTypeOrganization},
		{"Chess", common.EntityTypeConcept},
	} {
		batch.Changes = append(batch.Changes, MergeNode(common.Node{
			ID:   DeriveNodeID(n.name, n.typ),
			Name: n.name,
			Type: n.typ,
		}))
	}
	batch.Changes = append(batch.Changes, CreateEdge(common.Edge{
		Source: "person:alice",
		Target: "organization:acme",
		Label:  "works_at",
		Weight: 0.4,
	}))
	batch.Changes = append(batch.Changes, CreateEdge(common.Edge{
		Source: "person:alice",
		Target: "concept:chess",
		Label:  "hobby",
		Weight: 0.9,
	}))
	if _, err := store.Commit(context.Background(), batch); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	planner := NewPlanner(NewPlannerParams{Store: store})

	// The node budget admits one of alice's two neighbors. The works_at
	// label matches the "works" keyword, so acme must win even though the
	// hobby edge is heavier.
	sub, err := planner.AnswerContext(context.Background(), []string{"alice", "works"}, 1, 2)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	want := []string{"organization:acme", "person:alice"}
	if got := subgraphIDs(sub); !reflect.DeepEqual(got, want) {
		t.Fatalf("nodes = %v, want %v", got, want)
	}

	// Without a label-relevant keyword the heavier edge wins again.
	sub, err = planner.AnswerContext(context.Background(), []string{"alice"}, 1, 2)
	if err != nil {
		t.Fatalf("AnswerContext failed: %v", err)
	}
	want = []string{"concept:chess", "person:alice"}
	if got := subgraphIDs(sub); !reflect.DeepEqual(got, want) {
		t.Fatalf("nodes = %v, want %v", got, want)
	}
}
