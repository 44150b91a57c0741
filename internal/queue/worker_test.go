package queue

import (
	"context"
	"encoding/json"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/graph"
	"github.com/graphloom/loom/pkg/loader/io"
	s3loader "github.com/graphloom/loom/pkg/loader/s3"
	"github.com/graphloom/loom/pkg/loader/web"
)

func newEditWorker(t *testing.T) (*Worker, *graph.Store) {
	t.Helper()
	store := graph.NewStore()
	editor := graph.NewEditor(graph.NewEditorParams{Store: store})
	worker := NewWorker(NewWorkerParams{Store: store, Editor: editor})
	return worker, store
}

func editMessage(t *testing.T, job EditJobMsg) string {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal(EditJobMsg) error = %v", err)
	}
	return string(data)
}

func TestProcessEditMessageAppliesToWorkerStore(t *testing.T) {
	t.Parallel()

	worker, store := newEditWorker(t)
	ctx := context.Background()

	if _, err := store.Commit(ctx, graph.Batch{Changes: []graph.Change{
		graph.MergeNode(common.Node{ID: "person:alice", Name: "Alice", Type: common.EntityTypePerson}),
		graph.MergeNode(common.Node{ID: "organization:acme", Name: "Acme", Type: common.EntityTypeOrganization}),
	}}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	before := store.Revision()

	msg := editMessage(t, EditJobMsg{
		Operation:  EditOpUpdateNode,
		NodeID:     "person:alice",
		Attributes: map[string]string{"role": "engineer"},
	})
	if err := worker.ProcessEditMessage(ctx, msg); err != nil {
		t.Fatalf("ProcessEditMessage(update_node) error = %v", err)
	}

	// The edit lands on the same store ingestion writes to, at the next
	// revision. There is no second writer to race against.
	if got, want := store.Revision(), before+1; got != want {
		t.Errorf("Revision() = %d, want %d", got, want)
	}
	node, err := store.GetNode("person:alice")
	if err != nil {
		t.Fatalf("GetNode(person:alice) error = %v", err)
	}
	if got := node.Attributes["role"]; got != "engineer" {
		t.Errorf("Attributes[role] = %q, want %q", got, "engineer")
	}

	edgeMsg := editMessage(t, EditJobMsg{
		Operation: EditOpCreateEdge,
		Source:    "person:alice",
		Target:    "organization:acme",
		Label:     "works_at",
	})
	if err := worker.ProcessEditMessage(ctx, edgeMsg); err != nil {
		t.Fatalf("ProcessEditMessage(create_edge) error = %v", err)
	}
	edges, err := store.GetEdges("person:alice", common.DirectionOut)
	if err != nil {
		t.Fatalf("GetEdges(person:alice) error = %v", err)
	}
	if len(edges) != 1 || edges[0].Weight != 1 {
		t.Errorf("GetEdges() = %v, want one works_at edge with default weight 1", edges)
	}
}

func TestProcessEditMessageAcksTerminalFailures(t *testing.T) {
	t.Parallel()

	worker, store := newEditWorker(t)
	ctx := context.Background()

	if _, err := store.Commit(ctx, graph.Batch{Changes: []graph.Change{
		graph.MergeNode(common.Node{ID: "person:alice", Name: "Alice", Type: common.EntityTypePerson}),
	}}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	before := store.Revision()

	tests := []struct {
		name string
		job  EditJobMsg
	}{
		{
			name: "update of unknown node",
			job: EditJobMsg{
				Operation:  EditOpUpdateNode,
				NodeID:     "person:nobody",
				Attributes: map[string]string{"role": "ghost"},
			},
		},
		{
			name: "stale expected revision",
			job: EditJobMsg{
				Operation:        EditOpUpdateNode,
				NodeID:           "person:alice",
				Attributes:       map[string]string{"role": "engineer"},
				ExpectedRevision: before + 10,
			},
		},
		{
			name: "unknown operation",
			job:  EditJobMsg{Operation: "rename_node", NodeID: "person:alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Retrying cannot change the outcome, so the message must be
			// acked rather than sent through the retry loop.
			if err := worker.ProcessEditMessage(ctx, editMessage(t, tt.job)); err != nil {
				t.Errorf("ProcessEditMessage() error = %v, want nil", err)
			}
		})
	}

	if got := store.Revision(); got != before {
		t.Errorf("Revision() = %d, want unchanged %d", got, before)
	}
}

func TestSourceLoaderDispatch(t *testing.T) {
	t.Parallel()

	s3Client := awss3.New(awss3.Options{})

	tests := []struct {
		name string
		key  string
		s3   *awss3.Client
		want string
	}{
		{name: "https url", key: "https://example.org/report", want: "web"},
		{name: "http url", key: "http://example.org/report", want: "web"},
		{name: "stored object", key: "documents/abc123/report.pdf", s3: s3Client, want: "s3"},
		{name: "stored object without client", key: "documents/abc123/report.pdf", want: "io"},
		{name: "local path", key: "testdata/report.txt", s3: s3Client, want: "io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got string
			switch sourceLoader(tt.key, tt.s3, "loom").(type) {
			case *web.WebGraphLoader:
				got = "web"
			case *s3loader.S3GraphFileLoader:
				got = "s3"
			case *io.IOGraphFileLoader:
				got = "io"
			default:
				got = "unknown"
			}
			if got != tt.want {
				t.Errorf("sourceLoader(%q) = %s loader, want %s", tt.key, got, tt.want)
			}
		})
	}
}
