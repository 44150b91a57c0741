package graph

import (
	"context"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
	"github.com/graphloom/loom/pkg/normalize"
)

// Editor applies manual corrections to the graph. Each operation commits a
// single-change batch, so the usual atomicity and revision rules apply
// unchanged. Edits carry no provenance; the graph's document lineage only
// grows through ingestion.
//
// An Editor should be created using NewEditor.
type Editor struct {
	store     *Store
	persister *Persister
}

// NewEditorParams defines the configuration for creating an Editor.
// Persister is optional.
type NewEditorParams struct {
	Store     *Store
	Persister *Persister
}

// NewEditor creates an Editor writing to the given store.
func NewEditor(params NewEditorParams) *Editor {
	return &Editor{store: params.Store, persister: params.Persister}
}

type editConfig struct {
	expectedRevision uint64
	checkRevision    bool
}

// EditOption configures a single edit operation.
type EditOption func(*editConfig)

// WithExpectedRevision makes the edit fail with a conflict error unless the
// store is still at the given revision, for read-modify-write flows.
func WithExpectedRevision(revision uint64) EditOption {
	return func(cfg *editConfig) {
		cfg.expectedRevision = revision
		cfg.checkRevision = true
	}
}

// UpdateNode patches the attributes of an existing node. Without
// patch.Authoritative only unset keys are filled. The node's id, name, and
// type are immutable; renaming means delete and re-ingest.
func (e *Editor) UpdateNode(
	ctx context.Context,
	id string,
	patch Patch,
	opts ...EditOption,
) (uint64, error) {
	return e.commit(ctx, PatchNode(id, patch), opts)
}

// DeleteNode removes a node and cascades to every incident edge. Deleting a
// node that does not exist succeeds without bumping the revision.
func (e *Editor) DeleteNode(ctx context.Context, id string, opts ...EditOption) (uint64, error) {
	snap := e.store.Snapshot()
	if !snap.HasNode(id) {
		logger.Debug("[Editor] Delete of absent node", "id", id)
		return snap.Revision(), nil
	}
	return e.commit(ctx, DeleteNode(id), opts)
}

// AddEdge inserts a new edge between two existing nodes. The label is
// normalized before the insert; an edge with the same (source, target,
// label) triple fails with a validation error.
func (e *Editor) AddEdge(
	ctx context.Context,
	source, target, label string,
	weight float64,
	opts ...EditOption,
) (uint64, error) {
	edge := common.Edge{
		Source: source,
		Target: target,
		Label:  normalize.RelationLabel(label),
		Weight: weight,
	}
	return e.commit(ctx, CreateEdge(edge), opts)
}

// UpdateEdge patches an existing edge, currently its weight.
func (e *Editor) UpdateEdge(
	ctx context.Context,
	key common.EdgeKey,
	patch Patch,
	opts ...EditOption,
) (uint64, error) {
	key.Label = normalize.RelationLabel(key.Label)
	return e.commit(ctx, PatchEdge(key, patch), opts)
}

// DeleteEdge removes a single edge without touching its endpoints.
func (e *Editor) DeleteEdge(ctx context.Context, key common.EdgeKey, opts ...EditOption) (uint64, error) {
	key.Label = normalize.RelationLabel(key.Label)
	return e.commit(ctx, DeleteEdge(key), opts)
}

func (e *Editor) commit(ctx context.Context, change Change, opts []EditOption) (uint64, error) {
	var cfg editConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	batch := Batch{
		Changes:          []Change{change},
		ExpectedRevision: cfg.expectedRevision,
		CheckRevision:    cfg.checkRevision,
	}
	revision, err := e.store.Commit(ctx, batch)
	if err != nil {
		return 0, err
	}

	logger.Info("[Editor] Edit committed", "op", change.Op, "revision", revision)
	if e.persister != nil {
		e.persister.Notify()
	}
	return revision, nil
}
