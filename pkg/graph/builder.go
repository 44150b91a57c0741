package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
	"github.com/graphloom/loom/pkg/normalize"
)

// Builder consumes normalized extraction batches, resolves entities against
// existing nodes, and commits creates and merges to the store as one atomic
// batch per Ingest call.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	store     *Store
	persister *Persister
	strict    bool
}

// NewBuilderParams defines the configuration for creating a Builder.
//
// Strict selects the edge-rejection policy: with Strict set, a single
// unresolvable edge rejects the whole batch; without it, invalid edges are
// dropped and reported while the rest of the batch commits. Persister is
// optional; when set, a durable write is scheduled after each successful
// commit.
type NewBuilderParams struct {
	Store     *Store
	Persister *Persister
	Strict    bool
}

// NewBuilder creates a Builder writing to the given store.
func NewBuilder(params NewBuilderParams) *Builder {
	return &Builder{
		store:     params.Store,
		persister: params.Persister,
		strict:    params.Strict,
	}
}

// RejectedEdge reports a relation that could not be committed and why.
type RejectedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// IngestReport summarizes one Ingest call. Every rejected edge and skipped
// record is counted here; nothing is silently dropped.
type IngestReport struct {
	NodesCreated  int                 `json:"nodes_created"`
	NodesMerged   int                 `json:"nodes_merged"`
	EdgesCreated  int                 `json:"edges_created"`
	EdgesMerged   int                 `json:"edges_merged"`
	EdgesRejected []RejectedEdge      `json:"edges_rejected,omitempty"`
	Skipped       []normalize.Skipped `json:"skipped,omitempty"`
	Revision      uint64              `json:"revision"`
}

type pendingEdge struct {
	sourceID string
	relation normalize.Relation
}

// Ingest stages the batch of normalized records against the current graph
// state and commits all resulting creates and merges atomically. The store
// revision increments exactly once per successful call. An empty batch is a
// no-op that leaves the revision unchanged.
func (b *Builder) Ingest(
	ctx context.Context,
	records []normalize.Record,
	doc common.Document,
) (*IngestReport, error) {
	report := &IngestReport{Revision: b.store.Revision()}
	if len(records) == 0 {
		return report, nil
	}

	snap := b.store.Snapshot()
	staged := make(map[string]*common.Node)
	var deferred []pendingEdge

	for _, rec := range records {
		id := DeriveNodeID(rec.Name, rec.Type)
		prov := common.Provenance{
			DocumentID:  doc.ID,
			UnitID:      rec.UnitID,
			Description: rec.Description,
			IngestedAt:  doc.IngestedAt,
		}

		if node, ok := staged[id]; ok {
			// Same entity sighted twice within the batch.
			mergeRecordInto(node, rec, prov)
		} else if snap.HasNode(id) {
			node := &common.Node{ID: id, Name: rec.Name, Type: rec.Type}
			mergeRecordInto(node, rec, prov)
			staged[id] = node
			report.NodesMerged++
		} else {
			node := &common.Node{ID: id, Name: rec.Name, Type: rec.Type}
			mergeRecordInto(node, rec, prov)
			staged[id] = node
			report.NodesCreated++
		}

		for _, rel := range rec.Relations {
			deferred = append(deferred, pendingEdge{sourceID: id, relation: rel})
		}
	}

	// Endpoint resolution runs after every entity in the batch is staged,
	// so forward references within the batch resolve on the retry pass.
	stagedEdges := make(map[common.EdgeKey]*common.Edge)
	for _, pending := range deferred {
		targetID, ok := b.resolveEndpoint(snap, staged, pending.relation)
		if !ok {
			report.EdgesRejected = append(report.EdgesRejected, RejectedEdge{
				Source: pending.sourceID,
				Target: pending.relation.TargetName,
				Label:  pending.relation.Label,
				Reason: "unresolved endpoint",
			})
			continue
		}

		key := common.EdgeKey{Source: pending.sourceID, Target: targetID, Label: pending.relation.Label}
		prov := common.Provenance{
			DocumentID:  doc.ID,
			Description: pending.relation.Description,
			IngestedAt:  doc.IngestedAt,
		}

		if edge, exists := stagedEdges[key]; exists {
			edge.Provenance = mergeProvenance(edge.Provenance, []common.Provenance{prov})
			if edge.Weight != 0 && pending.relation.Weight != 0 {
				edge.Weight = (edge.Weight + pending.relation.Weight) / 2
			} else if pending.relation.Weight != 0 {
				edge.Weight = pending.relation.Weight
			}
			continue
		}

		stagedEdges[key] = &common.Edge{
			Source:     key.Source,
			Target:     key.Target,
			Label:      key.Label,
			Weight:     pending.relation.Weight,
			Provenance: []common.Provenance{prov},
		}
		if _, exists := snap.edges[key]; exists {
			report.EdgesMerged++
		} else {
			report.EdgesCreated++
		}
	}

	if b.strict && len(report.EdgesRejected) > 0 {
		rejected := report.EdgesRejected[0]
		return nil, common.NewValidationError(
			"batch rejected: %d unresolvable edges, first %s -[%s]-> %q",
			len(report.EdgesRejected), rejected.Source, rejected.Label, rejected.Target)
	}

	batch := Batch{
		ExpectedRevision: snap.Revision(),
		CheckRevision:    true,
	}
	for _, node := range staged {
		batch.Changes = append(batch.Changes, MergeNode(*node))
	}
	for _, edge := range stagedEdges {
		batch.Changes = append(batch.Changes, MergeEdge(*edge))
	}
	// Node changes must precede the edges that reference them.
	sortChanges(batch.Changes)

	revision, err := b.store.Commit(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to commit ingest batch: %w", err)
	}
	report.Revision = revision

	logger.Info("[Builder] Batch committed",
		"document", doc.ID,
		"nodes_created", report.NodesCreated,
		"nodes_merged", report.NodesMerged,
		"edges_created", report.EdgesCreated,
		"edges_merged", report.EdgesMerged,
		"edges_rejected", len(report.EdgesRejected),
		"revision", revision,
	)

	if b.persister != nil {
		b.persister.Notify()
	}
	return report, nil
}

// resolveEndpoint maps a relation target onto a staged-or-existing node id.
// A typed target resolves directly through id derivation. An untyped target
// resolves by canonical name; ambiguity across types picks the
// lexicographically smallest id for determinism. Placeholder nodes are never
// auto-created.
func (b *Builder) resolveEndpoint(
	snap *Snapshot,
	staged map[string]*common.Node,
	rel normalize.Relation,
) (string, bool) {
	if rel.TargetType != "" {
		id := DeriveNodeID(rel.TargetName, rel.TargetType)
		if _, ok := staged[id]; ok {
			return id, true
		}
		if snap.HasNode(id) {
			return id, true
		}
	}

	canonical := normalize.CanonicalName(rel.TargetName)
	var candidates []string
	for id, node := range staged {
		if normalize.CanonicalName(node.Name) == canonical {
			candidates = append(candidates, id)
		}
	}
	for _, id := range snap.ResolveByName(rel.TargetName) {
		if _, alreadyStaged := staged[id]; !alreadyStaged {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	best := candidates[0]
	for _, id := range candidates[1:] {
		if id < best {
			best = id
		}
	}
	return best, true
}

// RemoveReport summarizes one RemoveDocument call.
type RemoveReport struct {
	NodesDeleted int      `json:"nodes_deleted"`
	EdgesDeleted int      `json:"edges_deleted"`
	NodeIDs      []string `json:"node_ids,omitempty"`
	Revision     uint64   `json:"revision"`
}

// RemoveDocument deletes every node whose provenance stems entirely from the
// given document, cascading to incident edges, plus surviving edges whose
// provenance stems entirely from it. Nodes also sighted in other documents
// stay, keeping their full provenance as lineage. The removal commits as one
// atomic batch.
func (b *Builder) RemoveDocument(ctx context.Context, docID string) (*RemoveReport, error) {
	snap := b.store.Snapshot()
	report := &RemoveReport{Revision: snap.Revision()}

	onlyFrom := func(provenance []common.Provenance) bool {
		if len(provenance) == 0 {
			return false
		}
		for _, p := range provenance {
			if p.DocumentID != docID {
				return false
			}
		}
		return true
	}

	doomed := make(map[string]bool)
	batch := Batch{
		ExpectedRevision: snap.Revision(),
		CheckRevision:    true,
	}
	for _, node := range snap.Nodes() {
		if onlyFrom(node.Provenance) {
			doomed[node.ID] = true
			batch.Changes = append(batch.Changes, DeleteNode(node.ID))
			report.NodesDeleted++
			report.NodeIDs = append(report.NodeIDs, node.ID)
		}
	}
	for _, edge := range snap.Edges() {
		if doomed[edge.Source] || doomed[edge.Target] {
			// Cascades with the endpoint delete.
			report.EdgesDeleted++
			continue
		}
		if onlyFrom(edge.Provenance) {
			batch.Changes = append(batch.Changes, DeleteEdge(edge.Key()))
			report.EdgesDeleted++
		}
	}

	if len(batch.Changes) == 0 {
		return report, nil
	}

	revision, err := b.store.Commit(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to commit document removal: %w", err)
	}
	report.Revision = revision

	logger.Info("[Builder] Document removed",
		"document", docID,
		"nodes_deleted", report.NodesDeleted,
		"edges_deleted", report.EdgesDeleted,
		"revision", revision,
	)

	if b.persister != nil {
		b.persister.Notify()
	}
	return report, nil
}

func mergeRecordInto(node *common.Node, rec normalize.Record, prov common.Provenance) {
	for k, v := range rec.Attributes {
		if node.Attributes == nil {
			node.Attributes = make(map[string]string, len(rec.Attributes))
		}
		if _, present := node.Attributes[k]; !present {
			node.Attributes[k] = v
		}
	}
	node.Provenance = mergeProvenance(node.Provenance, []common.Provenance{prov})
}

// sortChanges orders a batch deterministically: node merges first (sorted by
// id), then edge merges (sorted by key).
func sortChanges(changes []Change) {
	rank := func(c Change) int {
		switch c.Op {
		case OpMergeNode:
			return 0
		default:
			return 1
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if rank(a) != rank(b) {
			return rank(a) < rank(b)
		}
		if a.Op == OpMergeNode && b.Op == OpMergeNode {
			return a.Node.ID < b.Node.ID
		}
		if a.Edge != nil && b.Edge != nil {
			return edgeKeyLess(a.Edge.Key(), b.Edge.Key())
		}
		return false
	})
}
