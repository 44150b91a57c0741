package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphloom/loom/pkg/common"
)

// Store is the authoritative in-memory knowledge graph. It owns all nodes
// and edges exclusively; callers mutate the graph only through Commit, which
// applies a batch atomically and bumps the revision counter exactly once.
//
// Concurrency model: a single mutex serializes commits (single writer), while
// reads run against an immutable snapshot behind an atomic pointer and never
// block writers or each other.
type Store struct {
	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// NewStore creates an empty graph store at revision 0.
func NewStore() *Store {
	s := &Store{}
	s.snap.Store(newEmptySnapshot())
	return s
}

// Snapshot returns the current immutable point-in-time view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Revision returns the current revision counter.
func (s *Store) Revision() uint64 {
	return s.snap.Load().revision
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id string) (common.Node, error) {
	return s.snap.Load().GetNode(id)
}

// GetEdges returns the edges incident to a node, filtered by direction.
func (s *Store) GetEdges(nodeID string, direction common.Direction) ([]common.Edge, error) {
	return s.snap.Load().GetEdges(nodeID, direction)
}

// Neighbors returns the sorted ids of nodes adjacent to the given node.
func (s *Store) Neighbors(nodeID string, relationFilter string) ([]string, error) {
	return s.snap.Load().Neighbors(nodeID, relationFilter)
}

// Commit atomically applies a batch of staged changes. Either every change
// applies and the revision increments by one, or the first failing change
// aborts the whole batch and the graph is left exactly as it was. With
// Batch.CheckRevision set, a revision mismatch fails with a ConflictError
// before anything is staged.
func (s *Store) Commit(ctx context.Context, batch Batch) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cur := s.snap.Load()
	if batch.CheckRevision && batch.ExpectedRevision != cur.revision {
		return 0, common.NewConflictError(batch.ExpectedRevision, cur.revision)
	}

	next := cur.clone()
	for _, change := range batch.Changes {
		if err := next.apply(change); err != nil {
			return 0, err
		}
	}

	next.revision = cur.revision + 1
	s.snap.Store(next)
	return next.revision, nil
}

// SerializedGraph is the persistence format: node list, edge list, and the
// revision they belong to. Load(Save()) reproduces the graph exactly.
type SerializedGraph struct {
	Revision uint64        `json:"revision"`
	Nodes    []common.Node `json:"nodes"`
	Edges    []common.Edge `json:"edges"`
}

// Save serializes the current snapshot. Nodes and edges are sorted, so the
// same graph state always serializes to the same bytes.
func (s *Store) Save() ([]byte, uint64, error) {
	snap := s.snap.Load()
	serialized := SerializedGraph{
		Revision: snap.revision,
		Nodes:    snap.Nodes(),
		Edges:    snap.Edges(),
	}
	data, err := json.Marshal(serialized)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to serialize graph: %w", err)
	}
	return data, snap.revision, nil
}

// Load replaces the store content with a previously serialized snapshot.
// The serialized state is validated the same way commits are; a bad payload
// leaves the store untouched.
func (s *Store) Load(data []byte) error {
	var serialized SerializedGraph
	if err := json.Unmarshal(data, &serialized); err != nil {
		return common.NewValidationError("invalid graph snapshot").WithCause(err)
	}

	next := newEmptySnapshot()
	next.revision = serialized.Revision

	for i := range serialized.Nodes {
		node := serialized.Nodes[i]
		if err := validateNodeID(node.ID); err != nil {
			return err
		}
		if strings.TrimSpace(node.Name) == "" {
			return common.NewValidationError("node %q has no name", node.ID)
		}
		if _, exists := next.nodes[node.ID]; exists {
			return common.NewValidationError("duplicate node id %q in snapshot", node.ID)
		}
		stored := cloneNode(&node)
		next.nodes[node.ID] = &stored
		next.addName(node.ID, node.Name)
	}

	for i := range serialized.Edges {
		edge := serialized.Edges[i]
		if err := next.validateEndpoints(edge); err != nil {
			return err
		}
		key := edge.Key()
		if _, exists := next.edges[key]; exists {
			return common.NewValidationError(
				"duplicate edge %s -[%s]-> %s in snapshot", key.Source, key.Label, key.Target)
		}
		stored := cloneEdge(&edge)
		next.edges[key] = &stored
		next.addAdjacency(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Store(next)
	return nil
}

func (s *Snapshot) apply(change Change) error {
	switch change.Op {
	case OpMergeNode:
		return s.applyMergeNode(change.Node)
	case OpPatchNode:
		return s.applyPatchNode(change.NodeID, change.Patch)
	case OpDeleteNode:
		s.applyDeleteNode(change.NodeID)
		return nil
	case OpCreateEdge:
		return s.applyEdge(change.Edge, false)
	case OpMergeEdge:
		return s.applyEdge(change.Edge, true)
	case OpPatchEdge:
		return s.applyPatchEdge(change.EdgeKey, change.Patch)
	case OpDeleteEdge:
		return s.applyDeleteEdge(change.EdgeKey)
	default:
		return common.NewValidationError("unknown change op %q", change.Op)
	}
}

func (s *Snapshot) applyMergeNode(node *common.Node) error {
	if node == nil {
		return common.NewValidationError("merge_node change without node")
	}
	if err := validateNodeID(node.ID); err != nil {
		return err
	}
	if strings.TrimSpace(node.Name) == "" {
		return common.NewValidationError("node %q has no name", node.ID)
	}
	if !node.Type.IsValid() {
		return common.NewValidationError("node %q has unknown type %q", node.ID, node.Type)
	}

	existing, ok := s.nodes[node.ID]
	if !ok {
		stored := cloneNode(node)
		s.nodes[node.ID] = &stored
		s.addName(node.ID, node.Name)
		return nil
	}

	// Re-sighting of a known entity: earlier attribute values win, display
	// name and type stay as first seen, provenance is unioned.
	merged := cloneNode(existing)
	for k, v := range node.Attributes {
		if _, present := merged.Attributes[k]; !present {
			if merged.Attributes == nil {
				merged.Attributes = make(map[string]string)
			}
			merged.Attributes[k] = v
		}
	}
	merged.Provenance = mergeProvenance(merged.Provenance, node.Provenance)
	s.nodes[node.ID] = &merged
	return nil
}

func (s *Snapshot) applyPatchNode(id string, patch *Patch) error {
	existing, ok := s.nodes[id]
	if !ok {
		return common.NewNotFoundError("node %q not found", id)
	}
	if patch == nil {
		return common.NewValidationError("patch_node change without patch")
	}

	patched := cloneNode(existing)
	if patched.Attributes == nil && len(patch.Attributes) > 0 {
		patched.Attributes = make(map[string]string, len(patch.Attributes))
	}
	for k, v := range patch.Attributes {
		if !patch.Authoritative {
			if _, present := patched.Attributes[k]; present {
				continue
			}
		}
		patched.Attributes[k] = v
	}
	s.nodes[id] = &patched
	return nil
}

func (s *Snapshot) applyDeleteNode(id string) {
	node, ok := s.nodes[id]
	if !ok {
		return
	}

	// Cascade: every incident edge goes with the node.
	incident := append(append([]common.EdgeKey{}, s.out[id]...), s.in[id]...)
	for _, key := range incident {
		if _, exists := s.edges[key]; exists {
			delete(s.edges, key)
			s.removeAdjacency(key)
		}
	}
	delete(s.out, id)
	delete(s.in, id)
	s.removeName(id, node.Name)
	delete(s.nodes, id)
}

func (s *Snapshot) validateEndpoints(edge common.Edge) error {
	if strings.TrimSpace(edge.Label) == "" {
		return common.NewValidationError(
			"edge %s -> %s has no relation label", edge.Source, edge.Target)
	}
	if !s.HasNode(edge.Source) {
		return common.NewValidationError(
			"edge %s -[%s]-> %s references missing source", edge.Source, edge.Label, edge.Target)
	}
	if !s.HasNode(edge.Target) {
		return common.NewValidationError(
			"edge %s -[%s]-> %s references missing target", edge.Source, edge.Label, edge.Target)
	}
	return nil
}

func (s *Snapshot) applyEdge(edge *common.Edge, merge bool) error {
	if edge == nil {
		return common.NewValidationError("edge change without edge")
	}
	if err := s.validateEndpoints(*edge); err != nil {
		return err
	}

	key := edge.Key()
	existing, exists := s.edges[key]
	if !exists {
		stored := cloneEdge(edge)
		s.edges[key] = &stored
		s.addAdjacency(key)
		return nil
	}
	if !merge {
		return common.NewValidationError(
			"edge %s -[%s]-> %s already exists", key.Source, key.Label, key.Target)
	}

	merged := cloneEdge(existing)
	merged.Provenance = mergeProvenance(merged.Provenance, edge.Provenance)
	switch {
	case merged.Weight != 0 && edge.Weight != 0:
		merged.Weight = (merged.Weight + edge.Weight) / 2
	case edge.Weight != 0:
		merged.Weight = edge.Weight
	}
	s.edges[key] = &merged
	return nil
}

func (s *Snapshot) applyPatchEdge(key common.EdgeKey, patch *Patch) error {
	existing, ok := s.edges[key]
	if !ok {
		return common.NewNotFoundError(
			"edge %s -[%s]-> %s not found", key.Source, key.Label, key.Target)
	}
	if patch == nil {
		return common.NewValidationError("patch_edge change without patch")
	}

	patched := cloneEdge(existing)
	if patch.Weight != nil {
		patched.Weight = *patch.Weight
	}
	s.edges[key] = &patched
	return nil
}

func (s *Snapshot) applyDeleteEdge(key common.EdgeKey) error {
	if _, ok := s.edges[key]; !ok {
		return common.NewNotFoundError(
			"edge %s -[%s]-> %s not found", key.Source, key.Label, key.Target)
	}
	delete(s.edges, key)
	s.removeAdjacency(key)
	return nil
}

func mergeProvenance(existing, incoming []common.Provenance) []common.Provenance {
	type provKey struct {
		doc, unit, desc string
	}
	seen := make(map[provKey]struct{}, len(existing))
	for _, p := range existing {
		seen[provKey{p.DocumentID, p.UnitID, p.Description}] = struct{}{}
	}

	merged := make([]common.Provenance, len(existing), len(existing)+len(incoming))
	copy(merged, existing)
	for _, p := range incoming {
		k := provKey{p.DocumentID, p.UnitID, p.Description}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, p)
	}
	return merged
}

// provenanceRecency returns the newest ingestion time across a provenance
// set, used by the planner for ranking.
func provenanceRecency(provs []common.Provenance) time.Time {
	var newest time.Time
	for _, p := range provs {
		if p.IngestedAt.After(newest) {
			newest = p.IngestedAt
		}
	}
	return newest
}
