package graph

import (
	"sort"
	"strings"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/normalize"
)

// Snapshot is an immutable point-in-time view of the graph at one revision.
// Readers iterating a snapshot never observe a concurrently-committing edit:
// commits build a new snapshot and swap it in, they never mutate one in
// place. All accessor methods return copies.
type Snapshot struct {
	revision uint64
	nodes    map[string]*common.Node
	edges    map[common.EdgeKey]*common.Edge

	// adjacency, keys sorted for deterministic iteration
	out map[string][]common.EdgeKey
	in  map[string][]common.EdgeKey

	// canonical display name -> sorted node ids, for endpoint resolution
	// when a relation arrives without a type
	byName map[string][]string
}

func newEmptySnapshot() *Snapshot {
	return &Snapshot{
		nodes:  make(map[string]*common.Node),
		edges:  make(map[common.EdgeKey]*common.Edge),
		out:    make(map[string][]common.EdgeKey),
		in:     make(map[string][]common.EdgeKey),
		byName: make(map[string][]string),
	}
}

// Revision returns the revision this snapshot was taken at.
func (s *Snapshot) Revision() uint64 {
	return s.revision
}

// NodeCount returns the number of nodes in the snapshot.
func (s *Snapshot) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of edges in the snapshot.
func (s *Snapshot) EdgeCount() int {
	return len(s.edges)
}

// HasNode reports whether a node with the given id exists.
func (s *Snapshot) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// GetNode returns a copy of the node with the given id, or a NotFoundError.
func (s *Snapshot) GetNode(id string) (common.Node, error) {
	node, ok := s.nodes[id]
	if !ok {
		return common.Node{}, common.NewNotFoundError("node %q not found", id)
	}
	return cloneNode(node), nil
}

// GetEdge returns a copy of the edge with the given key, or a NotFoundError.
func (s *Snapshot) GetEdge(key common.EdgeKey) (common.Edge, error) {
	edge, ok := s.edges[key]
	if !ok {
		return common.Edge{}, common.NewNotFoundError(
			"edge %s -[%s]-> %s not found", key.Source, key.Label, key.Target)
	}
	return cloneEdge(edge), nil
}

// GetEdges returns copies of the edges incident to the given node, filtered
// by direction. The node must exist; a deleted or unknown id yields a
// NotFoundError, not an empty list.
func (s *Snapshot) GetEdges(nodeID string, direction common.Direction) ([]common.Edge, error) {
	if !s.HasNode(nodeID) {
		return nil, common.NewNotFoundError("node %q not found", nodeID)
	}

	var keys []common.EdgeKey
	switch direction {
	case common.DirectionOut:
		keys = s.out[nodeID]
	case common.DirectionIn:
		keys = s.in[nodeID]
	default:
		keys = append(append([]common.EdgeKey{}, s.out[nodeID]...), s.in[nodeID]...)
		sortEdgeKeys(keys)
	}

	edges := make([]common.Edge, 0, len(keys))
	for _, key := range keys {
		edges = append(edges, cloneEdge(s.edges[key]))
	}
	return edges, nil
}

// Neighbors returns the sorted set of node ids adjacent to the given node,
// in either direction. A non-empty relationFilter restricts the result to
// edges carrying that label (normalized before matching).
func (s *Snapshot) Neighbors(nodeID string, relationFilter string) ([]string, error) {
	if !s.HasNode(nodeID) {
		return nil, common.NewNotFoundError("node %q not found", nodeID)
	}

	filter := ""
	if strings.TrimSpace(relationFilter) != "" {
		filter = normalize.RelationLabel(relationFilter)
	}

	seen := make(map[string]struct{})
	for _, key := range s.out[nodeID] {
		if filter != "" && key.Label != filter {
			continue
		}
		seen[key.Target] = struct{}{}
	}
	for _, key := range s.in[nodeID] {
		if filter != "" && key.Label != filter {
			continue
		}
		seen[key.Source] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ResolveByName returns the sorted node ids whose canonical display name
// matches the given name, regardless of type.
func (s *Snapshot) ResolveByName(name string) []string {
	ids := s.byName[normalize.CanonicalName(name)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Nodes returns copies of all nodes sorted by id.
func (s *Snapshot) Nodes() []common.Node {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]common.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, cloneNode(s.nodes[id]))
	}
	return nodes
}

// Edges returns copies of all edges sorted by (source, target, label).
func (s *Snapshot) Edges() []common.Edge {
	keys := make([]common.EdgeKey, 0, len(s.edges))
	for key := range s.edges {
		keys = append(keys, key)
	}
	sortEdgeKeys(keys)

	edges := make([]common.Edge, 0, len(keys))
	for _, key := range keys {
		edges = append(edges, cloneEdge(s.edges[key]))
	}
	return edges
}

// clone returns a shallow copy of the snapshot's maps for copy-on-write
// commits. Node and edge values are shared; the commit path replaces a
// value's pointer instead of mutating it.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		revision: s.revision,
		nodes:    make(map[string]*common.Node, len(s.nodes)),
		edges:    make(map[common.EdgeKey]*common.Edge, len(s.edges)),
		out:      make(map[string][]common.EdgeKey, len(s.out)),
		in:       make(map[string][]common.EdgeKey, len(s.in)),
		byName:   make(map[string][]string, len(s.byName)),
	}
	for id, node := range s.nodes {
		next.nodes[id] = node
	}
	for key, edge := range s.edges {
		next.edges[key] = edge
	}
	for id, keys := range s.out {
		next.out[id] = keys
	}
	for id, keys := range s.in {
		next.in[id] = keys
	}
	for name, ids := range s.byName {
		next.byName[name] = ids
	}
	return next
}

func (s *Snapshot) addAdjacency(key common.EdgeKey) {
	s.out[key.Source] = insertEdgeKey(s.out[key.Source], key)
	s.in[key.Target] = insertEdgeKey(s.in[key.Target], key)
}

func (s *Snapshot) removeAdjacency(key common.EdgeKey) {
	s.out[key.Source] = removeEdgeKey(s.out[key.Source], key)
	s.in[key.Target] = removeEdgeKey(s.in[key.Target], key)
}

func (s *Snapshot) addName(id, name string) {
	canonical := normalize.CanonicalName(name)
	ids := s.byName[canonical]
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	next := make([]string, 0, len(ids)+1)
	next = append(next, ids...)
	next = append(next, id)
	sort.Strings(next)
	s.byName[canonical] = next
}

func (s *Snapshot) removeName(id, name string) {
	canonical := normalize.CanonicalName(name)
	ids := s.byName[canonical]
	next := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	if len(next) == 0 {
		delete(s.byName, canonical)
		return
	}
	s.byName[canonical] = next
}

func cloneNode(node *common.Node) common.Node {
	out := *node
	if node.Attributes != nil {
		out.Attributes = make(map[string]string, len(node.Attributes))
		for k, v := range node.Attributes {
			out.Attributes[k] = v
		}
	}
	if node.Provenance != nil {
		out.Provenance = make([]common.Provenance, len(node.Provenance))
		copy(out.Provenance, node.Provenance)
	}
	return out
}

func cloneEdge(edge *common.Edge) common.Edge {
	out := *edge
	if edge.Provenance != nil {
		out.Provenance = make([]common.Provenance, len(edge.Provenance))
		copy(out.Provenance, edge.Provenance)
	}
	return out
}

func edgeKeyLess(a, b common.EdgeKey) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.Label < b.Label
}

func sortEdgeKeys(keys []common.EdgeKey) {
	sort.Slice(keys, func(i, j int) bool {
		return edgeKeyLess(keys[i], keys[j])
	})
}

func insertEdgeKey(keys []common.EdgeKey, key common.EdgeKey) []common.EdgeKey {
	idx := sort.Search(len(keys), func(i int) bool {
		return !edgeKeyLess(keys[i], key)
	})
	if idx < len(keys) && keys[idx] == key {
		return keys
	}
	next := make([]common.EdgeKey, 0, len(keys)+1)
	next = append(next, keys[:idx]...)
	next = append(next, key)
	next = append(next, keys[idx:]...)
	return next
}

func removeEdgeKey(keys []common.EdgeKey, key common.EdgeKey) []common.EdgeKey {
	next := make([]common.EdgeKey, 0, len(keys))
	for _, existing := range keys {
		if existing != key {
			next = append(next, existing)
		}
	}
	return next
}
