package graph

import "github.com/graphloom/loom/pkg/common"

// Op identifies the kind of staged change in a commit batch.
type Op string

const (
	// OpMergeNode creates the node if absent, otherwise merges attributes
	// and provenance into the existing node (existing values win).
	OpMergeNode Op = "merge_node"
	// OpPatchNode applies an attribute patch to an existing node.
	OpPatchNode Op = "patch_node"
	// OpDeleteNode removes a node and every incident edge. Deleting a
	// nonexistent node is a no-op.
	OpDeleteNode Op = "delete_node"
	// OpCreateEdge inserts a new edge and fails if the (source, target,
	// label) triple already exists.
	OpCreateEdge Op = "create_edge"
	// OpMergeEdge inserts the edge or, if the triple exists, unions
	// provenance and averages the weight.
	OpMergeEdge Op = "merge_edge"
	// OpPatchEdge applies a patch to an existing edge.
	OpPatchEdge Op = "patch_edge"
	// OpDeleteEdge removes an existing edge.
	OpDeleteEdge Op = "delete_edge"
)

// Patch describes a partial update to a node's attributes or an edge.
// Without Authoritative, patched values only fill keys that are not set yet;
// with it, they overwrite.
type Patch struct {
	Attributes    map[string]string `json:"attributes,omitempty"`
	Authoritative bool              `json:"authoritative,omitempty"`
	Weight        *float64          `json:"weight,omitempty"`
}

// Change is one staged mutation. Which fields are read depends on Op.
type Change struct {
	Op      Op
	Node    *common.Node
	Edge    *common.Edge
	NodeID  string
	EdgeKey common.EdgeKey
	Patch   *Patch
}

// Batch is a set of staged changes applied atomically by Store.Commit.
// When CheckRevision is set, the commit fails with a ConflictError unless
// the store is still at ExpectedRevision.
type Batch struct {
	Changes          []Change
	ExpectedRevision uint64
	CheckRevision    bool
}

// MergeNode stages an upsert of the given node.
func MergeNode(node common.Node) Change {
	return Change{Op: OpMergeNode, Node: &node}
}

// PatchNode stages an attribute patch for the node with the given id.
func PatchNode(id string, patch Patch) Change {
	return Change{Op: OpPatchNode, NodeID: id, Patch: &patch}
}

// DeleteNode stages the removal of a node and its incident edges.
func DeleteNode(id string) Change {
	return Change{Op: OpDeleteNode, NodeID: id}
}

// CreateEdge stages a strict edge insert.
func CreateEdge(edge common.Edge) Change {
	return Change{Op: OpCreateEdge, Edge: &edge}
}

// MergeEdge stages an edge upsert.
func MergeEdge(edge common.Edge) Change {
	return Change{Op: OpMergeEdge, Edge: &edge}
}

// PatchEdge stages a patch for the edge with the given key.
func PatchEdge(key common.EdgeKey, patch Patch) Change {
	return Change{Op: OpPatchEdge, EdgeKey: key, Patch: &patch}
}

// DeleteEdge stages the removal of the edge with the given key.
func DeleteEdge(key common.EdgeKey) Change {
	return Change{Op: OpDeleteEdge, EdgeKey: key}
}
