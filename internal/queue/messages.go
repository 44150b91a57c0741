package queue

// IngestJobMsg asks the worker to load, extract, and ingest one document.
type IngestJobMsg struct {
	DocumentID string `json:"document_id"`
	ObjectKey  string `json:"object_key"`
	Title      string `json:"title"`
}

// DeleteJobMsg asks the worker to remove a document and the graph content
// that stems exclusively from it.
type DeleteJobMsg struct {
	DocumentID string `json:"document_id"`
}

// Edit operations carried by EditJobMsg.
const (
	EditOpUpdateNode = "update_node"
	EditOpDeleteNode = "delete_node"
	EditOpCreateEdge = "create_edge"
	EditOpUpdateEdge = "update_edge"
	EditOpDeleteEdge = "delete_edge"
)

// EditJobMsg asks the worker to apply one manual graph edit. All mutations
// flow through the worker so a single process owns the store.
type EditJobMsg struct {
	Operation string `json:"operation"`

	NodeID string `json:"node_id,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Label  string `json:"label,omitempty"`

	Attributes    map[string]string `json:"attributes,omitempty"`
	Authoritative bool              `json:"authoritative,omitempty"`
	Weight        *float64          `json:"weight,omitempty"`

	ExpectedRevision uint64 `json:"expected_revision,omitempty"`
}
