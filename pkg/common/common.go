package common

import "time"

// Node represents an entity in the knowledge graph. An entity can be a
// person, organization, document section, or any other relevant concept.
//
// The ID is derived deterministically from the canonical name and type, so
// re-extraction of the same entity always maps to the same node. Attributes
// accumulate across extractions; Provenance records which source documents
// contributed the node.
type Node struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       EntityType        `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Provenance []Provenance      `json:"provenance,omitempty"`
}

// Edge represents a directed, labeled relationship between two nodes.
//
// At most one edge may exist per (source, target, label) triple; re-ingesting
// the same triple merges provenance and averages the weight. Both endpoints
// must exist in the store at commit time.
type Edge struct {
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Label      string       `json:"label"`
	Weight     float64      `json:"weight,omitempty"`
	Provenance []Provenance `json:"provenance,omitempty"`
}

// Key returns the identity triple of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Label: e.Label}
}

// EdgeKey identifies an edge by its (source, target, label) triple.
type EdgeKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Provenance links a node or edge back to the source document and text unit
// it was extracted from. Description carries the extractor's supporting text.
type Provenance struct {
	DocumentID  string    `json:"document_id"`
	UnitID      string    `json:"unit_id,omitempty"`
	Description string    `json:"description,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Document identifies a source document. Documents are referenced via
// provenance on nodes and edges; the document itself only enters the graph
// as an optional structural node of type Document.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Subgraph is a bounded selection of nodes and edges returned as retrieval
// context for answer generation. Seeds lists the node ids traversal started
// from. Empty is set when no seed matched the query keywords; the caller
// decides how to respond to missing grounding.
type Subgraph struct {
	Nodes []Node   `json:"nodes"`
	Edges []Edge   `json:"edges"`
	Seeds []string `json:"seeds"`
	Empty bool     `json:"empty"`
}

// EntityType is the normalized tag set for nodes. The set is open on input
// (unrecognized extraction types map to EntityTypeOther) but closed inside
// the store.
type EntityType string

const (
	EntityTypePerson       EntityType = "Person"
	EntityTypeOrganization EntityType = "Organization"
	EntityTypeLocation     EntityType = "Location"
	EntityTypeConcept      EntityType = "Concept"
	EntityTypeDocument     EntityType = "Document"
	EntityTypeSection      EntityType = "Section"
	EntityTypeRequirement  EntityType = "Requirement"
	EntityTypeSystem       EntityType = "System"
	EntityTypeProcess      EntityType = "Process"
	EntityTypeData         EntityType = "Data"
	EntityTypeEvent        EntityType = "Event"
	EntityTypeProduct      EntityType = "Product"
	EntityTypeCreativeWork EntityType = "CreativeWork"
	EntityTypeDate         EntityType = "Date"
	EntityTypeOther        EntityType = "Other"
)

// String returns the string representation of the entity type.
func (t EntityType) String() string {
	return string(t)
}

// IsValid reports whether the entity type belongs to the closed tag set.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypePerson, EntityTypeOrganization, EntityTypeLocation,
		EntityTypeConcept, EntityTypeDocument, EntityTypeSection,
		EntityTypeRequirement, EntityTypeSystem, EntityTypeProcess,
		EntityTypeData, EntityTypeEvent, EntityTypeProduct,
		EntityTypeCreativeWork, EntityTypeDate, EntityTypeOther:
		return true
	default:
		return false
	}
}

// Direction selects which incident edges of a node to return.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)
