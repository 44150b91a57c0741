// Package normalize canonicalizes raw extraction records before they enter
// the graph. Extraction output is schema-free; everything not conforming is
// rejected here rather than propagated into the store.
package normalize

import (
	"strings"

	"github.com/graphloom/loom/pkg/common"
)

// RawRecord is an extraction record as returned by the model: an entity with
// optional attributes and relation triples pointing at other entities by name.
type RawRecord struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Relations   []RawRelation     `json:"relations,omitempty"`

	// UnitID is filled by the extraction pipeline, not by the model.
	UnitID string `json:"-"`
}

// RawRelation is an unnormalized relation triple on a RawRecord.
type RawRelation struct {
	TargetName  string  `json:"target_name"`
	TargetType  string  `json:"target_type,omitempty"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}

// Record is the canonical form of a RawRecord, safe to hand to the builder.
type Record struct {
	Name        string
	Type        common.EntityType
	Description string
	Attributes  map[string]string
	Relations   []Relation
	UnitID      string
}

// Relation is a normalized relation triple.
type Relation struct {
	TargetName  string
	TargetType  common.EntityType
	Label       string
	Description string
	Weight      float64
}

// Skipped reports a record dropped from a batch and why.
type Skipped struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Err   error  `json:"-"`
}

// DefaultRelationLabel is used for relations extracted without a label.
const DefaultRelationLabel = "related_to"

var typeAliases = map[string]common.EntityType{
	"person":        common.EntityTypePerson,
	"people":        common.EntityTypePerson,
	"org":           common.EntityTypeOrganization,
	"organization":  common.EntityTypeOrganization,
	"organisation":  common.EntityTypeOrganization,
	"company":       common.EntityTypeOrganization,
	"location":      common.EntityTypeLocation,
	"place":         common.EntityTypeLocation,
	"concept":       common.EntityTypeConcept,
	"document":      common.EntityTypeDocument,
	"section":       common.EntityTypeSection,
	"requirement":   common.EntityTypeRequirement,
	"system":        common.EntityTypeSystem,
	"server":        common.EntityTypeSystem,
	"process":       common.EntityTypeProcess,
	"data":          common.EntityTypeData,
	"event":         common.EntityTypeEvent,
	"product":       common.EntityTypeProduct,
	"creative_work": common.EntityTypeCreativeWork,
	"creativework":  common.EntityTypeCreativeWork,
	"date":          common.EntityTypeDate,
	"entity":        common.EntityTypeOther,
	"other":         common.EntityTypeOther,
}

// CanonicalName trims, case-folds, and whitespace-collapses a display name
// for identity derivation. Two names with the same canonical form resolve to
// the same node.
func CanonicalName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// EntityTypeFromString maps a raw extraction type tag into the closed tag
// set. Unrecognized types pass through tagged Other.
func EntityTypeFromString(raw string) common.EntityType {
	key := strings.ToLower(strings.Join(strings.Fields(raw), "_"))
	if t, ok := typeAliases[key]; ok {
		return t
	}
	if t := common.EntityType(strings.TrimSpace(raw)); t.IsValid() {
		return t
	}
	return common.EntityTypeOther
}

// RelationLabel lower-cases a relation label and collapses whitespace runs
// to single underscores. Empty labels map to DefaultRelationLabel.
func RelationLabel(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return DefaultRelationLabel
	}
	return strings.Join(fields, "_")
}

// Normalize canonicalizes a single raw extraction record. It fails with a
// MalformedExtractionError when the record lacks a name or one of its
// relations references an unnamed endpoint.
func Normalize(raw RawRecord) (Record, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return Record{}, common.NewMalformedExtractionError("extraction record has no name")
	}

	rec := Record{
		Name:        name,
		Type:        EntityTypeFromString(raw.Type),
		Description: strings.TrimSpace(raw.Description),
		UnitID:      raw.UnitID,
	}

	if len(raw.Attributes) > 0 {
		rec.Attributes = make(map[string]string, len(raw.Attributes))
		for k, v := range raw.Attributes {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			rec.Attributes[key] = strings.TrimSpace(v)
		}
	}

	for _, rel := range raw.Relations {
		target := strings.TrimSpace(rel.TargetName)
		if target == "" {
			return Record{}, common.NewMalformedExtractionError(
				"record %q has a relation with an unnamed endpoint", name)
		}
		// An empty target type stays empty so the builder can resolve the
		// endpoint by name instead of guessing a type.
		var targetType common.EntityType
		if strings.TrimSpace(rel.TargetType) != "" {
			targetType = EntityTypeFromString(rel.TargetType)
		}
		rec.Relations = append(rec.Relations, Relation{
			TargetName:  target,
			TargetType:  targetType,
			Label:       RelationLabel(rel.Label),
			Description: strings.TrimSpace(rel.Description),
			Weight:      rel.Weight,
		})
	}

	return rec, nil
}

// NormalizeBatch canonicalizes a batch of raw records. Malformed records are
// dropped and reported in the skipped list; they are never fatal to the batch.
func NormalizeBatch(raws []RawRecord) ([]Record, []Skipped) {
	records := make([]Record, 0, len(raws))
	var skipped []Skipped
	for i, raw := range raws {
		rec, err := Normalize(raw)
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Name: strings.TrimSpace(raw.Name), Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}
