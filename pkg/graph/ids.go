package graph

import (
	"strings"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/normalize"
)

// DeriveNodeID derives the stable node identifier from a display name and
// entity type. The id is deterministic, so re-extraction of the same entity
// always maps to the same node. The type participates in identity: a Person
// "Acme" and an Organization "Acme" are distinct nodes.
func DeriveNodeID(name string, entityType common.EntityType) string {
	canonical := normalize.CanonicalName(name)
	canonical = strings.ReplaceAll(canonical, ":", "-")
	slug := strings.ReplaceAll(canonical, " ", "-")
	return strings.ToLower(string(entityType)) + ":" + slug
}

// validateNodeID rejects identifiers that cannot have come out of
// DeriveNodeID. Edits arrive with caller-supplied ids, so the store checks
// shape before touching the maps.
func validateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return common.NewValidationError("empty node id")
	}
	if strings.ContainsAny(id, " \t\n") {
		return common.NewValidationError("malformed node id %q", id)
	}
	if !strings.Contains(id, ":") {
		return common.NewValidationError("malformed node id %q: missing type prefix", id)
	}
	return nil
}
