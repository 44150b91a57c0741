package normalize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/graphloom/loom/pkg/common"
)

func TestCanonicalName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase passthrough", input: "alice", want: "alice"},
		{name: "case folded", input: "ALICE", want: "alice"},
		{name: "whitespace collapsed", input: "  Acme \t Corp  ", want: "acme corp"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalName(tc.input); got != tc.want {
				t.Fatalf("CanonicalName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestEntityTypeFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want common.EntityType
	}{
		{name: "canonical tag", raw: "Person", want: common.EntityTypePerson},
		{name: "lowercase alias", raw: "person", want: common.EntityTypePerson},
		{name: "org alias", raw: "company", want: common.EntityTypeOrganization},
		{name: "server alias", raw: "server", want: common.EntityTypeSystem},
		{name: "two word tag", raw: "creative work", want: common.EntityTypeCreativeWork},
		{name: "unknown maps to other", raw: "spaceship", want: common.EntityTypeOther},
		{name: "empty maps to other", raw: "", want: common.EntityTypeOther},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := EntityTypeFromString(tc.raw); got != tc.want {
				t.Fatalf("EntityTypeFromString(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestRelationLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "already normalized", raw: "works_at", want: "works_at"},
		{name: "mixed case with spaces", raw: "Works At", want: "works_at"},
		{name: "runs of whitespace", raw: "  reports \t to ", want: "reports_to"},
		{name: "empty gets default", raw: "   ", want: DefaultRelationLabel},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := RelationLabel(tc.raw); got != tc.want {
				t.Fatalf("RelationLabel(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	raw := RawRecord{
		Name:        "  Alice  ",
		Type:        "person",
		Description: " Senior developer at Acme. ",
		Attributes: map[string]string{
			"role":  " developer ",
			"  ":    "dropped",
			"email": "alice@example.com",
		},
		Relations: []RawRelation{
			{TargetName: " Acme ", TargetType: "company", Label: "Works At", Weight: 0.8},
			{TargetName: "Berlin"},
		},
		UnitID: "unit-3",
	}

	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	want := Record{
		Name:        "Alice",
		Type:        common.EntityTypePerson,
		Description: "Senior developer at Acme.",
		Attributes: map[string]string{
			"role":  "developer",
			"email": "alice@example.com",
		},
		Relations: []Relation{
			{TargetName: "Acme", TargetType: common.EntityTypeOrganization, Label: "works_at", Weight: 0.8},
			{TargetName: "Berlin", Label: DefaultRelationLabel},
		},
		UnitID: "unit-3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  RawRecord
	}{
		{
			name: "missing name",
			raw:  RawRecord{Type: "person"},
		},
		{
			name: "whitespace name",
			raw:  RawRecord{Name: "   ", Type: "person"},
		},
		{
			name: "relation without endpoint",
			raw: RawRecord{
				Name:      "Alice",
				Type:      "person",
				Relations: []RawRelation{{Label: "works_at"}},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw)
			if !errors.Is(err, common.ErrMalformedExtraction()) {
				t.Fatalf("Normalize error = %v, want malformed extraction error", err)
			}
		})
	}
}

func TestNormalizeBatchSkipsMalformed(t *testing.T) {
	t.Parallel()

	raws := []RawRecord{
		{Name: "Alice", Type: "person"},
		{Name: "", Type: "person"},
		{Name: "Acme", Type: "company"},
	}

	records, skipped := NormalizeBatch(raws)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Name != "Alice" || records[1].Name != "Acme" {
		t.Fatalf("unexpected record order: %v", records)
	}
	if len(skipped) != 1 || skipped[0].Index != 1 {
		t.Fatalf("skipped = %+v, want index 1 only", skipped)
	}
	if !errors.Is(skipped[0].Err, common.ErrMalformedExtraction()) {
		t.Fatalf("skipped error = %v, want malformed extraction error", skipped[0].Err)
	}
}
