package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/normalize"
)

func policyExtraction() *Extraction {
	return &Extraction{
		Document: common.Document{
			ID:         "doc-1",
			Title:      "Data Handling Policy",
			IngestedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Units: []UnitExtraction{
			{
				Unit: Unit{ID: "unit-1", Start: 0, End: 4, Text: "..."},
				Sections: []Section{
					{
						Title:   "Data Retention",
						Summary: "Retention rules for customer records held by Acme.",
						Requirements: []string{
							"Customer records must be deleted after five years.",
						},
					},
				},
				Entities: []Entity{
					{
						Name:        "Acme",
						Type:        "organization",
						Description: "Acme holds customer records.",
					},
					{
						Name:        "Customer Records",
						Type:        "data",
						Description: "Customer records are retained for five years.",
						Relations: []Relation{
							{
								TargetName: "Acme",
								TargetType: "organization",
								Label:      "held_by",
								Weight:     0.9,
							},
						},
					},
				},
			},
		},
	}
}

func findRecord(t *testing.T, records []normalize.RawRecord, name string) normalize.RawRecord {
	t.Helper()
	for _, rec := range records {
		if rec.Name == name {
			return rec
		}
	}
	t.Fatalf("no record named %q", name)
	return normalize.RawRecord{}
}

func hasRelation(rec normalize.RawRecord, target, label string) bool {
	for _, rel := range rec.Relations {
		if rel.TargetName == target && rel.Label == label {
			return true
		}
	}
	return false
}

func TestRecordsDocumentRoot(t *testing.T) {
	records := policyExtraction().Records()

	root := records[0]
	if root.Name != "Data Handling Policy" || root.Type != "document" {
		t.Fatalf("first record = %q (%s), want document root", root.Name, root.Type)
	}
	if !hasRelation(root, "Data Retention", LabelContainsSection) {
		t.Error("document root has no contains_section relation to the section")
	}
}

func TestRecordsSectionSkeleton(t *testing.T) {
	records := policyExtraction().Records()

	section := findRecord(t, records, "Data Retention")
	if section.Type != "section" {
		t.Errorf("section type = %q, want section", section.Type)
	}
	if section.UnitID != "unit-1" {
		t.Errorf("section UnitID = %q, want unit-1", section.UnitID)
	}
	if !hasRelation(section, "Customer records must be deleted after five years.", LabelContainsRequirement) {
		t.Error("section has no contains_requirement relation")
	}

	requirement := findRecord(t, records, "Customer records must be deleted after five years.")
	if requirement.Type != "requirement" {
		t.Errorf("requirement type = %q, want requirement", requirement.Type)
	}
}

func TestRecordsMentionEdges(t *testing.T) {
	records := policyExtraction().Records()

	// "Acme" appears in the section summary; "Customer Records" appears in
	// both the summary and the requirement text.
	section := findRecord(t, records, "Data Retention")
	if !hasRelation(section, "Acme", LabelMentionsEntity) {
		t.Error("section does not mention Acme")
	}
	if !hasRelation(section, "Customer Records", LabelMentionsEntity) {
		t.Error("section does not mention Customer Records")
	}

	requirement := findRecord(t, records, "Customer records must be deleted after five years.")
	if !hasRelation(requirement, "Customer Records", LabelInvolvesEntity) {
		t.Error("requirement does not involve Customer Records")
	}
	if hasRelation(requirement, "Acme", LabelInvolvesEntity) {
		t.Error("requirement involves Acme but Acme is not in its text")
	}
}

func TestRecordsEntityRelationsCarryOver(t *testing.T) {
	records := policyExtraction().Records()

	entity := findRecord(t, records, "Customer Records")
	if entity.UnitID != "unit-1" {
		t.Errorf("entity UnitID = %q, want unit-1", entity.UnitID)
	}
	found := false
	for _, rel := range entity.Relations {
		if rel.TargetName == "Acme" && rel.Label == "held_by" && rel.Weight == 0.9 {
			found = true
		}
	}
	if !found {
		t.Error("extracted held_by relation did not carry over")
	}
}

func TestRequirementNameTruncatesOnWordBoundary(t *testing.T) {
	long := strings.Repeat("retention ", 20)
	name := requirementName(strings.TrimSpace(long))
	if len(name) > maxRequirementName {
		t.Errorf("requirement name is %d chars, want at most %d", len(name), maxRequirementName)
	}
	if strings.HasSuffix(name, " ") || !strings.HasSuffix(name, "retention") {
		t.Errorf("requirement name %q not cut on a word boundary", name)
	}
}
