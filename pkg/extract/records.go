package extract

import (
	"sort"
	"strings"

	"github.com/graphloom/loom/pkg/normalize"
)

// Structural relationship labels produced alongside the model's own
// relations. They tie the document skeleton (document, sections,
// requirements) to itself and to the entities mentioned inside it.
const (
	LabelContainsSection     = "contains_section"
	LabelContainsRequirement = "contains_requirement"
	LabelMentionsEntity      = "mentions_entity"
	LabelInvolvesEntity      = "involves_entity"
)

const maxRequirementName = 80

// Records converts the extraction into raw records for normalization. The
// output contains, in order: one document root record linking to every
// section, the section and requirement records per unit, and the entity
// records with the model's relations.
//
// Beyond the model output, sections gain mentions_entity relations to
// entities whose name appears in the section text, and requirements gain
// involves_entity relations likewise. These structural edges all carry
// weight 1.0 since they are derived, not inferred.
func (e *Extraction) Records() []normalize.RawRecord {
	docName := strings.TrimSpace(e.Document.Title)
	if docName == "" {
		docName = e.Document.ID
	}

	docRecord := normalize.RawRecord{
		Name: docName,
		Type: "document",
	}

	var records []normalize.RawRecord
	for _, unit := range e.Units {
		for _, section := range unit.Sections {
			title := strings.TrimSpace(section.Title)
			if title == "" {
				continue
			}

			docRecord.Relations = append(docRecord.Relations, normalize.RawRelation{
				TargetName: title,
				TargetType: "section",
				Label:      LabelContainsSection,
				Weight:     1,
			})

			sectionRecord := normalize.RawRecord{
				Name:        title,
				Type:        "section",
				Description: strings.TrimSpace(section.Summary),
				UnitID:      unit.Unit.ID,
			}

			sectionText := strings.ToLower(section.Title + " " + section.Summary + " " + strings.Join(section.Requirements, " "))
			for _, entity := range unit.Entities {
				if entityMentioned(sectionText, entity.Name) {
					sectionRecord.Relations = append(sectionRecord.Relations, normalize.RawRelation{
						TargetName:  entity.Name,
						TargetType:  entity.Type,
						Label:       LabelMentionsEntity,
						Description: "Section mentions " + entity.Name,
						Weight:      1,
					})
				}
			}

			for _, requirement := range section.Requirements {
				reqText := strings.TrimSpace(requirement)
				if reqText == "" {
					continue
				}
				reqName := requirementName(reqText)

				sectionRecord.Relations = append(sectionRecord.Relations, normalize.RawRelation{
					TargetName: reqName,
					TargetType: "requirement",
					Label:      LabelContainsRequirement,
					Weight:     1,
				})

				reqRecord := normalize.RawRecord{
					Name:        reqName,
					Type:        "requirement",
					Description: reqText,
					UnitID:      unit.Unit.ID,
				}
				reqLower := strings.ToLower(reqText)
				for _, entity := range unit.Entities {
					if entityMentioned(reqLower, entity.Name) {
						reqRecord.Relations = append(reqRecord.Relations, normalize.RawRelation{
							TargetName:  entity.Name,
							TargetType:  entity.Type,
							Label:       LabelInvolvesEntity,
							Description: "Requirement involves " + entity.Name,
							Weight:      1,
						})
					}
				}
				records = append(records, reqRecord)
			}

			records = append(records, sectionRecord)
		}

		for _, entity := range unit.Entities {
			record := normalize.RawRecord{
				Name:        entity.Name,
				Type:        entity.Type,
				Description: entity.Description,
				Attributes:  entity.Attributes,
				UnitID:      unit.Unit.ID,
			}
			for _, rel := range entity.Relations {
				record.Relations = append(record.Relations, normalize.RawRelation(rel))
			}
			records = append(records, record)
		}
	}

	return append([]normalize.RawRecord{docRecord}, records...)
}

func entityMentioned(haystackLower, entityName string) bool {
	name := strings.ToLower(strings.TrimSpace(entityName))
	if name == "" {
		return false
	}
	return strings.Contains(haystackLower, name)
}

// requirementName derives a stable node name from requirement text, cut on a
// word boundary so re-extraction of the same requirement maps to the same
// node.
func requirementName(text string) string {
	if len(text) <= maxRequirementName {
		return text
	}
	cut := text[:maxRequirementName]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

func sortUnitExtractions(units []UnitExtraction) {
	sort.Slice(units, func(i, j int) bool {
		return units[i].Unit.Start < units[j].Unit.Start
	})
}
