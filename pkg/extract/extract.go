package extract

import (
	"context"
	"fmt"

	"github.com/graphloom/loom/pkg/ai"
)

// Section is a document section identified by the extraction model, with the
// requirements (obligations, rules, constraints) stated inside it.
type Section struct {
	Title        string   `json:"title" jsonschema_description:"Heading or short title of the section"`
	Summary      string   `json:"summary" jsonschema_description:"One or two sentence summary of what the section covers"`
	Requirements []string `json:"requirements" jsonschema_description:"Each obligation, rule or constraint the section imposes, quoted or closely paraphrased"`
}

// Relation is a directed relationship from the entity it appears on to
// another extracted entity, referenced by name.
type Relation struct {
	TargetName  string  `json:"target_name" jsonschema_description:"Name of the related entity, exactly as extracted"`
	TargetType  string  `json:"target_type,omitempty" jsonschema_description:"Type of the related entity, if known"`
	Label       string  `json:"label" jsonschema_description:"Short snake_case relationship label, e.g. works_at"`
	Description string  `json:"description,omitempty" jsonschema_description:"The sentence from the text supporting this relationship"`
	Weight      float64 `json:"weight,omitempty" jsonschema_description:"How explicitly the text states the relationship, 0.0 to 1.0"`
}

// Entity is a named entity identified by the extraction model together with
// its attributes and outgoing relationships.
type Entity struct {
	Name        string            `json:"name" jsonschema_description:"Most complete name of the entity as it appears in the text"`
	Type        string            `json:"type" jsonschema_description:"Entity type, e.g. person, organization, location, system, process, data, concept, event, product, date"`
	Description string            `json:"description,omitempty" jsonschema_description:"The sentence from the text supporting this entity"`
	Attributes  map[string]string `json:"attributes,omitempty" jsonschema_description:"Key-value facts stated about the entity"`
	Relations   []Relation        `json:"relations,omitempty" jsonschema_description:"Relationships from this entity to other extracted entities"`
}

type unitResponse struct {
	Sections []Section `json:"sections" jsonschema_description:"Document sections identified in the text"`
	Entities []Entity  `json:"entities" jsonschema_description:"Named entities identified in the text"`
}

// UnitExtraction is the structured extraction result for one text unit.
type UnitExtraction struct {
	Unit     Unit      `json:"unit"`
	Sections []Section `json:"sections"`
	Entities []Entity  `json:"entities"`
}

func extractFromUnit(
	ctx context.Context,
	unit Unit,
	client ai.GraphAIClient,
) (UnitExtraction, error) {
	prompt := fmt.Sprintf(ai.ExtractionPrompt, unit.Text)

	var res unitResponse
	err := client.GenerateCompletionWithFormat(
		ctx,
		"extract_knowledge",
		"Extract sections, entities and relationships from a document excerpt.",
		prompt,
		&res,
	)
	if err != nil {
		return UnitExtraction{}, err
	}

	return UnitExtraction{
		Unit:     unit,
		Sections: res.Sections,
		Entities: res.Entities,
	}, nil
}
