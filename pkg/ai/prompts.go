package ai

// ExtractionPrompt instructs the extraction model to pull document
// structure, entities, and relationships out of one text unit. The output is
// schema-constrained via GenerateCompletionWithFormat; the %s placeholder
// receives the unit text.
const ExtractionPrompt = `
# Task Context
You are an assistant specialized in extracting structured knowledge from documents for a knowledge graph.

# Background Data
%s

# Detailed Task Description & Rules
- Extract ALL sections of the document, each with its requirements (obligations, rules, constraints the text imposes).
- Extract ALL named entities: people, organizations, locations, systems, processes, data assets, concepts, events, products, dates.
- Extract the relationships stated between entities. Use short snake_case relationship labels (e.g. "works_at", "stores_data_in", "reports_to").
- For every entity and relationship include the sentence from the text that supports it as its description.
- Give each relationship a weight between 0.0 and 1.0 reflecting how explicitly the text states it (1.0 = stated verbatim).
- Only extract what the text supports. Do not invent entities or relationships.
- Use the entity's most complete name as it appears in the text.

# Output Formatting
Return a JSON object with "sections" (each with "title", "summary", "requirements") and "entities" (each with "name", "type", "description", "attributes", "relations").
`

// KeywordPrompt turns a free-form question into the keyword set used for
// seed-node matching when the caller supplies no keywords. Placeholder: the
// question.
const KeywordPrompt = `
# Task Context
You are an assistant that extracts search keywords from a user question for knowledge graph retrieval.

# Background Data
User question: "%s"

# Detailed Task Description & Rules
- Extract the names, terms, and concepts the question is actually about.
- Prefer proper nouns and domain terms over generic words.
- Do not include stop words, question words, or verbs.
- Return between 1 and 8 keywords.

# Output Formatting
Return a JSON object: {"keywords": ["<keyword1>", "<keyword2>"]}
`

// AnswerPrompt synthesizes a grounded answer from a retrieved subgraph.
// Placeholders: serialized subgraph context, then the question.
const AnswerPrompt = `
# Task Context
You are an assistant that answers questions strictly from a provided knowledge graph excerpt.

# Background Data
Knowledge graph context (nodes and labeled edges):
%s

# Detailed Task Description & Rules
- Answer the question using ONLY the information in the graph context above.
- Name the entities and relationships you used.
- If the context does not contain the answer, say so plainly instead of guessing.
- Keep the answer concise and factual.

# Immediate Task Description or Request
Question: "%s"
`
