package services

import (
	"fmt"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// Aggressiveness selects how much the extractor is asked to pull out.
type Aggressiveness string

const (
	Conservative Aggressiveness = "conservative"
	Balanced     Aggressiveness = "balanced"
	Obsessive    Aggressiveness = "obsessive"
)

// ParseAggressiveness maps a config value to a level; unknown values are
// balanced.
func ParseAggressiveness(s string) Aggressiveness {
	switch Aggressiveness(strings.ToLower(strings.TrimSpace(s))) {
	case Conservative:
		return Conservative
	case Obsessive:
		return Obsessive
	default:
		return Balanced
	}
}

var aggressivenessInstructions = map[Aggressiveness]string{
	Conservative: `Extract only entities that are clearly important: named characters who act or speak, places where scenes happen, organizations that drive the plot. Skip anything mentioned only in passing. When in doubt, leave it out.`,
	Balanced:     `Extract every named entity that a game master would want a note for: characters, places, organizations, notable items, quests and events. Skip generic nouns and unnamed background figures.`,
	Obsessive:    `Extract every named or uniquely identifiable thing in the text, including minor characters, objects, places mentioned in passing, rumors and customs. Prefer extracting too much over missing something.`,
}

const extractionPromptTemplate = `You are an archivist for a tabletop role-playing campaign. You read session notes and pull out the entities they mention.

%s

Allowed entity types: %s. Use the closest type; use "lore" when nothing else fits.

For each entity return:
- name: the most complete proper name used in the text
- canonicalName: lowercase, words joined by hyphens
- type: one of the allowed types
- content: a short markdown description built only from facts in the text
- aliases: other names, titles or nicknames used for it
- tags: short lowercase keywords
%s
Return ONLY a JSON object of the form {"entities": [...], "relationships": [...]}.`

const relationshipInstructions = `
Also return relationships between entities you extracted. For each relationship return:
- sourceEntity: the source entity's name exactly as in your entities list
- targetEntity: the target entity's name exactly as in your entities list
- relationshipType: lowercase snake_case, for example %s
- reverseLabel: how the relationship reads from the target's side (optional)
- excerpt: the sentence that states it (optional)
`

// SystemPrompt builds the extraction instruction for one run.
func SystemPrompt(level Aggressiveness, withRelationships bool) string {
	instructions, ok := aggressivenessInstructions[level]
	if !ok {
		instructions = aggressivenessInstructions[Balanced]
	}

	rels := "\nReturn an empty relationships array.\n"
	if withRelationships {
		examples := strings.Join([]string{
			entities.RelationAlly, entities.RelationEnemy, entities.RelationMemberOf,
			entities.RelationLocatedIn, entities.RelationOwns,
		}, ", ")
		rels = fmt.Sprintf(relationshipInstructions, examples)
	}

	types := strings.Join(entities.DefaultTypeNames(), ", ")
	return fmt.Sprintf(extractionPromptTemplate, instructions, types, rels)
}
