package sow

import (
	"fmt"
	"strings"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
)

// GenerationInput carries everything the generator needs for one draft.
// Requirements keep their submitted order; the prompt never reorders them.
type GenerationInput struct {
	ProjectId    string
	Requirements []string
	Constraints  []string
	Tone         string
	Context      []docModel.RetrievalResult
}

// BuildPrompt assembles the user prompt. Excerpts are truncated to the
// configured budget so one oversized chunk cannot crowd out the rest.
func BuildPrompt(input GenerationInput) string {
	requirementText := strings.Join(input.Requirements, "\n- ")

	constraintText := "None provided"
	if len(input.Constraints) > 0 {
		constraintText = strings.Join(input.Constraints, "\n- ")
	}

	contextText := "No retrieved context"
	if len(input.Context) > 0 {
		excerpts := make([]string, len(input.Context))
		for i, r := range input.Context {
			excerpts[i] = truncateExcerpt(r.Chunk.Text, config.ContextMaxExcerptChars)
		}
		contextText = strings.Join(excerpts, "\n---\n")
	}

	return fmt.Sprintf(`Create a structured Statement of Work for project %s in a %s tone.
Include executive summary, scope, deliverables, milestones, assumptions, dependencies,
acceptance criteria, and a RACI table. Use bullet lists where helpful.

Requirements:
- %s

Constraints:
- %s

Retrieved context:
%s`, input.ProjectId, input.Tone, requirementText, constraintText, contextText)
}

func truncateExcerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
