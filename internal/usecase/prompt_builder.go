package usecase

import (
	"fmt"
	"strings"

	"chat-orchestrator/internal/domain"
)

// PromptBuilder renders the grounding context and question into the chat
// messages sent to the generation service.
type PromptBuilder interface {
	Build(query string, candidates domain.RankedResult) ([]domain.Message, error)
}

// PassagePromptBuilder keeps every passage individually delimited and tagged
// with its metadata. Downstream answer-quality rules forbid merging facts
// across distinct passages, so the context block never concatenates passage
// texts without attribution.
type PassagePromptBuilder struct {
	additionalInstructions []string
}

// NewPassagePromptBuilder creates a builder with optional extra instructions
// appended to the system message.
func NewPassagePromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &PassagePromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

// Build renders the messages for the chat API.
func (b *PassagePromptBuilder) Build(query string, candidates domain.RankedResult) ([]domain.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("at least one passage is required")
	}

	instructions := []string{
		"You are an assistant that answers questions about products from the provided <passage> blocks only.",
		"Use facts only if they appear in a passage. If no passage supports an answer, say you do not have that information.",
		"Never merge or mix facts from different passages into one claim. If several products seem relevant, list their names and ask which one the user means.",
		"You are not a doctor and do not give personal medical advice. When appropriate, remind the user in one short sentence to consult a professional.",
		"Attribute claims to their source: each passage carries source, page and topic attributes.",
		"Be clear and concise. Use short paragraphs and bullet points. Answer in the language of the question.",
		"Do not mention passages, context or documents in the final answer.",
	}

	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, inst := range append(instructions, b.additionalInstructions...) {
		sys.WriteString("  <line>")
		sys.WriteString(escape(inst))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n")

	var user strings.Builder
	user.WriteString("<context>\n")
	for _, cand := range candidates {
		p := cand.Passage
		user.WriteString(fmt.Sprintf("  <passage id=%q source=%q page=%q topic=%q>\n",
			p.ID, p.Metadata[domain.MetaSource], p.Metadata[domain.MetaPage], p.Metadata[domain.MetaTopic]))
		user.WriteString("    ")
		user.WriteString(escape(p.Text))
		user.WriteString("\n  </passage>\n")
	}
	user.WriteString("</context>\n\n<question>\n")
	user.WriteString(escape(query))
	user.WriteString("\n</question>\n")

	return []domain.Message{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: user.String()},
	}, nil
}

func escape(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(strings.TrimSpace(value))
}
