package translator

import (
	"fmt"
	"strings"

	"github.com/leonardotrapani/interpret/internal/language"
)

// BuildSystemPrompt generates the system prompt for meeting interpretation.
func BuildSystemPrompt(src, dst string, keywords []string) string {
	from := "the detected language"
	if src != "" {
		from = language.FromCode(src).Name
	}
	to := language.FromCode(dst).Name

	prompt := fmt.Sprintf("You are a live meeting interpreter. Translate the user's utterance from %s into %s.\n\n", from, to)
	prompt += "Rules:\n"
	prompt += "- Preserve the original meaning and tone\n"
	prompt += "- Keep names, numbers and product terms intact\n"
	prompt += "- Do not add explanations or notes\n"
	prompt += "- Output ONLY the translated text, nothing else\n"
	prompt += "- If the input is empty or nonsensical, return it as-is\n"

	if len(keywords) > 0 {
		prompt += fmt.Sprintf("\nContext keywords (keep these terms as written): %s\n", strings.Join(keywords, ", "))
	}

	return prompt
}
