package extract

import (
	"strings"

	"decklens/internal/core"
	"decklens/internal/taxonomy"
)

// BuildSystemPrompt composes the fixed extraction instruction: the exact
// output schema, the closed industry taxonomy, and formatting rules that keep
// every field a plain string.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a venture analyst extracting facts from a startup pitch deck. Return ONLY a JSON object with exactly these keys: " + strings.Join(core.FieldNames, ", ") + ".",
		"Every value MUST be a string. If a value is not stated in the deck, use an empty string. Never use null and never omit a key.",
		"For 'industry', return a 'Primary;Sub-industry' pair. The primary MUST be exactly one of: " + taxonomy.PromptList() + ". If uncertain, use 'Other'.",
		"For 'key_team_members', list each member as 'Name | Role | Employer' and join entries with '; '. Leave Employer blank if unknown, keeping both separators.",
		"For 'market_size', 'revenue', 'valuation', and 'funding_sought', copy the figure as written on the deck, including currency and unit (e.g. '$4.5B', '€2M ARR').",
		"For 'country', use the company's headquarters country in English.",
		"Extract literally. Do not infer figures that are not on the slides, and do not add commentary around the JSON.",
	}
	return strings.Join(parts, " ")
}
