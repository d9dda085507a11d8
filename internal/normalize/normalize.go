// Package normalize turns raw model output into the declared DeckProfile
// shape. Parsing is tolerant: strict JSON first, then a balanced-brace scan
// for JSON embedded in surrounding prose, and finally a degraded payload that
// preserves the raw text. Normalize never fails; the caller always receives a
// complete field set.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"decklens/internal/core"
)

// Status tags how the raw output was parsed.
type Status string

const (
	// StatusOK means the full output parsed as JSON directly.
	StatusOK Status = "ok"
	// StatusDegraded means JSON had to be cut out of surrounding prose.
	StatusDegraded Status = "degraded"
	// StatusFailed means no JSON could be recovered; the profile carries the
	// raw text and a parse-error marker instead.
	StatusFailed Status = "failed"
)

// Outcome is the tagged result of normalizing one model response.
type Outcome struct {
	Status  Status
	Profile core.DeckProfile
}

// Normalize parses raw model output into a DeckProfile. It never returns an
// error: the worst case is a StatusFailed outcome with the raw text preserved
// for manual inspection.
func Normalize(raw string) Outcome {
	text := stripFences(strings.TrimSpace(raw))

	if json.Valid([]byte(text)) && gjson.Parse(text).IsObject() {
		return Outcome{Status: StatusOK, Profile: profileFromJSON(text)}
	}

	if candidate, ok := firstJSONObject(text); ok {
		return Outcome{Status: StatusDegraded, Profile: profileFromJSON(candidate)}
	}

	return Outcome{
		Status: StatusFailed,
		Profile: core.DeckProfile{
			ParseError: "model output was not valid JSON",
			RawText:    raw,
		},
	}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, which chat models frequently wrap JSON in.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// firstJSONObject scans for the first balanced {...} substring that parses as
// a JSON object. The scan respects string literals and escapes so braces
// inside values do not end the match early.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

// profileFromJSON maps a parsed JSON object onto the declared field set.
// Missing fields stay empty strings; non-string shapes are collapsed.
func profileFromJSON(doc string) core.DeckProfile {
	return core.DeckProfile{
		CompanyName:    fieldString(doc, "company_name"),
		Industry:       fieldString(doc, "industry"),
		MarketSize:     fieldString(doc, "market_size"),
		Country:        fieldString(doc, "country"),
		KeyTeamMembers: teamMembersString(doc),
		Revenue:        fieldString(doc, "revenue"),
		Valuation:      fieldString(doc, "valuation"),
		FundingSought:  fieldString(doc, "funding_sought"),
	}
}

// fieldString reads one field as a string, stringifying numbers and booleans
// the model occasionally emits instead.
func fieldString(doc, key string) string {
	v := gjson.Get(doc, key)
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return strings.TrimSpace(v.String())
	default:
		if v.IsObject() || v.IsArray() {
			return strings.TrimSpace(v.Raw)
		}
		return v.String()
	}
}

// teamMembersString collapses the documented string shape and the observed
// list shape into one delimited string. A list of {name, role} objects
// becomes "name (role)" entries joined with ", "; a list of strings is
// joined with "; ".
func teamMembersString(doc string) string {
	v := gjson.Get(doc, "key_team_members")
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	if !v.IsArray() {
		return strings.TrimSpace(v.String())
	}

	var entries []string
	v.ForEach(func(_, member gjson.Result) bool {
		if member.IsObject() {
			name := strings.TrimSpace(member.Get("name").String())
			role := strings.TrimSpace(member.Get("role").String())
			switch {
			case name != "" && role != "":
				entries = append(entries, name+" ("+role+")")
			case name != "":
				entries = append(entries, name)
			case role != "":
				entries = append(entries, role)
			}
			return true
		}
		if s := strings.TrimSpace(member.String()); s != "" {
			entries = append(entries, s)
		}
		return true
	})

	// Object entries read "name (role)" and join with ", "; plain strings
	// keep the storage-side "; " delimiter.
	if len(entries) > 0 && v.Get("0").IsObject() {
		return strings.Join(entries, ", ")
	}
	return strings.Join(entries, "; ")
}
