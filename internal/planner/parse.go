package planner

import (
	"regexp"
	"strings"
)

// The model's structured output protocol uses XML-like tags. The
// legacy line-prefix form (判断:/答案:) predates the tags and is parsed
// only as a fallback.
//
// Deprecated: the line-prefix protocol is kept for older prompt
// versions and will be removed once no deployed prompts emit it.

// noneToken marks an intentionally empty tag value.
const noneToken = "无"

var tagPattern = regexp.MustCompile(`(?s)<(\w+)>(.*?)</\w+>`)

// extractTags returns the contents of every occurrence of <name>...</name>.
func extractTags(text, name string) []string {
	var out []string
	for _, match := range tagPattern.FindAllStringSubmatch(text, -1) {
		if match[1] != name {
			continue
		}
		value := strings.TrimSpace(match[2])
		if value == "" || value == noneToken {
			continue
		}
		out = append(out, value)
	}
	return out
}

// extractTag returns the first occurrence of a tag, or "".
func extractTag(text, name string) string {
	values := extractTags(text, name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// splitList splits a semicolon-separated tag value into items.
// Both ASCII and fullwidth semicolons separate items.
func splitList(value string) []string {
	if value == "" || value == noneToken {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == '；'
	}) {
		part = strings.TrimSpace(part)
		if part == "" || part == noneToken {
			continue
		}
		out = append(out, part)
	}
	return out
}

// parseDecomposition extracts subqueries and links from model output.
// Output without any recognized tags yields an empty decomposition;
// the caller falls back to researching the original query directly.
func parseDecomposition(text string) Decomposition {
	return Decomposition{
		Subqueries: extractTags(text, "subquery"),
		Links:      extractTags(text, "link"),
	}
}

// affirmative reports whether a judgment value means "yes".
func affirmative(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "是", "yes", "true":
		return true
	}
	return false
}

// parseReflection extracts the convergence judgment and its
// companions. Tagged output is canonical; when no <judgment> tag is
// present the deprecated line-prefix protocol is tried.
func parseReflection(text string) Reflection {
	if judgment := extractTag(text, "judgment"); judgment != "" {
		return Reflection{
			Converged:   affirmative(judgment),
			Answer:      extractTag(text, "answer"),
			Reasoning:   extractTag(text, "reasoning"),
			Citations:   splitList(extractTag(text, "citations")),
			Suggestions: splitList(extractTag(text, "suggestions")),
		}
	}
	return parseLegacyReflection(text)
}

// legacyField maps a line prefix of the deprecated protocol to its
// canonical field name, or "" when the prefix is unknown.
func legacyField(key string) string {
	switch key {
	case "判断", "judgment":
		return "judgment"
	case "答案", "answer":
		return "answer"
	case "理由", "reasoning":
		return "reasoning"
	case "引用", "citations":
		return "citations"
	case "建议", "suggestions":
		return "suggestions"
	}
	return ""
}

// parseLegacyReflection handles the deprecated "判断: 是" line format.
func parseLegacyReflection(text string) Reflection {
	var r Reflection
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		colon := strings.IndexAny(line, ":：")
		if colon < 0 {
			continue
		}
		field := legacyField(strings.ToLower(strings.TrimSpace(line[:colon])))
		if field == "" {
			continue
		}
		value := strings.TrimSpace(strings.TrimLeft(line[colon:], ":： "))
		if value == "" || value == noneToken {
			continue
		}
		switch field {
		case "judgment":
			r.Converged = affirmative(value)
		case "answer":
			r.Answer = value
		case "reasoning":
			r.Reasoning = value
		case "citations":
			r.Citations = splitList(value)
		case "suggestions":
			r.Suggestions = splitList(value)
		}
	}
	return r
}
