package tags

import "strings"

// Normalize splits a raw comma-separated string into lower-cased, trimmed,
// non-empty tokens, deduplicated while preserving first-seen order.
func Normalize(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Canonicalize lower-cases, trims and rejoins a comma-separated string,
// dropping empty tokens but keeping duplicates. This is the manual-entry
// path: unlike Normalize it intentionally does not deduplicate.
func Canonicalize(raw string) string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok == "" {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, ",")
}

// Join joins tokens back into the stored comma-separated form.
func Join(tokens []string) string {
	return strings.Join(tokens, ",")
}

// Contains reports case-insensitive membership of tag in tokens.
func Contains(tokens []string, tag string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
