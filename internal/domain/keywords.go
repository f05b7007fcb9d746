package domain

import "strings"

// CleanKeywords trims keywords, drops blanks and case-insensitive duplicates.
// First occurrence wins and order is preserved.
func CleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		lk := strings.ToLower(k)
		if _, dup := seen[lk]; dup {
			continue
		}
		seen[lk] = struct{}{}
		out = append(out, k)
	}
	return out
}

// EmbeddingText renders the canonical text sent to the embedding provider.
func EmbeddingText(title, description string, keywords []string) string {
	var b strings.Builder
	b.WriteString("TITLE: ")
	b.WriteString(title)
	b.WriteString("\nDESCRIPTION: ")
	b.WriteString(description)
	b.WriteString("\nKEYWORDS: ")
	b.WriteString(strings.Join(keywords, ", "))
	return b.String()
}
