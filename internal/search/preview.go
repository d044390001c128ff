package search

import (
	"strings"
	"unicode/utf8"

	"github.com/sha1n/mcp-docsearch-server/internal/tokenizer"
)

const (
	// DefaultPreviewLength is the preview window length in characters.
	DefaultPreviewLength = 150

	// previewLeadIn is how many characters of context precede the first match.
	previewLeadIn = 50

	ellipsis = "..."
)

// ExtractPreview returns a snippet of content around the earliest occurrence
// of any query token. Without a match it returns the head of content.
// Lengths and offsets are counted in characters (runes).
func ExtractPreview(content, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultPreviewLength
	}

	runes := []rune(content)
	matchPos := firstMatchOffset(content, tokenizer.Tokenize(query))

	if matchPos < 0 {
		if len(runes) <= maxLength {
			return content
		}
		return string(runes[:maxLength]) + ellipsis
	}

	start := max(0, matchPos-previewLeadIn)
	end := min(len(runes), matchPos+maxLength)

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
	}
	sb.WriteString(string(runes[start:end]))
	if end < len(runes) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

// firstMatchOffset returns the rune offset of the earliest case-insensitive
// occurrence of any token in content, or -1.
func firstMatchOffset(content string, tokens []string) int {
	lower := strings.ToLower(content)
	best := -1
	for _, tok := range tokens {
		if pos := strings.Index(lower, tok); pos >= 0 && (best < 0 || pos < best) {
			best = pos
		}
	}
	if best < 0 {
		return -1
	}
	return utf8.RuneCountInString(lower[:best])
}

// FindMatches returns the query tokens that appear as whole tokens in the
// content or section title, in query order.
func FindMatches(content, sectionTitle, query string) []string {
	contentTokens := tokenizer.Set(content + " " + sectionTitle)
	matches := []string{}
	for _, tok := range tokenizer.Tokenize(query) {
		if _, ok := contentTokens[tok]; ok {
			matches = append(matches, tok)
		}
	}
	return matches
}
