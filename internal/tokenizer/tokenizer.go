// Package tokenizer splits free text into the lowercase word tokens used for
// keyword scoring, match highlighting and the hashed fallback embedding.
package tokenizer

import (
	"regexp"
	"strings"
)

// MinTokenLength is the shortest token kept.
const MinTokenLength = 3

// nonWord matches anything that is neither an ASCII word character nor whitespace.
var nonWord = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases text, replaces punctuation with spaces, splits on
// whitespace and drops tokens shorter than MinTokenLength.
func Tokenize(text string) []string {
	fields := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " "))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= MinTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Set returns the tokens of text as a membership set.
func Set(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
