package tokenizer

import (
	"reflect"
	"regexp"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: []string{}},
		{name: "whitespace only", input: " \t\n ", want: []string{}},
		{name: "drops short tokens", input: "Hi there, World!!", want: []string{"there", "world"}},
		{name: "punctuation splits words", input: "install-the_cli.tool", want: []string{"install", "the_cli", "tool"}},
		{name: "digits are word characters", input: "v1.0.0 http2 404", want: []string{"http2", "404"}},
		{name: "non-ascii letters become separators", input: "café résumé", want: []string{"caf", "sum"}},
		{name: "mixed case", input: "GraphQL API Reference", want: []string{"graphql", "api", "reference"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenize_TokenShape(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9_]{3,}$`)
	inputs := []string{
		"The Quick Brown Fox!",
		"  multiple   spaces\tand\nnewlines ",
		"emoji 🚀 rocket; semicolons; and (parens)",
		"ÀÉÎÕÜ uppercase accents",
		"a b c dd eee ffff",
	}

	for _, input := range inputs {
		for _, tok := range Tokenize(input) {
			if !valid.MatchString(tok) {
				t.Errorf("Tokenize(%q) produced invalid token %q", input, tok)
			}
		}
	}
}

func TestSet(t *testing.T) {
	set := Set("Setup the setup Guide")
	if len(set) != 3 {
		t.Fatalf("Expected 3 distinct tokens, got %d: %v", len(set), set)
	}
	for _, want := range []string{"setup", "the", "guide"} {
		if _, ok := set[want]; !ok {
			t.Errorf("Expected %q in set", want)
		}
	}
}
