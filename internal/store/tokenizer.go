package store

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase search terms. Identifiers are broken
// at snake_case underscores and camelCase humps, and terms shorter than two
// characters are dropped.
func Tokenize(text string) []string {
	var tokens []string
	start := -1
	for i, r := range text {
		word := r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			tokens = appendWord(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = appendWord(tokens, text[start:])
	}
	return tokens
}

func appendWord(tokens []string, word string) []string {
	for _, part := range SplitCamelCase(word) {
		if len(part) >= 2 {
			tokens = append(tokens, strings.ToLower(part))
		}
	}
	return tokens
}

// SplitCamelCase splits camelCase and PascalCase identifiers, keeping
// acronyms together:
//   - "getUserById" -> ["get", "User", "By", "Id"]
//   - "parseHTTPRequest" -> ["parse", "HTTP", "Request"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	runes := []rune(s)
	var parts []string
	from := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
			parts = append(parts, string(runes[from:i]))
			from = i
		}
	}
	return append(parts, string(runes[from:]))
}

// stopWords are dropped from queries only; indexing keeps every term so
// phrase positions stay intact.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "is": {}, "it": {},
}

func queryTerms(query string) []string {
	tokens := Tokenize(query)
	out := tokens[:0]
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}
