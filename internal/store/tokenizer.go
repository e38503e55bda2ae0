package store

import (
	"regexp"
	"strings"
	"unicode"
)

// identifierRegex matches alphanumeric runs (including underscores), the
// unit TokenizeCode splits further into camelCase/snake_case sub-tokens.
var identifierRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeCode splits source text into lowercase keyword-search tokens.
// It handles camelCase, PascalCase and snake_case identifiers and drops
// anything shorter than minLen once split. Used both for BM25 rescoring
// (§4.4.4) and as the analyzer bleve registers under CodeTokenizerName.
func TokenizeCode(text string, minLen int) []string {
	var tokens []string

	for _, word := range identifierRegex.FindAllString(text, -1) {
		for _, t := range splitIdentifier(word) {
			lower := strings.ToLower(t)
			if len(lower) >= minLen {
				tokens = append(tokens, lower)
			}
		}
	}

	return tokens
}

// splitIdentifier splits a single identifier on underscores, then on
// camelCase/PascalCase boundaries within each underscore-delimited part.
func splitIdentifier(token string) []string {
	if !strings.Contains(token, "_") {
		return splitCamelCase(token)
	}

	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, splitCamelCase(part)...)
		}
	}
	return result
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping
// acronym runs together.
//
//	"getUserById"      -> ["get", "User", "By", "Id"]
//	"HTTPHandler"       -> ["HTTP", "Handler"]
//	"parseHTTPRequest"  -> ["parse", "HTTP", "Request"]
func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// A boundary exists on either side of an acronym run, so split
			// when the previous rune is lowercase (end of a word) or the
			// next one is (start of a trailing word after an acronym).
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// filterStopWords removes stop words from a token list, comparing
// case-insensitively but preserving the original casing of survivors.
func filterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// buildStopWordSet lowercases a stop word list into a lookup set.
func buildStopWordSet(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
