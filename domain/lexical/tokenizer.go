package lexical

import (
	"strings"
	"unicode"
)

// stopwords are dropped during tokenization: articles, prepositions,
// question words, modals and common auxiliaries. Conjunctions (and, or,
// not, near) are deliberately absent so reserved operator tokens can still
// be matched literally once escaped.
var stopwords = map[string]struct{}{
	// articles
	"a": {}, "an": {}, "the": {},
	// prepositions
	"in": {}, "on": {}, "at": {}, "to": {}, "from": {}, "by": {}, "of": {},
	"for": {}, "with": {}, "about": {}, "into": {}, "onto": {}, "over": {},
	"under": {}, "between": {}, "through": {}, "during": {}, "before": {},
	"after": {}, "above": {}, "below": {}, "up": {}, "down": {}, "out": {},
	"off": {},
	// question words
	"what": {}, "which": {}, "who": {}, "whom": {}, "whose": {}, "where": {},
	"when": {}, "why": {}, "how": {},
	// modals
	"can": {}, "could": {}, "may": {}, "might": {}, "must": {}, "shall": {},
	"should": {}, "will": {}, "would": {},
	// auxiliaries and filler
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "do": {}, "does": {}, "did": {}, "has": {}, "have": {},
	"had": {}, "it": {}, "this": {}, "that": {},
}

// reserved are the boolean operator tokens of the query language. They are
// only operators in their bare uppercase form.
var reserved = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "NEAR": {},
}

// IsStopword reports whether a lowercased token is filtered out.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize splits text on word boundaries, lowercases and drops stopwords.
// Unfiltered natural language ranks poorly against a literal-match index
// because stopwords dominate token overlap, so every indexing and search
// path goes through here.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if IsStopword(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// EscapeReserved quotes bare uppercase operator tokens so they match
// literally instead of being parsed as boolean logic. Natural-language
// queries are always escaped before parsing; only deliberately constructed
// boolean queries skip this step.
func EscapeReserved(query string) string {
	fields := strings.Fields(query)
	changed := false
	for i, f := range fields {
		if _, ok := reserved[f]; ok {
			fields[i] = `"` + f + `"`
			changed = true
		}
	}
	if !changed {
		return query
	}
	return strings.Join(fields, " ")
}

// queryToken is one lexed element of a query string.
type queryToken struct {
	text     string
	operator bool
	quoted   bool
}

// lexQuery splits a query into terms and operators. Double-quoted segments
// become literal terms exempt from stopword filtering; bare uppercase
// AND/OR/NOT/NEAR become operators; everything else tokenizes normally.
func lexQuery(query string) []queryToken {
	var tokens []queryToken

	rest := query
	for rest != "" {
		rest = strings.TrimLeft(rest, " \t\n")
		if rest == "" {
			break
		}

		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				// Unterminated quote: treat the remainder as literal text.
				for _, term := range splitWords(rest[1:]) {
					tokens = append(tokens, queryToken{text: term, quoted: true})
				}
				break
			}
			for _, term := range splitWords(rest[1 : end+1]) {
				tokens = append(tokens, queryToken{text: term, quoted: true})
			}
			rest = rest[end+2:]
			continue
		}

		cut := strings.IndexAny(rest, " \t\n\"")
		word := rest
		if cut >= 0 {
			word = rest[:cut]
			rest = rest[cut:]
		} else {
			rest = ""
		}

		if _, ok := reserved[word]; ok {
			tokens = append(tokens, queryToken{text: word, operator: true})
			continue
		}
		for _, term := range Tokenize(word) {
			tokens = append(tokens, queryToken{text: term})
		}
	}

	return tokens
}

// splitWords lowercases and splits on word boundaries without stopword
// filtering, for quoted literals.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
