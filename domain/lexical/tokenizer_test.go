package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits on punctuation",
			text: "Git-Commit_Object",
			want: []string{"git", "commit", "object"},
		},
		{
			name: "drops articles and question words",
			text: "What is the status of a rebase?",
			want: []string{"status", "rebase"},
		},
		{
			name: "drops modals and auxiliaries",
			text: "how can changes be undone",
			want: []string{"changes", "undone"},
		},
		{
			name: "keeps conjunctions",
			text: "staged and unstaged, or neither",
			want: []string{"staged", "and", "unstaged", "or", "neither"},
		},
		{
			name: "keeps digits",
			text: "HTTP 404 from the origin",
			want: []string{"http", "404", "origin"},
		},
		{
			name: "all stopwords",
			text: "what is it for",
			want: []string{},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestIsStopword(t *testing.T) {
	assert.True(t, IsStopword("the"))
	assert.True(t, IsStopword("would"))
	assert.False(t, IsStopword("and"))
	assert.False(t, IsStopword("not"))
	assert.False(t, IsStopword("commit"))
}

func TestEscapeReserved(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "quotes bare uppercase operators",
			query: "staged AND unstaged",
			want:  `staged "AND" unstaged`,
		},
		{
			name:  "quotes every operator kind",
			query: "AND OR NOT NEAR",
			want:  `"AND" "OR" "NOT" "NEAR"`,
		},
		{
			name:  "leaves lowercase forms alone",
			query: "rock and roll",
			want:  "rock and roll",
		},
		{
			name:  "leaves mixed case alone",
			query: "And then Not now",
			want:  "And then Not now",
		},
		{
			name:  "untouched query returned verbatim",
			query: "  spacing   preserved  ",
			want:  "  spacing   preserved  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeReserved(tt.query))
		})
	}
}

func TestLexQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []queryToken
	}{
		{
			name:  "bare uppercase words become operators",
			query: "read AND write",
			want: []queryToken{
				{text: "read"},
				{text: "AND", operator: true},
				{text: "write"},
			},
		},
		{
			name:  "quoted segments are literal and stopword exempt",
			query: `"the" reset`,
			want: []queryToken{
				{text: "the", quoted: true},
				{text: "reset"},
			},
		},
		{
			name:  "quoted operator is a plain term",
			query: `undo "AND" redo`,
			want: []queryToken{
				{text: "undo"},
				{text: "and", quoted: true},
				{text: "redo"},
			},
		},
		{
			name:  "unquoted stopwords are dropped",
			query: "where is the remote",
			want: []queryToken{
				{text: "remote"},
			},
		},
		{
			name:  "unterminated quote keeps the remainder literal",
			query: `read "file system`,
			want: []queryToken{
				{text: "read"},
				{text: "file", quoted: true},
				{text: "system", quoted: true},
			},
		},
		{
			name:  "multi word quote splits into terms",
			query: `"merge conflict" resolution`,
			want: []queryToken{
				{text: "merge", quoted: true},
				{text: "conflict", quoted: true},
				{text: "resolution"},
			},
		},
		{
			name:  "blank query",
			query: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lexQuery(tt.query))
		})
	}
}
