package lexical

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ai/meridian/pkg/apperror"
)

func booleanFixture() *Index {
	return buildIndex(
		Document{NodeID: "n1", Seq: 1, Description: "apple banana"},
		Document{NodeID: "n2", Seq: 2, Description: "apple cherry"},
		Document{NodeID: "n3", Seq: 3, Description: "banana cherry"},
	)
}

func TestSearchBoolean_Operators(t *testing.T) {
	idx := booleanFixture()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "AND intersects",
			query: "apple AND banana",
			want:  []string{"n1"},
		},
		{
			name:  "OR unions",
			query: "apple OR banana",
			want:  []string{"n1", "n2", "n3"},
		},
		{
			name:  "NOT subtracts the right side",
			query: "apple NOT banana",
			want:  []string{"n2"},
		},
		{
			name:  "NOT can empty the result",
			query: "apple NOT apple",
			want:  []string{},
		},
		{
			name:  "NOT binds tighter than OR",
			query: "apple OR banana NOT banana",
			want:  []string{"n1", "n2"},
		},
		{
			name:  "chained AND",
			query: "apple AND banana AND cherry",
			want:  []string{},
		},
		{
			name:  "quoted operator is a literal term",
			query: `apple "AND" banana`,
			want:  []string{"n1", "n2", "n3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := idx.SearchBoolean(tt.query, 10)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, resultIDs(results))
		})
	}
}

func TestSearchBoolean_NearRanksLikeAnd(t *testing.T) {
	idx := booleanFixture()

	near, err := idx.SearchBoolean("apple NEAR banana", 10)
	require.NoError(t, err)
	and, err := idx.SearchBoolean("apple AND banana", 10)
	require.NoError(t, err)

	require.Len(t, near, 1)
	require.Len(t, and, 1)
	assert.Equal(t, and[0].NodeID, near[0].NodeID)
	assert.InDelta(t, and[0].Score, near[0].Score, 1e-12)
}

func TestSearchBoolean_OrSumsOverlappingScores(t *testing.T) {
	idx := booleanFixture()

	results, err := idx.SearchBoolean("apple OR banana", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// n1 matches both branches and must outrank single-branch matches.
	assert.Equal(t, "n1", results[0].NodeID)
}

func TestSearchBoolean_MalformedQueries(t *testing.T) {
	idx := booleanFixture()

	tests := []struct {
		name  string
		query string
	}{
		{name: "leading operator", query: "AND apple"},
		{name: "trailing operator", query: "apple AND"},
		{name: "consecutive operators", query: "apple AND OR banana"},
		{name: "lone operator", query: "NOT"},
		{name: "empty query", query: ""},
		{name: "stopwords only", query: "what is the"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := idx.SearchBoolean(tt.query, 10)
			require.Error(t, err)
			assert.Nil(t, results)

			var appErr *apperror.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "query_parse_error", appErr.Code)
		})
	}
}

func TestSearchBoolean_StopwordsDropFromTermGroups(t *testing.T) {
	idx := booleanFixture()

	// "the" vanishes during lexing, leaving a well-formed group on each
	// side of the operator.
	results, err := idx.SearchBoolean("the apple AND the banana", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0].NodeID)
}
