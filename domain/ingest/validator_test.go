package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAcceptsWellFormedBatch(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	req, err := v.Validate([]byte(`{
		"nodes": [
			{"id": "git:reset", "type": "tool", "name": "git reset",
			 "description": "move HEAD", "intent_keywords": ["undo last commit"],
			 "metadata": {"stack": "git"}, "namespace": "manpages"}
		],
		"edges": [
			{"from_id": "git:commit", "to_id": "git:reset", "type": "enables", "weight": 0.8}
		]
	}`))
	require.NoError(t, err)

	require.Len(t, req.Nodes, 1)
	assert.Equal(t, "git:reset", req.Nodes[0].ID)
	require.Len(t, req.Edges, 1)
	assert.Equal(t, 0.8, req.Edges[0].Weight)
}

func TestValidatorRejectsMissingRequiredFields(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"nodes": [{"id": "x", "type": "tool"}]}`))
	assert.Error(t, err)

	_, err = v.Validate([]byte(`{"edges": [{"from_id": "a", "to_id": "b"}]}`))
	assert.Error(t, err)
}

func TestValidatorRejectsUnknownFields(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"nodes": [{"id": "x", "type": "tool", "name": "x", "bogus": 1}]}`))
	assert.Error(t, err)
}

func TestValidatorRejectsMalformedJSON(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"nodes": [`))
	assert.Error(t, err)
}

func TestNodeRecordDefaults(t *testing.T) {
	node := NodeRecord{ID: "a", Type: "tool", Name: "a"}.toModel()
	assert.Equal(t, "default", node.Namespace)
	assert.NotNil(t, node.IntentKeywords)
	assert.NotNil(t, node.Metadata)
}

func TestEdgeRecordDefaultsWeight(t *testing.T) {
	edge := EdgeRecord{FromID: "a", ToID: "b", Type: "t"}.toModel()
	assert.Equal(t, 1.0, edge.Weight)
}
