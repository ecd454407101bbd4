// Package embeddings provides embedding generation functionality.
package embeddings

import (
	"context"
)

// Client provides embedding generation functionality
type Client interface {
	// EmbedQuery generates an embedding vector for the given query text
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedDocuments generates embedding vectors for the given documents
	EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error)
}

// QualityClass describes what a provider's vectors are good for. The query
// engine selects its default fusion profile from this: semantic vectors get
// the vector-dominant profile, deterministic ones the lexical-dominant one.
type QualityClass string

const (
	// QualitySemantic marks providers whose vectors capture meaning
	// (Gemini, Vertex AI)
	QualitySemantic QualityClass = "semantic"

	// QualityDeterministic marks the hash provider: stable and always
	// available, but only token overlap, no semantics
	QualityDeterministic QualityClass = "deterministic"
)
