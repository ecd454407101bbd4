// Package hash provides a deterministic embedding client with no network
// dependency. Vectors are produced by feature hashing: each token is hashed
// with FNV-64a into one of 256 dimensions with a hash-derived sign, then the
// vector is L2-normalized. The same text always yields the same vector, on
// any machine, which makes it the fallback provider and the one used in
// tests and air-gapped deployments.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// Provider is the provider namespace written to embedding rows
	Provider = "hash-256"

	// Dimension of produced vectors
	Dimension = 256
)

// Client is a deterministic hash-based embeddings client
type Client struct{}

// NewClient creates a new hash embeddings client
func NewClient() *Client {
	return &Client{}
}

// ProviderName returns the provider namespace for stored embeddings
func (c *Client) ProviderName() string {
	return Provider
}

// EmbedQuery generates an embedding for a single query
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return Embed(query), nil
}

// EmbedDocuments generates embeddings for multiple documents
func (c *Client) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	embeddings := make([][]float32, len(documents))
	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = Embed(doc)
	}
	return embeddings, nil
}

// Embed produces the L2-normalized hash vector for a text. Exported so
// callers that need a vector outside the Client interface (tests, seeds)
// can get one without a context.
func Embed(text string) []float32 {
	vec := make([]float32, Dimension)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % Dimension)
		if (sum>>32)&1 == 1 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
