package hash

import (
	"context"
	"math"
	"testing"
)

func TestEmbed_Deterministic(t *testing.T) {
	a := Embed("record changes to the repository")
	b := Embed("record changes to the repository")

	if len(a) != Dimension {
		t.Fatalf("dimension = %d, want %d", len(a), Dimension)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbed_Normalized(t *testing.T) {
	vec := Embed("git commit object store")

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("norm = %v, want 1.0", norm)
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	vec := Embed("")

	if len(vec) != Dimension {
		t.Fatalf("dimension = %d, want %d", len(vec), Dimension)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("empty text should produce zero vector, got %v at %d", v, i)
		}
	}
}

func TestEmbed_CaseInsensitive(t *testing.T) {
	a := Embed("Git Commit")
	b := Embed("git commit")

	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should be case insensitive")
		}
	}
}

func TestEmbed_DifferentTextsDiffer(t *testing.T) {
	a := Embed("git commit")
	b := Embed("object store")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should produce different vectors")
	}
}

func TestEmbed_SharedTokensCorrelate(t *testing.T) {
	a := Embed("git commit saves changes")
	b := Embed("git commit records history")
	c := Embed("kubernetes pod scheduling")

	related := dot(a, b)
	unrelated := dot(a, c)

	if related <= unrelated {
		t.Errorf("shared-token similarity %v should exceed unrelated %v", related, unrelated)
	}
}

func TestClient_EmbedDocuments(t *testing.T) {
	c := NewClient()

	docs := []string{"first document", "second document", ""}
	embeddings, err := c.EmbedDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(embeddings) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(embeddings))
	}
	for i, e := range embeddings {
		if len(e) != Dimension {
			t.Errorf("embedding %d dimension = %d, want %d", i, len(e), Dimension)
		}
	}
}

func TestClient_EmbedQueryMatchesEmbed(t *testing.T) {
	c := NewClient()

	fromClient, err := c.EmbedQuery(context.Background(), "lookup text")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	direct := Embed("lookup text")

	for i := range direct {
		if fromClient[i] != direct[i] {
			t.Fatal("EmbedQuery should match Embed")
		}
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
