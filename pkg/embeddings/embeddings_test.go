package embeddings

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/meridian-ai/meridian/pkg/embeddings/hash"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewHashService(t *testing.T) {
	svc := NewHashService(testLogger())

	if svc == nil {
		t.Fatal("NewHashService() returned nil")
	}
	if svc.Provider() != hash.Provider {
		t.Errorf("Provider() = %q, want %q", svc.Provider(), hash.Provider)
	}
	if svc.Quality() != QualityDeterministic {
		t.Errorf("Quality() = %q, want %q", svc.Quality(), QualityDeterministic)
	}
	if svc.IsSemantic() {
		t.Error("IsSemantic() = true, want false")
	}
}

func TestService_EmbedQuery_HashProvider(t *testing.T) {
	svc := NewHashService(testLogger())

	result, err := svc.EmbedQuery(context.Background(), "restore working tree files")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v, want nil", err)
	}
	if len(result) != hash.Dimension {
		t.Errorf("EmbedQuery() returned %d dimensions, want %d", len(result), hash.Dimension)
	}
}

func TestService_EmbedDocuments_HashProvider(t *testing.T) {
	svc := NewHashService(testLogger())

	docs := []string{"record changes to the repository", "list commit history", ""}
	result, err := svc.EmbedDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v, want nil", err)
	}
	if len(result) != len(docs) {
		t.Fatalf("EmbedDocuments() returned %d vectors, want %d", len(result), len(docs))
	}
	for i, vec := range result {
		if len(vec) != hash.Dimension {
			t.Errorf("document %d has %d dimensions, want %d", i, len(vec), hash.Dimension)
		}
	}
}

func TestService_UseRemote(t *testing.T) {
	svc := NewHashService(testLogger())
	svc.useRemote(hash.NewClient(), "text-embedding-004", 300)

	if svc.Provider() != "text-embedding-004" {
		t.Errorf("Provider() = %q, want %q", svc.Provider(), "text-embedding-004")
	}
	if svc.Quality() != QualitySemantic {
		t.Errorf("Quality() = %q, want %q", svc.Quality(), QualitySemantic)
	}
	if !svc.IsSemantic() {
		t.Error("IsSemantic() = false, want true")
	}
	if svc.limiter == nil {
		t.Error("limiter = nil, want configured limiter")
	}
}

func TestService_UseRemote_NoRateLimit(t *testing.T) {
	svc := NewHashService(testLogger())
	svc.useRemote(hash.NewClient(), "text-embedding-004", 0)

	if svc.limiter != nil {
		t.Error("limiter should be nil when requests per minute is zero")
	}
}

func TestQualityClassConstants(t *testing.T) {
	if QualitySemantic != "semantic" {
		t.Errorf("QualitySemantic = %q, want %q", QualitySemantic, "semantic")
	}
	if QualityDeterministic != "deterministic" {
		t.Errorf("QualityDeterministic = %q, want %q", QualityDeterministic, "deterministic")
	}
}
