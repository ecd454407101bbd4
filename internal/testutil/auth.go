package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// MintTestToken creates an API token in the database and returns the raw
// token string for use in Authorization headers. The secret is hashed with
// bcrypt.MinCost to keep test setup fast; verification works the same way
// since the cost is embedded in the hash.
func MintTestToken(ctx context.Context, db bun.IDB, name string, scopes []string) (string, error) {
	raw, tokenID, secret, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	_, err = db.NewRaw(`
		INSERT INTO engine.api_tokens (id, token_id, secret_hash, name, scopes, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())
	`, uuid.NewString(), tokenID, string(hash), name, pgdialect.Array(scopes)).Exec(ctx)
	if err != nil {
		return "", err
	}

	return raw, nil
}

// MintExpiredToken creates a token whose expires_at is in the past.
func MintExpiredToken(ctx context.Context, db bun.IDB, name string) (string, error) {
	raw, tokenID, secret, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	_, err = db.NewRaw(`
		INSERT INTO engine.api_tokens (id, token_id, secret_hash, name, scopes, created_at, expires_at)
		VALUES (?, ?, ?, ?, '{}', NOW(), NOW() - INTERVAL '1 hour')
	`, uuid.NewString(), tokenID, string(hash), name).Exec(ctx)
	if err != nil {
		return "", err
	}

	return raw, nil
}

// MintRevokedToken creates a token with revoked_at set.
func MintRevokedToken(ctx context.Context, db bun.IDB, name string) (string, error) {
	raw, tokenID, secret, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	_, err = db.NewRaw(`
		INSERT INTO engine.api_tokens (id, token_id, secret_hash, name, scopes, created_at, revoked_at)
		VALUES (?, ?, ?, ?, '{}', NOW(), NOW())
	`, uuid.NewString(), tokenID, string(hash), name).Exec(ctx)
	if err != nil {
		return "", err
	}

	return raw, nil
}

// AuthHeader returns an Authorization header value for a token
func AuthHeader(token string) string {
	return "Bearer " + token
}

// TestNode represents a graph node fixture
type TestNode struct {
	ID             string
	Type           string
	Name           string
	Description    string
	IntentKeywords []string
	Namespace      string
}

// CreateTestNode inserts a node into engine.nodes
func CreateTestNode(ctx context.Context, db bun.IDB, node TestNode) error {
	namespace := node.Namespace
	if namespace == "" {
		namespace = "default"
	}

	_, err := db.NewRaw(`
		INSERT INTO engine.nodes (id, type, name, description, intent_keywords, namespace, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			intent_keywords = EXCLUDED.intent_keywords,
			updated_at = NOW()
	`, node.ID, node.Type, node.Name, node.Description, pgdialect.Array(node.IntentKeywords), namespace).Exec(ctx)

	return err
}

// TestEdge represents a graph edge fixture
type TestEdge struct {
	FromID string
	ToID   string
	Type   string
	Weight float64
}

// CreateTestEdge inserts an edge into engine.edges
func CreateTestEdge(ctx context.Context, db bun.IDB, edge TestEdge) error {
	weight := edge.Weight
	if weight == 0 {
		weight = 1.0
	}

	_, err := db.NewRaw(`
		INSERT INTO engine.edges (from_id, to_id, type, weight, created_at)
		VALUES (?, ?, ?, ?, NOW())
		ON CONFLICT (from_id, to_id, type) DO UPDATE SET
			weight = EXCLUDED.weight
	`, edge.FromID, edge.ToID, edge.Type, weight).Exec(ctx)

	return err
}

// SeedToolGraph inserts a small cross-stack fixture graph used by e2e tests:
//
//	git_commit --produces--> commit_object --stored_in--> object_store
//	ci_runner  --reads-----> commit_object
//
// Node IDs are namespace-prefixed the way the ingest pipeline writes them.
func SeedToolGraph(ctx context.Context, db bun.IDB) error {
	nodes := []TestNode{
		{ID: "git:commit", Type: "command", Name: "git commit", Description: "Record changes to the repository", IntentKeywords: []string{"save changes", "record history"}, Namespace: "git"},
		{ID: "git:commit_object", Type: "resource", Name: "commit object", Description: "Immutable snapshot of the tree", Namespace: "git"},
		{ID: "git:object_store", Type: "resource", Name: "object store", Description: "Content addressed storage under .git/objects", Namespace: "git"},
		{ID: "ci:runner", Type: "service", Name: "ci runner", Description: "Executes pipelines on new commits", IntentKeywords: []string{"run tests"}, Namespace: "ci"},
	}
	for _, n := range nodes {
		if err := CreateTestNode(ctx, db, n); err != nil {
			return err
		}
	}

	edges := []TestEdge{
		{FromID: "git:commit", ToID: "git:commit_object", Type: "produces"},
		{FromID: "git:commit_object", ToID: "git:object_store", Type: "stored_in"},
		{FromID: "ci:runner", ToID: "git:commit_object", Type: "reads"},
	}
	for _, e := range edges {
		if err := CreateTestEdge(ctx, db, e); err != nil {
			return err
		}
	}

	return nil
}

// TimePtr is a helper to create a pointer to a time.Time
func TimePtr(t time.Time) *time.Time {
	return &t
}

// StringPtr is a helper to create a pointer to a string
func StringPtr(s string) *string {
	return &s
}
