// Command create-token mints an API token and stores its bcrypt hash.
// The raw token is printed once and cannot be recovered afterwards.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/auth"
)

func main() {
	var (
		name    string
		scopes  string
		expires time.Duration
	)

	flag.StringVar(&name, "name", "", "Human-readable token name (required)")
	flag.StringVar(&scopes, "scopes", strings.Join(auth.GetAllScopes(), ","),
		"Comma-separated scopes to grant")
	flag.DurationVar(&expires, "expires", 0, "Token lifetime (e.g. 720h). Zero means no expiry")
	flag.Parse()

	if name == "" {
		fmt.Fprintln(os.Stderr, "Usage: create-token -name <name> [-scopes query:read,graph:read] [-expires 720h]")
		os.Exit(1)
	}

	granted := splitScopes(scopes)
	if err := validateScopes(granted); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	raw, tokenID, secret, err := auth.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashSecret(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing token secret: %v\n", err)
		os.Exit(1)
	}

	var expiresAt *time.Time
	if expires > 0 {
		t := time.Now().Add(expires)
		expiresAt = &t
	}

	ctx := context.Background()
	_, err = db.NewInsert().
		TableExpr("engine.api_tokens").
		Value("token_id", "?", tokenID).
		Value("secret_hash", "?", hash).
		Value("name", "?", name).
		Value("scopes", "?", pgdialect.Array(granted)).
		Value("expires_at", "?", expiresAt).
		Exec(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error storing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token created: %s\n", name)
	fmt.Printf("Scopes:        %s\n", strings.Join(granted, ", "))
	if expiresAt != nil {
		fmt.Printf("Expires:       %s\n", expiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("Save this token now. It will not be shown again.")
	fmt.Println()
	fmt.Println(raw)
}

func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return fmt.Errorf("at least one scope is required")
	}
	known := make(map[string]bool)
	for _, s := range auth.GetAllScopes() {
		known[s] = true
	}
	for _, s := range scopes {
		if !known[s] {
			return fmt.Errorf("unknown scope %q (valid: %s)", s, strings.Join(auth.GetAllScopes(), ", "))
		}
	}
	return nil
}
