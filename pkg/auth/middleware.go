package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// AuthClient represents an authenticated API client
type AuthClient struct {
	// Lookup ID from api_tokens.token_id ("anonymous" when auth is
	// disabled, "static" for the X-API-Key mode)
	TokenID string `json:"tokenId"`

	// Human-readable token name
	Name string `json:"name,omitempty"`

	// Granted scopes from the token record
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the client was granted the given scope.
func (c *AuthClient) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ContextKey for storing the auth client in context
type contextKey string

const ClientContextKey contextKey = "auth_client"

// GetClient retrieves the authenticated client from the Echo context
func GetClient(c echo.Context) *AuthClient {
	if client, ok := c.Get(string(ClientContextKey)).(*AuthClient); ok {
		return client
	}
	return nil
}

// verifyCacheTTL bounds how long a bcrypt verification is remembered.
// A revoked token can keep working for at most this long.
const verifyCacheTTL = 5 * time.Minute

// verifyCacheMaxEntries caps the in-process cache size.
const verifyCacheMaxEntries = 4096

type verifyCacheEntry struct {
	client    AuthClient
	expiresAt time.Time
}

// verifyCache remembers successful token verifications so that the bcrypt
// comparison (tens of milliseconds) is paid once per token per TTL instead
// of on every request. Keys are SHA-256 digests of the raw token.
type verifyCache struct {
	mu      sync.RWMutex
	entries map[string]verifyCacheEntry
}

func newVerifyCache() *verifyCache {
	return &verifyCache{entries: make(map[string]verifyCacheEntry)}
}

func (vc *verifyCache) get(key string) (AuthClient, bool) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	entry, ok := vc.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return AuthClient{}, false
	}
	return entry.client, true
}

func (vc *verifyCache) set(key string, client AuthClient, expiresAt time.Time) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if len(vc.entries) >= verifyCacheMaxEntries {
		now := time.Now()
		for k, e := range vc.entries {
			if now.After(e.expiresAt) {
				delete(vc.entries, k)
			}
		}
		// Still full after dropping expired entries: reset rather than grow
		if len(vc.entries) >= verifyCacheMaxEntries {
			vc.entries = make(map[string]verifyCacheEntry)
		}
	}

	vc.entries[key] = verifyCacheEntry{client: client, expiresAt: expiresAt}
}

func (vc *verifyCache) invalidate(key string) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	delete(vc.entries, key)
}

// Middleware handles authentication for routes
type Middleware struct {
	db    bun.IDB
	cfg   *config.Config
	log   *slog.Logger
	cache *verifyCache
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(db bun.IDB, cfg *config.Config, log *slog.Logger) *Middleware {
	return &Middleware{
		db:    db,
		cfg:   cfg,
		log:   log.With(logger.Scope("auth")),
		cache: newVerifyCache(),
	}
}

// RequireAuth returns middleware that requires authentication
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			client, err := m.authenticate(c)
			if err != nil {
				m.log.Warn("authentication failed", logger.Error(err))
				return m.authError(c, err)
			}

			c.Set(string(ClientContextKey), client)

			return next(c)
		}
	}
}

// RequireScopes returns middleware that requires specific scopes
func (m *Middleware) RequireScopes(scopes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			client := GetClient(c)
			if client == nil {
				return apperror.ErrUnauthorized
			}

			missing := []string{}
			for _, required := range scopes {
				if !client.HasScope(required) {
					missing = append(missing, required)
				}
			}

			if len(missing) > 0 {
				return echo.NewHTTPError(http.StatusForbidden, map[string]any{
					"error": map[string]any{
						"code":    "forbidden",
						"message": "Insufficient permissions",
						"details": map[string]any{
							"missing": missing,
						},
					},
				})
			}

			return next(c)
		}
	}
}

// authenticate extracts and validates the token from the request
func (m *Middleware) authenticate(c echo.Context) (*AuthClient, error) {
	if m.cfg.Auth.Disabled {
		return &AuthClient{TokenID: "anonymous", Scopes: GetAllScopes()}, nil
	}

	if client := m.checkStaticAPIKey(c.Request()); client != nil {
		return client, nil
	}

	token := m.extractToken(c.Request())
	if token == "" {
		return nil, apperror.ErrMissingToken
	}

	return m.validateToken(c.Request().Context(), token)
}

// extractToken extracts the bearer token from request
func (m *Middleware) extractToken(r *http.Request) string {
	// Check Authorization header first
	auth := r.Header.Get("Authorization")
	if auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}

	// Fall back to query parameter (for SSE endpoints)
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}

// checkStaticAPIKey accepts a single pre-shared key via the X-API-Key header.
// Meant for single-operator deployments that don't want token management.
func (m *Middleware) checkStaticAPIKey(r *http.Request) *AuthClient {
	if !m.cfg.Auth.IsConfigured() {
		return nil
	}

	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		return nil
	}

	if apiKey != m.cfg.Auth.APIKey {
		return nil
	}

	return &AuthClient{
		TokenID: "static",
		Name:    "static-api-key",
		Scopes:  GetAllScopes(),
	}
}

// validateToken validates an API token (mrk_* prefix) and returns the client
func (m *Middleware) validateToken(ctx context.Context, raw string) (*AuthClient, error) {
	if !strings.HasPrefix(raw, TokenPrefix) {
		return nil, apperror.ErrInvalidToken
	}

	cacheKey := tokenCacheKey(raw)
	if client, ok := m.cache.get(cacheKey); ok {
		return &client, nil
	}

	tokenID, secret, err := ParseToken(raw)
	if err != nil {
		return nil, apperror.ErrInvalidToken.WithInternal(err)
	}

	var record struct {
		ID         string     `bun:"id"`
		SecretHash string     `bun:"secret_hash"`
		Name       string     `bun:"name"`
		Scopes     []string   `bun:"scopes,array"`
		ExpiresAt  *time.Time `bun:"expires_at"`
	}

	err = m.db.NewSelect().
		TableExpr("engine.api_tokens").
		Column("id", "secret_hash", "name", "scopes", "expires_at").
		Where("token_id = ?", tokenID).
		Where("revoked_at IS NULL").
		Scan(ctx, &record)
	if err != nil {
		return nil, apperror.ErrInvalidToken.WithInternal(err)
	}

	if record.ExpiresAt != nil && record.ExpiresAt.Before(time.Now()) {
		return nil, apperror.ErrTokenExpired
	}

	if !VerifySecret(secret, record.SecretHash) {
		return nil, apperror.ErrInvalidToken
	}

	// Touch last_used_at. This only happens on cache misses, so at most
	// once per token per cache TTL.
	if _, err := m.db.NewUpdate().
		TableExpr("engine.api_tokens").
		Set("last_used_at = NOW()").
		Where("id = ?", record.ID).
		Exec(ctx); err != nil {
		m.log.Debug("failed to update token last_used_at", logger.Error(err))
	}

	client := AuthClient{
		TokenID: tokenID,
		Name:    record.Name,
		Scopes:  record.Scopes,
	}

	cacheExpiry := time.Now().Add(verifyCacheTTL)
	if record.ExpiresAt != nil && record.ExpiresAt.Before(cacheExpiry) {
		cacheExpiry = *record.ExpiresAt
	}
	m.cache.set(cacheKey, client, cacheExpiry)

	return &client, nil
}

// InvalidateToken drops a raw token from the verification cache. Call after
// revoking a token so it stops working immediately in this process.
func (m *Middleware) InvalidateToken(raw string) {
	m.cache.invalidate(tokenCacheKey(raw))
}

func tokenCacheKey(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

// authError returns a formatted authentication error
func (m *Middleware) authError(c echo.Context, err error) error {
	status, body := apperror.ToHTTPError(err)
	return c.JSON(status, body)
}

// Scopes understood by the engine.
const (
	ScopeQueryRead   = "query:read"
	ScopeGraphRead   = "graph:read"
	ScopeIngestWrite = "ingest:write"
	ScopeIndexAdmin  = "index:admin"
)

// GetAllScopes returns all available scopes
func GetAllScopes() []string {
	return []string{
		ScopeQueryRead,
		ScopeGraphRead,
		ScopeIngestWrite,
		ScopeIndexAdmin,
	}
}
