package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenPrefix identifies Meridian API tokens
	TokenPrefix = "mrk_"
	// TokenIDBytes is the number of random bytes in the lookup ID
	TokenIDBytes = 6
	// TokenSecretBytes is the number of random bytes in the secret
	TokenSecretBytes = 24
)

// GenerateToken mints a new API token.
//
// Format: mrk_<token_id>_<secret> where token_id (12 hex chars) is stored in
// plaintext for lookup and secret (48 hex chars) is verified against the
// stored bcrypt hash. Only the raw token is ever shown to the caller, and
// only once, at creation time.
func GenerateToken() (raw, tokenID, secret string, err error) {
	idBytes := make([]byte, TokenIDBytes)
	if _, err := rand.Read(idBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate token id: %w", err)
	}
	secretBytes := make([]byte, TokenSecretBytes)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate token secret: %w", err)
	}

	tokenID = hex.EncodeToString(idBytes)
	secret = hex.EncodeToString(secretBytes)
	raw = TokenPrefix + tokenID + "_" + secret
	return raw, tokenID, secret, nil
}

// HashSecret creates a bcrypt hash of the token secret for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret checks if the provided secret matches the stored hash.
func VerifySecret(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}

// ParseToken splits a raw token into its lookup ID and secret.
func ParseToken(raw string) (tokenID, secret string, err error) {
	if !strings.HasPrefix(raw, TokenPrefix) {
		return "", "", errors.New("token missing mrk_ prefix")
	}

	rest := strings.TrimPrefix(raw, TokenPrefix)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("malformed token")
	}

	return parts[0], parts[1], nil
}
