package auth

import (
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	raw, tokenID, secret, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(raw, TokenPrefix) {
		t.Errorf("raw token %q missing prefix %q", raw, TokenPrefix)
	}
	if len(tokenID) != TokenIDBytes*2 {
		t.Errorf("tokenID length = %d, want %d", len(tokenID), TokenIDBytes*2)
	}
	if len(secret) != TokenSecretBytes*2 {
		t.Errorf("secret length = %d, want %d", len(secret), TokenSecretBytes*2)
	}
	if raw != TokenPrefix+tokenID+"_"+secret {
		t.Errorf("raw token %q does not match its parts", raw)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		raw, _, _, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if seen[raw] {
			t.Fatalf("duplicate token generated: %q", raw)
		}
		seen[raw] = true
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantTokenID string
		wantSecret  string
		wantErr     bool
	}{
		{
			name:        "valid token",
			raw:         "mrk_a1b2c3d4e5f6_0123456789abcdef",
			wantTokenID: "a1b2c3d4e5f6",
			wantSecret:  "0123456789abcdef",
		},
		{
			name:    "missing prefix",
			raw:     "a1b2c3d4e5f6_0123456789abcdef",
			wantErr: true,
		},
		{
			name:    "wrong prefix",
			raw:     "emt_a1b2c3d4e5f6_0123456789abcdef",
			wantErr: true,
		},
		{
			name:    "no separator between id and secret",
			raw:     "mrk_a1b2c3d4e5f6",
			wantErr: true,
		},
		{
			name:    "empty token id",
			raw:     "mrk__0123456789abcdef",
			wantErr: true,
		},
		{
			name:    "empty secret",
			raw:     "mrk_a1b2c3d4e5f6_",
			wantErr: true,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "prefix only",
			raw:     "mrk_",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenID, secret, err := ParseToken(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseToken(%q) error = nil, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseToken(%q) error = %v", tt.raw, err)
			}
			if tokenID != tt.wantTokenID {
				t.Errorf("tokenID = %q, want %q", tokenID, tt.wantTokenID)
			}
			if secret != tt.wantSecret {
				t.Errorf("secret = %q, want %q", secret, tt.wantSecret)
			}
		})
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	raw, wantID, wantSecret, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	gotID, gotSecret, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if gotID != wantID {
		t.Errorf("tokenID = %q, want %q", gotID, wantID)
	}
	if gotSecret != wantSecret {
		t.Errorf("secret = %q, want %q", gotSecret, wantSecret)
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("correct-secret")
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}

	if hash == "correct-secret" {
		t.Error("hash should not equal the plaintext secret")
	}

	if !VerifySecret("correct-secret", hash) {
		t.Error("VerifySecret() = false for matching secret, want true")
	}
	if VerifySecret("wrong-secret", hash) {
		t.Error("VerifySecret() = true for wrong secret, want false")
	}
	if VerifySecret("correct-secret", "not-a-bcrypt-hash") {
		t.Error("VerifySecret() = true for garbage hash, want false")
	}
}
