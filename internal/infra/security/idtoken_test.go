package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testTokenSecret = "test-secret-test-secret-test-secret"

func signIDToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestIDTokenVerifier_ValidToken(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	tokenString := signIDToken(t, testTokenSecret, jwt.SigningMethodHS256, idTokenClaims{
		SessionID: "ext-sess-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "auto-author-idp",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	claims, err := verifier.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
	if claims.ExternalSessionID != "ext-sess-1" {
		t.Fatalf("unexpected external session id: %s", claims.ExternalSessionID)
	}
	if !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expiry: %v", claims.ExpiresAt)
	}
}

func TestIDTokenVerifier_ExpiredToken(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	tokenString := signIDToken(t, testTokenSecret, jwt.SigningMethodHS256, idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "auto-author-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenString); !errors.Is(err, ErrExpiredIDToken) {
		t.Fatalf("expected ErrExpiredIDToken, got %v", err)
	}
}

func TestIDTokenVerifier_WrongSecret(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	tokenString := signIDToken(t, "another-secret-entirely-here", jwt.SigningMethodHS256, idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "auto-author-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenString); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestIDTokenVerifier_WrongIssuer(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	tokenString := signIDToken(t, testTokenSecret, jwt.SigningMethodHS256, idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenString); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestIDTokenVerifier_MissingSubject(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	tokenString := signIDToken(t, testTokenSecret, jwt.SigningMethodHS256, idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "auto-author-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenString); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestIDTokenVerifier_MissingExpiry(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	tokenString := signIDToken(t, testTokenSecret, jwt.SigningMethodHS256, idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-1",
			Issuer:  "auto-author-idp",
		},
	})

	if _, err := verifier.Verify(tokenString); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestIDTokenVerifier_EmptyToken(t *testing.T) {
	verifier, err := NewIDTokenVerifier(testTokenSecret, "auto-author-idp")
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}

	if _, err := verifier.Verify("  "); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestNewIDTokenVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewIDTokenVerifier("", "issuer"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
