package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidIDToken indicates the upstream identity token failed verification.
	ErrInvalidIDToken = errors.New("invalid identity token")
	// ErrExpiredIDToken indicates the upstream identity token has expired.
	ErrExpiredIDToken = errors.New("identity token expired")
)

// IdentityClaims is the subset of upstream identity-provider claims the
// session core consumes. The provider owns authentication; this service only
// needs the authenticated principal and the provider's own session handle.
type IdentityClaims struct {
	UserID            string
	ExternalSessionID string
	ExpiresAt         time.Time
}

// IDTokenVerifier validates tokens minted by the upstream identity provider.
// Token issuance, refresh, and key rotation live with the provider; the
// verifier only checks signature, issuer, and lifetime.
type IDTokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewIDTokenVerifier constructs a verifier for the shared-secret scheme the
// identity provider signs with.
func NewIDTokenVerifier(secret, issuer string) (*IDTokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("identity token secret is required")
	}
	return &IDTokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 30 * time.Second,
	}, nil
}

type idTokenClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token, returning the identity claims.
func (v *IDTokenVerifier) Verify(tokenString string) (*IdentityClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidIDToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredIDToken
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidIDToken, err)
	}

	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidIDToken
	}

	identity := &IdentityClaims{
		UserID:            claims.Subject,
		ExternalSessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return identity, nil
}
