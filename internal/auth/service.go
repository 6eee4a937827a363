// Package auth issues and validates the access tokens carried by operator
// requests. Tokens are HS256 JWTs scoped to the tenant they were issued for.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/ateliemoda/backend-atelie/internal/common"
)

// Service signs and parses access tokens.
type Service struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueAccessToken signs a token for the user within a tenant.
func (s *Service) IssueAccessToken(userID, tenantID string) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("auth: signing secret not configured")
	}
	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := s.now()
	tok, err := jwt.NewBuilder().
		Issuer(s.Issuer).
		Subject(userID).
		Claim("tenant_id", tenantID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// ParseAccessToken verifies the signature and claims and returns the subject
// and the tenant the token was issued for.
func (s *Service) ParseAccessToken(raw string) (userID, tenantID string, err error) {
	if len(s.Secret) == 0 {
		return "", "", errors.New("auth: signing secret not configured")
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.Issuer))
	}
	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return "", "", common.NewAppError("TOKEN_INVALID", "token is invalid or expired", http.StatusUnauthorized, err)
	}
	userID = tok.Subject()
	if claim, ok := tok.Get("tenant_id"); ok {
		tenantID, _ = claim.(string)
	}
	if userID == "" {
		return "", "", common.NewAppError("TOKEN_INVALID", "token has no subject", http.StatusUnauthorized, nil)
	}
	return userID, tenantID, nil
}

// HashPassword produces an argon2id hash for storage.
func HashPassword(plain string) (string, error) {
	return argon2id.CreateHash(plain, argon2id.DefaultParams)
}

// VerifyPassword reports whether plain matches the stored hash.
func VerifyPassword(plain, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(plain, hash)
}
