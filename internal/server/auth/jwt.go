// Package auth signs and validates access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/server/models"
)

// Claims are the registered claims carried by an access token:
// sub (user id), aud, exp, iat, jti and iss.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 access tokens for one issuer.
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secretKey []byte, issuer string) *Signer {
	return &Signer{key: secretKey, issuer: issuer, now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

// Sign builds the access token for userID scoped to audience.
func (s *Signer) Sign(userID, audience, id string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        id,
			Issuer:    s.issuer,
		},
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the asserted claims.
// Errors are common.ErrExpiredToken, common.ErrInvalidSignature or
// common.ErrInvalidToken.
func (s *Signer) Parse(tokenString string) (models.AccessClaims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.AccessClaims{}, common.ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return models.AccessClaims{}, common.ErrInvalidSignature
	default:
		return models.AccessClaims{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" || len(claims.Audience) != 1 {
		return models.AccessClaims{}, common.ErrInvalidToken
	}

	return models.AccessClaims{
		UserID:   claims.Subject,
		Audience: claims.Audience[0],
		ID:       claims.ID,
	}, nil
}
