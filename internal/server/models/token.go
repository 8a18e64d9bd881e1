package models

import "time"

// TokenPair is one issued session: a signed access token and the refresh
// credential that can renew it. TokenID is the durable handle used for
// rotation and revocation.
//
// RefreshToken holds the opaque client value when returned from issuance and
// the stored digest of its secret when loaded from the database.
type TokenPair struct {
	TokenID          string
	AccessToken      string
	RefreshToken     string
	UserID           string
	Audience         string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
}

// AccessClaims is what a validated access token asserts.
type AccessClaims struct {
	UserID   string
	Audience string
	ID       string
}
