package domain

import (
	"fmt"
	"time"
)

// AuthConfig is the identity and endpoint configuration resolved once at startup.
// It is passed by value and never mutated after validation.
type AuthConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Endpoint is the normalised service root, always ending in "/".
	Endpoint string
	Product  Product
	AuthType AuthType
	// TokenURL overrides the token endpoint (ADFS).
	TokenURL string
	// Resource overrides the audience derived from Endpoint.
	Resource string
}

// String describes the configuration without the client secret.
func (c AuthConfig) String() string {
	return fmt.Sprintf("AuthConfig(product=%s, auth=%s, endpoint=%s, tenant=%s, client=%s)",
		c.Product, c.AuthType, c.Endpoint, c.TenantID, c.ClientID)
}

// Token is a bearer access token with an absolute expiry.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// ValidAt reports whether the token can be handed out at now, keeping margin
// in reserve before the server-reported expiry.
func (t *Token) ValidAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.After(now.Add(margin))
}

// AuthorizationHeader returns the value for the Authorization header.
func (t *Token) AuthorizationHeader() string {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + t.AccessToken
}
