package auth

import "time"

// RoleAdmin is the only role a token can carry today.
const RoleAdmin = "admin"

// AdminClaims are the claims inside an admin token. v4.local tokens are
// encrypted, so none of this is readable without the key.
type AdminClaims struct {
	Role string `json:"role"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IsAdmin reports whether the claims grant admin access.
func (c *AdminClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
