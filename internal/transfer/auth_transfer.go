package transfer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims of a session token minted by the auth service.
type SessionClaims struct {
	OwnerID string `json:"owner_id,omitempty"`
	jwt.RegisteredClaims
}
