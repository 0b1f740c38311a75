package utils

import (
	"errors"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

// SessionIssuer is the issuer the auth service stamps on session tokens.
const SessionIssuer = "scheduling-engine"

var errNoOwner = errors.New("token carries no owner")

// OwnerFromToken verifies an HS256 session token and returns the owner it was
// issued for. The owner_id claim wins over sub. Tokens without an expiry are rejected.
func OwnerFromToken(secretKey, tokenString string) (string, error) {
	claims := &transfer.SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(SessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	owner := claims.OwnerID
	if owner == "" {
		owner = claims.Subject
	}
	if owner == "" {
		return "", errNoOwner
	}
	return owner, nil
}
