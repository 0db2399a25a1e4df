package httpbridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "sqlbridge"

// BridgeClaims are the claims carried by a bridge bearer token.
type BridgeClaims struct {
	// Client names the application holding the token. It is logged with
	// every command.
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for client, valid for ttl.
func IssueToken(secret []byte, client string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("httpbridge: empty signing secret")
	}
	now := time.Now()
	claims := BridgeClaims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   client,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("httpbridge: failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token signed by IssueToken and returns its claims.
func ParseToken(secret []byte, token string) (*BridgeClaims, error) {
	claims := &BridgeClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
