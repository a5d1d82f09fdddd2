package gate

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims carried by operator tokens.
type Claims struct {
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

// TokenVerifier validates signed operator tokens (HS256) and produces
// Principals for the capability gate.
type TokenVerifier struct {
	signingKey []byte
	issuer     string
}

func NewTokenVerifier(signingKey, issuer string) *TokenVerifier {
	return &TokenVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Verify parses and validates a token string into a Principal.
func (v *TokenVerifier) Verify(tokenString string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
		}
		return Principal{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	return Principal{
		Subject:      claims.Subject,
		Capabilities: claims.Capabilities,
	}, nil
}

// Issue signs a token for a subject with the given capabilities. Used by
// operational tooling and tests; the service itself only verifies.
func (v *TokenVerifier) Issue(subject string, capabilities []string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.signingKey)
}
