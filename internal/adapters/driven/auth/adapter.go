package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

const defaultTokenTTL = 12 * time.Hour

// Claims identifies an authenticated dashboard client.
type Claims struct {
	ClientID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// jwtClaims wraps Claims for JWT compatibility
type jwtClaims struct {
	jwt.RegisteredClaims
}

// Adapter issues and validates the bearer tokens dashboard instances use
// against the cache API. Signing is HS256 with a shared secret.
type Adapter struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAdapter creates a new auth adapter with the given signing secret.
func NewAdapter(secret string) *Adapter {
	return &Adapter{
		secret:   []byte(secret),
		tokenTTL: defaultTokenTTL,
	}
}

// NewAdapterWithTTL creates a new auth adapter with a custom token lifetime.
func NewAdapterWithTTL(secret string, ttl time.Duration) *Adapter {
	return &Adapter{
		secret:   []byte(secret),
		tokenTTL: ttl,
	}
}

// GenerateToken creates a signed JWT for a dashboard client.
func (a *Adapter) GenerateToken(clientID string) (string, error) {
	now := time.Now()
	jc := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	return token.SignedString(a.secret)
}

// ParseToken validates a JWT and extracts client claims.
func (a *Adapter) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	out := &Claims{ClientID: claims.Subject}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
