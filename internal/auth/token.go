package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"liveclass-service/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carry the identity issued by the external credential service.
// Users and passwords live outside this system; the HS256 secret is the
// only shared trust anchor.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
	jwt.RegisteredClaims
}

// Sign issues an HS256 bearer token for an identity.
func Sign(secret string, identity domain.Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth secret not configured")
	}
	now := time.Now()
	claims := Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Staff:    identity.Staff,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates a bearer token and returns the identity it carries.
func Parse(secret, raw string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Staff:    claims.Staff,
	}, nil
}
