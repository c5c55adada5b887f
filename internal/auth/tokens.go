package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens. Logged-out token ids go to the
// revocation list, in memory unless WithRevocations shares it.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationList
	now     func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: NewMemoryRevocations(),
		now:     time.Now,
	}
}

// WithRevocations replaces the revocation list and returns t.
func (t *TokenIssuer) WithRevocations(list RevocationList) *TokenIssuer {
	if list != nil {
		t.revoked = list
	}
	return t
}

func (t *TokenIssuer) Issue(user models.User) (*Session, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: signed, ExpiresAt: expiresAt}, nil
}

func (t *TokenIssuer) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrUnauthenticated
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	revoked, err := t.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Revoke invalidates a token. Unknown or already invalid tokens are ignored.
func (t *TokenIssuer) Revoke(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := t.Verify(ctx, tokenStr)
	if errors.Is(err, ErrUnauthenticated) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ttl := claims.ExpiresAt.Time.Sub(t.now())
	if ttl <= 0 {
		return claims, nil
	}
	if err := t.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return nil, fmt.Errorf("revoke token: %w", err)
	}
	return claims, nil
}
