package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ignite/mailroom/internal/domain"
)

// sessionClaims is the payload of the signed session cookie.
type sessionClaims struct {
	Username string            `json:"username"`
	Role     domain.Role       `json:"role"`
	Source   domain.AuthSource `json:"src"`
	jwt.RegisteredClaims
}

func (m *Manager) issue(id domain.Identity) (string, error) {
	now := m.now()
	claims := sessionClaims{
		Username: id.Username,
		Role:     id.Role,
		Source:   id.AuthSource,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AppUserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.SessionTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(raw string) (domain.Identity, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return domain.Identity{}, err
	}
	if claims.Subject == "" || claims.Username == "" || claims.Source == "" {
		return domain.Identity{}, errors.New("session is missing identity claims")
	}
	return domain.Identity{
		AppUserID:  claims.Subject,
		Username:   claims.Username,
		Role:       domain.ParseRole(string(claims.Role)),
		AuthSource: claims.Source,
	}, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by the session middleware.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}

// sessionTTLDefault is the session lifetime when none is configured.
const sessionTTLDefault = 4 * time.Hour
