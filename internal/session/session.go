// Package session carries the caller's bearer token from the HTTP layer to
// the services that forward it to the billing API.
package session

import (
	"context"
	"fmt"

	"github.com/brightline/classledger/internal/service"
	"github.com/golang-jwt/jwt/v4"
)

type ctxKey struct{}

// WithToken stores the raw bearer token on the context. The auth middleware
// calls this after verifying the signature.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

// Token returns the raw bearer token, or "".
func Token(ctx context.Context) string {
	tok, _ := ctx.Value(ctxKey{}).(string)
	return tok
}

// Provider implements service.SessionProvider over the request context.
type Provider struct {
	secret []byte
}

var _ service.SessionProvider = (*Provider)(nil)

func NewProvider(secret string) *Provider {
	return &Provider{secret: []byte(secret)}
}

// Current returns the caller's session if a valid, unexpired token is on the
// context.
func (p *Provider) Current(ctx context.Context) (*service.Session, error) {
	raw := Token(ctx)
	if raw == "" {
		return nil, service.ErrNotAuthenticated
	}
	if err := p.Validate(raw); err != nil {
		return nil, service.ErrNotAuthenticated
	}
	return &service.Session{AccessToken: raw}, nil
}

// Validate checks the token signature and registered claims (expiry
// included).
func (p *Provider) Validate(raw string) error {
	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	return nil
}
