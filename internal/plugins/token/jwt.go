package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

const DefaultTTL = time.Hour

// ErrRevoked is returned by Verify for tokens on the denylist.
var ErrRevoked = errors.New("token revoked")

// Claims are the registered claims plus the principal's display fields.
type Claims struct {
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// Denylist records revoked token ids until they expire.
type Denylist interface {
	Revoke(ctx context.Context, jti, subject string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticator verifies HS256 tokens and mints them.
type Authenticator struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	now      func() time.Time
	denylist Denylist
	log      logr.Logger
}

var _ authn.AuthenticatorPlugin = (*Authenticator)(nil)

type Option func(*Authenticator)

func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func WithDenylist(d Denylist) Option {
	return func(a *Authenticator) { a.denylist = d }
}

func WithLogger(l logr.Logger) Option {
	return func(a *Authenticator) { a.log = l }
}

// NewAuthenticator returns an authenticator for tokens signed with secret and
// issued by issuer.
func NewAuthenticator(secret, issuer string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	a := &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue mints a token for info. info.ID must be the id local to the
// authentication scope that will verify the token.
func (a *Authenticator) Issue(info *authn.PrincipalInfo, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = a.ttl
	}
	now := a.now()
	claims := Claims{
		Name:              info.Title,
		PreferredUsername: info.Login,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   info.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, including the denylist.
func (a *Authenticator) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token verification failed: missing subject")
	}
	if a.denylist != nil && claims.ID != "" {
		revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke puts a valid token on the denylist.
func (a *Authenticator) Revoke(ctx context.Context, tokenString string) error {
	if a.denylist == nil {
		return fmt.Errorf("revoke token: no denylist configured")
	}
	claims, err := a.Verify(ctx, tokenString)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return fmt.Errorf("revoke token: missing jti")
	}
	return a.denylist.Revoke(ctx, claims.ID, claims.Subject, claims.ExpiresAt.Time)
}

// AuthenticateCredentials accepts bearer tokens only.
func (a *Authenticator) AuthenticateCredentials(ctx context.Context, creds authn.Credentials) *authn.PrincipalInfo {
	tok, ok := creds.(authn.BearerToken)
	if !ok {
		return nil
	}
	claims, err := a.Verify(ctx, string(tok))
	if err != nil {
		a.log.V(1).Info("bearer token rejected", "error", err.Error())
		return nil
	}
	return authn.NewPrincipalInfo(claims.Subject, claims.PreferredUsername, claims.Name, "")
}

// PrincipalInfo returns nil; tokens cannot be looked up by id.
func (a *Authenticator) PrincipalInfo(context.Context, string) *authn.PrincipalInfo {
	return nil
}
