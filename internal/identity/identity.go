// Package identity turns bearer tokens into user ids.
//
// Tokens are HS256 JWTs signed with identity.jwt_secret; the subject claim is
// the user id. Account management lives elsewhere: this package only
// verifies and, for operator tooling, mints tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pagepass/internal/config"
	"pagepass/internal/faults"
	"pagepass/internal/reqctx"
)

var (
	// ErrMissingToken means the request carried no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken means the token failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator verifies tokens.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator from the [identity] section.
func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.Identity.JWTSecret),
		issuer: cfg.Identity.JWTIssuer,
		now:    time.Now,
	}
}

// UserFromToken returns the subject of a valid token.
func (a *Authenticator) UserFromToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// user id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, `{"error":{"kind":"not_authorized","message":"missing bearer token"}}`, http.StatusUnauthorized)
			return
		}
		userID, err := a.UserFromToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, `{"error":{"kind":"not_authorized","message":"invalid or expired token"}}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(reqctx.WithUserID(r.Context(), userID)))
	})
}

// CurrentUser returns the authenticated user of ctx.
func CurrentUser(ctx context.Context) (string, error) {
	userID, ok := reqctx.UserIDFromContext(ctx)
	if !ok {
		return "", faults.Wrap(faults.ErrNotAuthorized, "identity", "no signed-in user")
	}
	return userID, nil
}

// Issuer mints tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer from the [identity] section.
func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		secret: []byte(cfg.Identity.JWTSecret),
		issuer: cfg.Identity.JWTIssuer,
		ttl:    cfg.TokenTTL(),
		now:    time.Now,
	}
}

// Mint signs a token for userID. A non-positive ttl uses the configured TTL.
func (i *Issuer) Mint(userID string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", faults.Wrap(faults.ErrInvalidArgument, "mint token", "user id is required")
	}
	if ttl <= 0 {
		ttl = i.ttl
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
