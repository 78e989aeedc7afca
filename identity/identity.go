// Package identity resolves the caller of an operation. An external
// identity provider issues HS256 tokens whose subject is the stable user id;
// Verifier turns a token back into a User.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jacentio/conference/apperr"
)

// User is an authenticated caller.
type User struct {
	ID       string
	Email    string
	Nickname string
}

type claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
}

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("identity: invalid or expired token")

// Issuer signs user tokens with HS256.
type Issuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer whose tokens expire after expiry.
func NewIssuer(secret string, expiry time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Issue returns a signed token for u.
func (i *Issuer) Issue(u User) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
		Email:    u.Email,
		Nickname: u.Nickname,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks HS256 user tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses token and returns its user. A token without a subject is
// invalid.
func (v *Verifier) Verify(token string) (User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	nickname := c.Nickname
	if nickname == "" {
		nickname = c.Email
	}
	return User{ID: c.Subject, Email: c.Email, Nickname: nickname}, nil
}

type contextKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user carried by ctx, if any.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok && u.ID != ""
}

// Require returns the caller of ctx or an AuthorizationError.
func Require(ctx context.Context) (User, error) {
	u, ok := FromContext(ctx)
	if !ok {
		return User{}, apperr.Authorization("Authorization required")
	}
	return u, nil
}

// Authenticate verifies token and returns ctx carrying its user. Any
// verification failure is an AuthorizationError.
func (v *Verifier) Authenticate(ctx context.Context, token string) (context.Context, error) {
	if token == "" {
		return ctx, apperr.Authorization("Authorization required")
	}
	u, err := v.Verify(token)
	if err != nil {
		return ctx, apperr.Authorization(err.Error())
	}
	return WithUser(ctx, u), nil
}
