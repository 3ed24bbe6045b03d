// Package auth issues and verifies session credentials: HS256 access tokens
// and opaque refresh tokens. It also carries the verified Identity through
// request contexts.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTTL = 15 * time.Minute

	// refreshTokenBytes is the entropy of an opaque refresh token (256 bits).
	refreshTokenBytes = 32
)

// Claims is the access token payload: sub, iat and exp from the registered
// claims plus the login name and role names.
type Claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Identity is what a verified access token says about its bearer.
type Identity struct {
	ID    string
	Name  string
	Roles []string
}

// Issuer signs and verifies access tokens. It is immutable after
// construction and safe for concurrent use.
type Issuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret []byte, accessTTL time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty signing secret", common.ErrConfiguration)
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}

	i := &Issuer{
		secret:    append([]byte(nil), secret...),
		accessTTL: accessTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccess returns a signed HS256 token for the identity.
func (i *Issuer) IssueAccess(id, name string, roles []string) (string, error) {
	now := i.now()
	if roles == nil {
		roles = []string{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		Name:  name,
		Roles: roles,
	})

	return token.SignedString(i.secret)
}

// Verify checks signature, algorithm, structure and expiry. Every failure
// is reported as common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &Identity{ID: claims.Subject, Name: claims.Name, Roles: claims.Roles}, nil
}

// IssueOpaqueRefresh returns a new random refresh token, hex encoded.
func (i *Issuer) IssueOpaqueRefresh() (string, error) {
	return common.MakeRandHexString(refreshTokenBytes)
}
