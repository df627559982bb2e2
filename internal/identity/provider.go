package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "clinic"

type Claims struct {
	Anonymous bool `json:"anon"`
	jwt.RegisteredClaims
}

// Issuer mints and checks identity tokens.
type Issuer interface {
	Issue() (Identity, error)
	Verify(token string) (Identity, error)
}

type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewProvider(secret string, ttl time.Duration) *Provider {
	return &Provider{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue provisions a fresh anonymous identity.
func (p *Provider) Issue() (Identity, error) {
	if len(p.secret) == 0 {
		return Identity{}, errors.New("identity signing secret is not configured")
	}

	now := p.now()
	subject := uuid.NewString()
	claims := Claims{
		Anonymous: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to sign identity token: %w", err)
	}

	return Identity{Subject: subject, Token: token, Anonymous: true}, nil
}

func (p *Provider) Verify(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Identity{Subject: claims.Subject, Token: tokenStr, Anonymous: claims.Anonymous}, nil
}
