// Package session encodes the dashboard session into a signed cookie value.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sumire/cronboard/internal/domain"
)

const issuer = "cronboard"

type claims struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"accessToken,omitempty"`
	jwt.RegisteredClaims
}

// Codec serializes sessions as HS256-signed JWTs.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a Codec signing with secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

// Encode signs the session into an opaque cookie value.
func (c *Codec) Encode(s domain.Session) (string, error) {
	if s.User.ID == "" {
		return "", fmt.Errorf("encode session: %w: missing user id", domain.ErrInvalidInput)
	}
	if s.Expires.IsZero() {
		return "", fmt.Errorf("encode session: %w: missing expiry", domain.ErrInvalidInput)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		User:        s.User,
		AccessToken: s.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(s.Expires),
		},
	})

	value, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return value, nil
}

// Decode verifies value and returns the session it carries. Every failure
// wraps domain.ErrMalformedSession.
func (c *Codec) Decode(value string) (domain.Session, error) {
	if value == "" {
		return domain.Session{}, fmt.Errorf("%w: empty value", domain.ErrMalformedSession)
	}

	var cl claims
	_, err := jwt.ParseWithClaims(value, &cl, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrMalformedSession, err)
	}

	if cl.User.ID == "" || cl.Subject != cl.User.ID {
		return domain.Session{}, fmt.Errorf("%w: identity mismatch", domain.ErrMalformedSession)
	}

	return domain.Session{
		User:        cl.User,
		AccessToken: cl.AccessToken,
		Expires:     cl.ExpiresAt.Time.UTC(),
	}, nil
}
