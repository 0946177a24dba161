package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/cronboard/internal/domain"
)

func newTestCodec(t *testing.T, now time.Time) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("test-secret"))
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func sampleSession(now time.Time) domain.Session {
	return domain.NewSession(domain.User{
		ID:        "github_42",
		Name:      "octocat",
		Email:     "octo@example.com",
		AvatarURL: "https://avatars.example.com/42",
		Origin:    domain.OriginExternalOAuth,
	}, "gho_token", now)
}

func TestNewCodec_RejectsEmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)

	sessions := map[string]domain.Session{
		"oauth with token": sampleSession(now),
		"credentials without token": domain.NewSession(domain.User{
			ID:     "7",
			Name:   "Test User",
			Email:  "test@example.com",
			Origin: domain.OriginCredentials,
		}, "", now),
	}

	for name, want := range sessions {
		t.Run(name, func(t *testing.T) {
			value, err := codec.Encode(want)
			require.NoError(t, err)

			got, err := codec.Decode(value)
			require.NoError(t, err)

			assert.Equal(t, want.User, got.User)
			assert.Equal(t, want.AccessToken, got.AccessToken)
			assert.True(t, want.Expires.Equal(got.Expires), "expires %v != %v", want.Expires, got.Expires)
		})
	}
}

func TestCodec_EncodeRejectsIncompleteSession(t *testing.T) {
	codec := newTestCodec(t, time.Now())

	_, err := codec.Encode(domain.Session{Expires: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = codec.Encode(domain.Session{User: domain.User{ID: "1"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCodec_DecodeFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)

	valid, err := codec.Encode(sampleSession(now))
	require.NoError(t, err)

	other, err := NewCodec([]byte("another-secret"))
	require.NoError(t, err)
	other.now = codec.now
	foreign, err := other.Encode(sampleSession(now))
	require.NoError(t, err)

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		User: domain.User{ID: "1"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	unsigned, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	cases := map[string]string{
		"empty":           "",
		"plain json":      `{"user":{"id":"1"}}`,
		"garbage":         "not-a-token",
		"wrong secret":    foreign,
		"alg none":        unsigned,
		"tampered claims": tampered,
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(value)
			assert.ErrorIs(t, err, domain.ErrMalformedSession)
		})
	}
}

func TestCodec_DecodeExpired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, issued)

	value, err := codec.Encode(sampleSession(issued))
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(domain.SessionTTL + time.Minute) }

	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, domain.ErrMalformedSession)
}
