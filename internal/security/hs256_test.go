package security_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jd52dev/excursion/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func baseClaims(exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"uid":  "6f1d2c1e-1111-4e59-8c1e-0d3f2a9b7c11",
		"role": "user",
		"ver":  3,
		"iss":  "identity",
		"iat":  time.Now().Unix(),
		"exp":  exp.Unix(),
	}
}

func TestHS256Verifier(t *testing.T) {
	secret := []byte("supersecret")
	v := security.NewHS256Verifier(string(secret), security.WithIssuer("identity"))

	t.Run("valid_token", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, secret, baseClaims(time.Now().Add(time.Hour)))
		c, err := v.VerifyAccessToken(tok)
		require.NoError(t, err)
		assert.Equal(t, "6f1d2c1e-1111-4e59-8c1e-0d3f2a9b7c11", c.UserID)
		assert.Equal(t, "user", c.Role)
		assert.Equal(t, int64(3), c.Ver)
	})

	t.Run("expired_token", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, secret, baseClaims(time.Now().Add(-time.Minute)))
		_, err := v.VerifyAccessToken(tok)
		assert.ErrorIs(t, err, security.ErrTokenExpired)
	})

	t.Run("wrong_signature", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("other"), baseClaims(time.Now().Add(time.Hour)))
		_, err := v.VerifyAccessToken(tok)
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		c := baseClaims(time.Now().Add(time.Hour))
		c["iss"] = "someone-else"
		_, err := v.VerifyAccessToken(sign(t, jwt.SigningMethodHS256, secret, c))
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("missing_uid", func(t *testing.T) {
		c := baseClaims(time.Now().Add(time.Hour))
		delete(c, "uid")
		_, err := v.VerifyAccessToken(sign(t, jwt.SigningMethodHS256, secret, c))
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("wrong_algorithm", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS512, secret, baseClaims(time.Now().Add(time.Hour)))
		_, err := v.VerifyAccessToken(tok)
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := v.VerifyAccessToken("not.a.jwt")
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})
}
