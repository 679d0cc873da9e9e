package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type HS256Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

type Option func(*HS256Verifier)

// WithIssuer enforces an exact iss match.
func WithIssuer(iss string) Option {
	return func(v *HS256Verifier) { v.issuer = strings.TrimSpace(iss) }
}

func WithLeeway(d time.Duration) Option {
	return func(v *HS256Verifier) { v.leeway = d }
}

func NewHS256Verifier(secret string, opts ...Option) *HS256Verifier {
	v := &HS256Verifier{secret: []byte(secret)}
	for _, o := range opts {
		o(v)
	}
	return v
}

type tokenClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Ver    int64  `json:"ver"`
	jwt.RegisteredClaims
}

func (v *HS256Verifier) VerifyAccessToken(raw string) (AccessClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, ErrTokenInvalid
	}

	c, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(c.UserID) == "" {
		return AccessClaims{}, ErrTokenInvalid
	}

	out := AccessClaims{
		UserID:  strings.TrimSpace(c.UserID),
		Role:    strings.TrimSpace(c.Role),
		Ver:     c.Ver,
		Issuer:  c.Issuer,
		Subject: c.Subject,
	}
	if c.ExpiresAt != nil {
		out.Exp = c.ExpiresAt.Time
	}
	return out, nil
}
