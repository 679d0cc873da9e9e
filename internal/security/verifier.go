package security

import (
	"errors"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims is what the identity provider puts into an access token.
type AccessClaims struct {
	UserID  string
	Role    string
	Ver     int64
	Issuer  string
	Subject string
	Exp     time.Time
}

type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (AccessClaims, error)
}
