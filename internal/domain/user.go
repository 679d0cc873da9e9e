package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxUsernameLen = 27
	MaxAboutLen    = 500
)

// User is the local projection of an identity-provider account.
type User struct {
	ID        string    `json:"uid"`
	Username  string    `json:"username"`
	About     string    `json:"about"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxUsernameLen {
		return "", ErrValidationMeta("invalid username", map[string]string{
			"username": "must be 1-27 characters",
		})
	}
	return name, nil
}

func NormalizeAbout(raw string) (string, error) {
	about := strings.TrimSpace(raw)
	if utf8.RuneCountInString(about) > MaxAboutLen {
		return "", ErrValidationMeta("invalid about", map[string]string{
			"about": "must be <= 500 characters",
		})
	}
	return about, nil
}
