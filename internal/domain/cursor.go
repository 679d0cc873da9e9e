package domain

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// KeysetCursor points after the last row of a page ordered by (created_at DESC, id DESC).
type KeysetCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c KeysetCursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (*KeysetCursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrValidation("invalid cursor")
	}
	ts, id, ok := strings.Cut(string(b), "|")
	if !ok {
		return nil, ErrValidation("invalid cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrValidation("invalid cursor")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrValidation("invalid cursor")
	}
	return &KeysetCursor{CreatedAt: t.UTC(), ID: id}, nil
}

func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultPageLimit
	}
	if n > MaxPageLimit {
		return MaxPageLimit
	}
	return n
}
