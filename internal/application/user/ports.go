package user

import (
	"context"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
)

type Clock interface {
	Now() time.Time
}

// Store is the local user directory.
type Store interface {
	GetUser(ctx context.Context, uid string) (*domain.User, error)
	// UpsertUser keeps the newer of the stored and the incoming record by UpdatedAt.
	UpsertUser(ctx context.Context, u domain.User) error
	// UpdateUsername fails with a duplicate error when the name is taken.
	UpdateUsername(ctx context.Context, uid, username string, at time.Time) (*domain.User, error)
	UpdateAbout(ctx context.Context, uid, about string, at time.Time) (*domain.User, error)
}
