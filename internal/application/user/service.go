package user

import (
	"context"
	"strings"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
)

type Service struct {
	store Store
	clock Clock
}

func New(store Store, clock Clock) *Service {
	return &Service{store: store, clock: clock}
}

func (s *Service) Get(ctx context.Context, uid string) (*domain.User, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, domain.ErrValidation("uid is required")
	}
	return s.store.GetUser(ctx, uid)
}

func (s *Service) UpdateUsername(ctx context.Context, uid, raw string) (*domain.User, error) {
	name, err := domain.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.store.UpdateUsername(ctx, uid, name, s.clock.Now().UTC())
	if err != nil {
		if domain.IsCode(err, domain.CodeDuplicate) {
			return nil, domain.ErrDuplicate("username already exists")
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateAbout(ctx context.Context, uid, raw string) (*domain.User, error) {
	about, err := domain.NormalizeAbout(raw)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateAbout(ctx, uid, about, s.clock.Now().UTC())
}

// IdentityUser is the user payload of identity-provider events.
type IdentityUser struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	About      string    `json:"about,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sync projects an identity-provider record into the directory.
// Older records never overwrite newer ones.
func (s *Service) Sync(ctx context.Context, in IdentityUser) error {
	uid := strings.TrimSpace(in.UserID)
	if uid == "" {
		return domain.ErrValidation("user_id is required")
	}
	name, err := domain.NormalizeUsername(in.Username)
	if err != nil {
		return err
	}
	about, err := domain.NormalizeAbout(in.About)
	if err != nil {
		return err
	}

	at := in.OccurredAt.UTC()
	if at.IsZero() {
		at = s.clock.Now().UTC()
	}
	return s.store.UpsertUser(ctx, domain.User{
		ID:        uid,
		Username:  name,
		About:     about,
		ImageURL:  strings.TrimSpace(in.ImageURL),
		CreatedAt: at,
		UpdatedAt: at,
	})
}
