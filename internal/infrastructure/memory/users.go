package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
)

// Users is an in-memory user directory.
type Users struct {
	mu   sync.RWMutex
	byID map[string]domain.User
}

func NewUsers(seed ...domain.User) *Users {
	u := &Users{byID: map[string]domain.User{}}
	for _, s := range seed {
		u.byID[s.ID] = s
	}
	return u
}

func (u *Users) GetUser(_ context.Context, uid string) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	got, ok := u.byID[uid]
	if !ok {
		return nil, domain.ErrNotFound("user not found")
	}
	return &got, nil
}

func (u *Users) usernameTaken(uid, name string) bool {
	for id, other := range u.byID {
		if id != uid && other.Username == name {
			return true
		}
	}
	return false
}

func (u *Users) UpsertUser(_ context.Context, in domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.usernameTaken(in.ID, in.Username) {
		return domain.ErrDuplicate("username already exists")
	}
	if cur, ok := u.byID[in.ID]; ok {
		if cur.UpdatedAt.After(in.UpdatedAt) {
			return nil
		}
		in.CreatedAt = cur.CreatedAt
	}
	u.byID[in.ID] = in
	return nil
}

func (u *Users) UpdateUsername(_ context.Context, uid, username string, at time.Time) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cur, ok := u.byID[uid]
	if !ok {
		return nil, domain.ErrNotFound("user not found")
	}
	if u.usernameTaken(uid, username) {
		return nil, domain.ErrDuplicate("username already exists")
	}
	cur.Username = username
	cur.UpdatedAt = at
	u.byID[uid] = cur
	return &cur, nil
}

func (u *Users) UpdateAbout(_ context.Context, uid, about string, at time.Time) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cur, ok := u.byID[uid]
	if !ok {
		return nil, domain.ErrNotFound("user not found")
	}
	cur.About = about
	cur.UpdatedAt = at
	u.byID[uid] = cur
	return &cur, nil
}
