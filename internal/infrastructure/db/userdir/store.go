package userdir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/application/user"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store is the local projection of the identity provider's users.
type Store struct {
	db *sql.DB
}

var (
	_ user.Store        = (*Store)(nil)
	_ app.UserDirectory = (*Store)(nil)
)

func New(db *sql.DB) *Store { return &Store{db: db} }

// Open connects through lib/pq and fails fast when the server is unreachable.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty user directory DSN")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(60 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const createUsersSQL = `
CREATE TABLE IF NOT EXISTS users (
  uid        text PRIMARY KEY,
  username   text NOT NULL,
  about      text NOT NULL DEFAULT '',
  image_url  text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL,
  CONSTRAINT users_username_key UNIQUE (username)
)`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createUsersSQL)
	return err
}

const userColumns = `uid, username, about, image_url, created_at, updated_at`

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.About, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("user not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrDuplicate("username already exists")
	}
	return domain.ErrTransient(err)
}

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid = $1`, uid))
}

// UpsertUser keeps whichever record carries the later updated_at. The stored
// created_at is never overwritten.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (uid, username, about, image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (uid) DO UPDATE
SET username = EXCLUDED.username,
    about = EXCLUDED.about,
    image_url = EXCLUDED.image_url,
    updated_at = EXCLUDED.updated_at
WHERE users.updated_at <= EXCLUDED.updated_at`,
		u.ID, u.Username, u.About, u.ImageURL, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) UpdateUsername(ctx context.Context, uid, username string, at time.Time) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
UPDATE users
SET username = $2, updated_at = $3
WHERE uid = $1
RETURNING `+userColumns, uid, username, at))
}

func (s *Store) UpdateAbout(ctx context.Context, uid, about string, at time.Time) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
UPDATE users
SET about = $2, updated_at = $3
WHERE uid = $1
RETURNING `+userColumns, uid, about, at))
}
