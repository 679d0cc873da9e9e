package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct {
	queries
	pool *pgxpool.Pool
}

var _ app.Repo = (*Repo)(nil)

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{queries: queries{q: pool}, pool: pool}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *Repo) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

type queries struct {
	q querier
}

const excursionColumns = `
id, owner_id, title, description, visibility, step_progress,
invitation, location_policy, time_policy, contribution_policy,
created_at, updated_at`

func scanExcursion(row pgx.Row) (*domain.Excursion, error) {
	var (
		e                                       domain.Excursion
		vis                                     string
		progress, inv, loc, timeP, contribution []byte
	)
	if err := row.Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Description, &vis, &progress,
		&inv, &loc, &timeP, &contribution,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Visibility = domain.Visibility(vis)
	if err := json.Unmarshal(progress, &e.Progress); err != nil {
		return nil, fmt.Errorf("decode step_progress: %w", err)
	}
	if err := unmarshalOptional(inv, &e.Invitation); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(loc, &e.Location); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(timeP, &e.Time); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(contribution, &e.Contribution); err != nil {
		return nil, err
	}
	return &e, nil
}

func unmarshalOptional[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

// marshalOptional returns nil for a nil pointer so the column is stored as NULL.
func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (r queries) GetByID(ctx context.Context, id string) (*domain.Excursion, error) {
	e, err := scanExcursion(r.q.QueryRow(ctx, `SELECT `+excursionColumns+` FROM excursions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "excursion not found")
	}
	return e, nil
}

func (r queries) ListByOwner(ctx context.Context, ownerID string, vis *domain.Visibility, limit int, after *domain.KeysetCursor) ([]domain.Excursion, error) {
	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	argN := 2

	if vis != nil {
		where = append(where, fmt.Sprintf("visibility = $%d", argN))
		args = append(args, string(*vis))
		argN++
	}
	if after != nil {
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argN, argN+1))
		args = append(args, after.CreatedAt, after.ID)
		argN += 2
	}

	sql := `SELECT ` + excursionColumns + ` FROM excursions
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "")
	}
	defer rows.Close()

	out := []domain.Excursion{}
	for rows.Next() {
		e, err := scanExcursion(rows)
		if err != nil {
			return nil, mapErr(err, "")
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "")
	}
	return out, nil
}

const memberColumns = `event_id, user_id, display_name, active, joined_at, approved_at`

func scanMember(row pgx.Row) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.EventID, &m.UserID, &m.DisplayName, &m.Active, &m.JoinedAt, &m.ApprovedAt)
	return m, err
}

func (r queries) GetMember(ctx context.Context, eventID, userID string) (*domain.Member, error) {
	m, err := scanMember(r.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE event_id = $1 AND user_id = $2`, eventID, userID))
	if err != nil {
		return nil, mapErr(err, "member not found")
	}
	return &m, nil
}

func (r queries) ListMembers(ctx context.Context, eventID string, active bool) ([]domain.Member, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+memberColumns+`
FROM members
WHERE event_id = $1 AND active = $2
ORDER BY joined_at ASC, user_id ASC`, eventID, active)
	if err != nil {
		return nil, mapErr(err, "")
	}
	defer rows.Close()

	out := []domain.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, mapErr(err, "")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "")
	}
	return out, nil
}

func (r queries) MemberNames(ctx context.Context, eventID string) ([]string, error) {
	var raw []byte
	err := r.q.QueryRow(ctx, `SELECT names FROM member_names WHERE event_id = $1`, eventID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []string{}, nil
		}
		return nil, mapErr(err, "")
	}
	names := []string{}
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, mapErr(err, "")
	}
	return names, nil
}

func (r queries) ListLocations(ctx context.Context, eventID string) ([]domain.RankedLocation, error) {
	rows, err := r.q.Query(ctx, `
SELECT l.title, l.is_online, l.link, l.proposed_by, l.seq, l.created_at, COUNT(v.user_id)
FROM locations l
LEFT JOIN votes v
  ON v.event_id = l.event_id AND v.step = 'location' AND v.key = l.title
WHERE l.event_id = $1
GROUP BY l.event_id, l.title
ORDER BY l.seq ASC`, eventID)
	if err != nil {
		return nil, mapErr(err, "")
	}
	defer rows.Close()

	out := []domain.RankedLocation{}
	for rows.Next() {
		var (
			l     domain.RankedLocation
			votes int64
		)
		if err := rows.Scan(&l.Title, &l.IsOnline, &l.Link, &l.ProposedBy, &l.Seq, &l.CreatedAt, &votes); err != nil {
			return nil, mapErr(err, "")
		}
		l.Votes = int(votes)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "")
	}
	return out, nil
}

func (r queries) ListAvailability(ctx context.Context, eventID string) ([]domain.MemberAvailability, error) {
	rows, err := r.q.Query(ctx, `
SELECT user_id, days, updated_at
FROM availability
WHERE event_id = $1
ORDER BY user_id ASC`, eventID)
	if err != nil {
		return nil, mapErr(err, "")
	}
	defer rows.Close()

	out := []domain.MemberAvailability{}
	for rows.Next() {
		var (
			a   domain.MemberAvailability
			raw []byte
		)
		if err := rows.Scan(&a.UserID, &raw, &a.UpdatedAt); err != nil {
			return nil, mapErr(err, "")
		}
		if err := json.Unmarshal(raw, &a.Days); err != nil {
			return nil, mapErr(err, "")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "")
	}
	return out, nil
}

func (r queries) TimeTally(ctx context.Context, eventID string) ([]domain.Tally, error) {
	rows, err := r.q.Query(ctx, `
SELECT key, COUNT(*)
FROM votes
WHERE event_id = $1 AND step = 'time'
GROUP BY key
ORDER BY key ASC`, eventID)
	if err != nil {
		return nil, mapErr(err, "")
	}
	defer rows.Close()

	out := []domain.Tally{}
	for rows.Next() {
		var (
			t domain.Tally
			n int64
		)
		if err := rows.Scan(&t.Key, &n); err != nil {
			return nil, mapErr(err, "")
		}
		t.Votes = int(n)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "")
	}
	return out, nil
}

func (r queries) GetSelection(ctx context.Context, eventID string, step domain.Step) (*domain.Selection, error) {
	var (
		sel        = domain.Selection{EventID: eventID, Step: step}
		locs, tims []byte
	)
	err := r.q.QueryRow(ctx, `
SELECT locations, times, finalized_by, finalized_at
FROM selections
WHERE event_id = $1 AND step = $2`, eventID, string(step)).Scan(&locs, &tims, &sel.FinalizedBy, &sel.FinalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, "")
	}
	if err := json.Unmarshal(locs, &sel.Locations); err != nil {
		return nil, mapErr(err, "")
	}
	if err := json.Unmarshal(tims, &sel.Times); err != nil {
		return nil, mapErr(err, "")
	}
	return &sel, nil
}

func (r queries) ListItems(ctx context.Context, eventID string) ([]domain.RequiredItem, []domain.CollectiveItem, error) {
	rows, err := r.q.Query(ctx, `
SELECT title FROM required_items WHERE event_id = $1 ORDER BY position ASC`, eventID)
	if err != nil {
		return nil, nil, mapErr(err, "")
	}
	required := []domain.RequiredItem{}
	for rows.Next() {
		var it domain.RequiredItem
		if err := rows.Scan(&it.Title); err != nil {
			rows.Close()
			return nil, nil, mapErr(err, "")
		}
		required = append(required, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, mapErr(err, "")
	}

	rows, err = r.q.Query(ctx, `
SELECT title, target_amount, unit, current_amount
FROM collective_items
WHERE event_id = $1
ORDER BY position ASC`, eventID)
	if err != nil {
		return nil, nil, mapErr(err, "")
	}
	defer rows.Close()

	collective := []domain.CollectiveItem{}
	for rows.Next() {
		var it domain.CollectiveItem
		if err := rows.Scan(&it.Title, &it.TargetAmount, &it.Unit, &it.CurrentAmount); err != nil {
			return nil, nil, mapErr(err, "")
		}
		collective = append(collective, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapErr(err, "")
	}
	return required, collective, nil
}

func (r queries) ListContributions(ctx context.Context, eventID, itemTitle string) ([]domain.Contribution, error) {
	rows, err := r.q.Query(ctx, `
SELECT item_title, user_id, amount, updated_at
FROM contributions
WHERE event_id = $1 AND item_title = $2
ORDER BY amount DESC, user_id ASC`, eventID, itemTitle)
	if err != nil {
		return nil, mapErr(err, "")
	}
	defer rows.Close()

	out := []domain.Contribution{}
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.ItemTitle, &c.UserID, &c.Amount, &c.UpdatedAt); err != nil {
			return nil, mapErr(err, "")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "")
	}
	return out, nil
}
