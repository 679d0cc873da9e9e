package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
)

// Lock order for one excursion: the excursions row first (FOR UPDATE or
// FOR SHARE), then member, vote and item rows. Every writer in the service
// layer starts with GetForUpdate or GetForShare, so no two transactions can
// wait on each other in opposite order.

type txRepo struct {
	queries
	tx pgx.Tx
}

var _ app.TxRepo = (*txRepo)(nil)

func (r *Repo) WithTx(ctx context.Context, fn func(tr app.TxRepo) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.ErrTransient(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
	}()

	if err := fn(&txRepo{queries: queries{q: tx}, tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrTransient(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (r *txRepo) InsertExcursion(ctx context.Context, e *domain.Excursion) error {
	progress, err := json.Marshal(e.Progress)
	if err != nil {
		return err
	}
	inv, loc, timeP, contribution, err := policyColumns(e)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `
INSERT INTO excursions (
  id, owner_id, title, description, visibility, step_progress,
  invitation, location_policy, time_policy, contribution_policy,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.OwnerID, e.Title, e.Description, string(e.Visibility), progress,
		inv, loc, timeP, contribution,
		e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate("you already have an excursion with this title")
	}
	return mapErr(err, "")
}

func policyColumns(e *domain.Excursion) (inv, loc, timeP, contribution []byte, err error) {
	if inv, err = marshalOptional(e.Invitation); err != nil {
		return
	}
	if loc, err = marshalOptional(e.Location); err != nil {
		return
	}
	if timeP, err = marshalOptional(e.Time); err != nil {
		return
	}
	contribution, err = marshalOptional(e.Contribution)
	return
}

func (r *txRepo) OwnerHasTitle(ctx context.Context, ownerID, title string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM excursions WHERE owner_id = $1 AND title = $2)`,
		ownerID, title).Scan(&exists)
	return exists, mapErr(err, "")
}

func (r *txRepo) GetForUpdate(ctx context.Context, id string) (*domain.Excursion, error) {
	e, err := scanExcursion(r.tx.QueryRow(ctx,
		`SELECT `+excursionColumns+` FROM excursions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "excursion not found")
	}
	return e, nil
}

// GetForShare blocks step edits while letting concurrent pledges proceed.
func (r *txRepo) GetForShare(ctx context.Context, id string) (*domain.Excursion, error) {
	e, err := scanExcursion(r.tx.QueryRow(ctx,
		`SELECT `+excursionColumns+` FROM excursions WHERE id = $1 FOR SHARE`, id))
	if err != nil {
		return nil, mapErr(err, "excursion not found")
	}
	return e, nil
}

func (r *txRepo) UpdateExcursion(ctx context.Context, e *domain.Excursion) error {
	progress, err := json.Marshal(e.Progress)
	if err != nil {
		return err
	}
	inv, loc, timeP, contribution, err := policyColumns(e)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `
UPDATE excursions SET
  title = $2, description = $3, visibility = $4, step_progress = $5,
  invitation = $6, location_policy = $7, time_policy = $8, contribution_policy = $9,
  updated_at = $10
WHERE id = $1`,
		e.ID, e.Title, e.Description, string(e.Visibility), progress,
		inv, loc, timeP, contribution, e.UpdatedAt,
	)
	if err != nil {
		return mapErr(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("excursion not found")
	}
	return nil
}

func (r *txRepo) InsertMember(ctx context.Context, m domain.Member) error {
	_, err := r.tx.Exec(ctx, `
INSERT INTO members (event_id, user_id, display_name, active, joined_at, approved_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		m.EventID, m.UserID, m.DisplayName, m.Active, m.JoinedAt, m.ApprovedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate("already a member of this excursion")
	}
	return mapErr(err, "")
}

func (r *txRepo) UpdateMember(ctx context.Context, m domain.Member) error {
	tag, err := r.tx.Exec(ctx, `
UPDATE members
SET display_name = $3, active = $4, approved_at = $5
WHERE event_id = $1 AND user_id = $2`,
		m.EventID, m.UserID, m.DisplayName, m.Active, m.ApprovedAt)
	if err != nil {
		return mapErr(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("member not found")
	}
	return nil
}

// DeleteMember relies on ON DELETE CASCADE for the member's votes and availability.
func (r *txRepo) DeleteMember(ctx context.Context, eventID, userID string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM members WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return mapErr(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("member not found")
	}
	return nil
}

func (r *txRepo) CountActiveMembers(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM members WHERE event_id = $1 AND active`, eventID).Scan(&n)
	return n, mapErr(err, "")
}

func (r *txRepo) RefreshMemberNames(ctx context.Context, eventID string) ([]string, error) {
	active, err := r.ListMembers(ctx, eventID, true)
	if err != nil {
		return nil, err
	}
	names := domain.ActiveNames(active)
	raw, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	_, err = r.tx.Exec(ctx, `
INSERT INTO member_names (event_id, names, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (event_id) DO UPDATE
SET names = EXCLUDED.names,
    updated_at = EXCLUDED.updated_at`, eventID, raw)
	if err != nil {
		return nil, mapErr(err, "")
	}
	return names, nil
}

func (r *txRepo) InsertLocation(ctx context.Context, eventID string, p domain.LocationProposal) (domain.LocationProposal, error) {
	err := r.tx.QueryRow(ctx, `
INSERT INTO locations (event_id, title, is_online, link, proposed_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING seq`,
		eventID, p.Title, p.IsOnline, p.Link, p.ProposedBy, p.CreatedAt).Scan(&p.Seq)
	if isUniqueViolation(err) {
		return domain.LocationProposal{}, domain.ErrDuplicate("location title already proposed")
	}
	if err != nil {
		return domain.LocationProposal{}, mapErr(err, "")
	}
	return p, nil
}

func (r *txRepo) CountLocationsBy(ctx context.Context, eventID, userID string) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM locations WHERE event_id = $1 AND proposed_by = $2`,
		eventID, userID).Scan(&n)
	return n, mapErr(err, "")
}

func (r *txRepo) DeleteLocation(ctx context.Context, eventID, title string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM locations WHERE event_id = $1 AND title = $2`, eventID, title)
	if err != nil {
		return mapErr(err, "")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("location not found")
	}
	return nil
}

func (r *txRepo) UpsertAvailability(ctx context.Context, eventID string, a domain.MemberAvailability) error {
	days, err := json.Marshal(a.Days)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `
INSERT INTO availability (event_id, user_id, days, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, user_id) DO UPDATE
SET days = EXCLUDED.days,
    updated_at = EXCLUDED.updated_at`, eventID, a.UserID, days, a.UpdatedAt)
	return mapErr(err, "")
}

func (r *txRepo) UpsertVote(ctx context.Context, v domain.Vote) error {
	_, err := r.tx.Exec(ctx, `
INSERT INTO votes (event_id, step, user_id, key, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (event_id, step, user_id) DO UPDATE
SET key = EXCLUDED.key,
    created_at = EXCLUDED.created_at`,
		v.EventID, string(v.Step), v.UserID, v.Key, v.CreatedAt)
	return mapErr(err, "")
}

func (r *txRepo) DeleteVotesFor(ctx context.Context, eventID string, step domain.Step, key string) error {
	_, err := r.tx.Exec(ctx,
		`DELETE FROM votes WHERE event_id = $1 AND step = $2 AND key = $3`,
		eventID, string(step), key)
	return mapErr(err, "")
}

func (r *txRepo) InsertSelection(ctx context.Context, s domain.Selection) error {
	locs := s.Locations
	if locs == nil {
		locs = []domain.LocationProposal{}
	}
	times := s.Times
	if times == nil {
		times = []domain.SelectedTime{}
	}
	locJSON, err := json.Marshal(locs)
	if err != nil {
		return err
	}
	timeJSON, err := json.Marshal(times)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `
INSERT INTO selections (event_id, step, locations, times, finalized_by, finalized_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		s.EventID, string(s.Step), locJSON, timeJSON, s.FinalizedBy, s.FinalizedAt)
	if isUniqueViolation(err) {
		return domain.ErrStepClosed(string(s.Step) + " selection is already finalized")
	}
	return mapErr(err, "")
}

// ReplaceItems swaps the item lists. Collective items that survive by title keep
// their current amount and ledger; dropped ones lose their ledger by cascade.
func (r *txRepo) ReplaceItems(ctx context.Context, eventID string, required []domain.RequiredItem, collective []domain.CollectiveItem) error {
	keep := make([]string, 0, len(collective))
	for _, c := range collective {
		keep = append(keep, c.Title)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM required_items WHERE event_id = $1`, eventID)
	for i, it := range required {
		batch.Queue(`INSERT INTO required_items (event_id, title, position) VALUES ($1, $2, $3)`,
			eventID, it.Title, i)
	}
	batch.Queue(`DELETE FROM collective_items WHERE event_id = $1 AND NOT (title = ANY($2))`, eventID, keep)
	for i, it := range collective {
		batch.Queue(`
INSERT INTO collective_items (event_id, title, target_amount, unit, current_amount, position)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (event_id, title) DO UPDATE
SET target_amount = EXCLUDED.target_amount,
    unit = EXCLUDED.unit,
    position = EXCLUDED.position`,
			eventID, it.Title, it.TargetAmount, it.Unit, i)
	}

	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapErr(err, "")
	}
	return nil
}

// IncrementItem adds in place so concurrent pledges serialize on the item row.
func (r *txRepo) IncrementItem(ctx context.Context, eventID, title string, amount int64) (domain.CollectiveItem, error) {
	var it domain.CollectiveItem
	err := r.tx.QueryRow(ctx, `
UPDATE collective_items
SET current_amount = current_amount + $3
WHERE event_id = $1 AND title = $2
RETURNING title, target_amount, unit, current_amount`,
		eventID, title, amount).Scan(&it.Title, &it.TargetAmount, &it.Unit, &it.CurrentAmount)
	if err != nil {
		return domain.CollectiveItem{}, mapErr(err, "item not found")
	}
	return it, nil
}

func (r *txRepo) AddContribution(ctx context.Context, eventID, title, userID string, amount int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `
INSERT INTO contributions (event_id, item_title, user_id, amount, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (event_id, item_title, user_id) DO UPDATE
SET amount = contributions.amount + EXCLUDED.amount,
    updated_at = EXCLUDED.updated_at`,
		eventID, title, userID, amount, at)
	return mapErr(err, "")
}

func (r *txRepo) InsertOutbox(ctx context.Context, msg app.OutboxMessage) error {
	// next_retry_at = created_at makes the row eligible on the next poll.
	_, err := r.tx.Exec(ctx, `
INSERT INTO outbox (message_id, routing_key, body, created_at, status, next_retry_at)
VALUES ($1, $2, $3, $4, 'pending', $4)`,
		msg.MessageID, msg.RoutingKey, msg.Body, msg.CreatedAt.UTC())
	return mapErr(err, "")
}
