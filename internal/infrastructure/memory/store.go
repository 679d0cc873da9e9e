package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
)

type voteKey struct {
	eventID string
	step    domain.Step
	userID  string
}

type selKey struct {
	eventID string
	step    domain.Step
}

type state struct {
	excursions    map[string]domain.Excursion
	members       map[string]map[string]domain.Member
	names         map[string][]string
	locations     map[string][]domain.LocationProposal
	availability  map[string]map[string]domain.MemberAvailability
	votes         map[voteKey]domain.Vote
	selections    map[selKey]domain.Selection
	required      map[string][]domain.RequiredItem
	collective    map[string][]domain.CollectiveItem
	contributions map[string]map[string]map[string]domain.Contribution
	outbox        []app.OutboxMessage
	seq           int64
}

func newState() *state {
	return &state{
		excursions:    map[string]domain.Excursion{},
		members:       map[string]map[string]domain.Member{},
		names:         map[string][]string{},
		locations:     map[string][]domain.LocationProposal{},
		availability:  map[string]map[string]domain.MemberAvailability{},
		votes:         map[voteKey]domain.Vote{},
		selections:    map[selKey]domain.Selection{},
		required:      map[string][]domain.RequiredItem{},
		collective:    map[string][]domain.CollectiveItem{},
		contributions: map[string]map[string]map[string]domain.Contribution{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.excursions {
		c.excursions[k] = v.Clone()
	}
	for k, ms := range s.members {
		inner := make(map[string]domain.Member, len(ms))
		for uid, m := range ms {
			inner[uid] = m
		}
		c.members[k] = inner
	}
	for k, v := range s.names {
		c.names[k] = append([]string(nil), v...)
	}
	for k, v := range s.locations {
		c.locations[k] = append([]domain.LocationProposal(nil), v...)
	}
	for k, subs := range s.availability {
		inner := make(map[string]domain.MemberAvailability, len(subs))
		for uid, a := range subs {
			a.Days = append([]domain.DaySlots(nil), a.Days...)
			inner[uid] = a
		}
		c.availability[k] = inner
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	for k, v := range s.selections {
		c.selections[k] = v
	}
	for k, v := range s.required {
		c.required[k] = append([]domain.RequiredItem(nil), v...)
	}
	for k, v := range s.collective {
		c.collective[k] = append([]domain.CollectiveItem(nil), v...)
	}
	for k, byItem := range s.contributions {
		items := make(map[string]map[string]domain.Contribution, len(byItem))
		for title, byUser := range byItem {
			users := make(map[string]domain.Contribution, len(byUser))
			for uid, v := range byUser {
				users[uid] = v
			}
			items[title] = users
		}
		c.contributions[k] = items
	}
	c.outbox = append([]app.OutboxMessage(nil), s.outbox...)
	return c
}

// Store keeps everything in process memory. A transaction works on a copy of
// the state and swaps it in on commit, so transactions are fully serialized.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ app.Repo = (*Store)(nil)

func NewStore() *Store { return &Store{st: newState()} }

func (s *Store) WithTx(ctx context.Context, fn func(r app.TxRepo) error) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrTransient(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Outbox returns the queued messages in insertion order.
func (s *Store) Outbox() []app.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]app.OutboxMessage(nil), s.st.outbox...)
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Reads run against the last committed state, which is never mutated in place.

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Excursion, error) {
	return s.read().GetByID(ctx, id)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, vis *domain.Visibility, limit int, after *domain.KeysetCursor) ([]domain.Excursion, error) {
	return s.read().ListByOwner(ctx, ownerID, vis, limit, after)
}

func (s *Store) GetMember(ctx context.Context, eventID, userID string) (*domain.Member, error) {
	return s.read().GetMember(ctx, eventID, userID)
}

func (s *Store) ListMembers(ctx context.Context, eventID string, active bool) ([]domain.Member, error) {
	return s.read().ListMembers(ctx, eventID, active)
}

func (s *Store) MemberNames(ctx context.Context, eventID string) ([]string, error) {
	return s.read().MemberNames(ctx, eventID)
}

func (s *Store) ListLocations(ctx context.Context, eventID string) ([]domain.RankedLocation, error) {
	return s.read().ListLocations(ctx, eventID)
}

func (s *Store) ListAvailability(ctx context.Context, eventID string) ([]domain.MemberAvailability, error) {
	return s.read().ListAvailability(ctx, eventID)
}

func (s *Store) TimeTally(ctx context.Context, eventID string) ([]domain.Tally, error) {
	return s.read().TimeTally(ctx, eventID)
}

func (s *Store) GetSelection(ctx context.Context, eventID string, step domain.Step) (*domain.Selection, error) {
	return s.read().GetSelection(ctx, eventID, step)
}

func (s *Store) ListItems(ctx context.Context, eventID string) ([]domain.RequiredItem, []domain.CollectiveItem, error) {
	return s.read().ListItems(ctx, eventID)
}

func (s *Store) ListContributions(ctx context.Context, eventID, itemTitle string) ([]domain.Contribution, error) {
	return s.read().ListContributions(ctx, eventID, itemTitle)
}

// ---- queries ----

func (s *state) GetByID(_ context.Context, id string) (*domain.Excursion, error) {
	e, ok := s.excursions[id]
	if !ok {
		return nil, domain.ErrNotFound("excursion not found")
	}
	out := e.Clone()
	return &out, nil
}

func (s *state) ListByOwner(_ context.Context, ownerID string, vis *domain.Visibility, limit int, after *domain.KeysetCursor) ([]domain.Excursion, error) {
	var out []domain.Excursion
	for _, e := range s.excursions {
		if e.OwnerID != ownerID {
			continue
		}
		if vis != nil && e.Visibility != *vis {
			continue
		}
		if after != nil {
			older := e.CreatedAt.Before(after.CreatedAt) ||
				(e.CreatedAt.Equal(after.CreatedAt) && e.ID < after.ID)
			if !older {
				continue
			}
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *state) GetMember(_ context.Context, eventID, userID string) (*domain.Member, error) {
	m, ok := s.members[eventID][userID]
	if !ok {
		return nil, domain.ErrNotFound("member not found")
	}
	return &m, nil
}

func (s *state) ListMembers(_ context.Context, eventID string, active bool) ([]domain.Member, error) {
	out := []domain.Member{}
	for _, m := range s.members[eventID] {
		if m.Active == active {
			out = append(out, m)
		}
	}
	domain.SortMembers(out)
	return out, nil
}

func (s *state) MemberNames(_ context.Context, eventID string) ([]string, error) {
	return append([]string{}, s.names[eventID]...), nil
}

func (s *state) ListLocations(_ context.Context, eventID string) ([]domain.RankedLocation, error) {
	counts := map[string]int{}
	for k, v := range s.votes {
		if k.eventID == eventID && k.step == domain.StepLocation {
			counts[v.Key]++
		}
	}
	out := make([]domain.RankedLocation, 0, len(s.locations[eventID]))
	for _, p := range s.locations[eventID] {
		out = append(out, domain.RankedLocation{LocationProposal: p, Votes: counts[p.Title]})
	}
	return out, nil
}

func (s *state) ListAvailability(_ context.Context, eventID string) ([]domain.MemberAvailability, error) {
	out := make([]domain.MemberAvailability, 0, len(s.availability[eventID]))
	for _, a := range s.availability[eventID] {
		a.Days = append([]domain.DaySlots(nil), a.Days...)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *state) TimeTally(_ context.Context, eventID string) ([]domain.Tally, error) {
	counts := map[string]int{}
	for k, v := range s.votes {
		if k.eventID == eventID && k.step == domain.StepTime {
			counts[v.Key]++
		}
	}
	out := make([]domain.Tally, 0, len(counts))
	for key, n := range counts {
		out = append(out, domain.Tally{Key: key, Votes: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *state) GetSelection(_ context.Context, eventID string, step domain.Step) (*domain.Selection, error) {
	sel, ok := s.selections[selKey{eventID, step}]
	if !ok {
		return nil, nil
	}
	sel.Locations = append([]domain.LocationProposal(nil), sel.Locations...)
	sel.Times = append([]domain.SelectedTime(nil), sel.Times...)
	return &sel, nil
}

func (s *state) ListItems(_ context.Context, eventID string) ([]domain.RequiredItem, []domain.CollectiveItem, error) {
	return append([]domain.RequiredItem{}, s.required[eventID]...),
		append([]domain.CollectiveItem{}, s.collective[eventID]...),
		nil
}

func (s *state) ListContributions(_ context.Context, eventID, itemTitle string) ([]domain.Contribution, error) {
	out := []domain.Contribution{}
	for _, c := range s.contributions[eventID][itemTitle] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// ---- writes (only reachable through WithTx) ----

func (s *state) InsertExcursion(_ context.Context, e *domain.Excursion) error {
	if _, ok := s.excursions[e.ID]; ok {
		return domain.ErrDuplicate("excursion already exists")
	}
	s.excursions[e.ID] = e.Clone()
	return nil
}

func (s *state) OwnerHasTitle(_ context.Context, ownerID, title string) (bool, error) {
	for _, e := range s.excursions {
		if e.OwnerID == ownerID && e.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) GetForUpdate(ctx context.Context, id string) (*domain.Excursion, error) {
	return s.GetByID(ctx, id)
}

func (s *state) GetForShare(ctx context.Context, id string) (*domain.Excursion, error) {
	return s.GetByID(ctx, id)
}

func (s *state) UpdateExcursion(_ context.Context, e *domain.Excursion) error {
	if _, ok := s.excursions[e.ID]; !ok {
		return domain.ErrNotFound("excursion not found")
	}
	s.excursions[e.ID] = e.Clone()
	return nil
}

func (s *state) InsertMember(_ context.Context, m domain.Member) error {
	ms := s.members[m.EventID]
	if ms == nil {
		ms = map[string]domain.Member{}
		s.members[m.EventID] = ms
	}
	if _, ok := ms[m.UserID]; ok {
		return domain.ErrDuplicate("already a member of this excursion")
	}
	ms[m.UserID] = m
	return nil
}

func (s *state) UpdateMember(_ context.Context, m domain.Member) error {
	if _, ok := s.members[m.EventID][m.UserID]; !ok {
		return domain.ErrNotFound("member not found")
	}
	s.members[m.EventID][m.UserID] = m
	return nil
}

func (s *state) DeleteMember(_ context.Context, eventID, userID string) error {
	if _, ok := s.members[eventID][userID]; !ok {
		return domain.ErrNotFound("member not found")
	}
	delete(s.members[eventID], userID)
	delete(s.availability[eventID], userID)
	for k := range s.votes {
		if k.eventID == eventID && k.userID == userID {
			delete(s.votes, k)
		}
	}
	return nil
}

func (s *state) CountActiveMembers(_ context.Context, eventID string) (int, error) {
	n := 0
	for _, m := range s.members[eventID] {
		if m.Active {
			n++
		}
	}
	return n, nil
}

func (s *state) RefreshMemberNames(_ context.Context, eventID string) ([]string, error) {
	all := make([]domain.Member, 0, len(s.members[eventID]))
	for _, m := range s.members[eventID] {
		all = append(all, m)
	}
	names := domain.ActiveNames(all)
	s.names[eventID] = names
	return append([]string(nil), names...), nil
}

func (s *state) InsertLocation(_ context.Context, eventID string, p domain.LocationProposal) (domain.LocationProposal, error) {
	for _, l := range s.locations[eventID] {
		if l.Title == p.Title {
			return domain.LocationProposal{}, domain.ErrDuplicate("location title already proposed")
		}
	}
	s.seq++
	p.Seq = s.seq
	s.locations[eventID] = append(s.locations[eventID], p)
	return p, nil
}

func (s *state) CountLocationsBy(_ context.Context, eventID, userID string) (int, error) {
	n := 0
	for _, l := range s.locations[eventID] {
		if l.ProposedBy == userID {
			n++
		}
	}
	return n, nil
}

func (s *state) DeleteLocation(_ context.Context, eventID, title string) error {
	locs := s.locations[eventID]
	for i, l := range locs {
		if l.Title == title {
			s.locations[eventID] = append(locs[:i:i], locs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound("location not found")
}

func (s *state) UpsertAvailability(_ context.Context, eventID string, a domain.MemberAvailability) error {
	subs := s.availability[eventID]
	if subs == nil {
		subs = map[string]domain.MemberAvailability{}
		s.availability[eventID] = subs
	}
	a.Days = append([]domain.DaySlots(nil), a.Days...)
	subs[a.UserID] = a
	return nil
}

func (s *state) UpsertVote(_ context.Context, v domain.Vote) error {
	s.votes[voteKey{v.EventID, v.Step, v.UserID}] = v
	return nil
}

func (s *state) DeleteVotesFor(_ context.Context, eventID string, step domain.Step, key string) error {
	for k, v := range s.votes {
		if k.eventID == eventID && k.step == step && v.Key == key {
			delete(s.votes, k)
		}
	}
	return nil
}

func (s *state) InsertSelection(_ context.Context, sel domain.Selection) error {
	k := selKey{sel.EventID, sel.Step}
	if _, ok := s.selections[k]; ok {
		return domain.ErrStepClosed(string(sel.Step) + " selection is already finalized")
	}
	s.selections[k] = sel
	return nil
}

func (s *state) ReplaceItems(_ context.Context, eventID string, required []domain.RequiredItem, collective []domain.CollectiveItem) error {
	current := map[string]int64{}
	for _, c := range s.collective[eventID] {
		current[c.Title] = c.CurrentAmount
	}

	next := make([]domain.CollectiveItem, 0, len(collective))
	keep := map[string]struct{}{}
	for _, c := range collective {
		c.CurrentAmount = current[c.Title]
		next = append(next, c)
		keep[c.Title] = struct{}{}
	}
	for title := range s.contributions[eventID] {
		if _, ok := keep[title]; !ok {
			delete(s.contributions[eventID], title)
		}
	}

	s.required[eventID] = append([]domain.RequiredItem{}, required...)
	s.collective[eventID] = next
	return nil
}

func (s *state) IncrementItem(_ context.Context, eventID, title string, amount int64) (domain.CollectiveItem, error) {
	items := s.collective[eventID]
	for i := range items {
		if items[i].Title == title {
			if amount > math.MaxInt64-items[i].CurrentAmount {
				return domain.CollectiveItem{}, domain.ErrValidation("pledge would overflow the item total")
			}
			items[i].CurrentAmount += amount
			return items[i], nil
		}
	}
	return domain.CollectiveItem{}, domain.ErrNotFound("item not found")
}

func (s *state) AddContribution(_ context.Context, eventID, title, userID string, amount int64, at time.Time) error {
	byItem := s.contributions[eventID]
	if byItem == nil {
		byItem = map[string]map[string]domain.Contribution{}
		s.contributions[eventID] = byItem
	}
	byUser := byItem[title]
	if byUser == nil {
		byUser = map[string]domain.Contribution{}
		byItem[title] = byUser
	}
	c := byUser[userID]
	c.ItemTitle, c.UserID = title, userID
	c.Amount += amount
	c.UpdatedAt = at
	byUser[userID] = c
	return nil
}

func (s *state) InsertOutbox(_ context.Context, msg app.OutboxMessage) error {
	s.outbox = append(s.outbox, msg)
	return nil
}
