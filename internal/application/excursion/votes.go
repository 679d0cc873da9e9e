package excursion

import (
	"context"
	"strconv"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/metrics"
)

func itoa(n int) string { return strconv.Itoa(n) }

// CastVote records the actor's vote for the round, moving any earlier vote,
// and returns the round's updated tally.
func (s *Service) CastVote(ctx context.Context, eventID, actorID string, step domain.Step, key string) ([]domain.Tally, error) {
	if !step.Votable() {
		return nil, domain.ErrValidationMeta("step has no vote", map[string]string{
			"step": "must be one of: time, location",
		})
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrValidation("proposal key is required")
	}

	var out []domain.Tally
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireActiveMember(ctx, r, e, actorID); err != nil {
			return err
		}
		if err := ensureOpen(ctx, r, eventID, step); err != nil {
			return err
		}

		switch step {
		case domain.StepLocation:
			if err := requireLocation(ctx, r, eventID, key); err != nil {
				return err
			}
		case domain.StepTime:
			date, hour, err := domain.ParseSlotKey(key)
			if err != nil {
				return err
			}
			subs, err := r.ListAvailability(ctx, eventID)
			if err != nil {
				return err
			}
			if !domain.HasSlot(domain.MergeAvailability(subs), date, hour) {
				return domain.ErrNotFound("time slot not found")
			}
			key = domain.SlotKey(date, hour)
		}

		now := s.clock.Now().UTC()
		if err := r.UpsertVote(ctx, domain.Vote{
			EventID:   eventID,
			Step:      step,
			UserID:    actorID,
			Key:       key,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingVoteCast, VotePayload{
			EventID: eventID,
			UserID:  actorID,
			Step:    string(step),
			Key:     key,
		}, now); err != nil {
			return err
		}

		out, err = s.tally(ctx, r, eventID, step)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordVote(string(step))
	if step == domain.StepLocation {
		s.afterCommit(ctx, eventID, false, TopicLocations)
	} else {
		s.afterCommit(ctx, eventID, false, TopicTimes)
	}
	return out, nil
}

func requireLocation(ctx context.Context, q Queries, eventID, title string) error {
	locs, err := q.ListLocations(ctx, eventID)
	if err != nil {
		return err
	}
	for _, l := range locs {
		if l.Title == title {
			return nil
		}
	}
	return domain.ErrNotFound("location not found")
}

func (s *Service) tally(ctx context.Context, q Queries, eventID string, step domain.Step) ([]domain.Tally, error) {
	if step == domain.StepTime {
		t, err := q.TimeTally(ctx, eventID)
		if err != nil {
			return nil, err
		}
		return domain.RankTallies(t), nil
	}

	ranked, err := s.rankedLocations(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tally, 0, len(ranked))
	for _, l := range ranked {
		out = append(out, domain.Tally{Key: l.Title, Votes: l.Votes})
	}
	return out, nil
}
