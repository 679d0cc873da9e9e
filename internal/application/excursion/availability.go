package excursion

import (
	"context"

	"github.com/jd52dev/excursion/internal/domain"
)

// AvailabilityView is the merged time grid plus the vote tally of the time round.
type AvailabilityView struct {
	Grid      []domain.DayAvailability `json:"grid"`
	Tally     []domain.Tally           `json:"tally"`
	Finalized bool                     `json:"finalized"`
}

// SubmitAvailability replaces the actor's previous submission.
func (s *Service) SubmitAvailability(ctx context.Context, eventID, actorID string, days []domain.DaySlots) (*domain.MemberAvailability, error) {
	norm, err := domain.NormalizeDays(days)
	if err != nil {
		return nil, err
	}

	var out domain.MemberAvailability
	err = s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireActiveMember(ctx, r, e, actorID); err != nil {
			return err
		}
		if err := ensureOpen(ctx, r, eventID, domain.StepTime); err != nil {
			return err
		}
		if e.Time != nil {
			if err := domain.WithinCandidates(e.Time.Candidates, norm); err != nil {
				return err
			}
		}

		now := s.clock.Now().UTC()
		a := domain.MemberAvailability{UserID: actorID, Days: norm, UpdatedAt: now}
		if err := r.UpsertAvailability(ctx, eventID, a); err != nil {
			return err
		}
		if err := dropStaleTimeVotes(ctx, r, eventID); err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingAvailabilitySet, AvailabilityPayload{
			EventID: eventID,
			UserID:  actorID,
			Days:    len(norm),
		}, now); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, eventID, false, TopicTimes)
	return &out, nil
}

// dropStaleTimeVotes removes votes on slots nobody is available for anymore.
func dropStaleTimeVotes(ctx context.Context, r TxRepo, eventID string) error {
	subs, err := r.ListAvailability(ctx, eventID)
	if err != nil {
		return err
	}
	tally, err := r.TimeTally(ctx, eventID)
	if err != nil {
		return err
	}
	grid := domain.MergeAvailability(subs)
	for _, t := range tally {
		date, hour, err := domain.ParseSlotKey(t.Key)
		if err == nil && domain.HasSlot(grid, date, hour) {
			continue
		}
		if err := r.DeleteVotesFor(ctx, eventID, domain.StepTime, t.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Availability(ctx context.Context, eventID, actorID string) (*AvailabilityView, error) {
	if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return s.availability(ctx, s.repo, eventID)
}

func (s *Service) availability(ctx context.Context, q Queries, eventID string) (*AvailabilityView, error) {
	subs, err := q.ListAvailability(ctx, eventID)
	if err != nil {
		return nil, err
	}
	tally, err := q.TimeTally(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sel, err := q.GetSelection(ctx, eventID, domain.StepTime)
	if err != nil {
		return nil, err
	}
	return &AvailabilityView{
		Grid:      domain.MergeAvailability(subs),
		Tally:     domain.RankTallies(tally),
		Finalized: sel != nil,
	}, nil
}
