package excursion

import (
	"context"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
)

type LocationCmd struct {
	Title    string
	IsOnline bool
	Link     string
}

// ensureOpen fails once the organizer has finalized the round for step.
func ensureOpen(ctx context.Context, q Queries, eventID string, step domain.Step) error {
	sel, err := q.GetSelection(ctx, eventID, step)
	if err != nil {
		return err
	}
	if sel != nil {
		return domain.ErrStepClosed(string(step) + " selection is already finalized")
	}
	return nil
}

func (s *Service) SubmitLocation(ctx context.Context, eventID, actorID string, cmd LocationCmd) (*domain.LocationProposal, error) {
	var out domain.LocationProposal
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireActiveMember(ctx, r, e, actorID); err != nil {
			return err
		}
		if err := ensureOpen(ctx, r, eventID, domain.StepLocation); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		p, err := domain.NewLocationProposal(cmd.Title, cmd.IsOnline, cmd.Link, actorID, now)
		if err != nil {
			return err
		}

		if e.Location != nil && e.Location.MaxSuggestions > 0 {
			n, err := r.CountLocationsBy(ctx, eventID, actorID)
			if err != nil {
				return err
			}
			if n >= e.Location.MaxSuggestions {
				return domain.ErrValidationMeta("suggestion limit reached", map[string]string{
					"max_suggestions": itoa(e.Location.MaxSuggestions),
				})
			}
		}

		saved, err := r.InsertLocation(ctx, eventID, p)
		if err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingLocationProposed, LocationPayload{
			EventID:    eventID,
			Title:      saved.Title,
			ProposedBy: actorID,
		}, now); err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, eventID, false, TopicLocations)
	return &out, nil
}

// RemoveLocation lets the organizer curate proposals before the vote is closed.
func (s *Service) RemoveLocation(ctx context.Context, eventID, actorID, title string) error {
	title = strings.TrimSpace(title)
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireOwner(e, actorID); err != nil {
			return err
		}
		if err := ensureOpen(ctx, r, eventID, domain.StepLocation); err != nil {
			return err
		}
		if err := r.DeleteLocation(ctx, eventID, title); err != nil {
			return err
		}
		if err := r.DeleteVotesFor(ctx, eventID, domain.StepLocation, title); err != nil {
			return err
		}
		return writeOutbox(ctx, r, RoutingLocationRemoved, LocationPayload{
			EventID: eventID,
			Title:   title,
		}, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.audit.LocationRemoved(ctx, eventID, actorID, title)
	s.afterCommit(ctx, eventID, false, TopicLocations)
	return nil
}

// RankedLocations lists proposals by votes, ties in submission order.
func (s *Service) RankedLocations(ctx context.Context, eventID, actorID string) ([]domain.RankedLocation, error) {
	if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return s.rankedLocations(ctx, s.repo, eventID)
}

func (s *Service) rankedLocations(ctx context.Context, q Queries, eventID string) ([]domain.RankedLocation, error) {
	locs, err := q.ListLocations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return domain.RankLocations(locs), nil
}
