package excursion

import (
	"context"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
)

// FinalizeSelection writes the organizer's choice for a voting round and closes it.
func (s *Service) FinalizeSelection(ctx context.Context, eventID, actorID string, step domain.Step, in domain.SelectionInput) (*domain.Selection, error) {
	if !step.Votable() {
		return nil, domain.ErrValidationMeta("step has no selection", map[string]string{
			"step": "must be one of: time, location",
		})
	}

	var out domain.Selection
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireOwner(e, actorID); err != nil {
			return err
		}
		if err := ensureOpen(ctx, r, eventID, step); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		sel := domain.Selection{
			EventID:     eventID,
			Step:        step,
			FinalizedBy: actorID,
			FinalizedAt: now,
		}

		payload := SelectionPayload{EventID: eventID, Step: string(step)}
		switch step {
		case domain.StepLocation:
			chosen, err := pickLocations(ctx, r, eventID, in.Locations)
			if err != nil {
				return err
			}
			sel.Locations = chosen
			for _, l := range chosen {
				payload.Locations = append(payload.Locations, l.Title)
			}
		case domain.StepTime:
			if len(in.Times) == 0 {
				return domain.ErrValidation("at least one time must be chosen")
			}
			for _, t := range in.Times {
				nt, err := t.Normalize()
				if err != nil {
					return err
				}
				sel.Times = append(sel.Times, nt)
				payload.Times = append(payload.Times, nt.Date+" "+nt.StartTime)
			}
		}

		if err := r.InsertSelection(ctx, sel); err != nil {
			return err
		}
		e.Progress = e.Progress.Finalized(step)
		e.UpdatedAt = now
		if err := r.UpdateExcursion(ctx, e); err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingSelectionFinalized, payload, now); err != nil {
			return err
		}
		out = sel
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.SelectionFinalized(ctx, eventID, actorID, string(step), len(out.Locations)+len(out.Times))
	topic := TopicTimes
	if step == domain.StepLocation {
		topic = TopicLocations
	}
	s.afterCommit(ctx, eventID, true, TopicEvent, topic)
	return &out, nil
}

func pickLocations(ctx context.Context, q Queries, eventID string, titles []string) ([]domain.LocationProposal, error) {
	if len(titles) == 0 {
		return nil, domain.ErrValidation("at least one location must be chosen")
	}
	locs, err := q.ListLocations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	byTitle := make(map[string]domain.LocationProposal, len(locs))
	for _, l := range locs {
		byTitle[l.Title] = l.LocationProposal
	}

	seen := map[string]struct{}{}
	out := make([]domain.LocationProposal, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if _, dup := seen[t]; dup {
			continue
		}
		p, ok := byTitle[t]
		if !ok {
			return nil, domain.ErrNotFound("location not found: " + t)
		}
		seen[t] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Selection returns the finalized choice for a voting round.
func (s *Service) Selection(ctx context.Context, eventID, actorID string, step domain.Step) (*domain.Selection, error) {
	if !step.Votable() {
		return nil, domain.ErrValidation("step has no selection")
	}
	if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	sel, err := s.repo.GetSelection(ctx, eventID, step)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return nil, domain.ErrNotFound("selection not found")
	}
	return sel, nil
}
