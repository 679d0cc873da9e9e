package excursion

import (
	"context"

	"github.com/jd52dev/excursion/internal/domain"
)

// AdvanceStep stores the payload of one step and marks it finalized.
func (s *Service) AdvanceStep(ctx context.Context, eventID, actorID string, step domain.Step, u domain.StepUpdate) (*domain.Excursion, error) {
	if !step.Valid() {
		return nil, domain.ErrValidation("unknown step")
	}

	var setup *domain.ContributionsSetup
	if step == domain.StepContributions && u.Contributions != nil {
		norm, err := u.Contributions.Normalize()
		if err != nil {
			return nil, err
		}
		setup = &norm
		u.Contributions = setup
	}

	var out domain.Excursion
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireOwner(e, actorID); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := e.ApplyStep(step, u, now); err != nil {
			return err
		}
		if err := r.UpdateExcursion(ctx, e); err != nil {
			return err
		}
		if setup != nil {
			if err := r.ReplaceItems(ctx, e.ID, setup.RequiredItems, setup.CollectiveItems); err != nil {
				return err
			}
		}

		if err := writeOutbox(ctx, r, RoutingStepAdvanced, StepAdvancedPayload{
			EventID: e.ID,
			Step:    string(step),
			Current: string(e.Progress.Current()),
		}, now); err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.StepAdvanced(ctx, eventID, actorID, string(step))
	topics := []Topic{TopicEvent}
	if setup != nil {
		topics = append(topics, TopicItems)
	}
	s.afterCommit(ctx, eventID, true, topics...)
	return &out, nil
}

func (s *Service) UpdateVisibility(ctx context.Context, eventID, actorID, raw string) (*domain.Excursion, error) {
	vis, err := domain.ParseVisibility(raw)
	if err != nil {
		return nil, err
	}

	var out domain.Excursion
	err = s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireOwner(e, actorID); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		e.Visibility = vis
		e.UpdatedAt = now
		if err := r.UpdateExcursion(ctx, e); err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingVisibilityChanged, VisibilityPayload{
			EventID:    e.ID,
			Visibility: string(vis),
		}, now); err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, eventID, true, TopicEvent)
	return &out, nil
}
