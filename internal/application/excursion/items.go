package excursion

import (
	"context"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/metrics"
)

func (s *Service) ListItems(ctx context.Context, eventID, actorID string) (*domain.ItemsView, error) {
	e, err := s.loadForMember(ctx, eventID, actorID)
	if err != nil {
		return nil, err
	}
	return s.items(ctx, s.repo, e)
}

func (s *Service) items(ctx context.Context, q Queries, e *domain.Excursion) (*domain.ItemsView, error) {
	req, coll, err := q.ListItems(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	v := &domain.ItemsView{RequiredItems: req, CollectiveItems: coll}
	if e.Contribution != nil {
		p := *e.Contribution
		v.Policy = &p
	}
	return v, nil
}

// Pledge adds amount to a collective item with a single increment statement.
// Pledges past the target are accepted.
func (s *Service) Pledge(ctx context.Context, eventID, actorID, title string, amount int64) (*domain.CollectiveItem, error) {
	if err := domain.ValidatePledge(amount); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)

	var out domain.CollectiveItem
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForShare(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireActiveMember(ctx, r, e, actorID); err != nil {
			return err
		}

		item, err := r.IncrementItem(ctx, eventID, title, amount)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		if err := r.AddContribution(ctx, eventID, title, actorID, amount, now); err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingItemPledged, PledgePayload{
			EventID: eventID,
			UserID:  actorID,
			Item:    title,
			Amount:  amount,
			Total:   item.CurrentAmount,
			Target:  item.TargetAmount,
		}, now); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPledge(amount)
	s.audit.Pledged(ctx, eventID, actorID, title, amount, out.CurrentAmount)
	s.afterCommit(ctx, eventID, false, TopicItems)
	return &out, nil
}

// Contributions is the per-member ledger of one collective item.
func (s *Service) Contributions(ctx context.Context, eventID, actorID, title string) ([]domain.Contribution, error) {
	if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)

	_, coll, err := s.repo.ListItems(ctx, eventID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range coll {
		if c.Title == title {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrNotFound("item not found")
	}
	return s.repo.ListContributions(ctx, eventID, title)
}
