package excursion

import (
	"context"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
)

type CreateCmd struct {
	ActorID     string
	Title       string
	Description string
	Visibility  string
}

// Create stores a new excursion with its owner admitted as the first active member.
func (s *Service) Create(ctx context.Context, cmd CreateCmd) (*domain.Excursion, error) {
	owner, err := s.users.GetUser(ctx, cmd.ActorID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.ErrOwnerNotFound("owner does not exist")
		}
		return nil, err
	}

	vis, err := domain.ParseVisibility(cmd.Visibility)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	e, err := domain.NewExcursion(owner.ID, cmd.Title, now)
	if err != nil {
		return nil, err
	}
	e.Visibility = vis
	if desc := strings.TrimSpace(cmd.Description); desc != "" {
		if err := e.ApplyStep(domain.StepDescription, domain.StepUpdate{Description: &desc}, now); err != nil {
			return nil, err
		}
	}

	err = s.repo.WithTx(ctx, func(r TxRepo) error {
		taken, err := r.OwnerHasTitle(ctx, e.OwnerID, e.Title)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrDuplicate("you already have an excursion with this title")
		}
		if err := r.InsertExcursion(ctx, e); err != nil {
			return err
		}

		approved := now
		if err := r.InsertMember(ctx, domain.Member{
			EventID:     e.ID,
			UserID:      e.OwnerID,
			DisplayName: owner.Username,
			Active:      true,
			JoinedAt:    now,
			ApprovedAt:  &approved,
		}); err != nil {
			return err
		}
		if _, err := r.RefreshMemberNames(ctx, e.ID); err != nil {
			return err
		}

		return writeOutbox(ctx, r, RoutingCreated, CreatedPayload{
			EventID:    e.ID,
			OwnerID:    e.OwnerID,
			Title:      e.Title,
			Visibility: string(e.Visibility),
		}, now)
	})
	if err != nil {
		return nil, err
	}

	out := e.Clone()
	return &out, nil
}
