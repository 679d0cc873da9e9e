package excursion

import (
	"context"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
)

type JoinCmd struct {
	ActorID      string
	DisplayName  string
	SecretPhrase string
}

// RequestJoin admits the actor, or queues them for approval when the excursion requires it.
func (s *Service) RequestJoin(ctx context.Context, eventID string, cmd JoinCmd) (*domain.Member, error) {
	fallback := ""
	if strings.TrimSpace(cmd.DisplayName) == "" {
		u, err := s.users.GetUser(ctx, cmd.ActorID)
		if err != nil && !domain.IsCode(err, domain.CodeNotFound) {
			return nil, err
		}
		if u != nil {
			fallback = u.Username
		}
	}
	name, err := domain.NormalizeDisplayName(cmd.DisplayName, fallback)
	if err != nil {
		return nil, err
	}

	var out domain.Member
	err = s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}

		existing, err := r.GetMember(ctx, eventID, cmd.ActorID)
		if err != nil && !domain.IsCode(err, domain.CodeNotFound) {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicate("already a member of this excursion")
		}

		active := true
		if p := e.Invitation; p != nil {
			if !p.SecretMatches(cmd.SecretPhrase) {
				return domain.ErrForbidden("secret phrase does not match")
			}
			n, err := r.CountActiveMembers(ctx, eventID)
			if err != nil {
				return err
			}
			if !p.HasRoom(n) {
				return domain.ErrCapacityExceeded("excursion is full")
			}
			active = !p.NeedsApproval
		}

		now := s.clock.Now().UTC()
		m := domain.Member{
			EventID:     eventID,
			UserID:      cmd.ActorID,
			DisplayName: name,
			Active:      active,
			JoinedAt:    now,
		}
		if active {
			m.ApprovedAt = &now
		}
		if err := r.InsertMember(ctx, m); err != nil {
			return err
		}
		if active {
			if _, err := r.RefreshMemberNames(ctx, eventID); err != nil {
				return err
			}
		}

		if err := writeOutbox(ctx, r, RoutingMemberJoined, MemberPayload{
			EventID: eventID,
			UserID:  m.UserID,
			Status:  string(m.Status()),
		}, now); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, eventID, false, TopicMembers)
	return &out, nil
}

// ApproveMember activates a pending member. Approving an active member is a no-op.
// Capacity only gates admission, so approval may take the excursion past it.
func (s *Service) ApproveMember(ctx context.Context, eventID, actorID, targetID string) (*domain.Member, error) {
	var (
		out     domain.Member
		changed bool
	)
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireOwner(e, actorID); err != nil {
			return err
		}

		m, err := r.GetMember(ctx, eventID, targetID)
		if err != nil {
			return err
		}
		if m.Active {
			out = *m
			return nil
		}

		now := s.clock.Now().UTC()
		m.Active = true
		m.ApprovedAt = &now
		if err := r.UpdateMember(ctx, *m); err != nil {
			return err
		}
		if _, err := r.RefreshMemberNames(ctx, eventID); err != nil {
			return err
		}
		if err := writeOutbox(ctx, r, RoutingMemberApproved, MemberPayload{
			EventID: eventID,
			UserID:  targetID,
			Status:  string(domain.MemberActive),
			ActorID: actorID,
		}, now); err != nil {
			return err
		}
		out = *m
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.audit.MemberApproved(ctx, eventID, actorID, targetID)
		s.afterCommit(ctx, eventID, false, TopicMembers)
	}
	return &out, nil
}

// RemoveMember drops a member with their votes and availability.
func (s *Service) RemoveMember(ctx context.Context, eventID, actorID, targetID string) error {
	err := s.repo.WithTx(ctx, func(r TxRepo) error {
		e, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := requireOwner(e, actorID); err != nil {
			return err
		}
		if e.IsOwner(targetID) {
			return domain.ErrValidation("the organizer cannot remove themselves")
		}

		if _, err := r.GetMember(ctx, eventID, targetID); err != nil {
			return err
		}
		if err := r.DeleteMember(ctx, eventID, targetID); err != nil {
			return err
		}
		if _, err := r.RefreshMemberNames(ctx, eventID); err != nil {
			return err
		}
		return writeOutbox(ctx, r, RoutingMemberRemoved, MemberPayload{
			EventID: eventID,
			UserID:  targetID,
			ActorID: actorID,
		}, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.audit.MemberRemoved(ctx, eventID, actorID, targetID)
	s.afterCommit(ctx, eventID, false, TopicMembers, TopicLocations, TopicTimes)
	return nil
}

// ListMembers returns members with the given status in join order.
// Active members see the active list; only the organizer sees pending requests.
func (s *Service) ListMembers(ctx context.Context, eventID, actorID string, status domain.MemberStatus) ([]domain.Member, error) {
	e, err := s.loadForMember(ctx, eventID, actorID)
	if err != nil {
		return nil, err
	}
	if status == domain.MemberPending {
		if err := requireOwner(e, actorID); err != nil {
			return nil, err
		}
	}

	ms, err := s.repo.ListMembers(ctx, eventID, status == domain.MemberActive)
	if err != nil {
		return nil, err
	}
	domain.SortMembers(ms)
	return ms, nil
}

// GetMember lets a user look up their own membership, pending or not.
// Looking up someone else requires active membership.
func (s *Service) GetMember(ctx context.Context, eventID, actorID, targetID string) (*domain.Member, error) {
	if actorID != targetID {
		if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
			return nil, err
		}
	} else if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.GetMember(ctx, eventID, targetID)
}

func (s *Service) MemberNames(ctx context.Context, eventID, actorID string) ([]string, error) {
	if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return s.repo.MemberNames(ctx, eventID)
}
