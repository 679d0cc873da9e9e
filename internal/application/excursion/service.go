package excursion

import (
	"context"
	"time"

	"github.com/jd52dev/excursion/internal/audit"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/logger"
)

type Service struct {
	repo     Repo
	users    UserDirectory
	clock    Clock
	cache    Cache
	notifier Notifier
	audit    *audit.Logger

	ttlEvent time.Duration
}

// New wires the service. cache, notifier and auditLog may be nil.
func New(
	repo Repo,
	users UserDirectory,
	clock Clock,
	cache Cache,
	notifier Notifier,
	auditLog *audit.Logger,
	ttlEvent time.Duration,
) *Service {
	if ttlEvent == 0 {
		ttlEvent = 5 * time.Minute
	}
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Service{
		repo:     repo,
		users:    users,
		clock:    clock,
		cache:    cache,
		notifier: notifier,
		audit:    auditLog,
		ttlEvent: ttlEvent,
	}
}

func requireOwner(e *domain.Excursion, actorID string) error {
	if !e.IsOwner(actorID) {
		return domain.ErrForbidden("only the organizer can do this")
	}
	return nil
}

// requireActiveMember admits the owner and any active member.
func requireActiveMember(ctx context.Context, q Queries, e *domain.Excursion, actorID string) error {
	if e.IsOwner(actorID) {
		return nil
	}
	m, err := q.GetMember(ctx, e.ID, actorID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return domain.ErrForbidden("not an active member")
		}
		return err
	}
	if !m.Active {
		return domain.ErrForbidden("not an active member")
	}
	return nil
}

// loadForMember reads the excursion outside a transaction and checks membership.
func (s *Service) loadForMember(ctx context.Context, eventID, actorID string) (*domain.Excursion, error) {
	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireActiveMember(ctx, s.repo, e, actorID); err != nil {
		return nil, err
	}
	return e, nil
}

// afterCommit runs the best-effort side effects of a committed write.
func (s *Service) afterCommit(ctx context.Context, eventID string, invalidate bool, topics ...Topic) {
	if invalidate && s.cache != nil {
		key := cacheKeyExcursion(eventID)
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.WithCtx(ctx).Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
		}
	}
	if s.notifier == nil {
		return
	}
	for _, t := range topics {
		if err := s.notifier.Publish(ctx, eventID, t); err != nil {
			logger.WithCtx(ctx).Warn().Err(err).
				Str("event_id", eventID).
				Str("topic", string(t)).
				Msg("change notification failed")
		}
	}
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
