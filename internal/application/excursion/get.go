package excursion

import (
	"context"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/logger"
	"github.com/jd52dev/excursion/internal/metrics"
)

// Get returns the excursion to any authenticated user. Only the owner sees the secret phrase.
func (s *Service) Get(ctx context.Context, id, actorID string) (*domain.Excursion, error) {
	e, err := s.getCached(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsOwner(actorID) {
		out := e.Clone()
		return &out, nil
	}
	out := e.Redacted()
	return &out, nil
}

func (s *Service) getCached(ctx context.Context, id string) (*domain.Excursion, error) {
	key := cacheKeyExcursion(id)
	log := logger.WithCtx(ctx)

	if s.cache != nil {
		var cached domain.Excursion
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if found {
			metrics.RecordCacheLookup(true)
			return &cached, nil
		} else {
			metrics.RecordCacheLookup(false)
		}
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, e, s.ttlEvent); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return e, nil
}
