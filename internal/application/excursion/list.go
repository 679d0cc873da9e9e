package excursion

import (
	"context"
	"strings"

	"github.com/jd52dev/excursion/internal/domain"
)

type ListQuery struct {
	ActorID    string
	OwnerID    string
	Visibility string
	Cursor     string
	Limit      int
}

type ListResult struct {
	Items      []domain.Excursion `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// ListByOwner pages through an owner's excursions, newest first. Other users
// only see public ones and may not ask for private ones.
func (s *Service) ListByOwner(ctx context.Context, q ListQuery) (ListResult, error) {
	ownerID := strings.TrimSpace(q.OwnerID)
	if ownerID == "" {
		return ListResult{}, domain.ErrValidation("owner id is required")
	}
	self := ownerID == q.ActorID

	var vis *domain.Visibility
	if strings.TrimSpace(q.Visibility) != "" {
		v, err := domain.ParseVisibility(q.Visibility)
		if err != nil {
			return ListResult{}, err
		}
		vis = &v
	}
	if !self {
		if vis != nil && *vis == domain.VisibilityPrivate {
			return ListResult{}, domain.ErrForbidden("private excursions are visible to their owner only")
		}
		pub := domain.VisibilityPublic
		vis = &pub
	}

	after, err := domain.DecodeCursor(q.Cursor)
	if err != nil {
		return ListResult{}, err
	}
	limit := domain.ClampLimit(q.Limit)

	items, err := s.repo.ListByOwner(ctx, ownerID, vis, limit+1, after)
	if err != nil {
		return ListResult{}, err
	}

	res := ListResult{Items: items}
	if len(items) > limit {
		res.Items = items[:limit]
		last := res.Items[limit-1]
		res.NextCursor = domain.KeysetCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	for i := range res.Items {
		if !self {
			res.Items[i] = res.Items[i].Redacted()
		}
	}
	return res, nil
}
