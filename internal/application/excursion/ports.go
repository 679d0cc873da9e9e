package excursion

import (
	"context"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
)

type Clock interface {
	Now() time.Time
}

// Queries are the reads shared by the pool and by an open transaction.
type Queries interface {
	GetByID(ctx context.Context, id string) (*domain.Excursion, error)
	ListByOwner(ctx context.Context, ownerID string, vis *domain.Visibility, limit int, after *domain.KeysetCursor) ([]domain.Excursion, error)

	GetMember(ctx context.Context, eventID, userID string) (*domain.Member, error)
	ListMembers(ctx context.Context, eventID string, active bool) ([]domain.Member, error)
	MemberNames(ctx context.Context, eventID string) ([]string, error)

	ListLocations(ctx context.Context, eventID string) ([]domain.RankedLocation, error)
	ListAvailability(ctx context.Context, eventID string) ([]domain.MemberAvailability, error)
	TimeTally(ctx context.Context, eventID string) ([]domain.Tally, error)
	// GetSelection returns nil, nil while the round is still open.
	GetSelection(ctx context.Context, eventID string, step domain.Step) (*domain.Selection, error)

	ListItems(ctx context.Context, eventID string) ([]domain.RequiredItem, []domain.CollectiveItem, error)
	ListContributions(ctx context.Context, eventID, itemTitle string) ([]domain.Contribution, error)
}

// TxRepo is the write side. Every method runs inside the caller's transaction.
// Writers lock the excursion row first (GetForUpdate or GetForShare) so all
// transactions on one excursion take locks in the same order.
type TxRepo interface {
	Queries

	InsertExcursion(ctx context.Context, e *domain.Excursion) error
	OwnerHasTitle(ctx context.Context, ownerID, title string) (bool, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Excursion, error)
	GetForShare(ctx context.Context, id string) (*domain.Excursion, error)
	UpdateExcursion(ctx context.Context, e *domain.Excursion) error

	InsertMember(ctx context.Context, m domain.Member) error
	UpdateMember(ctx context.Context, m domain.Member) error
	// DeleteMember also drops the member's votes and availability.
	DeleteMember(ctx context.Context, eventID, userID string) error
	CountActiveMembers(ctx context.Context, eventID string) (int, error)
	// RefreshMemberNames rewrites the members aggregate from the member rows.
	RefreshMemberNames(ctx context.Context, eventID string) ([]string, error)

	InsertLocation(ctx context.Context, eventID string, p domain.LocationProposal) (domain.LocationProposal, error)
	CountLocationsBy(ctx context.Context, eventID, userID string) (int, error)
	DeleteLocation(ctx context.Context, eventID, title string) error

	UpsertAvailability(ctx context.Context, eventID string, a domain.MemberAvailability) error

	UpsertVote(ctx context.Context, v domain.Vote) error
	DeleteVotesFor(ctx context.Context, eventID string, step domain.Step, key string) error

	InsertSelection(ctx context.Context, s domain.Selection) error

	ReplaceItems(ctx context.Context, eventID string, required []domain.RequiredItem, collective []domain.CollectiveItem) error
	IncrementItem(ctx context.Context, eventID, title string, amount int64) (domain.CollectiveItem, error)
	AddContribution(ctx context.Context, eventID, title, userID string, amount int64, at time.Time) error

	InsertOutbox(ctx context.Context, msg OutboxMessage) error
}

type Repo interface {
	Queries
	WithTx(ctx context.Context, fn func(r TxRepo) error) error
}

// UserDirectory resolves users known to the identity provider.
type UserDirectory interface {
	GetUser(ctx context.Context, uid string) (*domain.User, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Topic names the part of an excursion that changed.
type Topic string

const (
	TopicEvent     Topic = "event"
	TopicMembers   Topic = "members"
	TopicLocations Topic = "locations"
	TopicTimes     Topic = "times"
	TopicItems     Topic = "items"
)

func ParseTopic(raw string) (Topic, error) {
	switch t := Topic(raw); t {
	case TopicEvent, TopicMembers, TopicLocations, TopicTimes, TopicItems:
		return t, nil
	default:
		return "", domain.ErrValidationMeta("invalid query param", map[string]string{
			"topic": "must be one of: event, members, locations, times, items",
		})
	}
}

// Notifier fans out "something changed" signals per excursion.
type Notifier interface {
	Publish(ctx context.Context, eventID string, topic Topic) error
	Subscribe(ctx context.Context, eventID string) (Listener, error)
}

type Listener interface {
	C() <-chan Topic
	Close() error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey, messageID string, body []byte) error
}

type OutboxMessage struct {
	MessageID  string
	RoutingKey string
	Body       []byte
	CreatedAt  time.Time
}
