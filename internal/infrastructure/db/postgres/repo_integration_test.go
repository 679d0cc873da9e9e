//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/infrastructure/db/postgres"
	"github.com/jd52dev/excursion/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("excursions"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		os.Exit(1)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "dsn: %v\n", err)
		os.Exit(1)
	}
	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pool: %v\n", err)
		os.Exit(1)
	}
	if err := postgres.New(testPool).Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	testPool.Close()
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func resetDB(t *testing.T) *postgres.Repo {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := testPool.Exec(ctx, `
TRUNCATE excursions, members, member_names, locations, availability, votes,
         selections, required_items, collective_items, contributions,
         outbox, processed_messages RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return postgres.New(testPool)
}

const (
	owner = "owner-1"
	alice = "alice-1"
	bob   = "bob-1"
)

func newService(repo *postgres.Repo) *app.Service {
	users := memory.NewUsers(
		domain.User{ID: owner, Username: "olivia"},
		domain.User{ID: alice, Username: "alice"},
		domain.User{ID: bob, Username: "bob"},
	)
	return app.New(repo, users, app.SystemClock{}, nil, nil, nil, 0)
}

func createOpen(t *testing.T, svc *app.Service, title string, members ...string) *domain.Excursion {
	t.Helper()
	ctx := context.Background()
	ex, err := svc.Create(ctx, app.CreateCmd{ActorID: owner, Title: title, Visibility: "public"})
	require.NoError(t, err)
	_, err = svc.AdvanceStep(ctx, ex.ID, owner, domain.StepInvitation, domain.StepUpdate{
		Invitation: &domain.InvitationPolicy{},
	})
	require.NoError(t, err)
	for _, uid := range members {
		_, err := svc.RequestJoin(ctx, ex.ID, app.JoinCmd{ActorID: uid})
		require.NoError(t, err)
	}
	return ex
}

func TestRepo_CreateAndRead(t *testing.T) {
	repo := resetDB(t)
	svc := newService(repo)
	ctx := context.Background()

	ex := createOpen(t, svc, "Lake day", alice)

	got, err := repo.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lake day", got.Title)
	assert.Equal(t, domain.VisibilityPublic, got.Visibility)
	require.NotNil(t, got.Invitation)
	assert.True(t, got.Progress.Invitation)

	names, err := repo.MemberNames(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"olivia", "alice"}, names)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))

	_, err = svc.Create(ctx, app.CreateCmd{ActorID: owner, Title: "Lake day"})
	assert.True(t, domain.IsCode(err, domain.CodeDuplicate))
}

func TestRepo_ListByOwnerKeyset(t *testing.T) {
	repo := resetDB(t)
	svc := newService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, app.CreateCmd{ActorID: owner, Title: fmt.Sprintf("Trip %d", i)})
		require.NoError(t, err)
	}

	var seen []string
	var cursor string
	for {
		page, err := svc.ListByOwner(ctx, app.ListQuery{ActorID: owner, OwnerID: owner, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, e := range page.Items {
			seen = append(seen, e.Title)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []string{"Trip 4", "Trip 3", "Trip 2", "Trip 1", "Trip 0"}, seen)
}

func TestRepo_VotesAndFinalize(t *testing.T) {
	repo := resetDB(t)
	svc := newService(repo)
	ctx := context.Background()

	ex := createOpen(t, svc, "Climb", alice, bob)
	_, err := svc.AdvanceStep(ctx, ex.ID, owner, domain.StepLocation, domain.StepUpdate{
		Location: &domain.LocationPolicy{MaxSuggestions: 3},
	})
	require.NoError(t, err)

	for _, title := range []string{"Gym", "Crag"} {
		_, err := svc.SubmitLocation(ctx, ex.ID, alice, app.LocationCmd{Title: title})
		require.NoError(t, err)
	}
	_, err = svc.SubmitLocation(ctx, ex.ID, bob, app.LocationCmd{Title: "Gym"})
	assert.True(t, domain.IsCode(err, domain.CodeDuplicate))

	_, err = svc.CastVote(ctx, ex.ID, alice, domain.StepLocation, "Gym")
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, ex.ID, bob, domain.StepLocation, "Crag")
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, ex.ID, alice, domain.StepLocation, "Crag")
	require.NoError(t, err)

	ranked, err := repo.ListLocations(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Gym", ranked[0].Title)
	assert.Equal(t, 0, ranked[0].Votes)
	assert.Equal(t, 2, ranked[1].Votes)
	assert.Less(t, ranked[0].Seq, ranked[1].Seq)

	sel, err := svc.FinalizeSelection(ctx, ex.ID, owner, domain.StepLocation, domain.SelectionInput{Locations: []string{"Crag"}})
	require.NoError(t, err)
	assert.Equal(t, "Crag", sel.Locations[0].Title)

	_, err = svc.FinalizeSelection(ctx, ex.ID, owner, domain.StepLocation, domain.SelectionInput{Locations: []string{"Gym"}})
	assert.True(t, domain.IsCode(err, domain.CodeStepClosed))

	_, err = svc.CastVote(ctx, ex.ID, bob, domain.StepLocation, "Gym")
	assert.True(t, domain.IsCode(err, domain.CodeStepClosed))

	stored, err := repo.GetSelection(ctx, ex.ID, domain.StepLocation)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, owner, stored.FinalizedBy)
}

func TestRepo_RemoveMemberCascades(t *testing.T) {
	repo := resetDB(t)
	svc := newService(repo)
	ctx := context.Background()

	ex := createOpen(t, svc, "Picnic", alice)
	_, err := svc.AdvanceStep(ctx, ex.ID, owner, domain.StepTime, domain.StepUpdate{Time: &domain.TimePolicy{}})
	require.NoError(t, err)

	slots := domain.DaySlots{Date: "2025-06-01"}
	slots.Hours[10] = true
	_, err = svc.SubmitAvailability(ctx, ex.ID, alice, []domain.DaySlots{slots})
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, ex.ID, alice, domain.StepTime, domain.SlotKey("2025-06-01", 10))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(ctx, ex.ID, owner, alice))

	avail, err := repo.ListAvailability(ctx, ex.ID)
	require.NoError(t, err)
	assert.Empty(t, avail)

	tally, err := repo.TimeTally(ctx, ex.ID)
	require.NoError(t, err)
	assert.Empty(t, tally)

	names, err := repo.MemberNames(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"olivia"}, names)
}

func TestRepo_ConcurrentPledgesAreNotLost(t *testing.T) {
	repo := resetDB(t)
	svc := newService(repo)
	ctx := context.Background()

	ex := createOpen(t, svc, "Road trip", alice, bob)
	_, err := svc.AdvanceStep(ctx, ex.ID, owner, domain.StepContributions, domain.StepUpdate{
		Contributions: &domain.ContributionsSetup{
			CollectiveItems: []domain.CollectiveItem{{Title: "Fuel", TargetAmount: 40, Unit: "l"}},
		},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		uid := alice
		if i%2 == 1 {
			uid = bob
		}
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := svc.Pledge(ctx, ex.ID, uid, "Fuel", 3)
			errs <- err
		}(uid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, items, err := repo.ListItems(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(60), items[0].CurrentAmount)
	assert.Equal(t, int64(0), items[0].Remaining())

	ledger, err := repo.ListContributions(ctx, ex.ID, "Fuel")
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, int64(30), ledger[0].Amount)
	assert.Equal(t, int64(30), ledger[1].Amount)

	// Re-running the step keeps the running total for surviving titles.
	_, err = svc.AdvanceStep(ctx, ex.ID, owner, domain.StepContributions, domain.StepUpdate{
		Contributions: &domain.ContributionsSetup{
			CollectiveItems: []domain.CollectiveItem{
				{Title: "Fuel", TargetAmount: 80, Unit: "l"},
				{Title: "Snacks", TargetAmount: 5},
			},
		},
	})
	require.NoError(t, err)
	_, items, err = repo.ListItems(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(60), items[0].CurrentAmount)
	assert.Equal(t, int64(80), items[0].TargetAmount)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, routingKey, _ string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	return nil
}

func TestOutbox_PublishAndRetry(t *testing.T) {
	repo := resetDB(t)
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, app.CreateCmd{ActorID: owner, Title: "Museum"})
	require.NoError(t, err)

	failing := &recordingPublisher{err: errors.New("broker down")}
	n, err := repo.ProcessOutboxBatch(ctx, failing, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var status string
	var attempts int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT status, attempts FROM outbox`).Scan(&status, &attempts))
	assert.Equal(t, "pending", status)
	assert.Equal(t, 1, attempts)

	// Not due yet.
	ok := &recordingPublisher{}
	n, err = repo.ProcessOutboxBatch(ctx, ok, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = testPool.Exec(ctx, `UPDATE outbox SET next_retry_at = NOW() - INTERVAL '1 second'`)
	require.NoError(t, err)

	n, err = repo.ProcessOutboxBatch(ctx, ok, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{app.RoutingCreated}, ok.keys)

	require.NoError(t, testPool.QueryRow(ctx, `SELECT status FROM outbox`).Scan(&status))
	assert.Equal(t, "sent", status)
}

func TestProcessOnce(t *testing.T) {
	repo := resetDB(t)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	done, err := repo.ProcessOnce(ctx, "msg-1", "user_sync", fn)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.ProcessOnce(ctx, "msg-1", "user_sync", fn)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, calls)

	t.Run("failed_handler_can_retry", func(t *testing.T) {
		_, err := repo.ProcessOnce(ctx, "msg-2", "user_sync", func(context.Context) error { return errors.New("boom") })
		require.Error(t, err)

		done, err := repo.ProcessOnce(ctx, "msg-2", "user_sync", fn)
		require.NoError(t, err)
		assert.True(t, done)
	})
}
