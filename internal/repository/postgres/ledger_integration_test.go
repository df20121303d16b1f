//go:build integration

package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/postgres"
	"github.com/kirinyoku/cinehold/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cinehold"),
		tcpostgres.WithUsername("cinehold"),
		tcpostgres.WithPassword("cinehold"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start postgres:", err)
		return 1
	}
	defer func() { _ = testcontainers.TerminateContainer(ctr) }()

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintln(os.Stderr, "dsn:", err)
		return 1
	}

	if err := postgres.Migrate(ctx, dsn); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		return 1
	}

	testPool, err = postgres.New(ctx, postgres.Config{DSN: dsn, MaxConns: 32})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pool:", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}

type fixture struct {
	store  *Store
	showID int64
	seats  []int64
	now    time.Time
}

var screenSeq atomic.Int64

// newFixture seeds a fresh screen with n seats and one show on it.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()

	ctx := context.Background()
	store := NewStore(testPool)
	cat := store.Catalog()
	now := time.Now().UTC().Truncate(time.Microsecond)

	screenID, err := cat.CreateScreen(ctx, domain.Screen{
		TheatreName: "Integration",
		Name:        fmt.Sprintf("%s-%d", t.Name(), screenSeq.Add(1)),
		OwnerID:     "owner",
	})
	require.NoError(t, err)

	specs := make([]domain.Seat, 0, n)
	for i := 1; i <= n; i++ {
		num := fmt.Sprint(i)
		specs = append(specs, domain.Seat{Row: "A", Number: num, Label: "A" + num, Type: domain.SeatStandard})
	}
	_, err = cat.CreateSeats(ctx, screenID, specs)
	require.NoError(t, err)

	showID, err := cat.CreateShow(ctx, domain.Show{
		ScreenID: screenID,
		MovieID:  "tt0110912",
		StartsAt: now.Add(time.Hour),
		EndsAt:   now.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	seats, err := cat.SeatsByScreen(ctx, screenID)
	require.NoError(t, err)

	ids := make([]int64, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
	}

	return &fixture{store: store, showID: showID, seats: ids, now: now}
}

func (f *fixture) hold(user string, ttl time.Duration, seats ...int64) domain.HoldRequest {
	return domain.HoldRequest{
		ShowID:     f.showID,
		UserID:     user,
		SeatIDs:    seats,
		Amount:     int64(len(seats)) * 20000,
		Now:        f.now,
		LockExpiry: f.now.Add(ttl),
	}
}

func mintAs(ref string) domain.MintOrderFunc {
	return func(context.Context, domain.Booking) (string, error) { return ref, nil }
}

func TestCreateHold_ConcurrentOverlapSingleWinner(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	const workers = 24
	var wg sync.WaitGroup
	var wins, losses atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			// every request contains seat 2; orders differ to provoke lock ordering issues
			seats := []int64{f.seats[1], f.seats[i%4]}
			if i%2 == 0 {
				seats = []int64{f.seats[i%4], f.seats[1]}
			}
			if seats[0] == seats[1] {
				seats = seats[:1]
			}

			_, err := f.store.Ledger().CreateHold(ctx, f.hold(fmt.Sprintf("u%d", i), 10*time.Minute, seats...))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, repository.ErrSeatsUnavailable):
				losses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), losses.Load())

	claims, err := f.store.Query().ActiveClaims(ctx, f.showID, f.now)
	require.NoError(t, err)

	perSeat := map[int64]int{}
	for _, c := range claims {
		perSeat[c.SeatID]++
	}
	for seat, n := range perSeat {
		assert.Equal(t, 1, n, "seat %d", seat)
	}
}

func TestCreateHold_RejectsUnknownSeatsAndLapsedClaims(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	ledger := f.store.Ledger()

	_, err := ledger.CreateHold(ctx, f.hold("u1", time.Minute, f.seats[0], -1))
	assert.ErrorIs(t, err, repository.ErrSeatsNotFound)

	_, err = ledger.CreateHold(ctx, f.hold("u1", time.Minute, f.seats[0]))
	require.NoError(t, err)

	later := f.hold("u2", 10*time.Minute, f.seats[0])
	later.Now = f.now.Add(2 * time.Minute)
	later.LockExpiry = later.Now.Add(10 * time.Minute)

	b, err := ledger.CreateHold(ctx, later)
	require.NoError(t, err, "a lapsed hold must not block even before it is swept")
	assert.Equal(t, "u2", b.UserID)
}

func TestSettlePayment_ConcurrentDuplicatesConfirmOnce(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	ledger := f.store.Ledger()

	b, err := ledger.CreateHold(ctx, f.hold("u1", 10*time.Minute, f.seats...))
	require.NoError(t, err)

	ref := "order_" + b.ID.String()[:8]
	p, err := ledger.InitiatePayment(ctx, domain.PaymentRequest{BookingID: b.ID, UserID: "u1", Currency: "INR", Now: f.now}, mintAs(ref))
	require.NoError(t, err)
	assert.Equal(t, int64(40000), p.Amount)

	_, err = ledger.InitiatePayment(ctx, domain.PaymentRequest{BookingID: b.ID, UserID: "u1", Now: f.now}, mintAs("order_other"))
	assert.ErrorIs(t, err, repository.ErrPaymentExists)

	const deliveries = 8
	var wg sync.WaitGroup
	var firsts atomic.Int32

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := ledger.SettlePayment(ctx, ref, "pay_1", f.now.Add(time.Minute))
			if !assert.NoError(t, err) {
				return
			}
			if !st.Duplicate {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())

	got, err := f.store.Query().BookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.ElementsMatch(t, f.seats, got.SeatIDs)

	history, err := f.store.Query().BookingsByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, int64(40000), history[0].AmountPaid)

	_, err = ledger.SettlePayment(ctx, "order_missing", "pay_x", f.now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExpireHolds_RacesWithSettlement(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	ledger := f.store.Ledger()

	refs := make(map[string]int64, len(f.seats))
	for i, seat := range f.seats {
		b, err := ledger.CreateHold(ctx, f.hold("u", 5*time.Minute, seat))
		require.NoError(t, err)

		ref := fmt.Sprintf("order_race_%d_%d", f.showID, i)
		_, err = ledger.InitiatePayment(ctx, domain.PaymentRequest{BookingID: b.ID, UserID: "u", Now: f.now}, mintAs(ref))
		require.NoError(t, err)
		refs[ref] = seat
	}

	var wg sync.WaitGroup
	settled := make(map[string]error, len(refs))
	var mu sync.Mutex

	for ref := range refs {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			// the gateway captured before expiry; the sweep runs on a later clock
			_, err := ledger.SettlePayment(ctx, ref, "pay_"+ref, f.now.Add(time.Minute))
			mu.Lock()
			settled[ref] = err
			mu.Unlock()
		}(ref)
	}

	wg.Add(1)
	var expired []domain.Booking
	go func() {
		defer wg.Done()
		var err error
		expired, err = ledger.ExpireHolds(ctx, f.now.Add(10*time.Minute), 100)
		assert.NoError(t, err)
	}()
	wg.Wait()

	// rows skipped under a settlement lock are picked up by the next sweep
	rest, err := ledger.ExpireHolds(ctx, f.now.Add(10*time.Minute), 100)
	require.NoError(t, err)

	// the sweep is global; count only this show's bookings
	expiredIDs := map[string]bool{}
	for _, b := range append(expired, rest...) {
		if b.ShowID == f.showID {
			expiredIDs[b.ID.String()] = true
		}
	}

	claims, err := f.store.Query().ActiveClaims(ctx, f.showID, f.now.Add(10*time.Minute))
	require.NoError(t, err)

	confirmed := 0
	for _, c := range claims {
		assert.Equal(t, domain.BookingConfirmed, c.Status)
		confirmed++
	}

	ok := 0
	for _, err := range settled {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrInvalidState)
	}

	assert.Equal(t, ok, confirmed, "every successful settlement holds its seat")
	assert.Equal(t, len(refs), confirmed+len(expiredIDs), "each hold ends either confirmed or expired")
}

func TestCreateShow_OverlapAndSeatConflicts(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	cat := f.store.Catalog()

	show, err := cat.ShowByID(ctx, f.showID)
	require.NoError(t, err)

	_, err = cat.CreateShow(ctx, domain.Show{
		ScreenID: show.ScreenID,
		MovieID:  "tt0109830",
		StartsAt: show.StartsAt.Add(time.Hour),
		EndsAt:   show.EndsAt.Add(time.Hour),
	})
	assert.ErrorIs(t, err, repository.ErrShowOverlap)

	_, err = cat.CreateShow(ctx, domain.Show{
		ScreenID: show.ScreenID,
		MovieID:  "tt0109830",
		StartsAt: show.EndsAt,
		EndsAt:   show.EndsAt.Add(2 * time.Hour),
	})
	assert.NoError(t, err)

	// writes that skip the repository still hit the exclusion constraint
	_, err = testPool.Exec(ctx,
		`INSERT INTO shows(screen_id, movie_id, starts_at, ends_at) VALUES ($1, $2, $3, $4)`,
		show.ScreenID, "tt0110912", show.StartsAt.Add(30*time.Minute), show.EndsAt,
	)
	require.Error(t, err)
	assert.ErrorIs(t, translateDBErr(err), repository.ErrShowOverlap)

	_, err = cat.CreateSeats(ctx, show.ScreenID, []domain.Seat{
		{Row: "B", Number: "1", Label: "B1", Type: domain.SeatPremium},
		{Row: "A", Number: "1", Label: "A1", Type: domain.SeatStandard},
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	seats, err := cat.SeatsByScreen(ctx, show.ScreenID)
	require.NoError(t, err)
	assert.Len(t, seats, 1, "a conflicting batch inserts nothing")

	details, err := cat.ShowDetails(ctx, f.showID)
	require.NoError(t, err)
	assert.Equal(t, "Integration", details.TheatreName)

	_, err = cat.ShowByID(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
