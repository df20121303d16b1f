package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/event"
	"github.com/kirinyoku/cinehold/internal/repository"
)

const DefaultHoldDuration = 10 * time.Minute

// Catalog resolves shows and seats. It is consumed read-only.
type Catalog interface {
	ShowByID(ctx context.Context, id int64) (*domain.Show, error)
	SeatsByIDs(ctx context.Context, ids []int64) ([]domain.Seat, error)
}

type Ledger interface {
	CreateHold(ctx context.Context, req domain.HoldRequest) (*domain.Booking, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Config struct {
	HoldDuration time.Duration
	Currency     string
	Pricing      domain.Pricing
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

type Service struct {
	catalog  Catalog
	ledger   Ledger
	limiter  Limiter
	notifier event.ShowNotifier
	events   event.Publisher
	log      *slog.Logger
	cfg      Config
}

// New builds the reservation service. limiter may be nil to disable rate
// limiting; nil notifier and events fall back to event.Nop.
func New(
	catalog Catalog,
	ledger Ledger,
	limiter Limiter,
	notifier event.ShowNotifier,
	events event.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = DefaultHoldDuration
	}

	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}

	if cfg.Pricing == (domain.Pricing{}) {
		cfg.Pricing = domain.DefaultPricing()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if notifier == nil {
		notifier = event.Nop{}
	}

	if events == nil {
		events = event.Nop{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		catalog:  catalog,
		ledger:   ledger,
		limiter:  limiter,
		notifier: notifier,
		events:   events,
		log:      logger.With(slog.String("component", "reservation")),
		cfg:      cfg,
	}
}

// Initiate places a time-boxed hold on seats of a show for a user.
//
// Parameters:
//   - ctx: request-scoped context.
//   - showID: ID of the show.
//   - seatIDs: IDs of the seats to hold; non-empty and without duplicates.
//   - userID: ID of the caller, already authenticated upstream.
//
// Returns:
//   - *domain.BookingSummary: the held booking with its total amount.
//   - error: reservation.ErrInvalidRequest if seatIDs is empty, has duplicates,
//     or names seats that are unknown or belong to another screen.
//   - error: reservation.ErrShowNotFound if the show does not exist.
//   - error: reservation.ErrSeatUnavailable if any seat has an active claim.
//   - error: reservation.RateLimitedError if the caller exceeded the limit.
func (s *Service) Initiate(
	ctx context.Context,
	showID int64,
	seatIDs []int64,
	userID string,
) (*domain.BookingSummary, error) {
	const op = "service.reservation.Initiate"

	if len(seatIDs) == 0 || userID == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRequest)
	}

	if hasDuplicates(seatIDs) {
		return nil, fmt.Errorf("%s:%w: duplicate seat ids", op, ErrInvalidRequest)
	}

	if s.limiter != nil {
		ok, _, retry, err := s.limiter.Allow(ctx, "initiate:"+userID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	show, err := s.catalog.ShowByID(ctx, showID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrShowNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	seats, err := s.catalog.SeatsByIDs(ctx, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if len(seats) != len(seatIDs) {
		return nil, fmt.Errorf("%s:%w: unknown seat ids", op, ErrInvalidRequest)
	}

	for _, seat := range seats {
		if seat.ScreenID != show.ScreenID {
			return nil, fmt.Errorf("%s:%w: seat %d is not on screen %d", op, ErrInvalidRequest, seat.ID, show.ScreenID)
		}
	}

	now := s.cfg.Now()
	amount := s.cfg.Pricing.Total(seats)

	booking, err := s.ledger.CreateHold(ctx, domain.HoldRequest{
		ShowID:     showID,
		UserID:     userID,
		SeatIDs:    seatIDs,
		Amount:     amount,
		Now:        now,
		LockExpiry: now.Add(s.cfg.HoldDuration),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatsUnavailable):
			return nil, fmt.Errorf("%s:%w", op, ErrSeatUnavailable)
		case errors.Is(err, repository.ErrSeatsNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidRequest)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.afterHold(ctx, booking)

	labels := make([]string, 0, len(seats))
	for _, seat := range seats {
		labels = append(labels, seat.Label)
	}

	return &domain.BookingSummary{
		BookingID:  booking.ID,
		MovieID:    show.MovieID,
		Seats:      labels,
		Status:     booking.Status,
		LockExpiry: booking.LockExpiry,
		Amount:     booking.Amount,
		Currency:   s.cfg.Currency,
	}, nil
}

// afterHold runs once the hold is committed; failures are logged only.
func (s *Service) afterHold(ctx context.Context, b *domain.Booking) {
	if err := s.notifier.PublishShowChanged(ctx, b.ShowID); err != nil {
		s.log.WarnContext(ctx, "publish show changed failed",
			slog.Int64("show_id", b.ShowID),
			slog.Any("err", err),
		)
	}

	ev := domain.BookingEvent{
		Type:       domain.EventBookingHeld,
		BookingID:  b.ID,
		UserID:     b.UserID,
		ShowID:     b.ShowID,
		Status:     string(b.Status),
		Amount:     b.Amount,
		OccurredAt: b.CreatedAt,
	}
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish booking event failed",
			slog.String("type", ev.Type),
			slog.String("booking_id", b.ID.String()),
			slog.Any("err", err),
		)
	}
}

func hasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
