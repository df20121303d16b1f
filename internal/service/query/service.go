package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository"
)

type Catalog interface {
	ShowByID(ctx context.Context, id int64) (*domain.Show, error)
	ShowDetails(ctx context.Context, id int64) (*domain.ShowDetails, error)
	SeatsByScreen(ctx context.Context, screenID int64) ([]domain.Seat, error)
	SeatsByIDs(ctx context.Context, ids []int64) ([]domain.Seat, error)
}

type Ledger interface {
	ActiveClaims(ctx context.Context, showID int64, now time.Time) ([]domain.SeatClaim, error)
	BookingByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	BookingsByUser(ctx context.Context, userID string) ([]domain.UserBooking, error)
}

// ShowCache caches show records. Seat availability never goes through it.
type ShowCache interface {
	ShowByID(
		ctx context.Context,
		id int64,
		ttl time.Duration,
		load func(ctx context.Context) (domain.Show, error),
	) (domain.Show, error)
}

type Config struct {
	ShowTTL time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

type Service struct {
	catalog Catalog
	ledger  Ledger
	cache   ShowCache
	cfg     Config
}

// New builds the query service; cache may be nil.
func New(catalog Catalog, ledger Ledger, cache ShowCache, cfg Config) *Service {
	if cfg.ShowTTL <= 0 {
		cfg.ShowTTL = 60 * time.Second
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		catalog: catalog,
		ledger:  ledger,
		cache:   cache,
		cfg:     cfg,
	}
}

// SeatsForShow projects every seat of the show's screen onto its current
// availability: BOOKED under a confirmed booking, LOCKED under an unexpired
// hold, AVAILABLE otherwise. Claims are re-read on every call.
//
// Parameters:
//   - ctx: request-scoped context.
//   - showID: ID of the show.
//
// Returns:
//   - []domain.SeatView: seats in row then number order.
//   - error: query.ErrShowNotFound if the show does not exist.
func (s *Service) SeatsForShow(ctx context.Context, showID int64) ([]domain.SeatView, error) {
	const op = "service.query.SeatsForShow"

	show, err := s.show(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	seats, err := s.catalog.SeatsByScreen(ctx, show.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	claims, err := s.ledger.ActiveClaims(ctx, showID, s.cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	status := make(map[int64]domain.SeatAvailability, len(claims))
	for _, c := range claims {
		switch c.Status {
		case domain.BookingConfirmed:
			status[c.SeatID] = domain.SeatBooked
		case domain.BookingHeld:
			if status[c.SeatID] != domain.SeatBooked {
				status[c.SeatID] = domain.SeatLocked
			}
		}
	}

	out := make([]domain.SeatView, 0, len(seats))
	for _, seat := range seats {
		st, ok := status[seat.ID]
		if !ok {
			st = domain.SeatAvailable
		}
		out = append(out, domain.SeatView{Seat: seat, Status: st})
	}

	return out, nil
}

// BookingsByUser lists the caller's bookings, newest first.
func (s *Service) BookingsByUser(ctx context.Context, userID string) ([]domain.UserBooking, error) {
	const op = "service.query.BookingsByUser"

	out, err := s.ledger.BookingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Ticket renders the ticket of a confirmed booking for its owner.
//
// Returns:
//   - *domain.Ticket: the ticket.
//   - error: query.ErrBookingNotFound if the booking does not exist or belongs
//     to someone else.
//   - error: query.ErrBookingNotConfirmed if the booking is not CONFIRMED.
func (s *Service) Ticket(ctx context.Context, bookingID uuid.UUID, userID string) (*domain.Ticket, error) {
	const op = "service.query.Ticket"

	b, err := s.ledger.BookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// do not reveal other users' bookings
	if b.UserID != userID {
		return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
	}

	if b.Status != domain.BookingConfirmed {
		return nil, fmt.Errorf("%s:%w", op, ErrBookingNotConfirmed)
	}

	details, err := s.catalog.ShowDetails(ctx, b.ShowID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	seats, err := s.catalog.SeatsByIDs(ctx, b.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	labels := make([]string, 0, len(seats))
	for _, seat := range seats {
		labels = append(labels, seat.Label)
	}

	return &domain.Ticket{
		BookingID:   b.ID,
		MovieID:     details.MovieID,
		TheatreName: details.TheatreName,
		ScreenName:  details.ScreenName,
		Seats:       labels,
		StartsAt:    details.StartsAt,
	}, nil
}

func (s *Service) show(ctx context.Context, id int64) (*domain.Show, error) {
	load := func(ctx context.Context) (domain.Show, error) {
		sh, err := s.catalog.ShowByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Show{}, ErrShowNotFound
			}

			return domain.Show{}, err
		}

		return *sh, nil
	}

	if s.cache == nil {
		sh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return &sh, nil
	}

	sh, err := s.cache.ShowByID(ctx, id, s.cfg.ShowTTL, load)
	if err != nil {
		return nil, err
	}

	return &sh, nil
}
