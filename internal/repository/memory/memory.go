// Package memory is an in-process implementation of the ledger and catalog
// repositories. A single mutex stands in for PostgreSQL row locks, so every
// operation is linearizable. It backs unit tests and local runs without a
// database.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository"
)

type Store struct {
	mu sync.Mutex

	screens  map[int64]domain.Screen
	seats    map[int64]domain.Seat
	shows    map[int64]domain.Show
	bookings map[uuid.UUID]*domain.Booking
	// payments is keyed by external order reference.
	payments map[string]*domain.Payment

	nextScreenID int64
	nextSeatID   int64
	nextShowID   int64
}

func NewStore() *Store {
	return &Store{
		screens:  make(map[int64]domain.Screen),
		seats:    make(map[int64]domain.Seat),
		shows:    make(map[int64]domain.Show),
		bookings: make(map[uuid.UUID]*domain.Booking),
		payments: make(map[string]*domain.Payment),
	}
}

func (s *Store) CreateScreen(_ context.Context, sc domain.Screen) (int64, error) {
	const op = "memory.Store.CreateScreen"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.screens {
		if existing.TheatreName == sc.TheatreName && existing.Name == sc.Name {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
	}

	s.nextScreenID++
	sc.ID = s.nextScreenID
	s.screens[sc.ID] = sc

	return sc.ID, nil
}

func (s *Store) ScreenByID(_ context.Context, id int64) (*domain.Screen, error) {
	const op = "memory.Store.ScreenByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.screens[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return &sc, nil
}

func (s *Store) CreateSeats(_ context.Context, screenID int64, seats []domain.Seat) (int, error) {
	const op = "memory.Store.CreateSeats"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.screens[screenID]; !ok {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	labels := make(map[string]struct{})
	for _, st := range s.seats {
		if st.ScreenID == screenID {
			labels[st.Label] = struct{}{}
		}
	}
	for _, st := range seats {
		if _, dup := labels[st.Label]; dup {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		labels[st.Label] = struct{}{}
	}

	for _, st := range seats {
		s.nextSeatID++
		st.ID = s.nextSeatID
		st.ScreenID = screenID
		s.seats[st.ID] = st
	}

	return len(seats), nil
}

func (s *Store) CreateShow(_ context.Context, show domain.Show) (int64, error) {
	const op = "memory.Store.CreateShow"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.screens[show.ScreenID]; !ok {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	for _, existing := range s.shows {
		if existing.ScreenID == show.ScreenID && existing.Overlaps(show.StartsAt, show.EndsAt) {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrShowOverlap)
		}
	}

	s.nextShowID++
	show.ID = s.nextShowID
	s.shows[show.ID] = show

	return show.ID, nil
}

func (s *Store) ShowByID(_ context.Context, id int64) (*domain.Show, error) {
	const op = "memory.Store.ShowByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	show, ok := s.shows[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return &show, nil
}

func (s *Store) ShowDetails(_ context.Context, id int64) (*domain.ShowDetails, error) {
	const op = "memory.Store.ShowDetails"

	s.mu.Lock()
	defer s.mu.Unlock()

	show, ok := s.shows[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	sc := s.screens[show.ScreenID]

	return &domain.ShowDetails{Show: show, ScreenName: sc.Name, TheatreName: sc.TheatreName}, nil
}

func (s *Store) SeatsByIDs(_ context.Context, ids []int64) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Seat, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.seats[id]; ok {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b domain.Seat) int { return cmp.Compare(a.ID, b.ID) })

	return slices.CompactFunc(out, func(a, b domain.Seat) bool { return a.ID == b.ID }), nil
}

func (s *Store) SeatsByScreen(_ context.Context, screenID int64) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Seat
	for _, st := range s.seats {
		if st.ScreenID == screenID {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b domain.Seat) int {
		return cmp.Or(
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(len(a.Number), len(b.Number)),
			cmp.Compare(a.Number, b.Number),
		)
	})

	return out, nil
}

func (s *Store) CreateHold(_ context.Context, req domain.HoldRequest) (*domain.Booking, error) {
	const op = "memory.Store.CreateHold"

	s.mu.Lock()
	defer s.mu.Unlock()

	seatIDs := slices.Clone(req.SeatIDs)
	slices.Sort(seatIDs)
	seatIDs = slices.Compact(seatIDs)

	for _, id := range seatIDs {
		if _, ok := s.seats[id]; !ok {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrSeatsNotFound)
		}
	}

	wanted := make(map[int64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		wanted[id] = struct{}{}
	}

	for _, b := range s.bookings {
		if b.ShowID != req.ShowID || !b.IsActiveClaim(req.Now) {
			continue
		}
		for _, id := range b.SeatIDs {
			if _, clash := wanted[id]; clash {
				return nil, fmt.Errorf("%s:%w", op, repository.ErrSeatsUnavailable)
			}
		}
	}

	b := &domain.Booking{
		ID:         uuid.New(),
		UserID:     req.UserID,
		ShowID:     req.ShowID,
		SeatIDs:    seatIDs,
		Status:     domain.BookingHeld,
		LockExpiry: req.LockExpiry,
		Amount:     req.Amount,
		CreatedAt:  req.Now,
	}
	s.bookings[b.ID] = b

	out := *b
	return &out, nil
}

// InitiatePayment holds the store lock while mint runs, matching the booking
// row lock of the SQL implementation.
func (s *Store) InitiatePayment(
	ctx context.Context,
	req domain.PaymentRequest,
	mint domain.MintOrderFunc,
) (*domain.Payment, error) {
	const op = "memory.Store.InitiatePayment"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[req.BookingID]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	if b.UserID != req.UserID {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotOwner)
	}

	if b.Status != domain.BookingHeld || !b.LockExpiry.After(req.Now) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrHoldExpired)
	}

	for _, p := range s.payments {
		if p.BookingID == b.ID {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrPaymentExists)
		}
	}

	ref, err := mint(ctx, *b)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if _, dup := s.payments[ref]; dup {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrPaymentExists)
	}

	p := &domain.Payment{
		ID:               uuid.New(),
		BookingID:        b.ID,
		ExternalOrderRef: ref,
		Status:           domain.PaymentPending,
		Amount:           b.Amount,
		Currency:         req.Currency,
		CreatedAt:        req.Now,
	}
	s.payments[ref] = p

	out := *p
	return &out, nil
}

func (s *Store) SettlePayment(
	_ context.Context,
	orderRef, paymentRef string,
	now time.Time,
) (*domain.Settlement, error) {
	const op = "memory.Store.SettlePayment"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[orderRef]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	b := s.bookings[p.BookingID]

	if p.Status == domain.PaymentSuccess {
		return &domain.Settlement{Payment: *p, Booking: *b, Duplicate: true}, nil
	}

	if p.Status != domain.PaymentPending || b.Status != domain.BookingHeld || !b.LockExpiry.After(now) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrInvalidState)
	}

	b.Status = domain.BookingConfirmed
	p.Status = domain.PaymentSuccess
	p.ExternalPaymentRef = paymentRef
	settledAt := now
	p.SettledAt = &settledAt

	return &domain.Settlement{Payment: *p, Booking: *b}, nil
}

func (s *Store) ExpireHolds(_ context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.Booking
	for _, b := range s.bookings {
		if b.Status == domain.BookingHeld && b.LockExpiry.Before(now) {
			due = append(due, b)
		}
	}
	slices.SortFunc(due, func(a, b *domain.Booking) int { return a.LockExpiry.Compare(b.LockExpiry) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]domain.Booking, 0, len(due))
	for _, b := range due {
		b.Status = domain.BookingExpired
		out = append(out, *b)
	}

	return out, nil
}

func (s *Store) ActiveClaims(_ context.Context, showID int64, now time.Time) ([]domain.SeatClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SeatClaim
	for _, b := range s.bookings {
		if b.ShowID != showID || !b.IsActiveClaim(now) {
			continue
		}
		for _, id := range b.SeatIDs {
			out = append(out, domain.SeatClaim{SeatID: id, BookingID: b.ID, Status: b.Status})
		}
	}

	return out, nil
}

func (s *Store) BookingByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "memory.Store.BookingByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	out := *b
	out.SeatIDs = slices.Clone(b.SeatIDs)
	return &out, nil
}

func (s *Store) BookingsByUser(_ context.Context, userID string) ([]domain.UserBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []*domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			owned = append(owned, b)
		}
	}
	slices.SortFunc(owned, func(a, b *domain.Booking) int { return b.CreatedAt.Compare(a.CreatedAt) })

	out := make([]domain.UserBooking, 0, len(owned))
	for _, b := range owned {
		show := s.shows[b.ShowID]
		sc := s.screens[show.ScreenID]

		ub := domain.UserBooking{
			BookingID:   b.ID,
			MovieID:     show.MovieID,
			TheatreName: sc.TheatreName,
			ScreenName:  sc.Name,
			StartsAt:    show.StartsAt,
			EndsAt:      show.EndsAt,
			Status:      b.Status,
			Seats:       make([]string, 0, len(b.SeatIDs)),
		}
		for _, id := range b.SeatIDs {
			ub.Seats = append(ub.Seats, s.seats[id].Label)
		}
		for _, p := range s.payments {
			if p.BookingID == b.ID && p.Status == domain.PaymentSuccess {
				ub.AmountPaid = p.Amount
			}
		}

		out = append(out, ub)
	}

	return out, nil
}
