package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository"
)

// activeClaimSQL must stay equivalent to domain.IsActiveClaim.
const activeClaimSQL = `(b.status = 'CONFIRMED' OR (b.status = 'HELD' AND b.lock_expiry > @now))`

const bookingColumns = `id, user_id, show_id, status, lock_expiry, amount, created_at`

// LedgerRepo is the Reservation Ledger: every booking and payment state
// transition goes through it.
type LedgerRepo struct {
	store *Store
}

// CreateHold atomically claims seats for a show and records a HELD booking.
//
// The requested seat rows are locked in id order for the rest of the
// transaction, so two holds touching the same seat serialize while holds on
// disjoint seats never wait on each other. Once the locks are held the
// active-claim check reads the latest committed state.
//
// Returns:
//   - *domain.Booking: the created booking.
//   - error: repository.ErrSeatsNotFound if some seat ids do not exist.
//   - error: repository.ErrSeatsUnavailable if some seat has an active claim.
func (r *LedgerRepo) CreateHold(ctx context.Context, req domain.HoldRequest) (*domain.Booking, error) {
	const op = "postgresrepo.LedgerRepo.CreateHold"

	var booking *domain.Booking

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		b, err := createHoldCore(ctx, tx, req)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return booking, nil
}

func createHoldCore(ctx context.Context, db DB, req domain.HoldRequest) (*domain.Booking, error) {
	seatIDs := slices.Clone(req.SeatIDs)
	slices.Sort(seatIDs)
	seatIDs = slices.Compact(seatIDs)

	rows, err := db.Query(ctx,
		`SELECT id FROM seats
		 WHERE id = ANY($1)
		 ORDER BY id
		 FOR UPDATE`,
		seatIDs,
	)
	if err != nil {
		return nil, err
	}

	locked, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}

	if len(locked) != len(seatIDs) {
		return nil, repository.ErrSeatsNotFound
	}

	rows, err = db.Query(ctx,
		`SELECT bs.seat_id
		 FROM booking_seats bs
		 JOIN bookings b ON b.id = bs.booking_id
		 WHERE bs.show_id = @show
		   AND bs.seat_id = ANY(@seats)
		   AND `+activeClaimSQL+`
		 LIMIT 1`,
		pgx.NamedArgs{"show": req.ShowID, "seats": seatIDs, "now": req.Now},
	)
	if err != nil {
		return nil, err
	}

	taken, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}

	if len(taken) > 0 {
		return nil, repository.ErrSeatsUnavailable
	}

	b := domain.Booking{
		ID:         uuid.New(),
		UserID:     req.UserID,
		ShowID:     req.ShowID,
		SeatIDs:    seatIDs,
		Status:     domain.BookingHeld,
		LockExpiry: req.LockExpiry,
		Amount:     req.Amount,
		CreatedAt:  req.Now,
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(id, user_id, show_id, status, lock_expiry, amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		b.ID, b.UserID, b.ShowID, string(b.Status), b.LockExpiry, b.Amount, b.CreatedAt,
	); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, sid := range seatIDs {
		batch.Queue(
			`INSERT INTO booking_seats(booking_id, show_id, seat_id)
			 VALUES ($1, $2, $3)`,
			b.ID, b.ShowID, sid,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}

	return &b, nil
}

// InitiatePayment records a PENDING payment for a held booking.
//
// The booking row stays locked while mint talks to the payment gateway, so a
// second order for the same booking waits and then observes the first
// payment. The transaction is never retried because mint is not idempotent.
//
// Returns:
//   - *domain.Payment: the persisted payment.
//   - error: repository.ErrNotFound if the booking does not exist.
//   - error: repository.ErrNotOwner if the booking belongs to another user.
//   - error: repository.ErrHoldExpired if the booking is no longer an active hold.
//   - error: repository.ErrPaymentExists if a payment was already initiated.
//   - error: whatever mint returned, unchanged.
func (r *LedgerRepo) InitiatePayment(
	ctx context.Context,
	req domain.PaymentRequest,
	mint domain.MintOrderFunc,
) (*domain.Payment, error) {
	const op = "postgresrepo.LedgerRepo.InitiatePayment"

	var payment *domain.Payment

	err := r.store.runTx(ctx, nil, func(ctx context.Context, tx DB) error {
		b, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`,
			req.BookingID,
		))
		if err != nil {
			return err
		}

		if b.UserID != req.UserID {
			return repository.ErrNotOwner
		}

		if b.Status != domain.BookingHeld || !b.LockExpiry.After(req.Now) {
			return repository.ErrHoldExpired
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM payments WHERE booking_id = $1)`,
			b.ID,
		).Scan(&exists); err != nil {
			return err
		}

		if exists {
			return repository.ErrPaymentExists
		}

		ref, err := mint(ctx, *b)
		if err != nil {
			return err
		}

		p := domain.Payment{
			ID:               uuid.New(),
			BookingID:        b.ID,
			ExternalOrderRef: ref,
			Status:           domain.PaymentPending,
			Amount:           b.Amount,
			Currency:         req.Currency,
			CreatedAt:        req.Now,
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO payments(id, booking_id, external_order_ref, status, amount, currency, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.BookingID, p.ExternalOrderRef, string(p.Status), p.Amount, p.Currency, p.CreatedAt,
		); err != nil {
			if errors.Is(translateDBErr(err), repository.ErrConflict) {
				return repository.ErrPaymentExists
			}
			return err
		}

		payment = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return payment, nil
}

// SettlePayment moves a PENDING payment to SUCCESS and its HELD booking to
// CONFIRMED in one transaction.
//
// The payment row lock serializes duplicate notifications; the seat row locks
// serialize the confirmation against hold creation on the same seats. A
// payment that is already SUCCESS is reported as a duplicate and left as is.
//
// Returns:
//   - *domain.Settlement: the resulting payment and booking.
//   - error: repository.ErrNotFound if no payment has this order reference.
//   - error: repository.ErrInvalidState if the booking is not an active hold
//     or the payment is not PENDING.
func (r *LedgerRepo) SettlePayment(
	ctx context.Context,
	orderRef, paymentRef string,
	now time.Time,
) (*domain.Settlement, error) {
	const op = "postgresrepo.LedgerRepo.SettlePayment"

	var out *domain.Settlement

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		p, err := scanPayment(tx.QueryRow(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE external_order_ref = $1 FOR UPDATE`,
			orderRef,
		))
		if err != nil {
			return err
		}

		if p.Status == domain.PaymentSuccess {
			b, err := scanBooking(tx.QueryRow(ctx,
				`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
				p.BookingID,
			))
			if err != nil {
				return err
			}
			out = &domain.Settlement{Payment: *p, Booking: *b, Duplicate: true}
			return nil
		}

		if p.Status != domain.PaymentPending {
			return repository.ErrInvalidState
		}

		if _, err := tx.Exec(ctx,
			`SELECT s.id
			 FROM seats s
			 JOIN booking_seats bs ON bs.seat_id = s.id
			 WHERE bs.booking_id = $1
			 ORDER BY s.id
			 FOR UPDATE OF s`,
			p.BookingID,
		); err != nil {
			return err
		}

		b, err := scanBooking(tx.QueryRow(ctx,
			`UPDATE bookings
			 SET status = 'CONFIRMED', updated_at = $2
			 WHERE id = $1 AND status = 'HELD' AND lock_expiry > $2
			 RETURNING `+bookingColumns,
			p.BookingID, now,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrInvalidState
			}
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE payments
			 SET status = 'SUCCESS', external_payment_ref = $2, settled_at = $3
			 WHERE id = $1 AND status = 'PENDING'`,
			p.ID, paymentRef, now,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return repository.ErrInvalidState
		}

		p.Status = domain.PaymentSuccess
		p.ExternalPaymentRef = paymentRef
		p.SettledAt = &now

		out = &domain.Settlement{Payment: *p, Booking: *b}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// ExpireHolds moves up to limit HELD bookings whose lock expired before now
// to EXPIRED.
//
// Rows locked by a concurrent confirmation are skipped and reconsidered by
// the next sweep; each update re-checks the HELD status, so whichever
// transition commits first wins.
//
// Returns:
//   - []domain.Booking: the bookings that were expired by this call.
//   - error: if the update fails.
func (r *LedgerRepo) ExpireHolds(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	const op = "postgresrepo.LedgerRepo.ExpireHolds"

	rows, err := r.store.pool.Query(ctx,
		`UPDATE bookings
		 SET status = 'EXPIRED', updated_at = $1
		 WHERE id IN (
		     SELECT id FROM bookings
		     WHERE status = 'HELD' AND lock_expiry < $1
		     ORDER BY lock_expiry
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 AND status = 'HELD'
		 RETURNING `+bookingColumns,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	expired, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Booking, error) {
		b, err := scanBooking(row)
		if err != nil {
			return domain.Booking{}, err
		}
		return *b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return expired, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var status string

	if err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ShowID,
		&status,
		&b.LockExpiry,
		&b.Amount,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}

	b.Status = domain.BookingStatus(status)

	return &b, nil
}

const paymentColumns = `id, booking_id, external_order_ref, external_payment_ref, status, amount, currency, created_at, settled_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	var paymentRef *string

	if err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.ExternalOrderRef,
		&paymentRef,
		&status,
		&p.Amount,
		&p.Currency,
		&p.CreatedAt,
		&p.SettledAt,
	); err != nil {
		return nil, err
	}

	p.Status = domain.PaymentStatus(status)
	if paymentRef != nil {
		p.ExternalPaymentRef = *paymentRef
	}

	return &p, nil
}
