package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinehold/internal/domain"
)

// QueryRepo serves read-only projections of the ledger.
type QueryRepo struct {
	pool *pgxpool.Pool
}

// ActiveClaims lists the seats of a show that currently carry an active claim.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - showID: the show whose claims are listed.
//   - now: the instant the activeness predicate is evaluated at.
//
// Returns:
//   - []domain.SeatClaim: one entry per claimed seat.
//   - error: if the query fails.
func (r *QueryRepo) ActiveClaims(ctx context.Context, showID int64, now time.Time) ([]domain.SeatClaim, error) {
	const op = "postgresrepo.QueryRepo.ActiveClaims"

	rows, err := r.pool.Query(ctx,
		`SELECT bs.seat_id, b.id, b.status
		 FROM booking_seats bs
		 JOIN bookings b ON b.id = bs.booking_id
		 WHERE bs.show_id = @show
		   AND `+activeClaimSQL,
		pgx.NamedArgs{"show": showID, "now": now},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	claims, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SeatClaim, error) {
		var c domain.SeatClaim
		var status string

		err := row.Scan(&c.SeatID, &c.BookingID, &status)
		c.Status = domain.BookingStatus(status)

		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return claims, nil
}

// BookingByID retrieves a booking with its seat ids.
//
// Returns:
//   - *domain.Booking: the booking when found.
//   - error: repository.ErrNotFound if the booking is not found.
func (r *QueryRepo) BookingByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgresrepo.QueryRepo.BookingByID"

	b, err := scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = $1 ORDER BY seat_id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	b.SeatIDs, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// BookingsByUser lists a user's bookings, newest first, with the amount paid
// for settled ones.
func (r *QueryRepo) BookingsByUser(ctx context.Context, userID string) ([]domain.UserBooking, error) {
	const op = "postgresrepo.QueryRepo.BookingsByUser"

	rows, err := r.pool.Query(ctx,
		`SELECT b.id, sh.movie_id, sc.theatre_name, sc.name, sh.starts_at, sh.ends_at, b.status,
		        COALESCE(p.amount, 0),
		        COALESCE(array_agg(s.seat_label ORDER BY s.id) FILTER (WHERE s.id IS NOT NULL), '{}')
		 FROM bookings b
		 JOIN shows sh ON sh.id = b.show_id
		 JOIN screens sc ON sc.id = sh.screen_id
		 LEFT JOIN booking_seats bs ON bs.booking_id = b.id
		 LEFT JOIN seats s ON s.id = bs.seat_id
		 LEFT JOIN payments p ON p.booking_id = b.id AND p.status = 'SUCCESS'
		 WHERE b.user_id = $1
		 GROUP BY b.id, sh.id, sc.id, p.amount
		 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.UserBooking
	for rows.Next() {
		var ub domain.UserBooking
		var status string

		if err := rows.Scan(
			&ub.BookingID,
			&ub.MovieID,
			&ub.TheatreName,
			&ub.ScreenName,
			&ub.StartsAt,
			&ub.EndsAt,
			&status,
			&ub.AmountPaid,
			&ub.Seats,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		ub.Status = domain.BookingStatus(status)
		out = append(out, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
