package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository"
)

type CatalogRepo struct {
	store *Store
}

func (r *CatalogRepo) CreateScreen(ctx context.Context, s domain.Screen) (int64, error) {
	const op = "postgresrepo.CatalogRepo.CreateScreen"

	var id int64
	if err := r.store.pool.QueryRow(ctx,
		`INSERT INTO screens(theatre_name, name, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		s.TheatreName, s.Name, s.OwnerID,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) ScreenByID(ctx context.Context, id int64) (*domain.Screen, error) {
	const op = "postgresrepo.CatalogRepo.ScreenByID"

	var s domain.Screen
	if err := r.store.pool.QueryRow(ctx,
		`SELECT id, theatre_name, name, owner_id FROM screens WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.TheatreName, &s.Name, &s.OwnerID); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// CreateSeats inserts the whole layout or nothing. A label that already exists
// on the screen yields repository.ErrConflict.
func (r *CatalogRepo) CreateSeats(ctx context.Context, screenID int64, seats []domain.Seat) (int, error) {
	const op = "postgresrepo.CatalogRepo.CreateSeats"

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		batch := &pgx.Batch{}
		for _, s := range seats {
			batch.Queue(
				`INSERT INTO seats(screen_id, row_label, seat_number, seat_label, seat_type)
				 VALUES ($1, $2, $3, $4, $5)`,
				screenID, s.Row, s.Number, s.Label, string(s.Type),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return len(seats), nil
}

// CreateShow schedules a show unless it overlaps another show on the same
// screen. The screen row lock serializes concurrent scheduling per screen.
func (r *CatalogRepo) CreateShow(ctx context.Context, show domain.Show) (int64, error) {
	const op = "postgresrepo.CatalogRepo.CreateShow"

	var id int64

	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		var screenID int64
		if err := tx.QueryRow(ctx,
			`SELECT id FROM screens WHERE id = $1 FOR UPDATE`,
			show.ScreenID,
		).Scan(&screenID); err != nil {
			return err
		}

		var overlaps bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (
			     SELECT 1 FROM shows
			     WHERE screen_id = $1 AND starts_at < $3 AND $2 < ends_at
			 )`,
			show.ScreenID, show.StartsAt, show.EndsAt,
		).Scan(&overlaps); err != nil {
			return err
		}

		if overlaps {
			return repository.ErrShowOverlap
		}

		return tx.QueryRow(ctx,
			`INSERT INTO shows(screen_id, movie_id, starts_at, ends_at)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			show.ScreenID, show.MovieID, show.StartsAt, show.EndsAt,
		).Scan(&id)
	})
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// ShowByID retrieves a show by its ID.
//
// Returns:
//   - *domain.Show: the show when found.
//   - error: repository.ErrNotFound if the show is not found.
func (r *CatalogRepo) ShowByID(ctx context.Context, id int64) (*domain.Show, error) {
	const op = "postgresrepo.CatalogRepo.ShowByID"

	var s domain.Show
	if err := r.store.pool.QueryRow(ctx,
		`SELECT id, screen_id, movie_id, starts_at, ends_at FROM shows WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.ScreenID, &s.MovieID, &s.StartsAt, &s.EndsAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// ShowDetails retrieves a show joined with its screen.
func (r *CatalogRepo) ShowDetails(ctx context.Context, id int64) (*domain.ShowDetails, error) {
	const op = "postgresrepo.CatalogRepo.ShowDetails"

	var d domain.ShowDetails
	if err := r.store.pool.QueryRow(ctx,
		`SELECT sh.id, sh.screen_id, sh.movie_id, sh.starts_at, sh.ends_at, sc.name, sc.theatre_name
		 FROM shows sh
		 JOIN screens sc ON sc.id = sh.screen_id
		 WHERE sh.id = $1`,
		id,
	).Scan(
		&d.ID,
		&d.ScreenID,
		&d.MovieID,
		&d.StartsAt,
		&d.EndsAt,
		&d.ScreenName,
		&d.TheatreName,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &d, nil
}

func (r *CatalogRepo) SeatsByIDs(ctx context.Context, ids []int64) ([]domain.Seat, error) {
	const op = "postgresrepo.CatalogRepo.SeatsByIDs"

	rows, err := r.store.pool.Query(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	seats, err := pgx.CollectRows(rows, scanSeat)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return seats, nil
}

// SeatsByScreen lists the layout of a screen in row then number order.
func (r *CatalogRepo) SeatsByScreen(ctx context.Context, screenID int64) ([]domain.Seat, error) {
	const op = "postgresrepo.CatalogRepo.SeatsByScreen"

	rows, err := r.store.pool.Query(ctx,
		`SELECT `+seatColumns+` FROM seats
		 WHERE screen_id = $1
		 ORDER BY row_label, length(seat_number), seat_number`,
		screenID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	seats, err := pgx.CollectRows(rows, scanSeat)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return seats, nil
}

const seatColumns = `id, screen_id, row_label, seat_number, seat_label, seat_type`

func scanSeat(row pgx.CollectableRow) (domain.Seat, error) {
	var s domain.Seat
	var seatType string

	err := row.Scan(&s.ID, &s.ScreenID, &s.Row, &s.Number, &s.Label, &seatType)
	s.Type = domain.SeatType(seatType)

	return s, err
}
