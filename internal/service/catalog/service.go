package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository"
)

type Repository interface {
	CreateScreen(ctx context.Context, s domain.Screen) (int64, error)
	ScreenByID(ctx context.Context, id int64) (*domain.Screen, error)
	CreateSeats(ctx context.Context, screenID int64, seats []domain.Seat) (int, error)
	CreateShow(ctx context.Context, show domain.Show) (int64, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo: repo,
		log:  logger.With(slog.String("component", "catalog")),
	}
}

// SeatSpec describes one seat of a layout.
type SeatSpec struct {
	Row    string
	Number string
	Type   domain.SeatType
}

// CreateScreen registers a screen. Theatre owners always own the screens they
// create; admins may assign any owner.
//
// Returns:
//   - int64: the created screen ID on success.
//   - error: catalog.ErrForbidden if the caller is not an admin or theatre owner.
//   - error: catalog.ErrScreenConflict if the theatre already has a screen
//     with that name.
func (s *Service) CreateScreen(ctx context.Context, p domain.Principal, sc domain.Screen) (int64, error) {
	const op = "service.catalog.CreateScreen"

	switch p.Role {
	case domain.RoleAdmin:
		if sc.OwnerID == "" {
			sc.OwnerID = p.UserID
		}
	case domain.RoleTheaterOwner:
		sc.OwnerID = p.UserID
	default:
		return 0, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	sc.TheatreName = strings.TrimSpace(sc.TheatreName)
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.TheatreName == "" || sc.Name == "" {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidRequest)
	}

	id, err := s.repo.CreateScreen(ctx, sc)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrScreenConflict)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "screen created",
		slog.Int64("screen_id", id),
		slog.String("owner_id", sc.OwnerID),
	)

	return id, nil
}

// BatchCreateSeats adds a seat layout to a screen. Labels are derived as row
// followed by number, so "A" and "12" become "A12". The batch is all or nothing.
//
// Returns:
//   - int: number of seats created.
//   - error: catalog.ErrInvalidRequest on an empty batch, a blank row or number,
//     an unknown seat type or a label repeated within the batch.
//   - error: catalog.ErrSeatsConflict if a label already exists on the screen.
func (s *Service) BatchCreateSeats(
	ctx context.Context,
	p domain.Principal,
	screenID int64,
	specs []SeatSpec,
) (int, error) {
	const op = "service.catalog.BatchCreateSeats"

	if err := s.authorize(ctx, p, screenID); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if len(specs) == 0 {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidRequest)
	}

	seats := make([]domain.Seat, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		row := strings.ToUpper(strings.TrimSpace(spec.Row))
		num := strings.TrimSpace(spec.Number)
		if row == "" || num == "" || !spec.Type.Valid() {
			return 0, fmt.Errorf("%s:%w", op, ErrInvalidRequest)
		}

		label := row + num
		if _, dup := seen[label]; dup {
			return 0, fmt.Errorf("%s:%w: duplicate seat %s", op, ErrInvalidRequest, label)
		}
		seen[label] = struct{}{}

		seats = append(seats, domain.Seat{
			ScreenID: screenID,
			Row:      row,
			Number:   num,
			Label:    label,
			Type:     spec.Type,
		})
	}

	n, err := s.repo.CreateSeats(ctx, screenID, seats)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrSeatsConflict)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return n, nil
}

// CreateShow schedules a movie on a screen for [startsAt, endsAt).
//
// Returns:
//   - int64: the created show ID.
//   - error: catalog.ErrInvalidRequest if the movie is blank or the window is empty.
//   - error: catalog.ErrShowOverlap if the window intersects another show on
//     the same screen.
func (s *Service) CreateShow(
	ctx context.Context,
	p domain.Principal,
	screenID int64,
	movieID string,
	startsAt, endsAt time.Time,
) (int64, error) {
	const op = "service.catalog.CreateShow"

	if err := s.authorize(ctx, p, screenID); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	movieID = strings.TrimSpace(movieID)
	if movieID == "" || !endsAt.After(startsAt) {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidRequest)
	}

	id, err := s.repo.CreateShow(ctx, domain.Show{
		ScreenID: screenID,
		MovieID:  movieID,
		StartsAt: startsAt.UTC(),
		EndsAt:   endsAt.UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrShowOverlap):
			return 0, fmt.Errorf("%s:%w", op, ErrShowOverlap)
		case errors.Is(err, repository.ErrNotFound):
			return 0, fmt.Errorf("%s:%w", op, ErrScreenNotFound)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "show scheduled",
		slog.Int64("show_id", id),
		slog.Int64("screen_id", screenID),
		slog.String("movie_id", movieID),
	)

	return id, nil
}

// authorize lets admins manage any screen and theatre owners only their own.
func (s *Service) authorize(ctx context.Context, p domain.Principal, screenID int64) error {
	if p.Role != domain.RoleAdmin && p.Role != domain.RoleTheaterOwner {
		return ErrForbidden
	}

	sc, err := s.repo.ScreenByID(ctx, screenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrScreenNotFound
		}
		return err
	}

	if p.Role == domain.RoleTheaterOwner && sc.OwnerID != p.UserID {
		return ErrForbidden
	}

	return nil
}
