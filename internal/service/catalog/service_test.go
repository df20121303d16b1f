package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = domain.Principal{UserID: "root", Role: domain.RoleAdmin}
	owner  = domain.Principal{UserID: "owner-1", Role: domain.RoleTheaterOwner}
	rival  = domain.Principal{UserID: "owner-2", Role: domain.RoleTheaterOwner}
	viewer = domain.Principal{UserID: "u1", Role: domain.RoleUser}
	start  = time.Date(2026, 7, 4, 18, 30, 0, 0, time.UTC)
)

func newService() (*Service, *memory.Store) {
	store := memory.NewStore()
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestCreateScreen(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	id, err := svc.CreateScreen(ctx, owner, domain.Screen{TheatreName: "Roxy", Name: "Audi 1", OwnerID: "someone-else"})
	require.NoError(t, err)

	sc, err := store.ScreenByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", sc.OwnerID, "owners cannot create screens for others")

	_, err = svc.CreateScreen(ctx, admin, domain.Screen{TheatreName: "Roxy", Name: "Audi 1"})
	assert.ErrorIs(t, err, ErrScreenConflict)

	_, err = svc.CreateScreen(ctx, viewer, domain.Screen{TheatreName: "Roxy", Name: "Audi 2"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateScreen(ctx, admin, domain.Screen{TheatreName: " ", Name: "Audi 2"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBatchCreateSeats(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	screenID, err := svc.CreateScreen(ctx, owner, domain.Screen{TheatreName: "Roxy", Name: "Audi 1"})
	require.NoError(t, err)

	n, err := svc.BatchCreateSeats(ctx, owner, screenID, []SeatSpec{
		{Row: "a", Number: "1", Type: domain.SeatPremium},
		{Row: "A", Number: "2", Type: domain.SeatStandard},
		{Row: "B", Number: "10", Type: domain.SeatStandard},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	seats, err := store.SeatsByScreen(ctx, screenID)
	require.NoError(t, err)
	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"A1", "A2", "B10"}, labels)

	tests := []struct {
		name    string
		who     domain.Principal
		screen  int64
		specs   []SeatSpec
		wantErr error
	}{
		{"empty batch", owner, screenID, nil, ErrInvalidRequest},
		{"bad type", owner, screenID, []SeatSpec{{Row: "C", Number: "1", Type: "VIP"}}, ErrInvalidRequest},
		{"blank number", owner, screenID, []SeatSpec{{Row: "C", Type: domain.SeatStandard}}, ErrInvalidRequest},
		{"duplicate in batch", owner, screenID, []SeatSpec{
			{Row: "C", Number: "1", Type: domain.SeatStandard},
			{Row: "c", Number: "1", Type: domain.SeatStandard},
		}, ErrInvalidRequest},
		{"existing label", owner, screenID, []SeatSpec{{Row: "A", Number: "1", Type: domain.SeatStandard}}, ErrSeatsConflict},
		{"other owner", rival, screenID, []SeatSpec{{Row: "D", Number: "1", Type: domain.SeatStandard}}, ErrForbidden},
		{"plain user", viewer, screenID, []SeatSpec{{Row: "D", Number: "1", Type: domain.SeatStandard}}, ErrForbidden},
		{"unknown screen", admin, 999, []SeatSpec{{Row: "D", Number: "1", Type: domain.SeatStandard}}, ErrScreenNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BatchCreateSeats(ctx, tt.who, tt.screen, tt.specs)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	after, err := store.SeatsByScreen(ctx, screenID)
	require.NoError(t, err)
	assert.Len(t, after, 3, "rejected batches must not write")
}

func TestCreateShow(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	screenID, err := svc.CreateScreen(ctx, owner, domain.Screen{TheatreName: "Roxy", Name: "Audi 1"})
	require.NoError(t, err)

	id, err := svc.CreateShow(ctx, owner, screenID, "tt1375666", start, start.Add(150*time.Minute))
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = svc.CreateShow(ctx, admin, screenID, "tt0816692", start.Add(time.Hour), start.Add(4*time.Hour))
	assert.ErrorIs(t, err, ErrShowOverlap)

	_, err = svc.CreateShow(ctx, admin, screenID, "tt0816692", start.Add(150*time.Minute), start.Add(5*time.Hour))
	assert.NoError(t, err, "back to back shows do not overlap")

	_, err = svc.CreateShow(ctx, owner, screenID, "tt0816692", start, start)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CreateShow(ctx, rival, screenID, "tt0816692", start.Add(24*time.Hour), start.Add(26*time.Hour))
	assert.ErrorIs(t, err, ErrForbidden)
}
