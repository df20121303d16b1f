package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

type fakeGateway struct {
	mu    sync.Mutex
	calls []domain.OrderRequest
	err   error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req domain.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("order_%d", len(g.calls)), nil
}

type recorder struct {
	mu     sync.Mutex
	events []domain.BookingEvent
}

func (r *recorder) PublishShowChanged(context.Context, int64) error { return nil }

func (r *recorder) PublishBookingEvent(_ context.Context, ev domain.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	store    *memory.Store
	gateway  *fakeGateway
	rec      *recorder
	verifier *HMACVerifier
	svc      *Service
	now      time.Time
	booking  *domain.Booking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	f := &fixture{
		store:    memory.NewStore(),
		gateway:  &fakeGateway{},
		rec:      &recorder{},
		verifier: NewHMACVerifier(secret),
		now:      time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
	}

	screenID, err := f.store.CreateScreen(ctx, domain.Screen{TheatreName: "Roxy", Name: "Audi 1", OwnerID: "owner"})
	require.NoError(t, err)
	_, err = f.store.CreateSeats(ctx, screenID, []domain.Seat{
		{Row: "A", Number: "1", Label: "A1", Type: domain.SeatPremium},
	})
	require.NoError(t, err)
	showID, err := f.store.CreateShow(ctx, domain.Show{
		ScreenID: screenID,
		MovieID:  "m",
		StartsAt: f.now.Add(time.Hour),
		EndsAt:   f.now.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	seats, err := f.store.SeatsByScreen(ctx, screenID)
	require.NoError(t, err)

	f.booking, err = f.store.CreateHold(ctx, domain.HoldRequest{
		ShowID:     showID,
		UserID:     "alice",
		SeatIDs:    []int64{seats[0].ID},
		Amount:     30000,
		Now:        f.now,
		LockExpiry: f.now.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	f.svc = New(f.store, f.gateway, f.verifier, f.rec, f.rec, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Now: func() time.Time { return f.now },
	})

	return f
}

func (f *fixture) webhook(orderRef, paymentRef string) ([]byte, string) {
	body := []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q}}}}`,
		paymentRef, orderRef,
	))
	return body, f.verifier.Sign(body)
}

func (f *fixture) notification(orderRef, paymentRef string) Notification {
	body, sig := f.webhook(orderRef, paymentRef)
	return Notification{OrderRef: orderRef, PaymentRef: paymentRef, Payload: body, Signature: sig}
}

func (f *fixture) status(t *testing.T) domain.BookingStatus {
	t.Helper()
	b, err := f.store.BookingByID(context.Background(), f.booking.ID)
	require.NoError(t, err)
	return b.Status
}

func TestCreateOrder_UsesHoldAmount(t *testing.T) {
	f := newFixture(t)

	h, err := f.svc.CreateOrder(context.Background(), f.booking.ID, "alice")
	require.NoError(t, err)

	assert.Equal(t, "order_1", h.ExternalOrderRef)
	assert.Equal(t, int64(30000), h.Amount)
	assert.Equal(t, "INR", h.Currency)

	require.Len(t, f.gateway.calls, 1)
	req := f.gateway.calls[0]
	assert.Equal(t, int64(30000), req.Amount)
	assert.Equal(t, Receipt(f.booking.ID), req.Receipt)
	assert.LessOrEqual(t, len(req.Receipt), 40)
}

func TestCreateOrder_SecondCallRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	assert.ErrorIs(t, err, ErrPaymentAlreadyInitiated)
	assert.Len(t, f.gateway.calls, 1, "gateway must not be called for a second order")
}

func TestCreateOrder_Rejections(t *testing.T) {
	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateOrder(context.Background(), uuid.New(), "alice")
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("other user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateOrder(context.Background(), f.booking.ID, "mallory")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("lapsed hold", func(t *testing.T) {
		f := newFixture(t)
		f.now = f.now.Add(10 * time.Minute)
		_, err := f.svc.CreateOrder(context.Background(), f.booking.ID, "alice")
		assert.ErrorIs(t, err, ErrBookingExpired)
		assert.Empty(t, f.gateway.calls)
	})

	t.Run("gateway failure is retryable", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.err = errors.New("connection reset")

		_, err := f.svc.CreateOrder(context.Background(), f.booking.ID, "alice")
		require.ErrorIs(t, err, ErrPayment)

		f.gateway.err = nil
		_, err = f.svc.CreateOrder(context.Background(), f.booking.ID, "alice")
		assert.NoError(t, err)
	})
}

func TestConfirm_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	n := f.notification(h.ExternalOrderRef, "pay_1")
	require.NoError(t, f.svc.Confirm(ctx, n))
	assert.Equal(t, domain.BookingConfirmed, f.status(t))

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.svc.Confirm(ctx, n))

	require.Len(t, f.rec.events, 1, "duplicate delivery must not emit a second event")
	assert.Equal(t, domain.EventBookingConfirmed, f.rec.events[0].Type)
	assert.Equal(t, int64(30000), f.rec.events[0].Amount)

	history, err := f.store.BookingsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(30000), history[0].AmountPaid)
}

func TestConfirm_InvalidSignatureNeverMutates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	cases := map[string]Notification{
		"wrong signature":   {OrderRef: h.ExternalOrderRef, PaymentRef: "pay_1", Payload: []byte(`{}`), Signature: "deadbeef"},
		"missing signature": {OrderRef: h.ExternalOrderRef, PaymentRef: "pay_1", Payload: []byte(`{}`)},
		"not hex":           {OrderRef: h.ExternalOrderRef, PaymentRef: "pay_1", Payload: []byte(`{}`), Signature: "zz"},
		"unknown order":     {OrderRef: "order_404", PaymentRef: "pay_1", Payload: []byte(`{}`), Signature: "00"},
	}

	for name, n := range cases {
		t.Run(name, func(t *testing.T) {
			err := f.svc.Confirm(ctx, n)
			assert.ErrorIs(t, err, ErrInvalidSignature)
			assert.Equal(t, domain.BookingHeld, f.status(t))
		})
	}

	tampered := f.notification(h.ExternalOrderRef, "pay_1")
	tampered.Payload = append([]byte(" "), tampered.Payload...)
	assert.ErrorIs(t, f.svc.Confirm(ctx, tampered), ErrInvalidSignature)
	assert.Empty(t, f.rec.events)
}

func TestConfirm_RefsBoundToSignedPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	forged := f.notification("order_unrelated", "pay_unrelated")
	forged.OrderRef = h.ExternalOrderRef
	forged.PaymentRef = "pay_forged"

	assert.ErrorIs(t, f.svc.Confirm(ctx, forged), ErrInvalidSignature)
	assert.Equal(t, domain.BookingHeld, f.status(t))

	wrongPayment := f.notification(h.ExternalOrderRef, "pay_1")
	wrongPayment.PaymentRef = "pay_2"
	assert.ErrorIs(t, f.svc.Confirm(ctx, wrongPayment), ErrInvalidSignature)
	assert.Equal(t, domain.BookingHeld, f.status(t))
	assert.Empty(t, f.rec.events)

	refund := []byte(fmt.Sprintf(
		`{"event":"refund.created","payload":{"payment":{"entity":{"id":"pay_1","order_id":%q}}}}`,
		h.ExternalOrderRef,
	))
	err = f.svc.Confirm(ctx, Notification{Payload: refund, Signature: f.verifier.Sign(refund)})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, domain.BookingHeld, f.status(t))

	body, sig := f.webhook(h.ExternalOrderRef, "pay_1")
	require.NoError(t, f.svc.Confirm(ctx, Notification{Payload: body, Signature: sig}))
	assert.Equal(t, domain.BookingConfirmed, f.status(t))
}

func TestConfirm_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Confirm(context.Background(), f.notification("order_404", "pay_1"))
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestConfirm_AfterExpiryIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Minute)
	expired, err := f.store.ExpireHolds(ctx, f.now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	n := f.notification(h.ExternalOrderRef, "pay_1")
	assert.ErrorIs(t, f.svc.Confirm(ctx, n), ErrInvalidBookingState)
	assert.Equal(t, domain.BookingExpired, f.status(t))

	// still PENDING: a retry is evaluated again rather than treated as a duplicate
	assert.ErrorIs(t, f.svc.Confirm(ctx, n), ErrInvalidBookingState)
	assert.Empty(t, f.rec.events)
}

func TestConfirm_LapsedButNotYetSwept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	err = f.svc.Confirm(ctx, f.notification(h.ExternalOrderRef, "pay_1"))
	assert.ErrorIs(t, err, ErrInvalidBookingState)
	assert.Equal(t, domain.BookingHeld, f.status(t))
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.CreateOrder(ctx, f.booking.ID, "alice")
	require.NoError(t, err)

	ignored := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"` + h.ExternalOrderRef + `"}}}}`)
	require.NoError(t, f.svc.HandleWebhook(ctx, ignored, f.verifier.Sign(ignored)))
	assert.Equal(t, domain.BookingHeld, f.status(t))

	malformed := []byte(`{"event":`)
	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, malformed, f.verifier.Sign(malformed)), ErrInvalidPayload)

	missing := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{}}}}`)
	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, missing, f.verifier.Sign(missing)), ErrInvalidPayload)

	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, malformed, "bad"), ErrInvalidSignature)

	body, sig := f.webhook(h.ExternalOrderRef, "pay_9")
	require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
	assert.Equal(t, domain.BookingConfirmed, f.status(t))
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("secret")
	body := []byte(`{"a":1}`)

	assert.True(t, v.Verify(body, v.Sign(body)))
	assert.False(t, v.Verify([]byte(`{"a":2}`), v.Sign(body)))
	assert.False(t, NewHMACVerifier("").Verify(body, NewHMACVerifier("").Sign(body)))
}
