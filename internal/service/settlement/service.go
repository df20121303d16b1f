package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/event"
	"github.com/kirinyoku/cinehold/internal/repository"
)

type Ledger interface {
	InitiatePayment(ctx context.Context, req domain.PaymentRequest, mint domain.MintOrderFunc) (*domain.Payment, error)
	SettlePayment(ctx context.Context, orderRef, paymentRef string, now time.Time) (*domain.Settlement, error)
}

// Gateway registers orders with the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (string, error)
}

type Verifier interface {
	Verify(payload []byte, signature string) bool
}

// Notification is a payment success notice. Payload and Signature are the
// raw bytes and signature header exactly as received.
type Notification struct {
	OrderRef   string
	PaymentRef string
	Payload    []byte
	Signature  string
}

type Config struct {
	Currency string
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

type Service struct {
	ledger   Ledger
	gateway  Gateway
	verifier Verifier
	notifier event.ShowNotifier
	events   event.Publisher
	log      *slog.Logger
	cfg      Config
}

func New(
	ledger Ledger,
	gateway Gateway,
	verifier Verifier,
	notifier event.ShowNotifier,
	events event.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
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
		ledger:   ledger,
		gateway:  gateway,
		verifier: verifier,
		notifier: notifier,
		events:   events,
		log:      logger.With(slog.String("component", "settlement")),
		cfg:      cfg,
	}
}

// CreateOrder registers an external payment order for a held booking and
// records it as a PENDING payment. The amount is the one fixed when the hold
// was placed.
//
// Returns:
//   - *domain.OrderHandle: the order reference to hand to the client checkout.
//   - error: settlement.ErrBookingNotFound if the booking does not exist.
//   - error: settlement.ErrUnauthorized if the booking belongs to another user.
//   - error: settlement.ErrBookingExpired if the hold is gone or has lapsed.
//   - error: settlement.ErrPaymentAlreadyInitiated on a second order for the booking.
//   - error: settlement.ErrPayment if the gateway call failed; safe to retry.
func (s *Service) CreateOrder(ctx context.Context, bookingID uuid.UUID, userID string) (*domain.OrderHandle, error) {
	const op = "service.settlement.CreateOrder"

	var minted string

	mint := func(ctx context.Context, b domain.Booking) (string, error) {
		ref, err := s.gateway.CreateOrder(ctx, domain.OrderRequest{
			Amount:   b.Amount,
			Currency: s.cfg.Currency,
			Receipt:  Receipt(b.ID),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPayment, err)
		}

		minted = ref
		return ref, nil
	}

	p, err := s.ledger.InitiatePayment(ctx, domain.PaymentRequest{
		BookingID: bookingID,
		UserID:    userID,
		Currency:  s.cfg.Currency,
		Now:       s.cfg.Now(),
	}, mint)
	if err != nil {
		if minted != "" {
			s.log.WarnContext(ctx, "gateway order created but not recorded",
				slog.String("booking_id", bookingID.String()),
				slog.String("order_ref", minted),
				slog.Any("err", err),
			)
		}

		switch {
		case errors.Is(err, ErrPayment):
			return nil, fmt.Errorf("%s:%w", op, err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		case errors.Is(err, repository.ErrNotOwner):
			return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
		case errors.Is(err, repository.ErrHoldExpired):
			return nil, fmt.Errorf("%s:%w", op, ErrBookingExpired)
		case errors.Is(err, repository.ErrPaymentExists):
			return nil, fmt.Errorf("%s:%w", op, ErrPaymentAlreadyInitiated)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &domain.OrderHandle{
		BookingID:        p.BookingID,
		ExternalOrderRef: p.ExternalOrderRef,
		Amount:           p.Amount,
		Currency:         p.Currency,
	}, nil
}

// Confirm settles the payment named by n once its signature checks out. The
// order and payment references are read from the signed payload; refs set on
// n must match them. Repeated notifications for a settled payment succeed
// without changes.
//
// Returns:
//   - error: settlement.ErrInvalidSignature before any lookup when the
//     signature does not match the payload or n names other refs than it.
//   - error: settlement.ErrInvalidPayload if the payload is not a payment
//     success notice.
//   - error: settlement.ErrPaymentNotFound if no payment has the order reference.
//   - error: settlement.ErrInvalidBookingState if the booking is no longer an
//     active hold; the payment stays PENDING for manual reconciliation.
func (s *Service) Confirm(ctx context.Context, n Notification) error {
	const op = "service.settlement.Confirm"

	if err := s.verify(ctx, n.Payload, n.Signature); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	signed, relevant, err := parseWebhook(n.Payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if !relevant {
		return fmt.Errorf("%s:%w: not a payment success event", op, ErrInvalidPayload)
	}

	// only the payload is covered by the signature
	if (n.OrderRef != "" && n.OrderRef != signed.OrderRef) ||
		(n.PaymentRef != "" && n.PaymentRef != signed.PaymentRef) {
		s.log.WarnContext(ctx, "payment notification refs differ from signed payload",
			slog.String("order_ref", n.OrderRef),
			slog.String("signed_order_ref", signed.OrderRef),
		)
		return fmt.Errorf("%s:%w", op, ErrInvalidSignature)
	}

	if err := s.settle(ctx, signed.OrderRef, signed.PaymentRef); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// HandleWebhook verifies and processes a raw gateway webhook. Event types
// that do not settle a payment are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "service.settlement.HandleWebhook"

	if err := s.verify(ctx, payload, signature); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	n, relevant, err := parseWebhook(payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if !relevant {
		s.log.DebugContext(ctx, "webhook event ignored")
		return nil
	}

	if err := s.settle(ctx, n.OrderRef, n.PaymentRef); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) verify(ctx context.Context, payload []byte, signature string) error {
	if s.verifier.Verify(payload, signature) {
		return nil
	}

	s.log.WarnContext(ctx, "payment notification failed signature check",
		slog.Int("payload_bytes", len(payload)),
	)

	return ErrInvalidSignature
}

func (s *Service) settle(ctx context.Context, orderRef, paymentRef string) error {
	if orderRef == "" {
		return ErrInvalidPayload
	}

	st, err := s.ledger.SettlePayment(ctx, orderRef, paymentRef, s.cfg.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrPaymentNotFound
		case errors.Is(err, repository.ErrInvalidState):
			s.log.ErrorContext(ctx, "payment captured for booking that is not held",
				slog.String("order_ref", orderRef),
				slog.String("payment_ref", paymentRef),
			)
			return ErrInvalidBookingState
		}

		return err
	}

	if st.Duplicate {
		s.log.InfoContext(ctx, "duplicate payment notification",
			slog.String("order_ref", orderRef),
		)
		return nil
	}

	if err := s.notifier.PublishShowChanged(ctx, st.Booking.ShowID); err != nil {
		s.log.WarnContext(ctx, "publish show changed failed",
			slog.Int64("show_id", st.Booking.ShowID),
			slog.Any("err", err),
		)
	}

	ev := domain.BookingEvent{
		Type:       domain.EventBookingConfirmed,
		BookingID:  st.Booking.ID,
		UserID:     st.Booking.UserID,
		ShowID:     st.Booking.ShowID,
		Status:     string(st.Booking.Status),
		Amount:     st.Payment.Amount,
		OccurredAt: *st.Payment.SettledAt,
	}
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish booking event failed",
			slog.String("type", ev.Type),
			slog.String("booking_id", ev.BookingID.String()),
			slog.Any("err", err),
		)
	}

	return nil
}

// Receipt is the merchant receipt sent with an order. The gateway caps
// receipts at 40 characters, so the booking id is sent without dashes.
func Receipt(bookingID uuid.UUID) string {
	return "booking_" + strings.ReplaceAll(bookingID.String(), "-", "")
}
