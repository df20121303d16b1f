package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SeatType string

const (
	SeatStandard SeatType = "STANDARD"
	SeatPremium  SeatType = "PREMIUM"
)

func (t SeatType) Valid() bool {
	return t == SeatStandard || t == SeatPremium
}

type BookingStatus string

const (
	BookingHeld      BookingStatus = "HELD"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingExpired   BookingStatus = "EXPIRED"
	// BookingCancelled is reserved for explicit cancellation; nothing sets it yet.
	BookingCancelled BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// SeatAvailability is the projected state of a seat for one show.
type SeatAvailability string

const (
	SeatAvailable SeatAvailability = "AVAILABLE"
	SeatLocked    SeatAvailability = "LOCKED"
	SeatBooked    SeatAvailability = "BOOKED"
)

type Screen struct {
	ID          int64
	TheatreName string
	Name        string
	OwnerID     string
}

type Seat struct {
	ID       int64
	ScreenID int64
	Row      string
	Number   string
	Label    string
	Type     SeatType
}

type Show struct {
	ID       int64
	ScreenID int64
	MovieID  string
	StartsAt time.Time
	EndsAt   time.Time
}

// Overlaps reports whether the [StartsAt, EndsAt) windows intersect.
func (s Show) Overlaps(starts, ends time.Time) bool {
	return s.StartsAt.Before(ends) && starts.Before(s.EndsAt)
}

type Booking struct {
	ID         uuid.UUID
	UserID     string
	ShowID     int64
	SeatIDs    []int64
	Status     BookingStatus
	LockExpiry time.Time
	Amount     int64
	CreatedAt  time.Time
}

// IsActiveClaim is the single activeness predicate shared by the write path
// (hold creation) and the read path (seat availability).
func IsActiveClaim(status BookingStatus, lockExpiry, now time.Time) bool {
	switch status {
	case BookingConfirmed:
		return true
	case BookingHeld:
		return lockExpiry.After(now)
	default:
		return false
	}
}

func (b Booking) IsActiveClaim(now time.Time) bool {
	return IsActiveClaim(b.Status, b.LockExpiry, now)
}

type Payment struct {
	ID                 uuid.UUID
	BookingID          uuid.UUID
	ExternalOrderRef   string
	ExternalPaymentRef string
	Status             PaymentStatus
	Amount             int64
	Currency           string
	CreatedAt          time.Time
	SettledAt          *time.Time
}

// HoldRequest is what the ledger needs to atomically claim seats.
type HoldRequest struct {
	ShowID     int64
	UserID     string
	SeatIDs    []int64
	Amount     int64
	Now        time.Time
	LockExpiry time.Time
}

// PaymentRequest asks the ledger to attach a payment to a held booking.
type PaymentRequest struct {
	BookingID uuid.UUID
	UserID    string
	Currency  string
	Now       time.Time
}

// OrderRequest is what the settlement gateway needs to register an order.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

// MintOrderFunc creates the external order for a booking and returns its reference.
type MintOrderFunc func(ctx context.Context, b Booking) (string, error)

// SeatClaim is one active (show, seat) claim as seen by the ledger.
type SeatClaim struct {
	SeatID    int64
	BookingID uuid.UUID
	Status    BookingStatus
}

// Settlement is the outcome of reconciling a payment notification.
type Settlement struct {
	Payment Payment
	Booking Booking
	// Duplicate is set when the payment had already been settled and nothing changed.
	Duplicate bool
}

type SeatView struct {
	Seat
	Status SeatAvailability
}

type BookingSummary struct {
	BookingID  uuid.UUID
	MovieID    string
	Seats      []string
	Status     BookingStatus
	LockExpiry time.Time
	Amount     int64
	Currency   string
}

type OrderHandle struct {
	BookingID        uuid.UUID
	ExternalOrderRef string
	Amount           int64
	Currency         string
}

// ShowDetails is a show joined with its screen, as used by ticket and history views.
type ShowDetails struct {
	Show
	ScreenName  string
	TheatreName string
}

type UserBooking struct {
	BookingID   uuid.UUID
	MovieID     string
	TheatreName string
	ScreenName  string
	StartsAt    time.Time
	EndsAt      time.Time
	Seats       []string
	Status      BookingStatus
	AmountPaid  int64
}

type Ticket struct {
	BookingID   uuid.UUID
	MovieID     string
	TheatreName string
	ScreenName  string
	Seats       []string
	StartsAt    time.Time
}

// BookingEvent is emitted on booking lifecycle transitions.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  uuid.UUID `json:"booking_id"`
	UserID     string    `json:"user_id"`
	ShowID     int64     `json:"show_id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventBookingHeld      = "booking.held"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingExpired   = "booking.expired"
)

type Role string

const (
	RoleUser         Role = "USER"
	RoleTheaterOwner Role = "THEATER_OWNER"
	RoleAdmin        Role = "ADMIN"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   Role
}
