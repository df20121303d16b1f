package httpgin

import (
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type InitiateBookingRequest struct {
	SeatIDs []int64 `json:"seat_ids" binding:"required,min=1,dive,gt=0"`
}

type BookingSummaryResponse struct {
	BookingID  string    `json:"booking_id"`
	MovieID    string    `json:"movie_id"`
	Seats      []string  `json:"seats"`
	Status     string    `json:"status"`
	LockExpiry time.Time `json:"lock_expiry"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
}

func toBookingSummary(s *domain.BookingSummary) BookingSummaryResponse {
	return BookingSummaryResponse{
		BookingID:  s.BookingID.String(),
		MovieID:    s.MovieID,
		Seats:      s.Seats,
		Status:     string(s.Status),
		LockExpiry: s.LockExpiry,
		Amount:     s.Amount,
		Currency:   s.Currency,
	}
}

type SeatResponse struct {
	SeatID int64  `json:"seat_id"`
	Label  string `json:"label"`
	Row    string `json:"row"`
	Number string `json:"number"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

func toSeats(views []domain.SeatView) []SeatResponse {
	out := make([]SeatResponse, 0, len(views))
	for _, v := range views {
		out = append(out, SeatResponse{
			SeatID: v.ID,
			Label:  v.Label,
			Row:    v.Row,
			Number: v.Number,
			Type:   string(v.Type),
			Status: string(v.Status),
		})
	}
	return out
}

type CreateOrderRequest struct {
	BookingID string `json:"booking_id" binding:"required,uuid"`
}

type OrderResponse struct {
	BookingID string `json:"booking_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type UserBookingResponse struct {
	BookingID   string    `json:"booking_id"`
	MovieID     string    `json:"movie_id"`
	TheatreName string    `json:"theatre_name"`
	ScreenName  string    `json:"screen_name"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Seats       []string  `json:"seats"`
	Status      string    `json:"status"`
	AmountPaid  int64     `json:"amount_paid"`
}

func toUserBookings(in []domain.UserBooking) []UserBookingResponse {
	out := make([]UserBookingResponse, 0, len(in))
	for _, b := range in {
		out = append(out, UserBookingResponse{
			BookingID:   b.BookingID.String(),
			MovieID:     b.MovieID,
			TheatreName: b.TheatreName,
			ScreenName:  b.ScreenName,
			StartsAt:    b.StartsAt,
			EndsAt:      b.EndsAt,
			Seats:       b.Seats,
			Status:      string(b.Status),
			AmountPaid:  b.AmountPaid,
		})
	}
	return out
}

type TicketResponse struct {
	BookingID   string    `json:"booking_id"`
	MovieID     string    `json:"movie_id"`
	TheatreName string    `json:"theatre_name"`
	ScreenName  string    `json:"screen_name"`
	Seats       []string  `json:"seats"`
	StartsAt    time.Time `json:"starts_at"`
}

type CreateScreenRequest struct {
	TheatreName string `json:"theatre_name" binding:"required"`
	Name        string `json:"name" binding:"required"`
	OwnerID     string `json:"owner_id"`
}

type CreateScreenResponse struct {
	ScreenID int64 `json:"screen_id"`
}

type BatchCreateSeatsRequest struct {
	Seats []SeatInput `json:"seats" binding:"required,min=1,dive"`
}

type SeatInput struct {
	Row    string `json:"row" binding:"required"`
	Number string `json:"number" binding:"required"`
	Type   string `json:"type" binding:"required,oneof=STANDARD PREMIUM"`
}

type BatchCreateSeatsResponse struct {
	Created int `json:"created"`
}

type CreateShowRequest struct {
	ScreenID int64     `json:"screen_id" binding:"required,gt=0"`
	MovieID  string    `json:"movie_id" binding:"required"`
	StartsAt time.Time `json:"starts_at" binding:"required"`
	EndsAt   time.Time `json:"ends_at" binding:"required"`
}

type CreateShowResponse struct {
	ShowID int64 `json:"show_id"`
}
