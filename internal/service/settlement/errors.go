package settlement

import "errors"

var (
	ErrBookingNotFound         = errors.New("booking not found")
	ErrUnauthorized            = errors.New("booking belongs to another user")
	ErrBookingExpired          = errors.New("booking is not an active hold")
	ErrPaymentAlreadyInitiated = errors.New("payment already initiated")
	ErrPayment                 = errors.New("payment gateway failure")

	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidPayload      = errors.New("invalid notification payload")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInvalidBookingState = errors.New("booking is not held")
)
