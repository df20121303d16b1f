package query

import (
	"errors"
)

var (
	ErrShowNotFound        = errors.New("show not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingNotConfirmed = errors.New("booking is not confirmed")
)
