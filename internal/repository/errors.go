package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrSeatsUnavailable = errors.New("some seats unavailable")
	ErrSeatsNotFound    = errors.New("some seats not found")
	ErrHoldExpired      = errors.New("hold expired")
	ErrNotOwner         = errors.New("not owner")
	ErrPaymentExists    = errors.New("payment already exists")
	ErrInvalidState     = errors.New("invalid booking state")
	ErrShowOverlap      = errors.New("show overlaps existing show")
)
