package catalog

import (
	"errors"
)

var (
	ErrScreenConflict = errors.New("screen already exists")
	ErrScreenNotFound = errors.New("screen not found")
	ErrSeatsConflict  = errors.New("some seats already exist")
	ErrShowOverlap    = errors.New("show overlaps another show on the screen")
	ErrInvalidRequest = errors.New("invalid request")
	ErrForbidden      = errors.New("not allowed to manage this screen")
)
