package reservation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrShowNotFound    = errors.New("show not found")
	ErrInvalidRequest  = errors.New("invalid booking request")
	ErrSeatUnavailable = errors.New("some seats are unavailable")
	ErrRateLimited     = errors.New("rate limited")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
