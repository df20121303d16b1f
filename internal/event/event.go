// Package event carries booking lifecycle notifications out of the process.
package event

import (
	"context"

	"github.com/kirinyoku/cinehold/internal/domain"
)

// Publisher delivers booking lifecycle events to downstream consumers.
type Publisher interface {
	PublishBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

// ShowNotifier announces that seat availability of a show changed.
type ShowNotifier interface {
	PublishShowChanged(ctx context.Context, showID int64) error
}

// Nop drops everything. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishBookingEvent(context.Context, domain.BookingEvent) error { return nil }
func (Nop) PublishShowChanged(context.Context, int64) error             { return nil }
