package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsActiveClaim(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status BookingStatus
		expiry time.Time
		want   bool
	}{
		{"confirmed is active regardless of expiry", BookingConfirmed, now.Add(-time.Hour), true},
		{"held with future expiry", BookingHeld, now.Add(time.Minute), true},
		{"held expiring exactly now", BookingHeld, now, false},
		{"held in the past", BookingHeld, now.Add(-time.Second), false},
		{"expired", BookingExpired, now.Add(time.Hour), false},
		{"cancelled", BookingCancelled, now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActiveClaim(tt.status, tt.expiry, now))
			b := Booking{Status: tt.status, LockExpiry: tt.expiry}
			assert.Equal(t, tt.want, b.IsActiveClaim(now))
		})
	}
}

func TestPricingTotal(t *testing.T) {
	p := Pricing{Standard: 200, Premium: 300}
	seats := []Seat{
		{ID: 1, Label: "A1", Type: SeatPremium},
		{ID: 2, Label: "A2", Type: SeatStandard},
	}

	assert.Equal(t, int64(500), p.Total(seats))
	assert.Equal(t, int64(0), p.Total(nil))
	assert.Equal(t, DefaultPremiumPrice, DefaultPricing().UnitPrice(SeatPremium))
}

func TestShowOverlaps(t *testing.T) {
	base := time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)
	s := Show{StartsAt: base, EndsAt: base.Add(2 * time.Hour)}

	assert.True(t, s.Overlaps(base.Add(time.Hour), base.Add(3*time.Hour)))
	assert.True(t, s.Overlaps(base.Add(-time.Hour), base.Add(time.Minute)))
	assert.False(t, s.Overlaps(base.Add(2*time.Hour), base.Add(4*time.Hour)), "touching end is not overlap")
	assert.False(t, s.Overlaps(base.Add(-time.Hour), base), "touching start is not overlap")
}
