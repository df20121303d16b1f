package domain

// Amounts are in the currency's minor unit (paise for INR).
const (
	DefaultStandardPrice int64 = 20000
	DefaultPremiumPrice  int64 = 30000
	DefaultCurrency            = "INR"
)

// Pricing is a fixed two-tier price table.
type Pricing struct {
	Standard int64
	Premium  int64
}

func DefaultPricing() Pricing {
	return Pricing{Standard: DefaultStandardPrice, Premium: DefaultPremiumPrice}
}

func (p Pricing) UnitPrice(t SeatType) int64 {
	if t == SeatPremium {
		return p.Premium
	}
	return p.Standard
}

func (p Pricing) Total(seats []Seat) int64 {
	var total int64
	for _, s := range seats {
		total += p.UnitPrice(s.Type)
	}
	return total
}
