package domain

// Side distinguishes buy and sell orders.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Order is a piecewise-linear willingness-to-trade curve over a price range.
// Amounts are base units of token A; prices are token A per unit of token B.
// All monetary values are strictly uint64 base units.
//
// Buy orders demand AmountLow at PriceLow shrinking to AmountHigh at
// PriceHigh (AmountLow >= AmountHigh). Sell orders supply AmountLow at
// PriceLow growing to AmountHigh at PriceHigh (AmountLow <= AmountHigh).
type Order struct {
	AmountLow  uint64    `json:"amount_low"`
	AmountHigh uint64    `json:"amount_high"`
	PriceLow   uint64    `json:"price_low"`
	PriceHigh  uint64    `json:"price_high"`
	Receiver   AccountID `json:"receiver"`
}

// ValidShape reports whether the order satisfies the placement invariants
// for the given side. Price bounds must be a proper non-degenerate range;
// PriceLow == PriceHigh would make the curve denominator zero.
func (o Order) ValidShape(side Side) bool {
	if o.PriceLow == 0 || o.PriceLow >= o.PriceHigh {
		return false
	}
	if side == Buy {
		return o.AmountLow >= o.AmountHigh
	}
	return o.AmountLow <= o.AmountHigh
}

// SellEscrow is the token B deposit required to back a sell order:
// max(AmountLow/PriceLow, AmountHigh/PriceHigh), floor division.
func (o Order) SellEscrow() uint64 {
	denLow, denHigh := o.PriceLow, o.PriceHigh
	if denLow == 0 {
		denLow = 1
	}
	if denHigh == 0 {
		denHigh = 1
	}
	low := o.AmountLow / denLow
	high := o.AmountHigh / denHigh
	if low > high {
		return low
	}
	return high
}
