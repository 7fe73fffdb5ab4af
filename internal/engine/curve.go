// Package engine implements the batch-auction settlement core: curve
// evaluation, the clearing-price solver, order placement and the settlement
// state machine, all over the ledger substrate.
package engine

import (
	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/pkg/safe"
)

// BuyAmount evaluates a buy order's demand curve at price:
//
//	AmountLow                                      p <= PriceLow
//	0                                              p >  PriceHigh
//	AmountLow - (AmountLow-AmountHigh)*(p-PriceLow)/(PriceHigh-PriceLow)
//
// Division is floor; the multiply runs through a 128-bit intermediate.
// Rounding direction decides who bears the rounding loss, so the floor
// policy here must not change.
func BuyAmount(o domain.Order, price uint64) uint64 {
	if price <= o.PriceLow {
		return o.AmountLow
	}
	if price > o.PriceHigh {
		return 0
	}
	dec := safe.MulDiv(
		safe.Sub(o.AmountLow, o.AmountHigh),
		safe.Sub(price, o.PriceLow),
		safe.Sub(o.PriceHigh, o.PriceLow),
	)
	return safe.Sub(o.AmountLow, dec)
}

// SellAmount evaluates a sell order's supply curve at price: AmountLow at or
// below PriceLow, AmountHigh at or above PriceHigh, linear in between.
func SellAmount(o domain.Order, price uint64) uint64 {
	if price <= o.PriceLow {
		return o.AmountLow
	}
	if price >= o.PriceHigh {
		return o.AmountHigh
	}
	inc := safe.MulDiv(
		safe.Sub(o.AmountHigh, o.AmountLow),
		safe.Sub(price, o.PriceLow),
		safe.Sub(o.PriceHigh, o.PriceLow),
	)
	return safe.Add(o.AmountLow, inc)
}
