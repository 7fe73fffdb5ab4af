package engine

import (
	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/pkg/safe"
)

const (
	// DefaultSolverIterations caps the binary search. On exhaustion the last
	// computed midpoint is returned as a best-effort price; SettleBlock's
	// maximality check is what decides whether such a price is acceptable.
	DefaultSolverIterations = 100

	// priceUpperSentinel bounds the search when no buy order supplies a
	// lower price bound.
	priceUpperSentinel = 1 << 31
)

// CalculateSettlementPrice binary-searches [min buy PriceLow, max sell
// PriceHigh] for the price where aggregate demand meets aggregate supply.
// The result is a suggestion only: the settlement state machine re-validates
// it against the on-record orders. Deterministic: integer arithmetic and a
// fixed summation order.
func CalculateSettlementPrice(buys, sells []domain.Order) uint64 {
	return SettlementPriceWithCap(buys, sells, DefaultSolverIterations)
}

// SettlementPriceWithCap is CalculateSettlementPrice with an explicit
// iteration cap. Empty order slices degenerate the bounds and return price 1
// without iterating.
func SettlementPriceWithCap(buys, sells []domain.Order, maxIterations int) uint64 {
	start := uint64(priceUpperSentinel)
	for _, o := range buys {
		if o.PriceLow < start {
			start = o.PriceLow
		}
	}
	end := uint64(1)
	for _, o := range sells {
		if o.PriceHigh > end {
			end = o.PriceHigh
		}
	}

	mid := uint64(1)
	for count := 0; start < end; {
		mid = (start + end) / 2

		var buyAmt, sellAmt uint64
		for _, o := range buys {
			buyAmt = safe.Add(buyAmt, BuyAmount(o, mid))
		}
		for _, o := range sells {
			sellAmt = safe.Add(sellAmt, SellAmount(o, mid))
		}

		switch {
		case buyAmt < sellAmt:
			end = mid
		case buyAmt > sellAmt:
			start = mid
		default:
			return mid // exact clearing
		}

		count++
		if count > maxIterations {
			break
		}
	}
	return mid
}

// AggregateVolumes sums both sides' curves at price. The sequencer uses this
// to derive the claimed totals it hands to StartSettlement.
func AggregateVolumes(buys, sells []domain.Order, price uint64) (buyTotal, sellTotal uint64) {
	for _, o := range buys {
		buyTotal = safe.Add(buyTotal, BuyAmount(o, price))
	}
	for _, o := range sells {
		sellTotal = safe.Add(sellTotal, SellAmount(o, price))
	}
	return buyTotal, sellTotal
}
