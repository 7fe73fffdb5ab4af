package engine

import (
	"testing"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

func TestSettlementPriceTwoBuysOneSell(t *testing.T) {
	buys := []domain.Order{
		{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000},
		{AmountLow: 1000, AmountHigh: 0, PriceLow: 2700, PriceHigh: 3000},
	}
	sells := []domain.Order{
		{AmountLow: 0, AmountHigh: 1000, PriceLow: 3000, PriceHigh: 3300},
	}

	price := CalculateSettlementPrice(buys, sells)
	if price != 3030 {
		t.Fatalf("price = %d, want 3030", price)
	}

	// 3030 clears exactly: demand 100 meets supply 100
	buyTotal, sellTotal := AggregateVolumes(buys, sells, price)
	if buyTotal != 100 || sellTotal != 100 {
		t.Errorf("volumes at %d = %d/%d, want 100/100", price, buyTotal, sellTotal)
	}
}

func TestSettlementPriceDeterministic(t *testing.T) {
	buys := []domain.Order{
		{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000},
		{AmountLow: 1000, AmountHigh: 0, PriceLow: 2700, PriceHigh: 3000},
	}
	sells := []domain.Order{
		{AmountLow: 0, AmountHigh: 1000, PriceLow: 3000, PriceHigh: 3300},
	}

	first := CalculateSettlementPrice(buys, sells)
	for i := 0; i < 10; i++ {
		if got := CalculateSettlementPrice(buys, sells); got != first {
			t.Fatalf("run %d price = %d, want %d", i, got, first)
		}
	}
}

func TestSettlementPriceEmptyBook(t *testing.T) {
	if got := CalculateSettlementPrice(nil, nil); got != 1 {
		t.Errorf("empty book price = %d, want 1", got)
	}
	if got := CalculateSettlementPrice([]domain.Order{}, []domain.Order{}); got != 1 {
		t.Errorf("empty slice price = %d, want 1", got)
	}
}

func TestSettlementPriceOneSidedBook(t *testing.T) {
	buys := []domain.Order{
		{AmountLow: 100, AmountHigh: 0, PriceLow: 2000, PriceHigh: 3000},
	}
	// no sells: end stays 1, search never runs
	if got := CalculateSettlementPrice(buys, nil); got != 1 {
		t.Errorf("buy-only book price = %d, want 1", got)
	}
}

func TestSettlementPriceNoOverlap(t *testing.T) {
	// buyer band entirely below the seller band: demand 0 in the overlap
	buys := []domain.Order{
		{AmountLow: 500, AmountHigh: 0, PriceLow: 100, PriceHigh: 200},
	}
	sells := []domain.Order{
		{AmountLow: 0, AmountHigh: 500, PriceLow: 5000, PriceHigh: 6000},
	}

	price := CalculateSettlementPrice(buys, sells)
	buyTotal, sellTotal := AggregateVolumes(buys, sells, price)
	if min(buyTotal, sellTotal) != 0 {
		t.Errorf("tradable volume at %d = %d/%d, want one side 0", price, buyTotal, sellTotal)
	}
}

func TestSettlementPriceIterationCap(t *testing.T) {
	buys := []domain.Order{
		{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000},
	}
	sells := []domain.Order{
		{AmountLow: 0, AmountHigh: 3300, PriceLow: 3000, PriceHigh: 3300},
	}

	// a tiny cap still returns the last midpoint instead of looping forever
	price := SettlementPriceWithCap(buys, sells, 3)
	if price == 0 {
		t.Fatal("capped search returned 0")
	}
}

func TestAggregateVolumes(t *testing.T) {
	buys := []domain.Order{
		{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000},
		{AmountLow: 1000, AmountHigh: 0, PriceLow: 2700, PriceHigh: 3000},
	}
	sells := []domain.Order{
		{AmountLow: 0, AmountHigh: 1000, PriceLow: 3000, PriceHigh: 3300},
	}

	// at 2999 the second buy still contributes 1000 - floor(1000*299/300) = 4
	buyTotal, sellTotal := AggregateVolumes(buys, sells, 2999)
	if buyTotal != 104 {
		t.Errorf("buyTotal at 2999 = %d, want 104", buyTotal)
	}
	if sellTotal != 0 {
		t.Errorf("sellTotal at 2999 = %d, want 0", sellTotal)
	}
}
