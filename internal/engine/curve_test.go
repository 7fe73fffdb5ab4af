package engine

import (
	"testing"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

func TestBuyAmountEndpoints(t *testing.T) {
	o := domain.Order{AmountLow: 1000, AmountHigh: 200, PriceLow: 2000, PriceHigh: 4000}

	if got := BuyAmount(o, o.PriceLow); got != o.AmountLow {
		t.Errorf("BuyAmount at price_low = %d, want %d", got, o.AmountLow)
	}
	if got := BuyAmount(o, o.PriceHigh); got != o.AmountHigh {
		t.Errorf("BuyAmount at price_high = %d, want %d", got, o.AmountHigh)
	}
	if got := BuyAmount(o, 100); got != o.AmountLow {
		t.Errorf("BuyAmount below price_low = %d, want %d", got, o.AmountLow)
	}
	if got := BuyAmount(o, o.PriceHigh+1); got != 0 {
		t.Errorf("BuyAmount above price_high = %d, want 0", got)
	}
}

func TestBuyAmountInterpolation(t *testing.T) {
	o := domain.Order{AmountLow: 1000, AmountHigh: 0, PriceLow: 2000, PriceHigh: 3000}

	cases := []struct {
		price uint64
		want  uint64
	}{
		{2500, 500},
		{2250, 750},
		{2999, 1},
		{2001, 999},
	}
	for _, tc := range cases {
		if got := BuyAmount(o, tc.price); got != tc.want {
			t.Errorf("BuyAmount(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestBuyAmountMonotone(t *testing.T) {
	o := domain.Order{AmountLow: 987_654, AmountHigh: 123, PriceLow: 17, PriceHigh: 9_431}

	prev := BuyAmount(o, o.PriceLow)
	for p := o.PriceLow + 1; p <= o.PriceHigh; p++ {
		cur := BuyAmount(o, p)
		if cur > prev {
			t.Fatalf("BuyAmount increased: %d at %d, %d at %d", prev, p-1, cur, p)
		}
		prev = cur
	}
}

func TestSellAmountEndpoints(t *testing.T) {
	o := domain.Order{AmountLow: 0, AmountHigh: 1000, PriceLow: 3000, PriceHigh: 3300}

	if got := SellAmount(o, o.PriceLow); got != o.AmountLow {
		t.Errorf("SellAmount at price_low = %d, want %d", got, o.AmountLow)
	}
	if got := SellAmount(o, o.PriceHigh); got != o.AmountHigh {
		t.Errorf("SellAmount at price_high = %d, want %d", got, o.AmountHigh)
	}
	if got := SellAmount(o, o.PriceHigh+500); got != o.AmountHigh {
		t.Errorf("SellAmount above price_high = %d, want %d", got, o.AmountHigh)
	}
	if got := SellAmount(o, 3030); got != 100 {
		t.Errorf("SellAmount(3030) = %d, want 100", got)
	}
}

func TestSellAmountMonotone(t *testing.T) {
	o := domain.Order{AmountLow: 5, AmountHigh: 700_001, PriceLow: 100, PriceHigh: 8_000}

	prev := SellAmount(o, o.PriceLow)
	for p := o.PriceLow + 1; p <= o.PriceHigh; p++ {
		cur := SellAmount(o, p)
		if cur < prev {
			t.Fatalf("SellAmount decreased: %d at %d, %d at %d", prev, p-1, cur, p)
		}
		prev = cur
	}
}

func TestCurveFlatOrder(t *testing.T) {
	// amount_low == amount_high is a constant curve inside the price band
	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	for _, p := range []uint64{2000, 2500, 3300, 4000} {
		if got := BuyAmount(o, p); got != 100 {
			t.Errorf("BuyAmount(%d) = %d, want 100", p, got)
		}
	}
}
