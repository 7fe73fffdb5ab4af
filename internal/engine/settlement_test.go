package engine

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/internal/ledger"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(ledger.NewMemStore(), log)
}

func fund(t *testing.T, e *Engine, token domain.TokenID, account domain.AccountID, amount uint64) {
	t.Helper()
	err := e.Store().Update(func(tx ledger.Txn) error {
		return tx.Credit(token, account, amount)
	})
	if err != nil {
		t.Fatalf("fund %s: %v", account, err)
	}
}

func balance(t *testing.T, e *Engine, token domain.TokenID, account domain.AccountID) uint64 {
	t.Helper()
	var bal uint64
	err := e.Store().View(func(tx ledger.Txn) error {
		var err error
		bal, err = tx.Balance(token, account)
		return err
	})
	if err != nil {
		t.Fatalf("balance %s: %v", account, err)
	}
	return bal
}

var testPair = domain.NewTokenPair(0, 1)

func TestPlaceOrderRejectsBadShape(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 1_000_000)

	cases := []domain.Order{
		{AmountLow: 100, AmountHigh: 100, PriceLow: 3000, PriceHigh: 3000}, // degenerate band
		{AmountLow: 100, AmountHigh: 100, PriceLow: 0, PriceHigh: 3000},    // zero price_low
		{AmountLow: 100, AmountHigh: 100, PriceLow: 4000, PriceHigh: 3000}, // inverted band
		{AmountLow: 100, AmountHigh: 200, PriceLow: 2000, PriceHigh: 4000}, // buy demand must not rise
	}
	for i, o := range cases {
		if _, err := e.PlaceBuyOrder(testPair, o, "alice"); !errors.Is(err, domain.ErrInvalidOrderShape) {
			t.Errorf("case %d: err = %v, want ErrInvalidOrderShape", i, err)
		}
	}

	// nothing escrowed, no counter bumped
	if got := balance(t, e, testPair.A, "alice"); got != 1_000_000 {
		t.Errorf("alice balance = %d, want untouched 1_000_000", got)
	}
}

func TestPlaceOrderInsufficientBalance(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 50)

	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	_, err := e.PlaceBuyOrder(testPair, o, "alice")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// the whole placement rolled back: the next order gets id 0
	fund(t, e, testPair.A, "alice", 100)
	id, err := e.PlaceBuyOrder(testPair, o, "alice")
	if err != nil {
		t.Fatalf("second placement failed: %v", err)
	}
	if id != 0 {
		t.Errorf("order id = %d, want 0 after rolled-back placement", id)
	}
}

func TestPlaceOrderEscrow(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 1_000_000)
	fund(t, e, testPair.B, "bob", 10_000)

	buy := domain.Order{AmountLow: 1_000_000, AmountHigh: 1_000_000, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, buy, "alice"); err != nil {
		t.Fatalf("buy placement failed: %v", err)
	}
	if got := balance(t, e, testPair.A, "alice"); got != 0 {
		t.Errorf("alice token A = %d, want 0 after escrow", got)
	}

	// sell escrow is max(amount_low/price_low, amount_high/price_high)
	sell := domain.Order{AmountLow: 0, AmountHigh: 33_000_000, PriceLow: 3000, PriceHigh: 3300}
	if _, err := e.PlaceSellOrder(testPair, sell, "bob"); err != nil {
		t.Fatalf("sell placement failed: %v", err)
	}
	if got := balance(t, e, testPair.B, "bob"); got != 0 {
		t.Errorf("bob token B = %d, want 0 after escrow of 10_000", got)
	}
	if got := balance(t, e, testPair.B, domain.SettlementAccount); got != 10_000 {
		t.Errorf("settlement escrow = %d, want 10_000", got)
	}
}

// Full round: flat buy of 1_000_000 A against a rising sell curve, cleared
// at the top of the seller's band.
func TestFullSettlementRound(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 1_000_000)
	fund(t, e, testPair.B, "bob", 10_000)

	buy := domain.Order{AmountLow: 1_000_000, AmountHigh: 1_000_000, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, buy, "alice"); err != nil {
		t.Fatalf("buy placement failed: %v", err)
	}
	sell := domain.Order{AmountLow: 0, AmountHigh: 33_000_000, PriceLow: 3000, PriceHigh: 3300}
	if _, err := e.PlaceSellOrder(testPair, sell, "bob"); err != nil {
		t.Fatalf("sell placement failed: %v", err)
	}

	// at 3300: demand 1_000_000, supply 33_000_000
	const price = 3300
	if err := e.StartSettlement(testPair, price, 1_000_000, 33_000_000); err != nil {
		t.Fatalf("StartSettlement failed: %v", err)
	}
	if err := e.SettlementStepSell(testPair); err != nil {
		t.Fatalf("sell step failed: %v", err)
	}
	if err := e.SettlementStepBuy(testPair); err != nil {
		t.Fatalf("buy step failed: %v", err)
	}
	if err := e.SettleBlock(testPair); err != nil {
		t.Fatalf("SettleBlock failed: %v", err)
	}

	info, ok, err := e.SettlementInfo(testPair, e.Store().Height())
	if err != nil || !ok {
		t.Fatalf("SettlementInfo = ok %v, err %v", ok, err)
	}
	if !info.Closed {
		t.Error("round not marked closed")
	}
	if info.SettledBuyCount != 1 || info.SettledSellCount != 1 {
		t.Errorf("settled counts = %d/%d, want 1/1", info.SettledBuyCount, info.SettledSellCount)
	}
	if info.SettlementPrice < 3000 || info.SettlementPrice > 3300 {
		t.Errorf("settlement price %d outside seller band [3000, 3300]", info.SettlementPrice)
	}

	// buyer spends all 1_000_000 A and gets floor(1_000_000/3300) = 303 B
	if got := balance(t, e, testPair.A, "alice"); got != 0 {
		t.Errorf("alice token A = %d, want 0", got)
	}
	if got := balance(t, e, testPair.B, "alice"); got != 303 {
		t.Errorf("alice token B = %d, want 303", got)
	}
	// seller gets all 1_000_000 A plus the 10_000 - 303 escrow remainder
	if got := balance(t, e, testPair.A, "bob"); got != 1_000_000 {
		t.Errorf("bob token A = %d, want 1_000_000", got)
	}
	if got := balance(t, e, testPair.B, "bob"); got != 9_697 {
		t.Errorf("bob token B = %d, want 9_697", got)
	}

	// conservation: escrow fully drained, nothing minted or burned
	if got := balance(t, e, testPair.A, domain.SettlementAccount); got != 0 {
		t.Errorf("settlement token A = %d, want 0", got)
	}
	if got := balance(t, e, testPair.B, domain.SettlementAccount); got != 0 {
		t.Errorf("settlement token B = %d, want 0", got)
	}
}

func TestStartSettlementRejectsZeroPrice(t *testing.T) {
	e := newTestEngine(t)
	if err := e.StartSettlement(testPair, 0, 0, 0); !errors.Is(err, domain.ErrZeroSettlementPrice) {
		t.Fatalf("err = %v, want ErrZeroSettlementPrice", err)
	}
}

func TestStartSettlementTwice(t *testing.T) {
	e := newTestEngine(t)
	if err := e.StartSettlement(testPair, 3000, 0, 0); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := e.StartSettlement(testPair, 3000, 0, 0); !errors.Is(err, domain.ErrSettlementStarted) {
		t.Fatalf("err = %v, want ErrSettlementStarted", err)
	}
}

func TestStepWithoutStart(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SettlementStepBuy(testPair); !errors.Is(err, domain.ErrSettlementNotStarted) {
		t.Fatalf("err = %v, want ErrSettlementNotStarted", err)
	}
}

func TestStepPastLastOrder(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 100)

	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, o, "alice"); err != nil {
		t.Fatalf("placement failed: %v", err)
	}
	if err := e.StartSettlement(testPair, 3000, 100, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := e.SettlementStepBuy(testPair); err != nil {
		t.Fatalf("first step failed: %v", err)
	}

	if err := e.SettlementStepBuy(testPair); !errors.Is(err, domain.ErrNothingToSettle) {
		t.Fatalf("err = %v, want ErrNothingToSettle", err)
	}
	// the sell side never had orders
	if err := e.SettlementStepSell(testPair); !errors.Is(err, domain.ErrNothingToSettle) {
		t.Fatalf("sell err = %v, want ErrNothingToSettle", err)
	}

	// the failed steps mutated nothing
	info, _, err := e.SettlementInfo(testPair, e.Store().Height())
	if err != nil {
		t.Fatalf("SettlementInfo failed: %v", err)
	}
	if info.SettledBuyCount != 1 || info.SettledSellCount != 0 {
		t.Errorf("settled counts = %d/%d, want 1/0", info.SettledBuyCount, info.SettledSellCount)
	}
}

func TestSettleBlockIncomplete(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 100)

	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, o, "alice"); err != nil {
		t.Fatalf("placement failed: %v", err)
	}
	if err := e.StartSettlement(testPair, 3000, 100, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := e.SettleBlock(testPair); !errors.Is(err, domain.ErrIncompleteSettlement) {
		t.Fatalf("err = %v, want ErrIncompleteSettlement", err)
	}
}

func TestSettleBlockTotalsMismatch(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 100)

	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, o, "alice"); err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	// claim 50 where the recomputed demand at 3000 is 100
	if err := e.StartSettlement(testPair, 3000, 50, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := e.SettlementStepBuy(testPair); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if err := e.SettleBlock(testPair); !errors.Is(err, domain.ErrTotalsMismatch) {
		t.Fatalf("err = %v, want ErrTotalsMismatch", err)
	}
}

func TestSettleBlockNotMaximalVolume(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 100)
	fund(t, e, testPair.B, "bob", 1)

	buy := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, buy, "alice"); err != nil {
		t.Fatalf("buy placement failed: %v", err)
	}
	sell := domain.Order{AmountLow: 0, AmountHigh: 3300, PriceLow: 3000, PriceHigh: 3300}
	if _, err := e.PlaceSellOrder(testPair, sell, "bob"); err != nil {
		t.Fatalf("sell placement failed: %v", err)
	}

	// at 3000 the supply curve is still at 0: volume 0, but one tick above
	// trades min(100, 11) = 11
	if err := e.StartSettlement(testPair, 3000, 100, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := e.SettlementStepSell(testPair); err != nil {
		t.Fatalf("sell step failed: %v", err)
	}
	if err := e.SettlementStepBuy(testPair); err != nil {
		t.Fatalf("buy step failed: %v", err)
	}

	if err := e.SettleBlock(testPair); !errors.Is(err, domain.ErrNotMaximalVolume) {
		t.Fatalf("err = %v, want ErrNotMaximalVolume", err)
	}
}

func TestSettleBlockTwice(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 100)

	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, o, "alice"); err != nil {
		t.Fatalf("placement failed: %v", err)
	}
	if err := e.StartSettlement(testPair, 2000, 100, 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := e.SettlementStepBuy(testPair); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if err := e.SettleBlock(testPair); err != nil {
		t.Fatalf("first close failed: %v", err)
	}

	if err := e.SettleBlock(testPair); !errors.Is(err, domain.ErrRoundClosed) {
		t.Fatalf("err = %v, want ErrRoundClosed", err)
	}
}

func TestRoundsIsolatedByHeight(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, testPair.A, "alice", 200)

	o := domain.Order{AmountLow: 100, AmountHigh: 100, PriceLow: 2000, PriceHigh: 4000}
	if _, err := e.PlaceBuyOrder(testPair, o, "alice"); err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	h1 := e.Store().Height()
	if _, err := e.Store().AdvanceBlock(); err != nil {
		t.Fatalf("AdvanceBlock failed: %v", err)
	}

	// the new block starts with a fresh counter: id 0 again
	id, err := e.PlaceBuyOrder(testPair, o, "alice")
	if err != nil {
		t.Fatalf("placement at new height failed: %v", err)
	}
	if id != 0 {
		t.Errorf("order id at new height = %d, want 0", id)
	}

	// the old block's round state is untouched
	if _, ok, err := e.SettlementInfo(testPair, h1); err != nil || ok {
		t.Errorf("old height settlement ok=%v err=%v, want absent", ok, err)
	}
}
