package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/internal/ledger"
	"github.com/Raunaque97/beat-exchange/pkg/safe"
)

// StartSettlement opens the settlement round for (pair, current block) with
// the sequencer's claimed price and totals. The totals are verified at
// SettleBlock, not here. A duplicate start fails cleanly.
func (e *Engine) StartSettlement(pair domain.TokenPair, price, buyTotal, sellTotal uint64) error {
	return e.store.Update(func(tx ledger.Txn) error {
		if price == 0 {
			return domain.ErrZeroSettlementPrice
		}

		pbk := domain.PairBlockKey{Pair: pair, Height: tx.Height()}
		if _, ok, err := tx.Get(pbk.SettlementKey()); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%s at height %d: %w", pair, pbk.Height, domain.ErrSettlementStarted)
		}

		info := domain.SettlementInfo{
			SettlementPrice: price,
			BuyTotal:        buyTotal,
			SellTotal:       sellTotal,
		}
		return writeSettlement(tx, pbk, info)
	})
}

// SettlementStepBuy settles the next unsettled buy order at the round's
// price: accumulate its curve at price-1/price/price+1, pay the pro-rata
// fill and refund the untraded escrow remainder.
func (e *Engine) SettlementStepBuy(pair domain.TokenPair) error {
	return e.store.Update(func(tx ledger.Txn) error {
		return settlementStep(tx, pair, domain.Buy)
	})
}

// SettlementStepSell is the sell-side twin of SettlementStepBuy.
func (e *Engine) SettlementStepSell(pair domain.TokenPair) error {
	return e.store.Update(func(tx ledger.Txn) error {
		return settlementStep(tx, pair, domain.Sell)
	})
}

func settlementStep(tx ledger.Txn, pair domain.TokenPair, side domain.Side) error {
	pbk := domain.PairBlockKey{Pair: pair, Height: tx.Height()}
	info, ok, err := readSettlement(tx, pbk)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s at height %d: %w", pair, pbk.Height, domain.ErrSettlementNotStarted)
	}

	counterKey := pbk.BuyCounterKey()
	settled := info.SettledBuyCount
	if side == domain.Sell {
		counterKey = pbk.SellCounterKey()
		settled = info.SettledSellCount
	}
	count, err := readCounter(tx, counterKey)
	if err != nil {
		return err
	}
	if settled >= count {
		return fmt.Errorf("%s side of %s at height %d: %w", side, pair, pbk.Height, domain.ErrNothingToSettle)
	}

	order, err := readOrder(tx, domain.OrderKey{Pair: pair, Height: pbk.Height, OrderID: settled}, side)
	if err != nil {
		return err
	}

	price := info.SettlementPrice
	eval := BuyAmount
	if side == domain.Sell {
		eval = SellAmount
	}
	amtBelow := eval(order, safe.Sub(price, 1))
	amtAt := eval(order, price)
	amtAbove := eval(order, safe.Add(price, 1))

	// pro-rata fill against the opposite side's total
	opposite := info.SellTotal
	if side == domain.Sell {
		opposite = info.BuyTotal
	}
	tradeA := safe.MulDiv(amtAt, opposite, safe.Max(info.BuyTotal, info.SellTotal))
	tradeB := safe.Div(tradeA, price)

	// A trade beyond the order's own deposit means the solver or the
	// accounting is broken; abort the whole step.
	if side == domain.Buy {
		if tradeA > order.AmountLow {
			return fmt.Errorf("buy order %d trade %d exceeds deposit %d: %w",
				settled, tradeA, order.AmountLow, domain.ErrInvariantViolated)
		}
		// pay the bought leg, refund the unspent deposit
		if err := tx.Transfer(pair.B, domain.SettlementAccount, order.Receiver, tradeB); err != nil {
			return err
		}
		refund := safe.Sub(order.AmountLow, tradeA)
		if err := tx.Transfer(pair.A, domain.SettlementAccount, order.Receiver, refund); err != nil {
			return err
		}
	} else {
		escrow := order.SellEscrow()
		if tradeB > escrow {
			return fmt.Errorf("sell order %d trade %d exceeds deposit %d: %w",
				settled, tradeB, escrow, domain.ErrInvariantViolated)
		}
		// pay the sale proceeds, refund the undelivered deposit
		if err := tx.Transfer(pair.A, domain.SettlementAccount, order.Receiver, tradeA); err != nil {
			return err
		}
		refund := safe.Sub(escrow, tradeB)
		if err := tx.Transfer(pair.B, domain.SettlementAccount, order.Receiver, refund); err != nil {
			return err
		}
	}

	if side == domain.Buy {
		info.SettledBuyCount++
		info.BuyAccBelow = safe.Add(info.BuyAccBelow, amtBelow)
		info.BuyAccAt = safe.Add(info.BuyAccAt, amtAt)
		info.BuyAccAbove = safe.Add(info.BuyAccAbove, amtAbove)
	} else {
		info.SettledSellCount++
		info.SellAccBelow = safe.Add(info.SellAccBelow, amtBelow)
		info.SellAccAt = safe.Add(info.SellAccAt, amtAt)
		info.SellAccAbove = safe.Add(info.SellAccAbove, amtAbove)
	}
	return writeSettlement(tx, pbk, info)
}

// SettleBlock closes the round. It re-derives everything from on-record
// state: all orders must be settled, the claimed totals must equal the
// recomputed volume at the price, and volume at the price must not be
// beaten one tick above or below. Nothing is deleted; the round becomes
// immutable history.
func (e *Engine) SettleBlock(pair domain.TokenPair) error {
	return e.store.Update(func(tx ledger.Txn) error {
		pbk := domain.PairBlockKey{Pair: pair, Height: tx.Height()}
		info, ok, err := readSettlement(tx, pbk)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s at height %d: %w", pair, pbk.Height, domain.ErrSettlementNotStarted)
		}
		if info.Closed {
			return fmt.Errorf("%s at height %d: %w", pair, pbk.Height, domain.ErrRoundClosed)
		}

		buyCount, err := readCounter(tx, pbk.BuyCounterKey())
		if err != nil {
			return err
		}
		sellCount, err := readCounter(tx, pbk.SellCounterKey())
		if err != nil {
			return err
		}
		if info.SettledBuyCount != buyCount || info.SettledSellCount != sellCount {
			return fmt.Errorf("settled %d/%d buys and %d/%d sells: %w",
				info.SettledBuyCount, buyCount, info.SettledSellCount, sellCount,
				domain.ErrIncompleteSettlement)
		}

		if info.BuyAccAt != info.BuyTotal || info.SellAccAt != info.SellTotal {
			return fmt.Errorf("claimed totals %d/%d, recomputed %d/%d: %w",
				info.BuyTotal, info.SellTotal, info.BuyAccAt, info.SellAccAt,
				domain.ErrTotalsMismatch)
		}

		volAt := safe.Min(info.BuyAccAt, info.SellAccAt)
		volBelow := safe.Min(info.BuyAccBelow, info.SellAccBelow)
		volAbove := safe.Min(info.BuyAccAbove, info.SellAccAbove)
		if volAt < volBelow || volAt < volAbove {
			return fmt.Errorf("volume %d at price %d beaten by %d below / %d above: %w",
				volAt, info.SettlementPrice, volBelow, volAbove, domain.ErrNotMaximalVolume)
		}

		e.log.Info("block settled",
			slog.String("pair", pair.String()),
			slog.Uint64("height", pbk.Height),
			slog.Uint64("price", info.SettlementPrice),
			slog.Uint64("volume", volAt))

		info.Closed = true
		return writeSettlement(tx, pbk, info)
	})
}

// SettlementInfo reads the round state for (pair, height), if any.
func (e *Engine) SettlementInfo(pair domain.TokenPair, height uint64) (domain.SettlementInfo, bool, error) {
	var info domain.SettlementInfo
	var ok bool
	err := e.store.View(func(tx ledger.Txn) error {
		var err error
		info, ok, err = readSettlement(tx, domain.PairBlockKey{Pair: pair, Height: height})
		return err
	})
	return info, ok, err
}

func readSettlement(tx ledger.Txn, pbk domain.PairBlockKey) (domain.SettlementInfo, bool, error) {
	raw, ok, err := tx.Get(pbk.SettlementKey())
	if err != nil || !ok {
		return domain.SettlementInfo{}, false, err
	}
	var info domain.SettlementInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.SettlementInfo{}, false, fmt.Errorf("failed to decode settlement info: %w", err)
	}
	return info, true, nil
}

func writeSettlement(tx ledger.Txn, pbk domain.PairBlockKey, info domain.SettlementInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode settlement info: %w", err)
	}
	return tx.Set(pbk.SettlementKey(), raw)
}
