package engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/internal/ledger"
)

// Engine is the settlement core. Every public operation runs as one atomic
// ledger transaction: on any failed precondition none of its writes or
// transfers take effect.
type Engine struct {
	store ledger.Store
	log   *slog.Logger
}

// New wires the engine to its ledger substrate.
func New(store ledger.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, log: log}
}

// Store exposes the underlying ledger (the sequencer advances blocks on it).
func (e *Engine) Store() ledger.Store {
	return e.store
}

// PlaceBuyOrder validates the order shape, assigns the next order id for
// (pair, current block), stores the order and escrows AmountLow of token A
// from sender into the settlement account. Returns the assigned id.
func (e *Engine) PlaceBuyOrder(pair domain.TokenPair, o domain.Order, sender domain.AccountID) (uint64, error) {
	var id uint64
	err := e.store.Update(func(tx ledger.Txn) error {
		var err error
		id, err = placeOrder(tx, pair, o, sender, domain.Buy)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("order placed",
		slog.String("side", "BUY"),
		slog.String("pair", pair.String()),
		slog.Uint64("order_id", id),
		slog.Uint64("amount_low", o.AmountLow),
		slog.Uint64("amount_high", o.AmountHigh))
	return id, nil
}

// PlaceSellOrder is the sell-side twin: shape invariant AmountLow <=
// AmountHigh, escrow max(AmountLow/PriceLow, AmountHigh/PriceHigh) of
// token B.
func (e *Engine) PlaceSellOrder(pair domain.TokenPair, o domain.Order, sender domain.AccountID) (uint64, error) {
	var id uint64
	err := e.store.Update(func(tx ledger.Txn) error {
		var err error
		id, err = placeOrder(tx, pair, o, sender, domain.Sell)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("order placed",
		slog.String("side", "SELL"),
		slog.String("pair", pair.String()),
		slog.Uint64("order_id", id),
		slog.Uint64("amount_low", o.AmountLow),
		slog.Uint64("amount_high", o.AmountHigh))
	return id, nil
}

func placeOrder(tx ledger.Txn, pair domain.TokenPair, o domain.Order, sender domain.AccountID, side domain.Side) (uint64, error) {
	if !o.ValidShape(side) {
		return 0, fmt.Errorf("%s order {%d,%d,%d,%d}: %w",
			side, o.AmountLow, o.AmountHigh, o.PriceLow, o.PriceHigh,
			domain.ErrInvalidOrderShape)
	}
	if o.Receiver == "" {
		o.Receiver = sender
	}

	pbk := domain.PairBlockKey{Pair: pair, Height: tx.Height()}
	counterKey := pbk.BuyCounterKey()
	if side == domain.Sell {
		counterKey = pbk.SellCounterKey()
	}

	id, err := readCounter(tx, counterKey)
	if err != nil {
		return 0, err
	}

	ok := domain.OrderKey{Pair: pair, Height: pbk.Height, OrderID: id}
	orderKey := ok.BuyOrderKey()
	if side == domain.Sell {
		orderKey = ok.SellOrderKey()
	}

	raw, err := json.Marshal(o)
	if err != nil {
		return 0, fmt.Errorf("failed to encode order: %w", err)
	}
	if err := tx.Set(orderKey, raw); err != nil {
		return 0, err
	}
	if err := writeCounter(tx, counterKey, id+1); err != nil {
		return 0, err
	}

	// escrow deposit
	if side == domain.Buy {
		return id, tx.Transfer(pair.A, sender, domain.SettlementAccount, o.AmountLow)
	}
	return id, tx.Transfer(pair.B, sender, domain.SettlementAccount, o.SellEscrow())
}

// Orders returns one side's orders for (pair, height) in order-id order.
// Ids are gapless, so the counter bounds a simple scan.
func Orders(tx ledger.Txn, pair domain.TokenPair, height uint64, side domain.Side) ([]domain.Order, error) {
	pbk := domain.PairBlockKey{Pair: pair, Height: height}
	counterKey := pbk.BuyCounterKey()
	if side == domain.Sell {
		counterKey = pbk.SellCounterKey()
	}
	count, err := readCounter(tx, counterKey)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, count)
	for id := uint64(0); id < count; id++ {
		o, err := readOrder(tx, domain.OrderKey{Pair: pair, Height: height, OrderID: id}, side)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func readOrder(tx ledger.Txn, key domain.OrderKey, side domain.Side) (domain.Order, error) {
	k := key.BuyOrderKey()
	if side == domain.Sell {
		k = key.SellOrderKey()
	}
	raw, ok, err := tx.Get(k)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("missing %s order %d for %s at height %d",
			side, key.OrderID, key.Pair, key.Height)
	}
	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.Order{}, fmt.Errorf("failed to decode order: %w", err)
	}
	return o, nil
}

func readCounter(tx ledger.Txn, key string) (uint64, error) {
	raw, ok, err := tx.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt counter at %s: %d bytes", key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func writeCounter(tx ledger.Txn, key string, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return tx.Set(key, buf)
}
