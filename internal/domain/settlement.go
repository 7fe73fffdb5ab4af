package domain

// SettlementInfo is the per-(pair, block) settlement round state. It is
// created by StartSettlement, mutated monotonically by settlement steps and
// finalized (never deleted) by SettleBlock.
//
// BuyTotal and SellTotal are the sequencer's claims; they are re-verified
// against the accumulators at close, never trusted. The six accumulators
// track cumulative traded volume evaluated one tick below, at, and one tick
// above the settlement price, feeding the local-optimality check.
type SettlementInfo struct {
	SettlementPrice uint64 `json:"settlement_price"`
	BuyTotal        uint64 `json:"buy_total"`
	SellTotal       uint64 `json:"sell_total"`

	SettledBuyCount  uint64 `json:"settled_buy_count"`
	SettledSellCount uint64 `json:"settled_sell_count"`

	BuyAccBelow  uint64 `json:"buy_acc_below"`
	BuyAccAt     uint64 `json:"buy_acc_at"`
	BuyAccAbove  uint64 `json:"buy_acc_above"`
	SellAccBelow uint64 `json:"sell_acc_below"`
	SellAccAt    uint64 `json:"sell_acc_at"`
	SellAccAbove uint64 `json:"sell_acc_above"`

	Closed bool `json:"closed"`
}

// SettlementResult is the immutable record of a closed round, published to
// the outbox and broadcast to gateway subscribers.
type SettlementResult struct {
	Pair      TokenPair `json:"pair"`
	Height    uint64    `json:"height"`
	Price     uint64    `json:"price"`
	BuyTotal  uint64    `json:"buy_total"`
	SellTotal uint64    `json:"sell_total"`
}
