package domain

import "fmt"

// TokenID identifies a fungible token on the ledger.
type TokenID uint64

// AccountID identifies a balance-holding account.
type AccountID string

// SettlementAccount is the reserved escrow account. Placement moves deposits
// into it; settlement steps pay out and refund from it.
const SettlementAccount AccountID = "dex:settlement"

// TokenPair is an unordered pair of tokens, canonicalized so that (A,B) and
// (B,A) always map to the same key. A is the lower token id; order amounts
// and prices are denominated in token A per unit of token B.
type TokenPair struct {
	A TokenID `json:"a"`
	B TokenID `json:"b"`
}

// NewTokenPair canonicalizes two token ids into a TokenPair.
func NewTokenPair(x, y TokenID) TokenPair {
	if x > y {
		x, y = y, x
	}
	return TokenPair{A: x, B: y}
}

func (p TokenPair) String() string {
	return fmt.Sprintf("%d:%d", p.A, p.B)
}

// PairBlockKey scopes per-block counters and settlement state.
type PairBlockKey struct {
	Pair   TokenPair
	Height uint64
}

// OrderKey identifies a single order. OrderID is a zero-based sequence,
// gapless per (pair, height, side), assigned at placement and never reused.
type OrderKey struct {
	Pair    TokenPair
	Height  uint64
	OrderID uint64
}

// Ledger key spaces. All state is scoped by block height, so rounds from
// different blocks never alias.

func (k PairBlockKey) BuyCounterKey() string {
	return fmt.Sprintf("dex/buyctr/%s/%d", k.Pair, k.Height)
}

func (k PairBlockKey) SellCounterKey() string {
	return fmt.Sprintf("dex/sellctr/%s/%d", k.Pair, k.Height)
}

func (k PairBlockKey) SettlementKey() string {
	return fmt.Sprintf("dex/settle/%s/%d", k.Pair, k.Height)
}

func (k OrderKey) BuyOrderKey() string {
	return fmt.Sprintf("dex/buyorder/%s/%d/%d", k.Pair, k.Height, k.OrderID)
}

func (k OrderKey) SellOrderKey() string {
	return fmt.Sprintf("dex/sellorder/%s/%d/%d", k.Pair, k.Height, k.OrderID)
}
