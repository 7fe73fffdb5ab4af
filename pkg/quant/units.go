package quant

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the fixed-point scale for token amounts.
// E.g. with 9 decimals, 1.5 tokens = 1,500,000,000 base units.
const DefaultDecimals = 9

var (
	// ErrNegativeAmount is returned when a parsed amount is below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrAmountOverflow is returned when a parsed amount does not fit in uint64.
	ErrAmountOverflow = errors.New("amount exceeds uint64 range")
)

// ParseAmount converts a human decimal string (e.g. "1.5") into uint64 base
// units at the given scale. Excess fractional precision is floored, never
// rounded up. Internal logic uses base units only; this is a boundary helper.
func ParseAmount(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNegativeAmount, s)
	}

	scaled := d.Shift(decimals).Floor()
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, s)
	}
	return bi.Uint64(), nil
}

// FormatAmount renders base units back as a human decimal string.
func FormatAmount(v uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -decimals).String()
}

// NextSeq generates the next sequence number atomically. Gateways share one
// counter so the sequencer sees a gapless stream.
func NextSeq(ptr *uint64) uint64 {
	return atomic.AddUint64(ptr, 1)
}
