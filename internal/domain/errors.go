package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable.
// Used at the gateway and publisher boundaries; the settlement core itself
// never retries.
type NetworkError struct {
	Op        string // Operation that failed (e.g., "upgrade", "read", "publish")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// Settlement-engine abort reasons. Every failed operation surfaces exactly
// one of these as its abort reason and leaves no partial mutation behind.
var (
	// ErrInvalidOrderShape is returned when price/amount bounds are malformed
	// at placement. Not retriable.
	ErrInvalidOrderShape = errors.New("invalid order shape")

	// ErrInsufficientBalance is returned when an escrow deposit or a payout
	// transfer cannot be funded.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNothingToSettle is returned when a settlement step is called with no
	// remaining orders on that side.
	ErrNothingToSettle = errors.New("nothing to settle")

	// ErrInvariantViolated is returned when a per-order trade exceeds its
	// deposit. This signals a solver or accounting bug, never user error.
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrIncompleteSettlement is returned when SettleBlock runs before every
	// order of the round has been stepped through.
	ErrIncompleteSettlement = errors.New("incomplete settlement")

	// ErrTotalsMismatch is returned when the claimed totals do not match the
	// volume recomputed from on-record orders at the clearing price. This is
	// the defense against a dishonest or stale solver result.
	ErrTotalsMismatch = errors.New("totals mismatch")

	// ErrNotMaximalVolume is returned when traded volume at the clearing
	// price is exceeded one tick above or below it.
	ErrNotMaximalVolume = errors.New("not maximal volume")

	// ErrZeroSettlementPrice is returned when StartSettlement is called with
	// price zero.
	ErrZeroSettlementPrice = errors.New("settlement price is zero")

	// ErrSettlementStarted is returned on a duplicate StartSettlement for the
	// same (pair, block).
	ErrSettlementStarted = errors.New("settlement already started")

	// ErrSettlementNotStarted is returned when a step or close runs before
	// StartSettlement for that (pair, block).
	ErrSettlementNotStarted = errors.New("settlement not started")

	// ErrRoundClosed is returned on a duplicate SettleBlock.
	ErrRoundClosed = errors.New("settlement round already closed")
)
