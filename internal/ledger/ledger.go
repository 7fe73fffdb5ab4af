// Package ledger is the key-value and balance substrate the settlement
// engine runs against. Every engine operation executes inside one Update
// transaction: on any error none of the transaction's writes take effect.
package ledger

import "github.com/Raunaque97/beat-exchange/internal/domain"

// Txn is the state visible to a single transaction. Writes are staged and
// only become visible once the enclosing Update commits.
type Txn interface {
	// Get returns the value stored at key. The second return is false when
	// the key has never been written.
	Get(key string) ([]byte, bool, error)

	// Set stores value at key, last-write-wins.
	Set(key string, value []byte) error

	// Balance returns the current balance of account in token.
	Balance(token domain.TokenID, account domain.AccountID) (uint64, error)

	// Credit mints amount into account. Used for funding; settlement itself
	// only ever moves existing value.
	Credit(token domain.TokenID, account domain.AccountID, amount uint64) error

	// Transfer moves amount between accounts, failing with
	// domain.ErrInsufficientBalance when from cannot cover it.
	Transfer(token domain.TokenID, from, to domain.AccountID, amount uint64) error

	// Height is the block height this transaction executes at.
	Height() uint64
}

// Store is a transactional ledger.
type Store interface {
	// View runs fn against a read-only snapshot.
	View(fn func(Txn) error) error

	// Update runs fn in a transaction. If fn returns an error every staged
	// write is discarded and the error is returned unchanged.
	Update(fn func(Txn) error) error

	// Height returns the current block height.
	Height() uint64

	// AdvanceBlock increments the block height and returns the new value.
	AdvanceBlock() (uint64, error)

	Close() error
}
