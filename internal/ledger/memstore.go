package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

// ErrReadOnlyTxn is returned when a View transaction attempts a write.
var ErrReadOnlyTxn = errors.New("write in read-only transaction")

type balanceKey struct {
	token   domain.TokenID
	account domain.AccountID
}

// MemStore is the in-memory ledger. It is the deterministic default for the
// sequencer and the engine tests; writes are staged per transaction and
// applied only on commit.
type MemStore struct {
	mu       sync.RWMutex
	kv       map[string][]byte
	balances map[balanceKey]uint64
	height   uint64
}

// NewMemStore creates an empty in-memory ledger at height 1.
func NewMemStore() *MemStore {
	return &MemStore{
		kv:       make(map[string][]byte),
		balances: make(map[balanceKey]uint64),
		height:   1,
	}
}

func (s *MemStore) View(fn func(Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := &memTxn{store: s, readOnly: true}
	return fn(tx)
}

func (s *MemStore) Update(fn func(Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTxn{
		store:     s,
		kvWrites:  make(map[string][]byte),
		balWrites: make(map[balanceKey]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for k, v := range tx.kvWrites {
		s.kv[k] = v
	}
	for k, v := range tx.balWrites {
		s.balances[k] = v
	}
	return nil
}

func (s *MemStore) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

func (s *MemStore) AdvanceBlock() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height++
	return s.height, nil
}

func (s *MemStore) Close() error { return nil }

// memTxn overlays staged writes on the store. Reads consult the overlay
// first so a transaction observes its own writes.
type memTxn struct {
	store     *MemStore
	readOnly  bool
	kvWrites  map[string][]byte
	balWrites map[balanceKey]uint64
}

func (t *memTxn) Get(key string) ([]byte, bool, error) {
	if !t.readOnly {
		if v, ok := t.kvWrites[key]; ok {
			return v, true, nil
		}
	}
	v, ok := t.store.kv[key]
	return v, ok, nil
}

func (t *memTxn) Set(key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	t.kvWrites[key] = value
	return nil
}

func (t *memTxn) Balance(token domain.TokenID, account domain.AccountID) (uint64, error) {
	k := balanceKey{token: token, account: account}
	if !t.readOnly {
		if v, ok := t.balWrites[k]; ok {
			return v, nil
		}
	}
	return t.store.balances[k], nil
}

func (t *memTxn) Credit(token domain.TokenID, account domain.AccountID, amount uint64) error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	cur, _ := t.Balance(token, account)
	if cur > math.MaxUint64-amount {
		return fmt.Errorf("credit overflows balance of %s in token %d", account, token)
	}
	t.balWrites[balanceKey{token: token, account: account}] = cur + amount
	return nil
}

func (t *memTxn) Transfer(token domain.TokenID, from, to domain.AccountID, amount uint64) error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	if from == to || amount == 0 {
		return nil
	}

	fromBal, _ := t.Balance(token, from)
	if fromBal < amount {
		return fmt.Errorf("transfer %d of token %d from %s (has %d): %w",
			amount, token, from, fromBal, domain.ErrInsufficientBalance)
	}
	toBal, _ := t.Balance(token, to)
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("transfer overflows balance of %s in token %d", to, token)
	}

	t.balWrites[balanceKey{token: token, account: from}] = fromBal - amount
	t.balWrites[balanceKey{token: token, account: to}] = toBal + amount
	return nil
}

func (t *memTxn) Height() uint64 {
	return t.store.height
}
