package ledger

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

// KVRow is one entry of the engine's key-value state space.
type KVRow struct {
	Key   string `gorm:"primaryKey;size:256"`
	Value []byte
}

// BalanceRow holds one account balance per token.
type BalanceRow struct {
	Token   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Account string `gorm:"primaryKey;size:128"`
	Amount  uint64
}

// MetaRow holds store-level counters (currently only the block height).
type MetaRow struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value uint64
}

const metaHeight = "height"

// SQLStore is the durable ledger on SQLite (pure Go driver). Update maps
// onto a database transaction, so a failed operation rolls back every write
// including its balance transfers.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens (and if needed migrates) the ledger database at path.
func NewSQLStore(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := db.AutoMigrate(&KVRow{}, &BalanceRow{}, &MetaRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	// genesis height
	err = db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&MetaRow{Name: metaHeight, Value: 1}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to initialize height: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) View(fn func(Txn) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		h, err := readHeight(tx)
		if err != nil {
			return err
		}
		return fn(&sqlTxn{db: tx, height: h, readOnly: true})
	})
}

func (s *SQLStore) Update(fn func(Txn) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		h, err := readHeight(tx)
		if err != nil {
			return err
		}
		return fn(&sqlTxn{db: tx, height: h})
	})
}

func (s *SQLStore) Height() uint64 {
	h, err := readHeight(s.db)
	if err != nil {
		return 0
	}
	return h
}

func (s *SQLStore) AdvanceBlock() (uint64, error) {
	var next uint64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		h, err := readHeight(tx)
		if err != nil {
			return err
		}
		next = h + 1
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&MetaRow{Name: metaHeight, Value: next}).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func readHeight(db *gorm.DB) (uint64, error) {
	var row MetaRow
	err := db.First(&row, "name = ?", metaHeight).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read height: %w", err)
	}
	return row.Value, nil
}

type sqlTxn struct {
	db       *gorm.DB
	height   uint64
	readOnly bool
}

func (t *sqlTxn) Get(key string) ([]byte, bool, error) {
	var row KVRow
	err := t.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Value, true, nil
}

func (t *sqlTxn) Set(key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	return t.db.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&KVRow{Key: key, Value: value}).Error
}

func (t *sqlTxn) Balance(token domain.TokenID, account domain.AccountID) (uint64, error) {
	var row BalanceRow
	err := t.db.First(&row, "token = ? AND account = ?", uint64(token), string(account)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Amount, nil
}

func (t *sqlTxn) Credit(token domain.TokenID, account domain.AccountID, amount uint64) error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	cur, err := t.Balance(token, account)
	if err != nil {
		return err
	}
	if cur > math.MaxUint64-amount {
		return fmt.Errorf("credit overflows balance of %s in token %d", account, token)
	}
	return t.setBalance(token, account, cur+amount)
}

func (t *sqlTxn) Transfer(token domain.TokenID, from, to domain.AccountID, amount uint64) error {
	if t.readOnly {
		return ErrReadOnlyTxn
	}
	if from == to || amount == 0 {
		return nil
	}

	fromBal, err := t.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("transfer %d of token %d from %s (has %d): %w",
			amount, token, from, fromBal, domain.ErrInsufficientBalance)
	}
	toBal, err := t.Balance(token, to)
	if err != nil {
		return err
	}
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("transfer overflows balance of %s in token %d", to, token)
	}

	if err := t.setBalance(token, from, fromBal-amount); err != nil {
		return err
	}
	return t.setBalance(token, to, toBal+amount)
}

func (t *sqlTxn) setBalance(token domain.TokenID, account domain.AccountID, amount uint64) error {
	return t.db.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&BalanceRow{Token: uint64(token), Account: string(account), Amount: amount}).Error
}

func (t *sqlTxn) Height() uint64 {
	return t.height
}
