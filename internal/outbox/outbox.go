// Package outbox persists closed settlement rounds durably (pebble) until a
// publisher has pushed them downstream. Records move NEW -> SENT -> ACKED
// and are never lost to a crash between settling and publishing.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one closed round awaiting (or past) publication.
type Record struct {
	Result      domain.SettlementResult
	State       State
	Retries     uint32
	LastAttempt int64
}

// binary encoding:
// [state:1][retries:4][lastAttempt:8][tokenA:8][tokenB:8][height:8][price:8][buyTotal:8][sellTotal:8]
const recordLen = 1 + 4 + 8 + 6*8

func encodeRecord(r Record) []byte {
	buf := make([]byte, recordLen)
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint64(buf[13:21], uint64(r.Result.Pair.A))
	binary.BigEndian.PutUint64(buf[21:29], uint64(r.Result.Pair.B))
	binary.BigEndian.PutUint64(buf[29:37], r.Result.Height)
	binary.BigEndian.PutUint64(buf[37:45], r.Result.Price)
	binary.BigEndian.PutUint64(buf[45:53], r.Result.BuyTotal)
	binary.BigEndian.PutUint64(buf[53:61], r.Result.SellTotal)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) != recordLen {
		return Record{}, errors.New("invalid outbox record length")
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Result: domain.SettlementResult{
			Pair: domain.TokenPair{
				A: domain.TokenID(binary.BigEndian.Uint64(b[13:21])),
				B: domain.TokenID(binary.BigEndian.Uint64(b[21:29])),
			},
			Height:    binary.BigEndian.Uint64(b[29:37]),
			Price:     binary.BigEndian.Uint64(b[37:45]),
			BuyTotal:  binary.BigEndian.Uint64(b[45:53]),
			SellTotal: binary.BigEndian.Uint64(b[53:61]),
		},
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// Append inserts a freshly closed round (called by the sequencer).
func (o *Outbox) Append(res domain.SettlementResult) error {
	rec := Record{Result: res, State: StateNew}
	return o.db.Set(keyFor(res), encodeRecord(rec), pebble.Sync)
}

// UpdateState updates a record after send / ack / failure.
func (o *Outbox) UpdateState(res domain.SettlementResult, state State, retries uint32) error {
	rec := Record{
		Result:      res,
		State:       state,
		Retries:     retries,
		LastAttempt: time.Now().UnixNano(),
	}
	return o.db.Set(keyFor(res), encodeRecord(rec), pebble.Sync)
}

// Get returns the current record for a round.
func (o *Outbox) Get(res domain.SettlementResult) (Record, error) {
	val, closer, err := o.db.Get(keyFor(res))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state, in key order
// (height-major). The publisher drains StateNew through this.
func (o *Outbox) ScanByState(state State, fn func(rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("round/"),
		UpperBound: []byte("round/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

func keyFor(res domain.SettlementResult) []byte {
	return []byte(fmt.Sprintf("round/%020d/%020d-%020d", res.Height, res.Pair.A, res.Pair.B))
}
