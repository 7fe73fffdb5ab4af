package event

import "github.com/Raunaque97/beat-exchange/internal/domain"

// Type defines the type of event.
type Type uint16

const (
	EvOrderSubmitted Type = iota + 1
	EvBlockTick
)

// Event is the interface for all sequencer events.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"` // Unix microseconds
}

func (e BaseEvent) GetSeq() uint64 { return e.Seq }
func (e BaseEvent) GetTs() int64   { return e.Ts }

// PlacementResult is the sequencer's reply to an order submission.
type PlacementResult struct {
	OrderID uint64
	Height  uint64
	Err     error
}

// OrderSubmitted asks the sequencer to place an order. Reply, when non-nil,
// receives exactly one PlacementResult; the sequencer never blocks on it.
type OrderSubmitted struct {
	BaseEvent
	Pair   domain.TokenPair
	Side   domain.Side
	Order  domain.Order
	Sender domain.AccountID
	Reply  chan PlacementResult `json:"-"`
}

func (e OrderSubmitted) GetType() Type { return EvOrderSubmitted }

// BlockTick closes the current block: the sequencer runs the solver and the
// settlement round for every pair with orders, then advances the height.
type BlockTick struct {
	BaseEvent
}

func (e BlockTick) GetType() Type { return EvBlockTick }
