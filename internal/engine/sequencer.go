package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/internal/event"
	"github.com/Raunaque97/beat-exchange/internal/infra"
	"github.com/Raunaque97/beat-exchange/internal/ledger"
)

// SettledFunc is notified after every closed round (outbox, broadcast).
type SettledFunc func(domain.SettlementResult)

// Sequencer is the single-threaded driver of the settlement engine. It is
// the only writer: gateways submit events into the inbox, and once per block
// tick it runs the solver and the full settlement round for every pair that
// accumulated orders.
type Sequencer struct {
	inbox   chan event.Event
	engine  *Engine
	nextSeq uint64

	solverIterations int
	metrics          *infra.Metrics
	onSettled        SettledFunc
	log              *slog.Logger

	// pairs with orders at the current height
	activePairs map[domain.TokenPair]struct{}
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(inboxSize int, eng *Engine, solverIterations int, metrics *infra.Metrics, onSettled SettledFunc) *Sequencer {
	if solverIterations <= 0 {
		solverIterations = DefaultSolverIterations
	}
	return &Sequencer{
		inbox:            make(chan event.Event, inboxSize),
		engine:           eng,
		nextSeq:          1,
		solverIterations: solverIterations,
		metrics:          metrics,
		onSettled:        onSettled,
		log:              eng.log,
		activePairs:      make(map[domain.TokenPair]struct{}),
	}
}

// Inbox returns the event channel. External workers send events here.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	s.log.Info("sequencer started")

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sequencer stopping")
			return
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

func (s *Sequencer) processEvent(ev event.Event) {
	// Sequence gap check (halt policy): a gap means a gateway lost an event
	// and deterministic replay is no longer possible.
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("SEQUENCE_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	switch e := ev.(type) {
	case *event.OrderSubmitted:
		s.handleOrderSubmitted(e)
	case *event.BlockTick:
		s.closeBlock()
	default:
		s.log.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}

	if s.metrics != nil {
		s.metrics.RecordEvent()
	}
	s.nextSeq++
}

func (s *Sequencer) handleOrderSubmitted(e *event.OrderSubmitted) {
	var (
		id  uint64
		err error
	)
	if e.Side == domain.Buy {
		id, err = s.engine.PlaceBuyOrder(e.Pair, e.Order, e.Sender)
	} else {
		id, err = s.engine.PlaceSellOrder(e.Pair, e.Order, e.Sender)
	}

	if err != nil {
		s.log.Warn("order rejected",
			slog.String("pair", e.Pair.String()),
			slog.String("side", e.Side.String()),
			slog.Any("error", err))
		if s.metrics != nil {
			s.metrics.RecordOrderRejected()
		}
	} else {
		s.activePairs[e.Pair] = struct{}{}
		if s.metrics != nil {
			s.metrics.RecordOrderPlaced()
		}
	}

	if e.Reply != nil {
		// never block the hotpath on a slow consumer
		select {
		case e.Reply <- event.PlacementResult{OrderID: id, Height: s.engine.Store().Height(), Err: err}:
		default:
		}
	}
}

// closeBlock settles every active pair at the current height and advances
// the block. A failed round (bad solver result, pathological rounding) is
// logged and left open; retrying is an external policy decision.
func (s *Sequencer) closeBlock() {
	height := s.engine.Store().Height()

	// deterministic pair order
	pairs := make([]domain.TokenPair, 0, len(s.activePairs))
	for p := range s.activePairs {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	for _, pair := range pairs {
		result, err := s.settlePair(pair, height)
		if err != nil {
			s.log.Error("settlement round failed; round left open",
				slog.String("pair", pair.String()),
				slog.Uint64("height", height),
				slog.Any("error", err))
			if s.metrics != nil {
				s.metrics.RecordRoundFailed()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordRoundSettled()
		}
		if s.onSettled != nil {
			s.onSettled(result)
		}
	}

	s.activePairs = make(map[domain.TokenPair]struct{})
	if _, err := s.engine.Store().AdvanceBlock(); err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: advance block: %v", err))
	}
}

// settlePair runs one full round: solver suggestion, claimed totals, then
// the state machine re-validating everything it was told.
func (s *Sequencer) settlePair(pair domain.TokenPair, height uint64) (domain.SettlementResult, error) {
	var buys, sells []domain.Order
	err := s.engine.Store().View(func(tx ledger.Txn) error {
		var err error
		if buys, err = Orders(tx, pair, height, domain.Buy); err != nil {
			return err
		}
		sells, err = Orders(tx, pair, height, domain.Sell)
		return err
	})
	if err != nil {
		return domain.SettlementResult{}, err
	}

	price := SettlementPriceWithCap(buys, sells, s.solverIterations)
	buyTotal, sellTotal := AggregateVolumes(buys, sells, price)

	if err := s.engine.StartSettlement(pair, price, buyTotal, sellTotal); err != nil {
		return domain.SettlementResult{}, err
	}
	for range sells {
		if err := s.engine.SettlementStepSell(pair); err != nil {
			return domain.SettlementResult{}, err
		}
	}
	for range buys {
		if err := s.engine.SettlementStepBuy(pair); err != nil {
			return domain.SettlementResult{}, err
		}
	}
	if err := s.engine.SettleBlock(pair); err != nil {
		return domain.SettlementResult{}, err
	}

	return domain.SettlementResult{
		Pair:      pair,
		Height:    height,
		Price:     price,
		BuyTotal:  buyTotal,
		SellTotal: sellTotal,
	}, nil
}

// DumpState writes the sequencer's view to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	s.log.Info("dumping internal state", slog.String("file", filename))

	pairs := make([]string, 0, len(s.activePairs))
	for p := range s.activePairs {
		pairs = append(pairs, p.String())
	}
	sort.Strings(pairs)

	data := struct {
		NextSeq     uint64   `json:"next_seq"`
		Height      uint64   `json:"height"`
		ActivePairs []string `json:"active_pairs"`
	}{
		NextSeq:     s.nextSeq,
		Height:      s.engine.Store().Height(),
		ActivePairs: pairs,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.log.Error("failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		s.log.Error("failed to write state dump", slog.Any("error", err))
	}
}
