package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

// Sink is the downstream transport the publisher drains into.
type Sink interface {
	PublishSettlement(ctx context.Context, res domain.SettlementResult) error
}

const maxRetries = 5

// Publisher drains NEW outbox records into a Sink on a fixed interval.
// A record that keeps failing is parked as FAILED and skipped thereafter.
type Publisher struct {
	outbox   *Outbox
	sink     Sink
	interval time.Duration
	log      *slog.Logger
}

func NewPublisher(ob *Outbox, sink Sink, interval time.Duration, log *slog.Logger) *Publisher {
	return &Publisher{
		outbox:   ob,
		sink:     sink,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is done, draining pending records each tick.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	err := p.outbox.ScanByState(StateNew, func(rec Record) error {
		return p.publishOne(ctx, rec)
	})
	if err != nil {
		p.log.Error("outbox drain failed", "error", err)
	}
}

func (p *Publisher) publishOne(ctx context.Context, rec Record) error {
	if err := p.outbox.UpdateState(rec.Result, StateSent, rec.Retries); err != nil {
		return err
	}
	if err := p.sink.PublishSettlement(ctx, rec.Result); err != nil {
		retries := rec.Retries + 1
		state := StateNew
		if retries >= maxRetries || !domain.IsRetriable(err) {
			state = StateFailed
			p.log.Error("settlement publish abandoned",
				"pair", rec.Result.Pair.String(),
				"height", rec.Result.Height,
				"retries", retries)
		} else {
			p.log.Warn("settlement publish failed, will retry",
				"pair", rec.Result.Pair.String(),
				"height", rec.Result.Height,
				"error", err)
		}
		return p.outbox.UpdateState(rec.Result, state, retries)
	}
	p.log.Info("settlement published",
		"pair", rec.Result.Pair.String(),
		"height", rec.Result.Height,
		"price", rec.Result.Price)
	return p.outbox.UpdateState(rec.Result, StateAcked, rec.Retries)
}
