package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Raunaque97/beat-exchange/internal/app"
	"github.com/Raunaque97/beat-exchange/internal/domain"
	"github.com/Raunaque97/beat-exchange/internal/engine"
	"github.com/Raunaque97/beat-exchange/internal/event"
	"github.com/Raunaque97/beat-exchange/internal/gateway"
	"github.com/Raunaque97/beat-exchange/internal/infra"
	"github.com/Raunaque97/beat-exchange/internal/infra/kafka"
	"github.com/Raunaque97/beat-exchange/internal/outbox"
	"github.com/Raunaque97/beat-exchange/pkg/quant"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Env overrides (.env is optional)
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded .env overrides")
	}

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 4. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Engine + Sequencer (The Hotpath Loop)
	metrics := infra.NewMetrics()
	eng := engine.New(bootstrap.Store, slog.Default())

	var ws *gateway.Server
	onSettled := func(res domain.SettlementResult) {
		if bootstrap.Outbox != nil {
			if err := bootstrap.Outbox.Append(res); err != nil {
				slog.Error("Failed to persist settlement to outbox", slog.Any("error", err))
			}
		}
		if ws != nil {
			ws.BroadcastSettlement(res)
		}
	}

	// ws is wired before the sequencer goroutine starts; onSettled reads it
	// from the hotpath.
	seq := engine.NewSequencer(cfg.Sequencer.InboxSize, eng, cfg.Solver.MaxIterations, metrics, onSettled)
	nextSeq := uint64(0)
	ws = gateway.New(seq.Inbox(), &nextSeq, cfg.Market.Tokens, cfg.Market.Decimals, metrics, slog.Default())

	go seq.Run(ctx)
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	// 6. Block ticker: shares the sequence counter with the gateway so the
	// sequencer sees one gapless stream.
	go func() {
		interval := time.Duration(cfg.Sequencer.BlockIntervalMS) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				seq.Inbox() <- &event.BlockTick{
					BaseEvent: event.BaseEvent{Seq: quant.NextSeq(&nextSeq), Ts: time.Now().UnixMicro()},
				}
			}
		}
	}()
	slog.InfoContext(ctx, "✅ Block ticker started", slog.Int("interval_ms", cfg.Sequencer.BlockIntervalMS))

	// 7. WebSocket Gateway
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.Handler())
	httpSrv := &http.Server{Addr: cfg.Gateway.ListenAddr, Handler: mux}
	go func() {
		slog.Info("✅ Gateway listening", slog.String("addr", cfg.Gateway.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Gateway server failed", slog.Any("error", err))
		}
	}()

	// 8. Settlement Publisher (outbox -> Kafka)
	if cfg.Kafka.Enabled && bootstrap.Outbox != nil {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		pub := outbox.NewPublisher(bootstrap.Outbox, producer, time.Second, slog.Default())
		go pub.Run(ctx)
		slog.InfoContext(ctx, "✅ Settlement publisher started", slog.String("topic", cfg.Kafka.Topic))
	}

	slog.InfoContext(ctx, "✨ Beat Exchange fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws.CloseAll()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Gateway shutdown failed", slog.Any("error", err))
	}
}
