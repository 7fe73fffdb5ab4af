package app

import (
	"log/slog"

	"github.com/Raunaque97/beat-exchange/internal/infra"
	"github.com/Raunaque97/beat-exchange/internal/ledger"
	"github.com/Raunaque97/beat-exchange/internal/outbox"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config *infra.Config
	Store  ledger.Store
	Outbox *outbox.Outbox
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, ledger, outbox)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Beat Exchange...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize the ledger. An empty path keeps everything in memory
	// (tests, local runs); a path gives the SQLite-backed store.
	if cfg.Ledger.Path == "" {
		b.Store = ledger.NewMemStore()
		slog.Info("✅ In-memory ledger initialized")
	} else {
		store, err := ledger.NewSQLStore(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		b.Store = store
		slog.Info("✅ SQLite ledger initialized", slog.String("path", cfg.Ledger.Path))
	}

	// 4. Initialize the settlement outbox
	if cfg.Outbox.Enabled {
		ob, err := outbox.Open(cfg.Outbox.Dir)
		if err != nil {
			return err
		}
		b.Outbox = ob
		slog.Info("✅ Settlement outbox ready", slog.String("dir", cfg.Outbox.Dir))
	}

	return nil
}

// Close releases everything Initialize opened.
func (b *Bootstrap) Close() {
	if b.Outbox != nil {
		if err := b.Outbox.Close(); err != nil {
			slog.Error("Failed to close outbox", slog.Any("error", err))
		}
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Error("Failed to close ledger", slog.Any("error", err))
		}
	}
}
