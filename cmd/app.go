package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-unfurler/internal/blocklist"
	"github.com/JakeFAU/link-unfurler/internal/config"
	"github.com/JakeFAU/link-unfurler/internal/decode"
	"github.com/JakeFAU/link-unfurler/internal/extract"
	"github.com/JakeFAU/link-unfurler/internal/fetcher/httpstream"
	"github.com/JakeFAU/link-unfurler/internal/logging"
	"github.com/JakeFAU/link-unfurler/internal/rewrite"
	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

// App holds the services shared by every subcommand.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Blocklist *blocklist.Store
	Service   *unfurl.Service
}

// buildApp loads configuration and wires the preview pipeline.
func buildApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	store, err := blocklist.NewStore(cfg.Blocklist.Path, cfg.Blocklist.Entries, logger.Named("blocklist"))
	if err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}

	service := unfurl.NewService(
		httpstream.New(httpstream.Config{MaxConnections: cfg.Fetch.MaxConnections}, logger.Named("fetcher")),
		decode.New(logger.Named("decode")),
		rewrite.New(rewrite.Config{}, logger.Named("rewrite")),
		extract.New(logger.Named("extract")),
		unfurl.ServiceConfig{CaptureArticle: cfg.Preview.CaptureArticle},
		logger.Named("pipeline"),
	)

	return &App{Config: cfg, Logger: logger, Blocklist: store, Service: service}, nil
}

// Policy returns the transfer policy for the next request, reading the
// current blocklist snapshot.
func (a *App) Policy() unfurl.TransferPolicy {
	return a.Config.TransferPolicy(a.Blocklist.Entries())
}

// Close flushes buffered logs.
func (a *App) Close() {
	_ = a.Logger.Sync()
}
