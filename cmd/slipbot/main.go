package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polyslip/config"
	"github.com/alejandrodnm/polyslip/internal/adapters/notify"
	"github.com/alejandrodnm/polyslip/internal/adapters/paper"
	"github.com/alejandrodnm/polyslip/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyslip/internal/adapters/redisbus"
	"github.com/alejandrodnm/polyslip/internal/adapters/storage"
	"github.com/alejandrodnm/polyslip/internal/analyzer"
	"github.com/alejandrodnm/polyslip/internal/bot"
	"github.com/alejandrodnm/polyslip/internal/ports"
	"golang.org/x/sync/errgroup"
)

// firstSnapshotTimeout es cuánto se espera al primer book del websocket antes de arrancar el loop.
const firstSnapshotTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "evaluate one snapshot and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	feed := flag.String("feed", "", "book feed: rest|ws (overrides config)")
	table := flag.Bool("table", false, "print the full signal table on every evaluation (default: compact 1-line)")
	history := flag.Bool("history", false, "print the evaluation journal and exit")
	since := flag.Duration("since", time.Hour, "how far back -history looks")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *feed != "" {
		cfg.Market.Feed = *feed
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid flags", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *history {
		if err := printHistory(ctx, store, console, *since); err != nil {
			slog.Error("history failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("polyslip starting",
		"config", *configPath,
		"token", cfg.Market.TokenID,
		"feed", cfg.Market.Feed,
		"interval", cfg.Interval(),
		"dry_run", cfg.Bot.DryRun,
		"mode", cfg.Bot.Mode,
		"once", *once,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase)
	a := analyzer.New(cfg.AnalysisConfig(), cfg.DesiredSize())

	notifiers := []ports.Notifier{console}
	if cfg.Telegram.Enabled() {
		notifiers = append(notifiers, notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID))
		slog.Info("telegram alerts enabled")
	}

	multi := notify.NewMulti(notifiers...)
	slog.Debug("notifiers configured", "count", multi.Len())

	deps := bot.Deps{
		Books:    client,
		Prices:   client,
		Executor: paper.NewExecutor(store),
		Storage:  store,
		Notifier: multi,
	}

	if cfg.Redis.Addr != "" {
		pub, err := redisbus.New(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			slog.Warn("redis unavailable, signals will not be published", "err", err)
		} else {
			defer pub.Close()
			deps.Publisher = pub
			slog.Info("publishing signals", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
		}
	}

	if *once {
		// Siempre REST: no hace falta mantener un stream para una sola lectura
		if err := runOnce(ctx, cfg, a, deps, client); err != nil {
			slog.Error("evaluation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Market.Feed == config.FeedWS {
		stream := polymarket.NewBookStream(cfg.API.WSURL, []string{cfg.Market.TokenID},
			polymarket.WithPingPeriod(streamPingPeriod(cfg.MaxSnapshotAge())))
		deps.Books = stream
		g.Go(func() error { return stream.Run(gctx) })
	}

	b := bot.New(botConfig(cfg), a, deps)
	g.Go(func() error {
		if err := waitForSnapshot(gctx, deps.Books, cfg.Market.TokenID); err != nil {
			return err
		}
		return b.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("bot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polyslip stopped cleanly")
}

// botConfig traduce la config de fichero a la del loop.
func botConfig(cfg *config.Config) bot.Config {
	bc := bot.DefaultConfig()
	bc.TokenID = cfg.Market.TokenID
	bc.Interval = cfg.Interval()
	bc.HeartbeatInterval = cfg.HeartbeatInterval()
	bc.ErrorBackoff = cfg.ErrorBackoff()
	bc.MaxSnapshotAge = cfg.MaxSnapshotAge()
	bc.LatencyBudget = cfg.LatencyBudget()
	bc.Confirmations = cfg.Bot.Confirmations
	bc.WindowSize = cfg.Bot.WindowSize
	bc.DryRun = cfg.Bot.DryRun
	bc.Mode = bot.Mode(cfg.Bot.Mode)
	bc.QuoteBudget = cfg.QuoteBudget()
	bc.SpreadSlip = cfg.SpreadSlip()
	return bc
}

// streamPingPeriod deja al menos dos PONG por ventana de staleness: en un mercado
// quieto el ladder solo se reestampa con ellos.
func streamPingPeriod(maxAge time.Duration) time.Duration {
	if maxAge <= 0 {
		return polymarket.DefaultPingPeriod
	}
	return min(polymarket.DefaultPingPeriod, maxAge/2)
}

// runOnce evalúa un snapshot y lo compara con los precios de referencia del CLOB.
func runOnce(ctx context.Context, cfg *config.Config, a *analyzer.Analyzer, deps bot.Deps, prices ports.PriceProvider) error {
	deps.Executor = nil
	b := bot.New(botConfig(cfg), a, deps)

	eval, err := b.RunOnce(ctx)
	if err != nil {
		return err
	}

	mid, midErr := prices.Midpoint(ctx, cfg.Market.TokenID)
	last, lastErr := prices.LastTradePrice(ctx, cfg.Market.TokenID)
	if err := errors.Join(midErr, lastErr); err != nil {
		slog.Warn("reference prices unavailable", "err", err)
		return nil
	}
	slog.Info("reference prices",
		"book_mid", eval.Signal.Midpoint.StringFixed(4),
		"clob_mid", mid,
		"last_trade", last,
	)
	return nil
}

// waitForSnapshot espera a que el provider tenga un primer book (solo tarda con el feed ws).
func waitForSnapshot(ctx context.Context, books ports.BookProvider, tokenID string) error {
	ctx, cancel := context.WithTimeout(ctx, firstSnapshotTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		_, err := books.FetchOrderBook(ctx, tokenID)
		if err == nil || !errors.Is(err, polymarket.ErrNoSnapshot) {
			// Con REST no hay nada que esperar: el loop ya reintenta
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				slog.Warn("no snapshot from stream yet, starting anyway", "waited", firstSnapshotTimeout)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
