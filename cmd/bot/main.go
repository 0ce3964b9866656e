package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/polywhaler/polywhaler/config"
	"github.com/polywhaler/polywhaler/internal/adapters/polymarket"
	"github.com/polywhaler/polywhaler/internal/adapters/scoring"
	"github.com/polywhaler/polywhaler/internal/adapters/state"
	"github.com/polywhaler/polywhaler/internal/adapters/storage"
	"github.com/polywhaler/polywhaler/internal/adapters/tradelog"
	"github.com/polywhaler/polywhaler/internal/engine"
	"github.com/polywhaler/polywhaler/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one poll cycle and exit")
	preflight := flag.Bool("preflight", false, "run connectivity and balance checks, then exit")
	report := flag.Int("report", 0, "print the last N trades and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
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
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report > 0 {
		if err := runReport(ctx, cfg, *report); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if *preflight {
		if err := runPreflight(ctx, cfg); err != nil {
			slog.Error("preflight failed", "err", err)
			os.Exit(1)
		}
		slog.Info("preflight passed")
		return
	}

	slog.Info("polywhaler starting",
		"config", *configPath,
		"dry_run", cfg.Trading.DryRun,
		"poll_interval", cfg.PollInterval(),
		"max_bets", cfg.Loop.MaxBets,
		"once", *once,
	)

	provider := scoring.NewClient(cfg.Scoring.BaseURL, cfg.Scoring.APIKey, scoring.Query{
		WindowMinutes:          cfg.Scoring.WindowMinutes,
		MinGrade:               cfg.Scoring.MinGrade,
		Limit:                  cfg.CandidateLimit(),
		RequireMicrostructure:  cfg.Scoring.RequireMicrostructure,
		MarketQualityThreshold: cfg.Scoring.MarketQualityThreshold,
	})

	history, err := storage.NewSQLiteHistory(cfg.Storage.HistoryDSN)
	if err != nil {
		slog.Error("failed to open trade history", "err", err, "dsn", cfg.Storage.HistoryDSN)
		os.Exit(1)
	}
	defer history.Close()

	var (
		executor ports.OrderExecutor
		resolver ports.TokenResolver
	)
	if !cfg.Trading.DryRun {
		executor, resolver, err = buildTrading(cfg)
		if err != nil {
			slog.Error("failed to build trading client", "err", err)
			os.Exit(1)
		}
	}

	dispatcher := engine.NewDispatcher(
		engine.DispatchConfig{
			DryRun:      cfg.Trading.DryRun,
			StopOnBlock: cfg.Trading.StopOnBlock,
			Policy: engine.StakePolicy{
				KellyMultiplier: cfg.Staking.KellyFraction,
				MaxStake:        cfg.Staking.MaxStake,
				MinStake:        cfg.Staking.MinStake,
				FixedStake:      cfg.Staking.FixedStake,
				LowROIThreshold: cfg.Staking.LowROIThreshold,
			},
		},
		resolver,
		executor,
		tradelog.New(cfg.Storage.TradeLogPath),
		history,
		provider,
	)

	loop, err := engine.NewLoop(
		engine.LoopConfig{
			PollInterval:    cfg.PollInterval(),
			MaxBets:         cfg.Loop.MaxBets,
			JitterRatio:     cfg.Loop.JitterRatio,
			BackoffBase:     cfg.Loop.BackoffBase,
			BackoffMax:      cfg.Loop.BackoffMax,
			MaxCallsPerHour: cfg.Loop.MaxCallsPerHour,
			WindowStart:     cfg.Loop.RunWindowStart,
			WindowEnd:       cfg.Loop.RunWindowEnd,
			WindowTZ:        cfg.Loop.RunWindowTZ,
			PlacedTTL:       cfg.PlacedTTL(),
			EventGrace:      cfg.EventGrace(),
			PaperBankroll:   cfg.Staking.PaperBankroll,
		},
		provider,
		dispatcher,
		state.NewFileStore(cfg.Storage.StatePath),
		history,
	)
	if err != nil {
		slog.Error("failed to initialize loop", "err", err)
		os.Exit(1)
	}

	if *once {
		if err := loop.RunCycle(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		slog.Info("single cycle complete", "bankroll", loop.Bankroll())
		return
	}

	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, engine.ErrUpstreamBlocked) {
			slog.Error("halting: upstream block detected", "err", err)
		} else {
			slog.Error("loop exited with error", "err", err)
		}
		os.Exit(1)
	}

	slog.Info("polywhaler stopped cleanly", "bankroll", loop.Bankroll())
}

// buildTrading arma el stack live: client base, auth EIP-712 y resolver de
// tokens. Las credenciales L2 pre-provisionadas se usan si están completas;
// si no, se derivan en el primer uso.
func buildTrading(cfg *config.Config) (ports.OrderExecutor, ports.TokenResolver, error) {
	base := polymarket.NewClient(cfg.Trading.CLOBHost, cfg.Trading.GammaHost)

	var creds *polymarket.Credentials
	if cfg.Trading.APIKey != "" && cfg.Trading.APISecret != "" && cfg.Trading.APIPassphrase != "" {
		creds = &polymarket.Credentials{
			APIKey:     cfg.Trading.APIKey,
			Secret:     cfg.Trading.APISecret,
			Passphrase: cfg.Trading.APIPassphrase,
		}
	}

	auth, err := polymarket.NewAuthClient(base, polymarket.AuthConfig{
		PrivateKeyHex: cfg.Trading.PrivateKey,
		ChainID:       cfg.Trading.ChainID,
		SignatureType: cfg.Trading.SignatureType,
		Funder:        cfg.Trading.Funder,
	}, creds)
	if err != nil {
		return nil, nil, err
	}

	return polymarket.NewTradingClient(auth), polymarket.NewTokenResolver(base), nil
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
