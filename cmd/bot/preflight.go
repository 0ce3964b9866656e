package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polywhaler/polywhaler/config"
	"github.com/polywhaler/polywhaler/internal/adapters/polymarket"
	"github.com/polywhaler/polywhaler/internal/domain"
)

// runPreflight validates connectivity and credentials against the live CLOB
// without placing any orders. In dry run only the unauthenticated checks
// run; with a private key configured it also derives credentials and reads
// the collateral balance. When a preflight condition id is set it resolves
// the token and fetches its midpoint and conditional balance, which walks
// the same path a real order would.
func runPreflight(ctx context.Context, cfg *config.Config) error {
	base := polymarket.NewClient(cfg.Trading.CLOBHost, cfg.Trading.GammaHost)

	// Unauthenticated checks first: an unreachable or Cloudflare-blocked
	// host fails here before any signing happens.
	probe, err := polymarket.NewAuthClient(base, polymarket.AuthConfig{
		// Throwaway key for the unauthenticated probe when none is configured
		PrivateKeyHex: firstNonEmpty(cfg.Trading.PrivateKey, "0000000000000000000000000000000000000000000000000000000000000001"),
		ChainID:       cfg.Trading.ChainID,
		SignatureType: cfg.Trading.SignatureType,
		Funder:        cfg.Trading.Funder,
	}, credsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("preflight: auth client: %w", err)
	}
	trading := polymarket.NewTradingClient(probe)

	if err := trading.Health(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	slog.Info("preflight: clob reachable", "host", cfg.Trading.CLOBHost)

	serverTime, err := trading.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	slog.Info("preflight: server time", "time", serverTime)

	if cfg.Trading.PrivateKey == "" {
		slog.Info("preflight: no POLY_PRIVATE_KEY set, skipping authenticated checks")
		return nil
	}
	slog.Info("preflight: signer", "address", probe.Address())

	balance, err := trading.BalanceAllowance(ctx, "COLLATERAL", "")
	if err != nil {
		return fmt.Errorf("preflight: collateral balance: %w", err)
	}
	slog.Info("preflight: collateral",
		"balance_usdc", balance.Balance,
		"allowance_usdc", balance.Allowance,
	)

	if cfg.Trading.PreflightConditionID == "" {
		return nil
	}

	resolver := polymarket.NewTokenResolver(base)
	tokenID, err := resolver.ResolveToken(ctx, domain.Entry{
		ConditionID: cfg.Trading.PreflightConditionID,
		SharpSide:   "A",
	})
	if err != nil {
		return fmt.Errorf("preflight: resolve token: %w", err)
	}
	slog.Info("preflight: token resolved",
		"condition_id", cfg.Trading.PreflightConditionID,
		"token_id", tokenID,
	)

	mid, err := trading.Midpoint(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("preflight: midpoint: %w", err)
	}
	slog.Info("preflight: midpoint", "token_id", tokenID, "mid", mid)

	conditional, err := trading.BalanceAllowance(ctx, "CONDITIONAL", tokenID)
	if err != nil {
		return fmt.Errorf("preflight: conditional balance: %w", err)
	}
	slog.Info("preflight: conditional",
		"token_id", tokenID,
		"balance", conditional.Balance,
		"allowance", conditional.Allowance,
	)
	return nil
}

func credsFromConfig(cfg *config.Config) *polymarket.Credentials {
	if cfg.Trading.APIKey == "" || cfg.Trading.APISecret == "" || cfg.Trading.APIPassphrase == "" {
		return nil
	}
	return &polymarket.Credentials{
		APIKey:     cfg.Trading.APIKey,
		Secret:     cfg.Trading.APISecret,
		Passphrase: cfg.Trading.APIPassphrase,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
