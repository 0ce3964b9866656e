package ports

import (
	"context"
	"time"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// OrderExecutor signs and submits real orders on Polymarket CLOB.
type OrderExecutor interface {
	// PlaceMarketOrder signs and submits a BUY market order with
	// fill-or-kill semantics for the given token and USDC amount.
	PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)

	// Health checks that the CLOB API is reachable.
	Health(ctx context.Context) error

	// ServerTime returns the CLOB server clock.
	ServerTime(ctx context.Context) (time.Time, error)

	// BalanceAllowance returns balance and allowance for an asset type
	// ("COLLATERAL" or "CONDITIONAL"; tokenID only for the latter).
	BalanceAllowance(ctx context.Context, assetType, tokenID string) (domain.BalanceAllowance, error)

	// Midpoint returns the current midpoint price for a token.
	Midpoint(ctx context.Context, tokenID string) (float64, error)
}

// TokenResolver maps a candidate entry to a tradable CLOB token ID.
// Implementations cache lookups per condition ID for the process lifetime;
// an empty lookup result is a valid cached state.
type TokenResolver interface {
	ResolveToken(ctx context.Context, entry domain.Entry) (string, error)
}
