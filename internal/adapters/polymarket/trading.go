package polymarket

// trading.go — Real order execution via Polymarket CLOB API.
//
// Implements ports.OrderExecutor using AuthClient for L1/L2 auth.
// Orders are market BUYs submitted as FOK (fill-or-kill): they either
// fill completely against the book or are rejected, never rest.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth *AuthClient
}

// NewTradingClient creates a TradingClient over an authenticated client.
func NewTradingClient(auth *AuthClient) *TradingClient {
	return &TradingClient{auth: auth}
}

// PlaceMarketOrder signs and submits a BUY FOK market order.
func (tc *TradingClient) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: creds: %w", err)
	}

	negRisk, err := tc.isNegRisk(ctx, req.TokenID)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: neg-risk check: %w", err)
	}

	signed, err := tc.auth.buildSignedMarketOrder(req.TokenID, req.Price, req.AmountUSDC, negRisk)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          "BUY",
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: "FOK",
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: post: %w", err)
	}

	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, fmt.Errorf("place order: clob error: %s", resp.ErrorMsg)
	}

	return domain.PlacedOrder{
		CLOBOrderID: resp.OrderID,
		Status:      resp.Status,
		TakenAmount: parseUSDC(resp.TakingAmount),
		MadeAmount:  parseUSDC(resp.MakingAmount),
	}, nil
}

// Health checks that the CLOB API answers. The root endpoint returns a
// plain "OK" body, so only the status code matters.
func (tc *TradingClient) Health(ctx context.Context) error {
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, tc.auth.clobBase+"/", nil); err != nil {
		return fmt.Errorf("clob health: %w", err)
	}
	return nil
}

// ServerTime returns the CLOB server clock.
func (tc *TradingClient) ServerTime(ctx context.Context) (time.Time, error) {
	var epoch json.Number
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, tc.auth.clobBase+"/time", &epoch); err != nil {
		return time.Time{}, fmt.Errorf("clob server time: %w", err)
	}
	secs, err := epoch.Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("clob server time: parse %q: %w", epoch, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// BalanceAllowance returns the CLOB-reported balance and allowance for an
// asset type ("COLLATERAL" or "CONDITIONAL"; tokenID only for the latter).
func (tc *TradingClient) BalanceAllowance(ctx context.Context, assetType, tokenID string) (domain.BalanceAllowance, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.BalanceAllowance{}, fmt.Errorf("balance allowance: creds: %w", err)
	}

	params := url.Values{}
	params.Set("asset_type", assetType)
	params.Set("signature_type", strconv.Itoa(tc.auth.cfg.SignatureType))
	if tokenID != "" {
		params.Set("token_id", tokenID)
	}

	var resp clobBalanceAllowanceResponse
	path := "/balance-allowance?" + params.Encode()
	if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.BalanceAllowance{}, fmt.Errorf("balance allowance: %w", err)
	}
	return domain.BalanceAllowance{
		Balance:   parseUSDC(resp.Balance),
		Allowance: parseUSDC(resp.Allowance),
	}, nil
}

// Midpoint returns the current midpoint price for a token.
func (tc *TradingClient) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	var resp clobMidpointResponse
	url := fmt.Sprintf("%s/midpoint?token_id=%s", tc.auth.clobBase, tokenID)
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, url, &resp); err != nil {
		return 0, fmt.Errorf("midpoint: %w", err)
	}
	mid, err := strconv.ParseFloat(resp.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("midpoint: parse %q: %w", resp.Mid, err)
	}
	return mid, nil
}

// isNegRisk queries the CLOB to determine if a token uses the NegRisk adapter.
func (tc *TradingClient) isNegRisk(ctx context.Context, tokenID string) (bool, error) {
	url := fmt.Sprintf("%s/neg-risk?token_id=%s", tc.auth.clobBase, tokenID)

	var resp clobNegRiskResponse
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, url, &resp); err != nil {
		return false, err
	}
	return resp.NegRisk, nil
}
