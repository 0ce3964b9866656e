package polymarket

import (
	"encoding/json"
	"math/big"
)

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.

// --- CLOB API ---

// clobOrderRequest es el body del POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

type clobNegRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

type clobBalanceAllowanceResponse struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

type clobMidpointResponse struct {
	Mid string `json:"mid"`
}

// clobMarketResponse es la respuesta de GET /markets/{conditionID}.
type clobMarketResponse struct {
	ConditionID string      `json:"condition_id"`
	Tokens      []clobToken `json:"tokens"`
}

// clobToken representa un token (outcome) en el CLOB.
type clobToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de un mercado en el catálogo Gamma.
// Gamma serializa los tokens de formas distintas según la versión.
type gammaMarket struct {
	ConditionID string       `json:"conditionId"`
	Tokens      []gammaToken `json:"tokens"`
}

type gammaToken struct {
	TokenID     string `json:"token_id"`
	ClobTokenID string `json:"clobTokenId"`
	ID          string `json:"id"`
	Outcome     string `json:"outcome"`
	Name        string `json:"name"`
	Label       string `json:"label"`
}

// tokenID devuelve el primer identificador presente.
func (t gammaToken) tokenID() string {
	for _, v := range []string{t.TokenID, t.ClobTokenID, t.ID} {
		if v != "" {
			return v
		}
	}
	return ""
}

// outcome devuelve el primer label presente.
func (t gammaToken) outcome() string {
	for _, v := range []string{t.Outcome, t.Name, t.Label} {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseUSDC convierte un string en micro-USDC (p.ej. "1000000") a float.
func parseUSDC(s string) float64 {
	if s == "" {
		return 0
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 10); !ok {
		return 0
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f / 1_000_000
}
