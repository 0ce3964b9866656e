package polymarket

// tokens.go — resolución de condition id + lado favorecido → token ID
// negociable del CLOB.
//
// Dos fuentes, en orden: el lookup directo del CLOB
// (/markets/{conditionID}) y el catálogo Gamma como fallback. Los
// resultados se cachean por condition id durante la vida del proceso;
// un resultado vacío también se cachea para no repetir lookups que
// fallan.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// ErrTokenNotFound indica que ninguna fuente produjo un token para el
// condition id y lado pedidos.
var ErrTokenNotFound = errors.New("token not found for condition")

// OutcomeToken es un par (label del outcome, token id del CLOB).
type OutcomeToken struct {
	Outcome string
	TokenID string
}

// TokenResolver implementa ports.TokenResolver con cache de proceso.
type TokenResolver struct {
	client *Client

	mu    sync.Mutex
	cache map[string][]OutcomeToken // conditionID → tokens ([] = lookup vacío ya hecho)
}

// NewTokenResolver crea el resolver sobre el client base.
func NewTokenResolver(client *Client) *TokenResolver {
	return &TokenResolver{
		client: client,
		cache:  make(map[string][]OutcomeToken),
	}
}

// ResolveToken mapea el entry a un token ID. Precedencia de matching:
// match exacto del label normalizado, luego substring, luego posicional
// si hay exactamente dos tokens y un lado conocido.
func (r *TokenResolver) ResolveToken(ctx context.Context, entry domain.Entry) (string, error) {
	if entry.ConditionID == "" {
		return "", fmt.Errorf("%w: empty condition id", ErrTokenNotFound)
	}

	tokens := r.tokenMap(ctx, entry.ConditionID)
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, entry.ConditionID)
	}

	if target := normalizeOutcome(entry.SharpLabel()); target != "" {
		for _, t := range tokens {
			if normalizeOutcome(t.Outcome) == target {
				return t.TokenID, nil
			}
		}
		for _, t := range tokens {
			if strings.Contains(normalizeOutcome(t.Outcome), target) {
				return t.TokenID, nil
			}
		}
	}

	// Fallback posicional: mercado binario con lado conocido
	if len(tokens) == 2 {
		switch entry.SharpSide {
		case "A":
			return tokens[0].TokenID, nil
		case "B":
			return tokens[1].TokenID, nil
		}
	}
	return "", fmt.Errorf("%w: %s side %q", ErrTokenNotFound, entry.ConditionID, entry.SharpSide)
}

// tokenMap devuelve los tokens del mercado, usando cache si existe.
func (r *TokenResolver) tokenMap(ctx context.Context, conditionID string) []OutcomeToken {
	r.mu.Lock()
	cached, ok := r.cache[conditionID]
	r.mu.Unlock()
	if ok {
		return cached
	}

	tokens := r.fetchCLOBTokens(ctx, conditionID)
	if len(tokens) == 0 {
		tokens = r.fetchGammaTokens(ctx, conditionID)
	}
	if tokens == nil {
		tokens = []OutcomeToken{}
	}

	r.mu.Lock()
	r.cache[conditionID] = tokens
	r.mu.Unlock()
	return tokens
}

// fetchCLOBTokens consulta el lookup directo del CLOB.
func (r *TokenResolver) fetchCLOBTokens(ctx context.Context, conditionID string) []OutcomeToken {
	url := fmt.Sprintf("%s/markets/%s", r.client.clobBase, conditionID)

	var resp clobMarketResponse
	if err := r.client.get(ctx, r.client.clobLimiter, url, &resp); err != nil {
		slog.Debug("clob market lookup failed", "condition_id", conditionID, "err", err)
		return nil
	}

	var tokens []OutcomeToken
	for _, t := range resp.Tokens {
		if t.Outcome != "" && t.TokenID != "" {
			tokens = append(tokens, OutcomeToken{Outcome: t.Outcome, TokenID: t.TokenID})
		}
	}
	return tokens
}

// fetchGammaTokens consulta el catálogo Gamma como fuente secundaria.
func (r *TokenResolver) fetchGammaTokens(ctx context.Context, conditionID string) []OutcomeToken {
	url := fmt.Sprintf("%s/markets?condition_ids=%s&active=true&limit=1", r.client.gammaBase, conditionID)

	var resp gammaMarketsResponse
	if err := r.client.get(ctx, r.client.gammaLimiter, url, &resp); err != nil {
		slog.Debug("gamma market lookup failed", "condition_id", conditionID, "err", err)
		return nil
	}
	if len(resp) == 0 {
		return nil
	}

	var tokens []OutcomeToken
	for _, t := range resp[0].Tokens {
		outcome, tokenID := t.outcome(), t.tokenID()
		if outcome != "" && tokenID != "" {
			tokens = append(tokens, OutcomeToken{Outcome: outcome, TokenID: tokenID})
		}
	}
	return tokens
}

// normalizeOutcome colapsa whitespace y pasa a minúsculas para comparar
// labels de outcomes.
func normalizeOutcome(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
