package scoring

// client.go — cliente HTTP del scoring service (feed de candidatos y
// reporte de picks). Bearer auth, rate limiting local y retries acotados
// para errores de transporte.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/polywhaler/polywhaler/internal/domain"
)

const (
	candidatesPath = "/api/bot/candidates"
	picksPath      = "/api/bot/picks"

	userAgent = "Mozilla/5.0 (compatible; PolywhalerBot/1.0; +https://workers.dev)"

	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// Query son los parámetros del feed de candidatos.
type Query struct {
	WindowMinutes          int
	MinGrade               string
	Limit                  int
	RequireMicrostructure  bool
	MarketQualityThreshold float64
}

// Client implementa ports.CandidateProvider y ports.PickNotifier.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	query   Query
	limiter *rate.Limiter
}

// NewClient crea el cliente. baseURL sin slash final; apiKey es la
// credencial bearer del servicio.
func NewClient(baseURL, apiKey string, query Query) *Client {
	return &Client{
		http:    &http.Client{Timeout: 20 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		query:   query,
		// El cap de negocio por hora vive en el engine; este limiter solo
		// protege contra ráfagas de transporte.
		limiter: rate.NewLimiter(2, 4),
	}
}

// FetchCandidates pide el feed de candidatos graduados con debug activo.
func (c *Client) FetchCandidates(ctx context.Context) ([]domain.Candidate, domain.CandidateDebug, error) {
	params := url.Values{}
	params.Set("windowMinutes", strconv.Itoa(c.query.WindowMinutes))
	params.Set("minGrade", c.query.MinGrade)
	params.Set("limit", strconv.Itoa(c.query.Limit))
	params.Set("requireMicrostructure", strconv.FormatBool(c.query.RequireMicrostructure))
	params.Set("marketQualityThreshold", strconv.FormatFloat(c.query.MarketQualityThreshold, 'f', -1, 64))
	params.Set("debug", "true")

	var resp candidatesResponse
	if err := c.get(ctx, c.baseURL+candidatesPath+"?"+params.Encode(), &resp); err != nil {
		return nil, domain.CandidateDebug{}, fmt.Errorf("scoring.FetchCandidates: %w", err)
	}
	return resp.Candidates, resp.Debug, nil
}

// NotifyPick reporta un pick colocado. El caller trata el error como no
// fatal.
func (c *Client) NotifyPick(ctx context.Context, pick domain.Pick) error {
	if err := c.post(ctx, c.baseURL+picksPath, pick, nil); err != nil {
		return fmt.Errorf("scoring.NotifyPick: %w", err)
	}
	return nil
}

// candidatesResponse es la respuesta raw del feed.
type candidatesResponse struct {
	Candidates []domain.Candidate    `json:"candidates"`
	Debug      domain.CandidateDebug `json:"debug"`
}

func (c *Client) get(ctx context.Context, fullURL string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return c.http.Do(req)
	}, out)
}

func (c *Client) post(ctx context.Context, fullURL string, body, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.setHeaders(req)
		return c.http.Do(req)
	}, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// doWithRetry ejecuta la request con backoff exponencial para errores de
// transporte y 5xx. Un 4xx es terminal e incluye el body en el error (el
// dispatcher busca ahí el Ray ID de Cloudflare).
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial entre retries, respetando el
// contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
