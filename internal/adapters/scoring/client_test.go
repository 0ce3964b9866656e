package scoring_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywhaler/polywhaler/internal/adapters/scoring"
	"github.com/polywhaler/polywhaler/internal/domain"
)

func testQuery() scoring.Query {
	return scoring.Query{
		WindowMinutes:          5,
		MinGrade:               "A",
		Limit:                  5,
		RequireMicrostructure:  true,
		MarketQualityThreshold: 0.72,
	}
}

func TestFetchCandidates_SendsAuthAndQueryParams(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"entry": map[string]any{
						"conditionId":    "0xabc",
						"marketTitle":    "Lakers vs Celtics",
						"eventTime":      "2026-08-25T00:00:00Z",
						"sharpSide":      "A",
						"sideA":          map[string]any{"label": "Lakers"},
						"sideB":          map[string]any{"label": "Celtics"},
						"sharpSidePrice": 0.55,
					},
					"grade": map[string]any{
						"grade":       "A",
						"signalScore": 0.81,
						"edgeRating":  "strong",
					},
				},
			},
			"debug": map[string]any{"totalEntries": 40, "upcomingEntries": 12},
		})
	}))
	defer srv.Close()

	c := scoring.NewClient(srv.URL, "secret-key", testQuery())
	candidates, debug, err := c.FetchCandidates(context.Background())

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "0xabc", candidates[0].Entry.ConditionID)
	assert.Equal(t, "A", candidates[0].Grade.Grade)
	require.NotNil(t, candidates[0].Entry.SharpSidePrice)
	assert.InDelta(t, 0.55, *candidates[0].Entry.SharpSidePrice, 0.001)
	assert.Equal(t, 40, debug.TotalEntries)

	require.NotNil(t, gotReq)
	assert.Equal(t, "Bearer secret-key", gotReq.Header.Get("Authorization"))
	assert.Equal(t, "/api/bot/candidates", gotReq.URL.Path)

	params := gotReq.URL.Query()
	assert.Equal(t, "5", params.Get("windowMinutes"))
	assert.Equal(t, "A", params.Get("minGrade"))
	assert.Equal(t, "5", params.Get("limit"))
	assert.Equal(t, "true", params.Get("requireMicrostructure"))
	assert.Equal(t, "0.72", params.Get("marketQualityThreshold"))
	assert.Equal(t, "true", params.Get("debug"))
}

func TestFetchCandidates_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	c := scoring.NewClient(srv.URL, "key", testQuery())
	candidates, _, err := c.FetchCandidates(context.Background())

	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchCandidates_ClientErrorIsTerminalWithBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<html>Cloudflare Ray ID: <strong>8abc123</strong></html>`))
	}))
	defer srv.Close()

	c := scoring.NewClient(srv.URL, "key", testQuery())
	_, _, err := c.FetchCandidates(context.Background())

	require.Error(t, err)
	// 4xx no se reintenta y el body viaja en el error para extraer el Ray ID
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "Cloudflare Ray ID")
}

func TestNotifyPick_PostsPayload(t *testing.T) {
	var got domain.Pick
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := scoring.NewClient(srv.URL, "key", testQuery())
	pick := domain.Pick{
		ConditionID: "0xabc",
		MarketTitle: "Lakers vs Celtics",
		Grade:       "A",
		SharpSide:   "A",
		Price:       0.55,
	}
	require.NoError(t, c.NotifyPick(context.Background(), pick))

	assert.Equal(t, "/api/bot/picks", path)
	assert.Equal(t, "0xabc", got.ConditionID)
	assert.InDelta(t, 0.55, got.Price, 0.001)
}
