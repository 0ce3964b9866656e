package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywhaler/polywhaler/internal/domain"
	"github.com/polywhaler/polywhaler/internal/engine"
)

// --- fakes ---

type fakeProvider struct {
	candidates []domain.Candidate
	debug      domain.CandidateDebug
	err        error
	calls      int
}

func (f *fakeProvider) FetchCandidates(context.Context) ([]domain.Candidate, domain.CandidateDebug, error) {
	f.calls++
	if f.err != nil {
		return nil, domain.CandidateDebug{}, f.err
	}
	return f.candidates, f.debug, nil
}

// scriptedProvider falla según el guion de errs (por número de llamada) y
// registra el instante de cada fetch para poder medir los sleeps del loop.
type scriptedProvider struct {
	errs   []error
	times  []time.Time
	onCall func(call int)
}

func (f *scriptedProvider) FetchCandidates(context.Context) ([]domain.Candidate, domain.CandidateDebug, error) {
	f.times = append(f.times, time.Now())
	call := len(f.times)
	if f.onCall != nil {
		f.onCall(call)
	}
	if call <= len(f.errs) && f.errs[call-1] != nil {
		return nil, domain.CandidateDebug{}, f.errs[call-1]
	}
	return nil, domain.CandidateDebug{}, nil
}

type fakeStore struct {
	doc     domain.StateDocument
	loadErr error
	saved   []domain.BotState
}

func (f *fakeStore) Load() (domain.StateDocument, error) {
	return f.doc, f.loadErr
}

func (f *fakeStore) Save(state domain.BotState) error {
	// Copia del ledger: el loop sigue mutando el mapa original
	ledger := make(map[string]domain.PlacementRecord, len(state.Ledger))
	for k, v := range state.Ledger {
		ledger[k] = v
	}
	f.saved = append(f.saved, domain.BotState{Bankroll: state.Bankroll, Ledger: ledger})
	return nil
}

// --- helpers ---

func testLoopConfig() engine.LoopConfig {
	return engine.LoopConfig{
		PollInterval:    20 * time.Second,
		MaxBets:         5,
		JitterRatio:     0.2,
		BackoffBase:     2,
		BackoffMax:      120,
		MaxCallsPerHour: 120,
		PlacedTTL:       6 * time.Hour,
		EventGrace:      30 * time.Minute,
		PaperBankroll:   1000,
	}
}

func newPaperLoop(t *testing.T, cfg engine.LoopConfig, provider *fakeProvider, store *fakeStore, log *fakeTradeLog) *engine.Loop {
	t.Helper()
	dispatcher := engine.NewDispatcher(
		engine.DispatchConfig{DryRun: true, Policy: defaultPolicy()},
		nil, nil, log, nil, nil,
	)
	loop, err := engine.NewLoop(cfg, provider, dispatcher, store, nil)
	require.NoError(t, err)
	return loop
}

// --- tests ---

func TestLoop_CyclePlacesAndPersists(t *testing.T) {
	provider := &fakeProvider{candidates: []domain.Candidate{makeCandidate("0xabc", "A", 0.50)}}
	store := &fakeStore{}
	log := &fakeTradeLog{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, log)
	require.NoError(t, loop.RunCycle(context.Background()))

	assert.InDelta(t, 965.0, loop.Bankroll(), 0.001)
	require.Len(t, log.trades, 1)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.InDelta(t, 965.0, saved.Bankroll, 0.001)
	require.Contains(t, saved.Ledger, "0xabc")
	assert.Equal(t, "2026-08-25T00:00:00Z", saved.Ledger["0xabc"].EventTime)
	assert.Greater(t, saved.Ledger["0xabc"].PlacedAt, int64(0))
}

func TestLoop_DedupAcrossCycles(t *testing.T) {
	provider := &fakeProvider{candidates: []domain.Candidate{makeCandidate("0xabc", "A", 0.50)}}
	store := &fakeStore{}
	log := &fakeTradeLog{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, log)
	require.NoError(t, loop.RunCycle(context.Background()))
	require.NoError(t, loop.RunCycle(context.Background()))

	// El segundo ciclo ve el mismo condition id en el ledger y lo salta
	assert.Len(t, log.trades, 1)
	assert.InDelta(t, 965.0, loop.Bankroll(), 0.001)
	// Pero el estado se flushea igual en ambos ciclos
	assert.Len(t, store.saved, 2)
}

func TestLoop_MaxBetsPerCycle(t *testing.T) {
	provider := &fakeProvider{candidates: []domain.Candidate{
		makeCandidate("0xaaa", "A", 0.50),
		makeCandidate("0xbbb", "A", 0.50),
		makeCandidate("0xccc", "A", 0.50),
	}}
	store := &fakeStore{}
	log := &fakeTradeLog{}

	cfg := testLoopConfig()
	cfg.MaxBets = 2

	loop := newPaperLoop(t, cfg, provider, store, log)
	require.NoError(t, loop.RunCycle(context.Background()))

	assert.Len(t, log.trades, 2)
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0].Ledger, 2)
}

func TestLoop_MissingConditionIDSkipped(t *testing.T) {
	noCondition := makeCandidate("", "A", 0.50)
	provider := &fakeProvider{candidates: []domain.Candidate{noCondition}}
	store := &fakeStore{}
	log := &fakeTradeLog{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, log)
	require.NoError(t, loop.RunCycle(context.Background()))

	assert.Empty(t, log.trades)
	assert.InDelta(t, 1000.0, loop.Bankroll(), 0.001)
}

func TestLoop_FetchErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("HTTP 502: bad gateway")}
	store := &fakeStore{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, &fakeTradeLog{})
	err := loop.RunCycle(context.Background())

	require.Error(t, err)
	// Un ciclo fallido no flushea estado
	assert.Empty(t, store.saved)
}

func TestLoop_SavesEveryCycleEvenWithoutCandidates(t *testing.T) {
	provider := &fakeProvider{}
	store := &fakeStore{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, &fakeTradeLog{})
	require.NoError(t, loop.RunCycle(context.Background()))
	require.NoError(t, loop.RunCycle(context.Background()))

	assert.Len(t, store.saved, 2)
}

func TestLoop_UpstreamBlockHaltsCycle(t *testing.T) {
	provider := &fakeProvider{candidates: []domain.Candidate{
		makeCandidate("0xaaa", "A", 0.50),
		makeCandidate("0xbbb", "A", 0.50),
	}}
	store := &fakeStore{}
	log := &fakeTradeLog{}
	executor := &fakeExecutor{err: errors.New("client error 403: Cloudflare Ray ID: 8abc123 blocked")}

	dispatcher := engine.NewDispatcher(
		engine.DispatchConfig{StopOnBlock: true, Policy: defaultPolicy()},
		&fakeResolver{token: "token-1"}, executor, log, nil, nil,
	)
	loop, err := engine.NewLoop(testLoopConfig(), provider, dispatcher, store, nil)
	require.NoError(t, err)

	err = loop.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUpstreamBlocked)

	// Solo el primer candidato llegó a ejecutarse
	assert.Len(t, executor.requests, 1)
	assert.Len(t, log.trades, 1)
}

func TestRun_BackoffSleptOnceThenCleared(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &scriptedProvider{errs: []error{errors.New("HTTP 502: bad gateway")}}
	provider.onCall = func(call int) {
		if call == 3 {
			cancel()
		}
	}
	store := &fakeStore{}

	cfg := testLoopConfig()
	cfg.PollInterval = time.Millisecond
	cfg.JitterRatio = 0 // sleeps deterministas
	cfg.BackoffBase = 0.15
	cfg.BackoffMax = 0.3

	dispatcher := engine.NewDispatcher(
		engine.DispatchConfig{DryRun: true, Policy: defaultPolicy()},
		nil, nil, &fakeTradeLog{}, nil, nil,
	)
	loop, err := engine.NewLoop(cfg, provider, dispatcher, store, nil)
	require.NoError(t, err)

	require.NoError(t, loop.Run(ctx))
	require.Len(t, provider.times, 3)

	// El ciclo fallido inserta un sleep de backoff antes del siguiente fetch
	assert.GreaterOrEqual(t, provider.times[1].Sub(provider.times[0]), 150*time.Millisecond)
	// Consumido una vez queda en cero: el tercer fetch solo espera el poll
	assert.Less(t, provider.times[2].Sub(provider.times[1]), 100*time.Millisecond)

	// Solo los ciclos completados flushean estado
	assert.Len(t, store.saved, 2)
}

func TestNewLoop_DefaultsBankrollWhenUnset(t *testing.T) {
	store := &fakeStore{}
	loop := newPaperLoop(t, testLoopConfig(), &fakeProvider{}, store, &fakeTradeLog{})
	assert.Equal(t, 1000.0, loop.Bankroll())
}

func TestNewLoop_RestoresPersistedState(t *testing.T) {
	bankroll := 421.5
	store := &fakeStore{doc: domain.StateDocument{
		Bankroll: &bankroll,
		PlacedMeta: map[string]domain.RawRecord{
			"0xold": {PlacedAt: float64(time.Now().Unix() - 60)},
		},
	}}
	provider := &fakeProvider{candidates: []domain.Candidate{makeCandidate("0xold", "A", 0.50)}}
	log := &fakeTradeLog{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, log)
	assert.Equal(t, 421.5, loop.Bankroll())

	// La entrada restaurada sigue deduplicando
	require.NoError(t, loop.RunCycle(context.Background()))
	assert.Empty(t, log.trades)
}

func TestNewLoop_PrunesExpiredEntriesOnStartup(t *testing.T) {
	stale := float64(time.Now().Unix() - 7*3600) // más viejo que el TTL de 6h
	store := &fakeStore{doc: domain.StateDocument{
		PlacedMeta: map[string]domain.RawRecord{
			"0xstale": {PlacedAt: stale},
		},
	}}
	provider := &fakeProvider{candidates: []domain.Candidate{makeCandidate("0xstale", "A", 0.50)}}
	log := &fakeTradeLog{}

	loop := newPaperLoop(t, testLoopConfig(), provider, store, log)
	require.NoError(t, loop.RunCycle(context.Background()))

	// La entrada expirada ya no bloquea el placement
	assert.Len(t, log.trades, 1)
}
