package engine

// loop.go — poll loop orchestrator.
//
// Por ciclo: run-window gate → prune del ledger → rate admission →
// consumo de backoff pendiente → fetch de candidatos → dispatch (hasta
// maxBets placements nuevos) → persistencia de ledger y bankroll.
//
// Cualquier error de ciclo se loggea y se convierte en un incremento de
// backoff; el loop solo termina por cancelación de contexto o por el
// bloqueo upstream con StopOnBlock activo.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/polywhaler/polywhaler/internal/domain"
	"github.com/polywhaler/polywhaler/internal/ports"
)

// LoopConfig controla el scheduling del poll loop.
type LoopConfig struct {
	PollInterval    time.Duration
	MaxBets         int
	JitterRatio     float64
	BackoffBase     float64
	BackoffMax      float64
	MaxCallsPerHour int
	WindowStart     string
	WindowEnd       string
	WindowTZ        string
	PlacedTTL       time.Duration
	EventGrace      time.Duration
	PaperBankroll   float64
}

// Loop es el orquestador single-threaded: exactamente un ciclo a la vez,
// sin procesamiento paralelo de candidatos. Todo el estado mutable
// (ledger, bankroll, call window, backoff) es propiedad exclusiva del
// loop, así que no necesita locking.
type Loop struct {
	cfg        LoopConfig
	provider   ports.CandidateProvider
	dispatcher *Dispatcher
	store      ports.StateStore
	history    ports.TradeHistory

	state   domain.BotState
	window  CallWindow
	backoff float64

	gateStart, gateEnd Clock
	gateActive         bool

	now func() time.Time
}

// NewLoop carga el estado persistido y deja el loop listo para Run.
// history es opcional (nil lo desactiva).
func NewLoop(
	cfg LoopConfig,
	provider ports.CandidateProvider,
	dispatcher *Dispatcher,
	store ports.StateStore,
	history ports.TradeHistory,
) (*Loop, error) {
	doc, err := store.Load()
	if err != nil {
		return nil, err
	}
	nowTS := time.Now().Unix()

	state := domain.BotState{
		Bankroll: cfg.PaperBankroll,
		Ledger:   NormalizeLedger(doc, nowTS),
	}
	if doc.Bankroll != nil {
		state.Bankroll = *doc.Bankroll
	}

	l := &Loop{
		cfg:        cfg,
		provider:   provider,
		dispatcher: dispatcher,
		store:      store,
		history:    history,
		state:      state,
		now:        time.Now,
	}

	start, okStart := ParseClock(cfg.WindowStart)
	end, okEnd := ParseClock(cfg.WindowEnd)
	// Ambos extremos deben parsear para activar el gate
	l.gateActive = okStart && okEnd
	l.gateStart, l.gateEnd = start, end

	l.state.Ledger = PruneLedger(l.state.Ledger, nowTS, int64(cfg.PlacedTTL.Seconds()), int64(cfg.EventGrace.Seconds()))

	slog.Info("loop initialized",
		"bankroll", l.state.Bankroll,
		"ledger_entries", len(l.state.Ledger),
		"window_gate", l.gateActive,
	)
	return l, nil
}

// Bankroll devuelve el bankroll de simulación actual.
func (l *Loop) Bankroll() float64 {
	return l.state.Bankroll
}

// Run ejecuta el poll loop hasta que el contexto se cancele o se detecte
// un bloqueo upstream con StopOnBlock.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("loop stopped")
			return nil
		}

		if !l.withinRunWindow() {
			slog.Info("outside run window, sleeping")
			if !l.sleep(ctx, Jitter(l.cfg.PollInterval.Seconds(), l.cfg.JitterRatio)) {
				return nil
			}
			continue
		}

		now := l.now()
		l.state.Ledger = PruneLedger(l.state.Ledger, now.Unix(), int64(l.cfg.PlacedTTL.Seconds()), int64(l.cfg.EventGrace.Seconds()))

		if !l.window.Admit(now, l.cfg.MaxCallsPerHour) {
			slog.Warn("hourly call cap reached, sleeping", "calls_last_hour", l.window.Len())
			if !l.sleep(ctx, Jitter(l.cfg.PollInterval.Seconds(), l.cfg.JitterRatio)) {
				return nil
			}
			continue
		}

		if l.backoff > 0 {
			wait := Jitter(l.backoff, l.cfg.JitterRatio)
			slog.Warn("backing off", "seconds", wait)
			if !l.sleep(ctx, wait) {
				return nil
			}
			l.backoff = 0
		}

		if err := l.cycle(ctx); err != nil {
			if errors.Is(err, ErrUpstreamBlocked) {
				return err
			}
			if ctx.Err() != nil {
				slog.Info("loop stopped")
				return nil
			}
			slog.Error("cycle failed", "err", err)
			l.backoff = NextBackoff(l.backoff, l.cfg.BackoffBase, l.cfg.BackoffMax)
		}

		if !l.sleep(ctx, Jitter(l.cfg.PollInterval.Seconds(), l.cfg.JitterRatio)) {
			return nil
		}
	}
}

// RunCycle ejecuta exactamente un ciclo (para tests y modo -once).
func (l *Loop) RunCycle(ctx context.Context) error {
	return l.cycle(ctx)
}

// cycle hace fetch → filter → dispatch → persist.
func (l *Loop) cycle(ctx context.Context) error {
	candidates, debug, err := l.provider.FetchCandidates(ctx)
	if err != nil {
		return err
	}
	slog.Info("candidates fetched", "count", len(candidates))
	if len(candidates) == 0 {
		slog.Info("candidate feed debug",
			"total_entries", debug.TotalEntries,
			"upcoming_entries", debug.UpcomingEntries,
			"excluded", string(debug.Excluded),
			"dedup_dropped", debug.DedupDropped,
			"dedup_reasons", string(debug.DedupReasons),
		)
	}

	summary := domain.CycleSummary{RawCandidates: len(candidates)}
	var dispatchErr error

	for idx, cand := range candidates {
		entry := cand.Entry
		logCandidate("candidate", idx+1, cand)

		if entry.ConditionID == "" {
			summary.SkippedMissingCondition++
			logCandidate("candidate skipped: missing condition id", idx+1, cand)
			continue
		}
		if prior, ok := l.state.Ledger[entry.ConditionID]; ok {
			summary.SkippedAlreadyPlaced++
			slog.Info("candidate skipped: already placed",
				"idx", idx+1,
				"condition_id", entry.ConditionID,
				"market", entry.MarketTitle,
				"placed_at", prior.PlacedAt,
				"placed_event_time", prior.EventTime,
			)
			continue
		}

		outcome, err := l.dispatcher.Dispatch(ctx, cand, l.state.Bankroll)
		if err != nil {
			// Bloqueo upstream fatal: no se procesan más candidatos y el
			// flush de este ciclo no ocurre más allá del trade log.
			dispatchErr = err
			break
		}
		if !outcome.Placed {
			continue
		}

		l.state.Ledger[entry.ConditionID] = domain.PlacementRecord{
			PlacedAt:  l.now().Unix(),
			EventTime: entry.EventTime,
		}
		l.state.Bankroll = round2(l.state.Bankroll - outcome.Stake)
		summary.NewPlaced++
		if summary.NewPlaced >= l.cfg.MaxBets {
			slog.Info("max bets reached for cycle", "max_bets", l.cfg.MaxBets)
			break
		}
	}

	if dispatchErr != nil {
		return dispatchErr
	}

	slog.Info("poll summary",
		"raw", summary.RawCandidates,
		"skipped_already_placed", summary.SkippedAlreadyPlaced,
		"skipped_missing_condition_id", summary.SkippedMissingCondition,
		"new_placed", summary.NewPlaced,
	)
	if l.history != nil {
		if err := l.history.RecordCycle(ctx, summary); err != nil {
			slog.Warn("cycle history write failed", "err", err)
		}
	}

	// Flush al final de cada ciclo, haya o no placements nuevos
	if err := l.store.Save(l.state); err != nil {
		slog.Error("state save failed", "err", err)
	}
	return nil
}

// withinRunWindow aplica el gate horario. Fail-open si la zona horaria no
// resuelve en este tick.
func (l *Loop) withinRunWindow() bool {
	if !l.gateActive {
		return true
	}
	hour, minute, ok := LocalClock(l.cfg.WindowTZ, l.now())
	if !ok {
		return true
	}
	return WithinWindow(hour, minute, l.gateStart, l.gateEnd)
}

// sleep duerme `seconds` respetando la cancelación del contexto.
// Devuelve false si el contexto se canceló durante el sleep.
func (l *Loop) sleep(ctx context.Context, seconds float64) bool {
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func logCandidate(event string, idx int, cand domain.Candidate) {
	slog.Info(event,
		"idx", idx,
		"condition_id", cand.Entry.ConditionID,
		"event", cand.Entry.EventLabel(),
		"event_time", cand.Entry.EventTime,
		"market", cand.Entry.MarketTitle,
		"side", cand.Entry.SharpSide,
		"grade", cand.Grade.Grade,
		"signal_score", cand.Grade.SignalScore,
		"edge_rating", cand.Grade.EdgeRating,
		"microstructure_score", cand.Grade.MicrostructureScore,
		"warnings", cand.Grade.Warnings,
	)
}
