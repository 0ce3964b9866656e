package engine

// dispatch.go — order dispatcher: máquina de estados por candidato.
//
//	Evaluating → Rejected(reason)
//	           → PaperPlaced
//	           → LivePlaced
//	           → LiveFailed → registro paper con el error preservado
//
// Un fallo live se degrada a un registro paper (el error queda en el
// trade) y el loop continúa — salvo que el error sea un bloqueo upstream
// de Cloudflare y el proceso esté configurado para detenerse en ese caso.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/polywhaler/polywhaler/internal/domain"
	"github.com/polywhaler/polywhaler/internal/ports"
)

// ErrUpstreamBlocked señala que el CLOB rechazó la request antes de llegar
// al venue (bloqueo Cloudflare). Con StopOnBlock activo es el único error
// que termina el proceso desde dentro.
var ErrUpstreamBlocked = errors.New("upstream block detected")

// DispatchConfig controla el comportamiento del dispatcher.
type DispatchConfig struct {
	DryRun      bool
	StopOnBlock bool
	Policy      StakePolicy
}

// Outcome es el resultado terminal de evaluar un candidato.
type Outcome struct {
	Placed bool
	Stake  float64
	Trade  *domain.Trade
}

// Dispatcher evalúa candidatos y ejecuta órdenes paper o live.
type Dispatcher struct {
	cfg      DispatchConfig
	resolver ports.TokenResolver
	executor ports.OrderExecutor
	tradeLog ports.TradeLog
	history  ports.TradeHistory
	picks    ports.PickNotifier
	now      func() time.Time
}

// NewDispatcher crea un Dispatcher. executor puede ser nil en dry run;
// history y picks son opcionales (nil los desactiva).
func NewDispatcher(
	cfg DispatchConfig,
	resolver ports.TokenResolver,
	executor ports.OrderExecutor,
	tradeLog ports.TradeLog,
	history ports.TradeHistory,
	picks ports.PickNotifier,
) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		resolver: resolver,
		executor: executor,
		tradeLog: tradeLog,
		history:  history,
		picks:    picks,
		now:      time.Now,
	}
}

// Dispatch evalúa un candidato contra el bankroll actual. Devuelve
// ErrUpstreamBlocked solo cuando hay bloqueo upstream y StopOnBlock
// está activo; cualquier otro fallo live queda registrado en el trade.
func (d *Dispatcher) Dispatch(ctx context.Context, cand domain.Candidate, bankroll float64) (Outcome, error) {
	entry := cand.Entry
	gradeLabel := cand.Grade.Grade
	if gradeLabel == "" {
		gradeLabel = "D"
	}

	if entry.SharpSidePrice == nil {
		slog.Info("skip: missing price", "market", entry.MarketTitle)
		return Outcome{}, nil
	}
	price := *entry.SharpSidePrice

	stake, reason := SizeStake(bankroll, gradeLabel, price, d.cfg.Policy)
	switch reason {
	case StakeLowROI:
		slog.Info("skip: low ROI", "market", entry.MarketTitle, "price", price)
		return Outcome{}, nil
	case StakeTooSmall:
		slog.Info("skip: tiny stake", "market", entry.MarketTitle, "stake", stake)
		return Outcome{}, nil
	}

	trade := domain.Trade{
		ID:          uuid.New().String(),
		Timestamp:   d.now().Unix(),
		ConditionID: entry.ConditionID,
		MarketTitle: entry.MarketTitle,
		SharpSide:   entry.SharpSide,
		Price:       price,
		Grade:       gradeLabel,
		SignalScore: cand.Grade.SignalScore,
		Stake:       round2(stake),
		Mode:        domain.ModePaper,
	}

	placed := false
	if d.cfg.DryRun {
		slog.Info("paper bet placed",
			"market", entry.MarketTitle,
			"side", entry.SharpSide,
			"grade", gradeLabel,
			"stake", trade.Stake,
		)
		placed = true
	} else {
		trade.Mode = domain.ModeLive
		if err := d.executeLive(ctx, entry, stake, &trade); err != nil {
			// Degradar a registro paper con el error preservado
			trade.Mode = domain.ModePaper
			trade.Error = err.Error()
			if ray := ExtractRayID(err.Error()); ray != "" {
				trade.CloudflareRayID = ray
				slog.Error("cloudflare block detected", "ray_id", ray)
				if d.cfg.StopOnBlock {
					d.appendTrade(ctx, trade)
					return Outcome{Trade: &trade}, fmt.Errorf("%w (ray %s)", ErrUpstreamBlocked, ray)
				}
			}
			slog.Error("live trade failed; recording as paper", "market", entry.MarketTitle, "err", err)
		} else {
			slog.Info("live order placed",
				"market", entry.MarketTitle,
				"side", entry.SharpSide,
				"grade", gradeLabel,
				"stake", trade.Stake,
				"order_id", trade.OrderID,
			)
			placed = true
		}
	}

	d.appendTrade(ctx, trade)
	if !placed {
		return Outcome{Trade: &trade}, nil
	}

	d.notifyPick(ctx, cand, price)
	return Outcome{Placed: true, Stake: stake, Trade: &trade}, nil
}

// executeLive resuelve el token y envía la orden de mercado FOK.
func (d *Dispatcher) executeLive(ctx context.Context, entry domain.Entry, stake float64, trade *domain.Trade) error {
	if d.executor == nil {
		return errors.New("live executor not configured")
	}
	tokenID, err := d.resolver.ResolveToken(ctx, entry)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	trade.TokenID = tokenID

	placed, err := d.executor.PlaceMarketOrder(ctx, domain.OrderRequest{
		TokenID:    tokenID,
		AmountUSDC: stake,
		Price:      *entry.SharpSidePrice,
	})
	if err != nil {
		return err
	}
	trade.OrderID = placed.CLOBOrderID
	trade.OrderStatus = placed.Status
	return nil
}

// appendTrade escribe el trade en el log JSONL y en el histórico sqlite.
// El histórico es best-effort; el log JSONL es el registro primario.
func (d *Dispatcher) appendTrade(ctx context.Context, trade domain.Trade) {
	if err := d.tradeLog.Append(trade); err != nil {
		slog.Error("trade log append failed", "err", err, "condition_id", trade.ConditionID)
	}
	if d.history != nil {
		if err := d.history.RecordTrade(ctx, trade); err != nil {
			slog.Warn("trade history write failed", "err", err)
		}
	}
}

// notifyPick reporta el pick al scoring service. Fallos se loggean y se
// tragan: nunca propagan al loop.
func (d *Dispatcher) notifyPick(ctx context.Context, cand domain.Candidate, price float64) {
	if d.picks == nil {
		return
	}
	pick := domain.Pick{
		ConditionID:       cand.Entry.ConditionID,
		MarketTitle:       cand.Entry.MarketTitle,
		EventTime:         cand.Entry.EventTime,
		Grade:             cand.Grade.Grade,
		SignalScore:       cand.Grade.SignalScore,
		EdgeRating:        cand.Entry.EdgeRating,
		ScoreDifferential: cand.Entry.ScoreDifferential,
		SharpSide:         cand.Entry.SharpSide,
		Price:             price,
	}
	if err := d.picks.NotifyPick(ctx, pick); err != nil {
		slog.Warn("failed to report pick", "err", err, "condition_id", pick.ConditionID)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
