package ports

import (
	"context"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// StateStore persiste el documento de estado (bankroll + ledger) entre
// ciclos. La migración de formas legacy es responsabilidad del engine; el
// store solo hace I/O.
type StateStore interface {
	// Load lee el documento desde disco. Un archivo ausente o corrupto
	// devuelve el documento vacío, nunca un error fatal.
	Load() (domain.StateDocument, error)

	// Save escribe el estado de forma atómica (temp + rename): un crash
	// a mitad de escritura no corrompe la versión anterior.
	Save(state domain.BotState) error
}

// TradeLog es el registro append-only de intentos de placement.
type TradeLog interface {
	Append(trade domain.Trade) error
}

// TradeHistory persiste trades y resúmenes de ciclo para reporting.
type TradeHistory interface {
	RecordTrade(ctx context.Context, trade domain.Trade) error
	RecordCycle(ctx context.Context, summary domain.CycleSummary) error
	RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error)
	Close() error
}
