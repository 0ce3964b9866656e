package storage

// sqlite.go — histórico de trades y ciclos para reporting.
//
// Estrategia:
//   - `trades`: una fila por intento de placement (paper, live, o live
//     degradado a paper). Inserts puros, nunca updates.
//   - `cycles`: resumen ligero por ciclo del poll loop. Siempre 1 fila.
//   - Prune automático al arrancar: cycles > 30d. Los trades se conservan
//     completos — son el histórico de auditoría.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/polywhaler/polywhaler/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Un intento de placement por fila
CREATE TABLE IF NOT EXISTS trades (
    id            TEXT PRIMARY KEY,
    placed_at     INTEGER NOT NULL,
    condition_id  TEXT    NOT NULL,
    market_title  TEXT,
    sharp_side    TEXT,
    price         REAL    NOT NULL DEFAULT 0,
    grade         TEXT,
    signal_score  REAL    NOT NULL DEFAULT 0,
    stake         REAL    NOT NULL DEFAULT 0,
    mode          TEXT    NOT NULL,
    token_id      TEXT,
    order_id      TEXT,
    order_status  TEXT,
    error         TEXT,
    cf_ray_id     TEXT
);

-- Resumen ligero por ciclo del poll loop
CREATE TABLE IF NOT EXISTS cycles (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    polled_at      DATETIME NOT NULL,
    raw            INTEGER  NOT NULL DEFAULT 0,
    skipped_placed INTEGER  NOT NULL DEFAULT 0,
    skipped_nocond INTEGER  NOT NULL DEFAULT 0,
    new_placed     INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_at   ON trades(placed_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_cond ON trades(condition_id);
CREATE INDEX IF NOT EXISTS idx_cycles_at   ON cycles(polled_at DESC);
`

const retentionCycles = 30 * 24 * time.Hour

// SQLiteHistory implementa ports.TradeHistory usando SQLite (pure Go, sin CGo).
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia resúmenes de ciclo antiguos.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteHistory: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteHistory: apply schema: %w", err)
	}

	s := &SQLiteHistory{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordTrade inserta un intento de placement.
func (s *SQLiteHistory) RecordTrade(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, placed_at, condition_id, market_title, sharp_side, price,
			grade, signal_score, stake, mode, token_id, order_id,
			order_status, error, cf_ray_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Timestamp, t.ConditionID, t.MarketTitle, t.SharpSide, t.Price,
		t.Grade, t.SignalScore, t.Stake, string(t.Mode), t.TokenID, t.OrderID,
		t.OrderStatus, t.Error, t.CloudflareRayID,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordTrade: %w", err)
	}
	return nil
}

// RecordCycle inserta el resumen de un ciclo.
func (s *SQLiteHistory) RecordCycle(ctx context.Context, c domain.CycleSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (polled_at, raw, skipped_placed, skipped_nocond, new_placed)
		VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), c.RawCandidates, c.SkippedAlreadyPlaced,
		c.SkippedMissingCondition, c.NewPlaced,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordCycle: %w", err)
	}
	return nil
}

// RecentTrades devuelve los últimos trades, más recientes primero.
func (s *SQLiteHistory) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, placed_at, condition_id, market_title, sharp_side, price,
		       grade, signal_score, stake, mode, token_id, order_id,
		       order_status, error, cf_ray_id
		FROM trades ORDER BY placed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var mode string
		if err := rows.Scan(
			&t.ID, &t.Timestamp, &t.ConditionID, &t.MarketTitle, &t.SharpSide,
			&t.Price, &t.Grade, &t.SignalScore, &t.Stake, &mode, &t.TokenID,
			&t.OrderID, &t.OrderStatus, &t.Error, &t.CloudflareRayID,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan: %w", err)
		}
		t.Mode = domain.TradeMode(mode)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close cierra la conexión limpiamente.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// pruneOld borra resúmenes de ciclo fuera de retención. Best-effort.
func (s *SQLiteHistory) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionCycles)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE polled_at < ?`, cutoff)
}
