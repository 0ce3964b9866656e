package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/polywhaler/polywhaler/config"
	"github.com/polywhaler/polywhaler/internal/adapters/storage"
	"github.com/polywhaler/polywhaler/internal/domain"
)

// runReport prints the last N trades from the history database as a table.
func runReport(ctx context.Context, cfg *config.Config, limit int) error {
	history, err := storage.NewSQLiteHistory(cfg.Storage.HistoryDSN)
	if err != nil {
		return fmt.Errorf("report: open history: %w", err)
	}
	defer history.Close()

	trades, err := history.RecentTrades(ctx, limit)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("no trades recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Market", "Side", "Grade", "Price", "Stake", "Mode", "Status")

	for _, t := range trades {
		status := t.OrderStatus
		if t.Error != "" {
			status = "failed"
			if t.CloudflareRayID != "" {
				status = "blocked"
			}
		}
		if status == "" && t.Mode == domain.ModePaper {
			status = "paper"
		}

		table.Append(
			time.Unix(t.Timestamp, 0).UTC().Format("01-02 15:04"),
			truncate(t.MarketTitle, 40),
			t.SharpSide,
			t.Grade,
			fmt.Sprintf("%.3f", t.Price),
			fmt.Sprintf("%.2f", t.Stake),
			string(t.Mode),
			status,
		)
	}

	table.Render()
	fmt.Printf("\n%d trades shown\n", len(trades))
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
