// Command budget-events tails ledger events from the configured broker and
// logs one line per event.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/events"
	"budget/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentEvents)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	sub, err := backend.NewSubscriber(backendCfg)
	if err != nil {
		logger.Error("Failed to open event subscriber", log.FieldError, err, "events_backend", cfg.EventsBackend)
		os.Exit(1)
	}
	defer sub.Close()

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	logger.Info("Tailing ledger events", "events_backend", cfg.EventsBackend)
	if err := sub.Consume(ctx, logEvent(logger)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Event tail stopped")
}

func logEvent(logger *log.Logger) events.Handler {
	return func(ctx context.Context, e *events.LedgerEvent) error {
		fields := log.NewFields().
			WithSession(e.Session).
			WithEntry(e.Entry.ID, string(e.Entry.Category), e.Entry.Description, e.Entry.Amount.StringFixed(2)).
			WithTotals(e.Totals.Income.StringFixed(2), e.Totals.Expense.StringFixed(2), e.Totals.Balance.StringFixed(2))
		fields[log.FieldEventType] = string(e.Type)
		if e.Type == events.EntryRemoved {
			fields[log.FieldRemoved] = e.Removed
		}
		logger.InfoContext(ctx, "Ledger event", fields.ToSlice()...)
		return nil
	}
}
