package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/events"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/session"
)

// BudgetService orchestrates ledger operations for a session and publishes
// the resulting events.
type BudgetService struct {
	sessions  *session.Registry
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *log.StructuredLogger
	currency  string
}

// NewBudgetService wires the service. publisher and m may be nil.
func NewBudgetService(sessions *session.Registry, publisher events.Publisher, m *metrics.Metrics, logger *log.Logger, currency string) *BudgetService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetService{
		sessions:  sessions,
		publisher: publisher,
		metrics:   m,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		currency:  currency,
	}
}

// Session returns the caller's session, creating one when sessionID is not
// live. created reports whether the caller must store a new identifier.
// Only writes should call it; reads use Lookup.
func (s *BudgetService) Session(sessionID string) (sess *session.Session, created bool) {
	return s.sessions.Resolve(sessionID)
}

// Lookup returns the caller's live session without creating one. A nil
// session stands for an empty ledger in RemoveEntry, Totals and Entries.
func (s *BudgetService) Lookup(sessionID string) *session.Session {
	sess, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return nil
	}
	return sess
}

// AddEntry validates the draft, stores it in the session ledger and returns
// the new entry with the totals after insertion.
func (s *BudgetService) AddEntry(ctx context.Context, sess *session.Session, category core.Category, description string, amount decimal.Decimal) (core.Entry, core.Totals, error) {
	draft := core.Entry{Description: description, Amount: amount, Category: category}
	if err := draft.Validate(); err != nil {
		return core.Entry{}, core.Totals{}, err
	}

	entry, err := sess.Ledger.AddEntry(ctx, category, description, amount)
	if err != nil {
		return core.Entry{}, core.Totals{}, fmt.Errorf("add entry: %w", err)
	}

	totals, err := sess.Ledger.ComputeTotals(ctx)
	if err != nil {
		return entry, core.Totals{}, fmt.Errorf("compute totals: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EntriesAdded.WithLabelValues(string(category)).Inc()
	}
	s.logger.LogEntryAdded(ctx, sess.ID, entry.ID, string(entry.Category), entry.Description,
		core.FormatAmount(entry.Amount, s.currency))

	s.publish(ctx, events.NewEntryAdded(sess.ID, entry, totals))

	return entry, totals, nil
}

// RemoveEntry removes an entry from the session ledger. An unknown
// identifier is not an error; removed reports whether anything changed.
func (s *BudgetService) RemoveEntry(ctx context.Context, sess *session.Session, category core.Category, id int64) (removed bool, totals core.Totals, err error) {
	if sess == nil {
		if s.metrics != nil {
			s.metrics.EntriesRemoved.WithLabelValues(string(category), metrics.RemovalResult(false)).Inc()
		}
		return false, core.NewTotals(decimal.Zero, decimal.Zero), nil
	}

	removed, err = sess.Ledger.RemoveEntry(ctx, category, id)
	if err != nil {
		return false, core.Totals{}, fmt.Errorf("remove entry: %w", err)
	}

	totals, err = sess.Ledger.ComputeTotals(ctx)
	if err != nil {
		return removed, core.Totals{}, fmt.Errorf("compute totals: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EntriesRemoved.WithLabelValues(string(category), metrics.RemovalResult(removed)).Inc()
	}
	s.logger.LogEntryRemoved(ctx, sess.ID, id, string(category), removed)

	s.publish(ctx, events.NewEntryRemoved(sess.ID, category, id, removed, totals))

	return removed, totals, nil
}

// Totals returns the session ledger's current totals.
func (s *BudgetService) Totals(ctx context.Context, sess *session.Session) (core.Totals, error) {
	if sess == nil {
		return core.NewTotals(decimal.Zero, decimal.Zero), nil
	}
	totals, err := sess.Ledger.ComputeTotals(ctx)
	if err != nil {
		return core.Totals{}, fmt.Errorf("compute totals: %w", err)
	}
	return totals, nil
}

// Entries returns both collections in insertion order.
func (s *BudgetService) Entries(ctx context.Context, sess *session.Session) (incomes, expenses []core.Entry, err error) {
	if sess == nil {
		return []core.Entry{}, []core.Entry{}, nil
	}
	incomes, err = sess.Ledger.Entries(ctx, core.Income)
	if err != nil {
		return nil, nil, err
	}
	expenses, err = sess.Ledger.Entries(ctx, core.Expense)
	if err != nil {
		return nil, nil, err
	}
	return incomes, expenses, nil
}

// Currency is the ISO code amounts are displayed in.
func (s *BudgetService) Currency() string {
	return s.currency
}

// Close closes the event publisher.
func (s *BudgetService) Close() error {
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}

// publish never fails the request: the ledger is already updated.
func (s *BudgetService) publish(ctx context.Context, e *events.LedgerEvent) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldComponent, log.ComponentEvents,
			log.FieldOperation, log.OpPublish,
			log.FieldEventType, e.Type,
			log.FieldSessionID, e.Session,
			log.FieldError, err)
		if s.metrics != nil {
			s.metrics.PublishErrors.WithLabelValues(string(e.Type)).Inc()
		}
	}
}
