package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"

	_ "modernc.org/sqlite"
)

// DefaultDSN names a shared-cache in-memory database that lives as long as
// the repository's connection pool.
const DefaultDSN = "file:budget?mode=memory&cache=shared"

// ErrLedgerDropped is returned when writing through a store whose ledger has
// already been dropped.
var ErrLedgerDropped = errors.New("ledger dropped")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries

	mu     sync.Mutex
	scoped map[string]*SQLiteStore
}

func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single long-lived connection keeps the in-memory database alive and
	// avoids shared-cache table locks between pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		scoped:  make(map[string]*SQLiteStore),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database connection is still usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Scoped returns a ledger store whose rows are tagged with ledgerID. Repeated
// calls for the same live ledger return the same store.
func (r *SQLiteRepository) Scoped(ledgerID string) *SQLiteStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.scoped[ledgerID]; ok {
		return s
	}
	s := &SQLiteStore{ledgerID: ledgerID, queries: r.queries}
	r.scoped[ledgerID] = s
	return s
}

// Drop deletes every entry that belongs to ledgerID. Stores previously handed
// out for it reject further inserts, so no rows can reappear afterwards.
func (r *SQLiteRepository) Drop(ctx context.Context, ledgerID string) error {
	r.mu.Lock()
	s := r.scoped[ledgerID]
	delete(r.scoped, ledgerID)
	r.mu.Unlock()
	if s != nil {
		s.markDropped()
	}

	n, err := r.queries.DeleteLedger(ctx, ledgerID)
	if err != nil {
		return fmt.Errorf("drop ledger %s: %w", ledgerID, err)
	}
	slog.DebugContext(ctx, "Ledger rows dropped", log.FieldComponent, log.ComponentStorage, "ledger_id", ledgerID, "rows", n)
	return nil
}

// LedgerCount returns how many ledgers currently hold at least one entry.
func (r *SQLiteRepository) LedgerCount(ctx context.Context) (int64, error) {
	n, err := r.queries.CountLedgers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count ledgers: %w", err)
	}
	return n, nil
}

// SQLiteStore is a ledger.Store over the rows of a single ledger.
type SQLiteStore struct {
	ledgerID string
	queries  *Queries

	mu      sync.Mutex
	dropped bool
}

var _ ledger.Store = (*SQLiteStore)(nil)

// markDropped waits for an in-flight insert before closing the store.
func (s *SQLiteStore) markDropped() {
	s.mu.Lock()
	s.dropped = true
	s.mu.Unlock()
}

func (s *SQLiteStore) Insert(ctx context.Context, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped {
		return fmt.Errorf("insert entry %s: %w", e.RowID(), ErrLedgerDropped)
	}

	err := s.queries.InsertEntry(ctx, EntryRow{
		LedgerID:    s.ledgerID,
		ID:          e.ID,
		Category:    string(e.Category),
		Description: e.Description,
		Amount:      e.Amount.String(),
	})
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.RowID(), err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, category core.Category, id int64) (bool, error) {
	n, err := s.queries.DeleteEntry(ctx, s.ledgerID, string(category), id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context, category core.Category) ([]core.Entry, error) {
	rows, err := s.queries.ListEntries(ctx, s.ledgerID, string(category))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	entries := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount of entry %d: %w", row.ID, err)
		}
		cat, err := core.ParseCategory(row.Category)
		if err != nil {
			return nil, fmt.Errorf("decode category of entry %d: %w", row.ID, err)
		}
		entries = append(entries, core.Entry{
			ID:          row.ID,
			Description: row.Description,
			Amount:      amount,
			Category:    cat,
		})
	}
	return entries, nil
}
