// Package ledger holds the in-memory record of income and expense entries
// for one budget and derives its totals.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Store keeps the two ordered collections behind a Ledger.
type Store interface {
	// Insert appends the entry to its category's collection.
	Insert(ctx context.Context, e core.Entry) error

	// Delete removes the entry with the given id from the category's
	// collection and reports whether anything was removed.
	Delete(ctx context.Context, category core.Category, id int64) (bool, error)

	// List returns the category's entries in insertion order.
	List(ctx context.Context, category core.Category) ([]core.Entry, error)
}

// Ledger assigns identifiers, stores entries and computes totals.
// Identifiers come from one counter shared by both categories; they are
// strictly increasing and never reused, even after removal.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	nextID int64
}

// New returns an empty ledger on top of store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// NewInMemory returns an empty ledger backed by a MemoryStore.
func NewInMemory() *Ledger {
	return New(NewMemoryStore())
}

// AddEntry creates an entry with a fresh identifier and appends it to the
// category's collection. Input is expected to be validated by the caller.
func (l *Ledger) AddEntry(ctx context.Context, category core.Category, description string, amount decimal.Decimal) (core.Entry, error) {
	if !category.IsValid() {
		return core.Entry{}, fmt.Errorf("add entry: %w: %q", core.ErrInvalidCategory, category)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := core.Entry{
		ID:          l.nextID,
		Description: description,
		Amount:      amount,
		Category:    category,
	}
	if err := l.store.Insert(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	l.nextID++

	return e, nil
}

// RemoveEntry deletes the entry identified by category and id. Removing an
// identifier that is not present is a no-op and reports false.
func (l *Ledger) RemoveEntry(ctx context.Context, category core.Category, id int64) (bool, error) {
	if !category.IsValid() {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	removed, err := l.store.Delete(ctx, category, id)
	if err != nil {
		return false, fmt.Errorf("delete entry %s-%d: %w", category.Short(), id, err)
	}
	return removed, nil
}

// ComputeTotals sums both collections and derives the clamped balance.
func (l *Ledger) ComputeTotals(ctx context.Context) (core.Totals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	income, err := l.sum(ctx, core.Income)
	if err != nil {
		return core.Totals{}, err
	}
	expense, err := l.sum(ctx, core.Expense)
	if err != nil {
		return core.Totals{}, err
	}
	return core.NewTotals(income, expense), nil
}

// Entries returns a copy of the category's entries in insertion order.
func (l *Ledger) Entries(ctx context.Context, category core.Category) ([]core.Entry, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("list entries: %w: %q", core.ErrInvalidCategory, category)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.store.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", category, err)
	}
	return entries, nil
}

func (l *Ledger) sum(ctx context.Context, category core.Category) (decimal.Decimal, error) {
	entries, err := l.store.List(ctx, category)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list %s entries: %w", category, err)
	}
	return core.Sum(entries), nil
}
