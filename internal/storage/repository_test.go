package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/ledger"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	repo, err := NewSQLiteRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	store := repo.Scoped("alpha")

	entries := []core.Entry{
		{ID: 0, Description: "Salary", Amount: decimal.RequireFromString("500"), Category: core.Income},
		{ID: 1, Description: "Rent", Amount: decimal.RequireFromString("200.50"), Category: core.Expense},
		{ID: 2, Description: "Bonus", Amount: decimal.RequireFromString("0.10"), Category: core.Income},
	}
	for _, e := range entries {
		require.NoError(t, store.Insert(ctx, e))
	}

	incomes, err := store.List(ctx, core.Income)
	require.NoError(t, err)
	require.Len(t, incomes, 2)
	assert.Equal(t, int64(0), incomes[0].ID)
	assert.Equal(t, int64(2), incomes[1].ID)
	assert.True(t, incomes[1].Amount.Equal(decimal.RequireFromString("0.1")))

	expenses, err := store.List(ctx, core.Expense)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Rent", expenses[0].Description)
	assert.Equal(t, core.Expense, expenses[0].Category)
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestRepository(t).Scoped("alpha")

	require.NoError(t, store.Insert(ctx, core.Entry{ID: 4, Description: "Food", Amount: decimal.NewFromInt(12), Category: core.Expense}))

	removed, err := store.Delete(ctx, core.Income, 4)
	require.NoError(t, err)
	assert.False(t, removed, "wrong category must not match")

	removed, err = store.Delete(ctx, core.Expense, 4)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, core.Expense, 4)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSQLiteRepository_LedgersAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	a := ledger.New(repo.Scoped("a"))
	b := ledger.New(repo.Scoped("b"))

	_, err := a.AddEntry(ctx, core.Income, "Salary", decimal.NewFromInt(500))
	require.NoError(t, err)
	_, err = a.AddEntry(ctx, core.Expense, "Rent", decimal.NewFromInt(200))
	require.NoError(t, err)
	_, err = b.AddEntry(ctx, core.Income, "Gift", decimal.NewFromInt(50))
	require.NoError(t, err)

	ta, err := a.ComputeTotals(ctx)
	require.NoError(t, err)
	assert.True(t, ta.Equal(core.NewTotals(decimal.NewFromInt(500), decimal.NewFromInt(200))))

	tb, err := b.ComputeTotals(ctx)
	require.NoError(t, err)
	assert.True(t, tb.Balance.Equal(decimal.NewFromInt(50)))

	n, err := repo.LedgerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.Drop(ctx, "a"))

	ta, err = a.ComputeTotals(ctx)
	require.NoError(t, err)
	assert.True(t, ta.Income.IsZero())

	n, err = repo.LedgerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteRepository_MigrationsAreIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	repo, err := NewSQLiteRepository(dsn)
	require.NoError(t, err)
	defer repo.Close()

	assert.NoError(t, RunMigrations(dsn))
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestSQLiteRepository_DroppedLedgerRejectsInserts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	l := ledger.New(repo.Scoped("s1"))

	_, err := l.AddEntry(ctx, core.Income, "Salary", decimal.NewFromInt(500))
	require.NoError(t, err)
	require.NoError(t, repo.Drop(ctx, "s1"))

	_, err = l.AddEntry(ctx, core.Income, "Bonus", decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrLedgerDropped)

	n, err := repo.LedgerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "no rows may survive a drop")

	fresh := ledger.New(repo.Scoped("s1"))
	_, err = fresh.AddEntry(ctx, core.Income, "Salary", decimal.NewFromInt(10))
	assert.NoError(t, err, "a new store for the same id starts clean")
}

func TestSQLiteRepository_ScopedReturnsLiveStore(t *testing.T) {
	repo := newTestRepository(t)

	assert.Same(t, repo.Scoped("a"), repo.Scoped("a"))
	assert.NotSame(t, repo.Scoped("a"), repo.Scoped("b"))
}

func totalsOf(t *testing.T, l *ledger.Ledger) core.Totals {
	t.Helper()
	totals, err := l.ComputeTotals(context.Background())
	require.NoError(t, err)
	return totals
}

func add(t *testing.T, l *ledger.Ledger, category core.Category, description, amount string) core.Entry {
	t.Helper()
	e, err := l.AddEntry(context.Background(), category, description, decimal.RequireFromString(amount))
	require.NoError(t, err)
	return e
}

func remove(t *testing.T, l *ledger.Ledger, category core.Category, id int64) bool {
	t.Helper()
	removed, err := l.RemoveEntry(context.Background(), category, id)
	require.NoError(t, err)
	return removed
}

func wantTotals(income, expense, balance string) core.Totals {
	return core.Totals{
		Income:  decimal.RequireFromString(income),
		Expense: decimal.RequireFromString(expense),
		Balance: decimal.RequireFromString(balance),
	}
}

func TestSQLiteLedger_Properties(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T, l *ledger.Ledger)
	}{
		{"salary and rent", func(t *testing.T, l *ledger.Ledger) {
			add(t, l, core.Income, "Salary", "500")
			add(t, l, core.Expense, "Rent", "200")
			assert.True(t, totalsOf(t, l).Equal(wantTotals("500", "200", "300")))
		}},
		{"balance clamped at zero", func(t *testing.T, l *ledger.Ledger) {
			add(t, l, core.Income, "Salary", "100")
			add(t, l, core.Expense, "Rent", "150")
			assert.True(t, totalsOf(t, l).Equal(wantTotals("100", "150", "0")))
		}},
		{"positive balance", func(t *testing.T, l *ledger.Ledger) {
			add(t, l, core.Income, "Salary", "150")
			add(t, l, core.Expense, "Rent", "100")
			assert.True(t, totalsOf(t, l).Balance.Equal(decimal.NewFromInt(50)))
		}},
		{"ids increase across categories", func(t *testing.T, l *ledger.Ledger) {
			var prev int64 = -1
			for i, c := range []core.Category{core.Income, core.Expense, core.Expense, core.Income} {
				e := add(t, l, c, fmt.Sprintf("item %d", i), "1")
				assert.Greater(t, e.ID, prev)
				prev = e.ID
			}
			assert.Equal(t, int64(3), prev)
		}},
		{"ids not reused after removal", func(t *testing.T, l *ledger.Ledger) {
			e := add(t, l, core.Income, "Salary", "500")
			require.True(t, remove(t, l, core.Income, e.ID))
			next := add(t, l, core.Income, "Salary", "500")
			assert.Equal(t, e.ID+1, next.ID)
		}},
		{"repeated and unknown removal is a no-op", func(t *testing.T, l *ledger.Ledger) {
			add(t, l, core.Income, "Salary", "500")
			rent := add(t, l, core.Expense, "Rent", "200")
			assert.True(t, remove(t, l, core.Expense, rent.ID))
			before := totalsOf(t, l)

			assert.False(t, remove(t, l, core.Expense, rent.ID))
			assert.False(t, remove(t, l, core.Income, rent.ID))
			assert.False(t, remove(t, l, core.Expense, 99))
			assert.True(t, totalsOf(t, l).Equal(before))
			assert.True(t, before.Equal(wantTotals("500", "0", "500")))
		}},
		{"compute totals is idempotent", func(t *testing.T, l *ledger.Ledger) {
			add(t, l, core.Income, "Salary", "500.25")
			add(t, l, core.Expense, "Food", "12.10")
			first := totalsOf(t, l)
			assert.True(t, totalsOf(t, l).Equal(first))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepository(t)
			tt.run(t, ledger.New(repo.Scoped(uuid.NewString())))
		})
	}
}

func TestSQLiteLedger_RemovalOrderIndependence(t *testing.T) {
	repo := newTestRepository(t)
	seed := func(l *ledger.Ledger) []core.Entry {
		return []core.Entry{
			add(t, l, core.Income, "Salary", "500"),
			add(t, l, core.Expense, "Rent", "200"),
			add(t, l, core.Income, "Bonus", "75.50"),
			add(t, l, core.Expense, "Food", "20"),
		}
	}

	forward := ledger.New(repo.Scoped("forward"))
	backward := ledger.New(repo.Scoped("backward"))
	fe := seed(forward)
	be := seed(backward)

	for _, i := range []int{0, 3} {
		remove(t, forward, fe[i].Category, fe[i].ID)
	}
	for _, i := range []int{3, 0} {
		remove(t, backward, be[i].Category, be[i].ID)
	}

	assert.True(t, totalsOf(t, forward).Equal(totalsOf(t, backward)))
	assert.True(t, totalsOf(t, forward).Equal(wantTotals("75.50", "200", "0")))
}
