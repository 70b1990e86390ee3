package core

import "github.com/shopspring/decimal"

// Totals is the derived triple recomputed on demand from current entries.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// NewTotals derives the balance from the two sums. The balance is clamped
// at zero and never reported negative.
func NewTotals(income, expense decimal.Decimal) Totals {
	balance := income.Sub(expense)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: balance,
	}
}

// Sum adds up the amounts of the given entries.
func Sum(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Equal reports whether two totals carry the same values.
func (t Totals) Equal(o Totals) bool {
	return t.Income.Equal(o.Income) && t.Expense.Equal(o.Expense) && t.Balance.Equal(o.Balance)
}
