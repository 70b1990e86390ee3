package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income  Category = "income"
	Expense Category = "expense"
)

// MaxDescriptionLength bounds the description accepted from the input surface.
const MaxDescriptionLength = 200

type (
	// Category is the two-valued classification of an Entry.
	Category string

	// Entry is one income or expense record held by a ledger. Entries are
	// immutable once created.
	Entry struct {
		ID          int64
		Description string
		Amount      decimal.Decimal
		Category    Category
	}
)

var (
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

// Categories returns both categories in display order.
func Categories() []Category {
	return []Category{Income, Expense}
}

// ParseCategory accepts the long form ("income", "expense") and the short
// form used in row identifiers ("inc", "exp"), case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "inc":
		return Income, nil
	case "expense", "exp":
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

func (c Category) IsValid() bool {
	return c == Income || c == Expense
}

// Short returns the compact form used in row identifiers.
func (c Category) Short() string {
	switch c {
	case Income:
		return "inc"
	case Expense:
		return "exp"
	default:
		return string(c)
	}
}

// Label returns a human readable name.
func (c Category) Label() string {
	switch c {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	default:
		return string(c)
	}
}

func (c Category) String() string {
	return string(c)
}

// RowID returns the identifier the view uses for the entry's row, e.g. "inc-3".
func (e Entry) RowID() string {
	return fmt.Sprintf("%s-%d", e.Category.Short(), e.ID)
}

// Validate checks an entry draft before it is handed to a ledger. The ledger
// itself trusts its caller; this is the input surface's gate.
func (e Entry) Validate() error {
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len([]rune(e.Description)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
