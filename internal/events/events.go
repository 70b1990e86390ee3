// Package events describes the notifications a ledger emits after each
// mutation and the transports that carry them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

type Type string

const (
	EntryAdded   Type = "entry.added"
	EntryRemoved Type = "entry.removed"
)

// EntryPayload is the wire form of the entry an event refers to.
// Description and Amount are empty for removals.
type EntryPayload struct {
	ID          int64           `json:"id"`
	Category    core.Category   `json:"category"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// TotalsPayload is the ledger state after the mutation was applied.
type TotalsPayload struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// LedgerEvent is published once per mutation of a session ledger.
type LedgerEvent struct {
	ID        string        `json:"id"`
	Type      Type          `json:"type"`
	Session   string        `json:"session"`
	Entry     EntryPayload  `json:"entry"`
	Removed   bool          `json:"removed,omitempty"`
	Totals    TotalsPayload `json:"totals"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewEntryAdded(session string, e core.Entry, t core.Totals) *LedgerEvent {
	return &LedgerEvent{
		ID:      uuid.NewString(),
		Type:    EntryAdded,
		Session: session,
		Entry: EntryPayload{
			ID:          e.ID,
			Category:    e.Category,
			Description: e.Description,
			Amount:      e.Amount,
		},
		Totals:    totalsPayload(t),
		Timestamp: time.Now().UTC(),
	}
}

// NewEntryRemoved records a removal request. removed is false when the
// identifier was not present and the ledger did nothing.
func NewEntryRemoved(session string, category core.Category, id int64, removed bool, t core.Totals) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      EntryRemoved,
		Session:   session,
		Entry:     EntryPayload{ID: id, Category: category},
		Removed:   removed,
		Totals:    totalsPayload(t),
		Timestamp: time.Now().UTC(),
	}
}

func totalsPayload(t core.Totals) TotalsPayload {
	return TotalsPayload{Income: t.Income, Expense: t.Expense, Balance: t.Balance}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event and rejects unknown types.
func FromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EntryAdded, EntryRemoved:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}

// Publisher delivers ledger events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e *LedgerEvent) error
	Close() error
}

// Handler processes one received event. A non-nil error asks the transport
// to redeliver when it can.
type Handler func(ctx context.Context, e *LedgerEvent) error

// Subscriber receives ledger events until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *LedgerEvent) error { return nil }
func (Noop) Close() error { return nil }

var _ Publisher = Noop{}
