package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func TestNewEntryAdded(t *testing.T) {
	entry := core.Entry{ID: 3, Description: "Salary", Amount: decimal.RequireFromString("500"), Category: core.Income}
	totals := core.NewTotals(decimal.RequireFromString("500"), decimal.RequireFromString("200"))

	e := NewEntryAdded("sess", entry, totals)

	assert.Equal(t, EntryAdded, e.Type)
	assert.Equal(t, "sess", e.Session)
	assert.Equal(t, int64(3), e.Entry.ID)
	assert.Equal(t, core.Income, e.Entry.Category)
	assert.True(t, e.Totals.Balance.Equal(decimal.RequireFromString("300")))
	assert.NotEmpty(t, e.ID)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
}

func TestLedgerEvent_JSON(t *testing.T) {
	e := NewEntryRemoved("sess", core.Expense, 4, true,
		core.NewTotals(decimal.RequireFromString("10.50"), decimal.Zero))

	data, err := e.ToJSON()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"type":"entry.removed"`), string(data))
	assert.True(t, strings.Contains(string(data), `"income":"10.5"`), string(data))

	parsed, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, parsed.ID)
	assert.Equal(t, EntryRemoved, parsed.Type)
	assert.True(t, parsed.Removed)
	assert.Equal(t, core.Expense, parsed.Entry.Category)
	assert.True(t, parsed.Totals.Income.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, parsed.Timestamp.Equal(e.Timestamp))
}

func TestFromJSON_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"type":`,
		"unknown type": `{"type":"entry.updated","session":"s"}`,
		"bad amount":   `{"type":"entry.added","entry":{"amount":"abc"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), &LedgerEvent{}))
	assert.NoError(t, p.Close())
}
