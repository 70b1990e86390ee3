package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"budget/internal/core"
	"budget/internal/session"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// isValidationError reports whether err came from rejected user input.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidCategory) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrDescriptionTooLong)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON is true for non-htmx callers that ask for JSON.
func wantsJSON(r *http.Request) bool {
	return !isHTMX(r) && strings.Contains(r.Header.Get("Accept"), "application/json")
}

// setSessionCookie stores a freshly minted session id in the browser.
func setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionCookie returns the session id the browser sent, if any.
func sessionCookie(r *http.Request) string {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

type entryView struct {
	RowID       string
	Description string
	Amount      string
	RemovePath  string
}

type totalsView struct {
	Income  string
	Expense string
	Balance string
}

func newEntryView(e core.Entry, currency string) entryView {
	return entryView{
		RowID:       e.RowID(),
		Description: e.Description,
		Amount:      core.FormatAmount(e.Amount, currency),
		RemovePath:  fmt.Sprintf("/entries/%s/%d", e.Category.Short(), e.ID),
	}
}

func newEntryViews(entries []core.Entry, currency string) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e, currency))
	}
	return views
}

func newTotalsView(t core.Totals, currency string) totalsView {
	return totalsView{
		Income:  core.FormatAmount(t.Income, currency),
		Expense: core.FormatAmount(t.Expense, currency),
		Balance: core.FormatAmount(t.Balance, currency),
	}
}

// JSON renditions for /api callers. Amounts are fixed-point strings.

type entryJSON struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type totalsJSON struct {
	Income   string `json:"income"`
	Expense  string `json:"expense"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

func newEntryJSON(e core.Entry) entryJSON {
	return entryJSON{
		ID:          e.ID,
		Category:    string(e.Category),
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
	}
}

func newEntriesJSON(entries []core.Entry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryJSON(e))
	}
	return out
}

func newTotalsJSON(t core.Totals, currency string) totalsJSON {
	return totalsJSON{
		Income:   t.Income.StringFixed(2),
		Expense:  t.Expense.StringFixed(2),
		Balance:  t.Balance.StringFixed(2),
		Currency: currency,
	}
}
