package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
}

func TestHTMXResponseBuilder_EntryCreatedTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	entry := core.Entry{ID: 3, Description: "Salary", Amount: decimal.NewFromInt(500), Category: core.Income}

	NewHTMXResponse().
		TriggerEntryCreated(entry).
		TriggerTotalsRefresh().
		TriggerFormReset().
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventEntryCreated, EventTotalsRefresh, EventFormReset} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}

	var created struct {
		ID       int64  `json:"id"`
		Category string `json:"category"`
		Row      string `json:"row"`
	}
	if err := json.Unmarshal(triggers[EventEntryCreated], &created); err != nil {
		t.Fatalf("entry:created payload: %v", err)
	}
	if created.ID != 3 || created.Category != "inc" || created.Row != "inc-3" {
		t.Errorf("entry:created payload = %+v", created)
	}
}

func TestHTMXResponseBuilder_EntryRemoved(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerEntryRemoved(core.Expense, 9, false).
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{`"entry:removed"`, `"id":9`, `"category":"exp"`, `"removed":false`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_RetargetReswap(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Retarget("#list-exp").
		Reswap("beforeend").
		Status(http.StatusCreated).
		Write(w)

	if got := w.Header().Get("HX-Retarget"); got != "#list-exp" {
		t.Errorf("HX-Retarget = %q", got)
	}
	if got := w.Header().Get("HX-Reswap"); got != "beforeend" {
		t.Errorf("HX-Reswap = %q", got)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestHTMXResponseBuilder_NoTriggersNoHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Write(w)
	if _, ok := w.Header()["Hx-Trigger"]; ok {
		t.Error("HX-Trigger should be absent when no triggers were added")
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error">Invalid input</div>`,
		},
		{
			name:       "unprocessable entity",
			builder:    UnprocessableEntityError("Fill out the fields correctly"),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `<div class="error">Fill out the fields correctly</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Something broke"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error">Something broke</div>`,
		},
		{
			name:       "too many requests",
			builder:    TooManyRequestsError("Slow down"),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `<div class="error">Slow down</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestUnprocessableEntityError_Notifies(t *testing.T) {
	w := httptest.NewRecorder()
	UnprocessableEntityError("Fill out the fields correctly").Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"show-notification"`) || !strings.Contains(trigger, `"type":"error"`) {
		t.Errorf("expected error notification, got %s", trigger)
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}

func TestNotificationTypes(t *testing.T) {
	tests := []struct {
		notifType NotificationType
		want      string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		NewHTMXResponse().
			TriggerNotification(tt.notifType, "test", 1000).
			Write(w)

		trigger := w.Header().Get("HX-Trigger")
		if !strings.Contains(trigger, `"type":"`+tt.want+`"`) {
			t.Errorf("Notification type %q not found in trigger: %s", tt.want, trigger)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusTeapot, map[string]string{"k": "v"})

	if w.Code != http.StatusTeapot {
		t.Errorf("Status code = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"k":"v"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}
