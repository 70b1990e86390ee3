package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/session"
)

// validationMessage is shown for any rejected entry.
const validationMessage = "Fill out the fields correctly"

// currentSession resolves the caller's session, issuing a cookie when a new one was
// created. It must run before anything is written to w. Only adding an entry
// creates sessions, so reads cannot push live ledgers out of the registry.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, created := s.service.Session(sessionCookie(r))
	if created {
		setSessionCookie(w, r, sess.ID)
	}
	return sess
}

// liveSession returns the caller's session, or nil when the cookie is
// missing or no longer live. A nil session reads as an empty ledger.
func (s *Server) liveSession(r *http.Request) *session.Session {
	return s.service.Lookup(sessionCookie(r))
}

func (s *Server) render(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	sess := s.liveSession(r)
	incomes, expenses, err := s.service.Entries(ctx, sess)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list entries", log.FieldError, err, log.FieldSessionID, sess.ID)
		http.Error(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}
	totals, err := s.service.Totals(ctx, sess)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to compute totals", log.FieldError, err, log.FieldSessionID, sess.ID)
		http.Error(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}

	currency := s.service.Currency()
	now := s.now()
	data := struct {
		Month          string
		Year           int
		Categories     []core.Category
		MaxDescription int
		Totals         totalsView
		Incomes        []entryView
		Expenses       []entryView
	}{
		Month:          now.Month().String(),
		Year:           now.Year(),
		Categories:     core.Categories(),
		MaxDescription: core.MaxDescriptionLength,
		Totals:         newTotalsView(totals, currency),
		Incomes:        newEntryViews(incomes, currency),
		Expenses:       newEntryViews(expenses, currency),
	}

	page, err := s.render("index.html", data)
	if err != nil {
		logger.ErrorContext(ctx, "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(page).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge, "Request too large")
			return
		}
		s.fail(w, r, http.StatusBadRequest, "Malformed request")
		return
	}

	draft, err := parseEntryDraft(parser)
	if err != nil {
		logger.WarnContext(ctx, "Rejected entry", log.FieldError, err, log.FieldOperation, log.OpValidate)
		s.invalid(w, r, err)
		return
	}

	sess := s.currentSession(w, r)
	entry, totals, err := s.service.AddEntry(ctx, sess, draft.Category, draft.Description, draft.Amount)
	if err != nil {
		if isValidationError(err) {
			s.invalid(w, r, err)
			return
		}
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to add entry", err,
			log.ComponentLedger, log.OpCreate, log.NewFields().WithSession(sess.ID))
		s.fail(w, r, http.StatusInternalServerError, "Could not save the entry")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"entry":  newEntryJSON(entry),
			"totals": newTotalsJSON(totals, s.service.Currency()),
		})
		return
	}

	row, err := s.render("entry_row", newEntryView(entry, s.service.Currency()))
	if err != nil {
		logger.ErrorContext(ctx, "Entry row template execution failed", log.FieldError, err, "template", "entry_row")
		s.fail(w, r, http.StatusInternalServerError, "Could not render the entry")
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Retarget("#list-" + entry.Category.Short()).
		Reswap("beforeend").
		TriggerEntryCreated(entry).
		TriggerTotalsRefresh().
		TriggerFormReset().
		BodyHTML(row).
		Write(w)
}

// handleRemoveEntry answers 200 whether or not the entry existed.
func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	category, err := core.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "Unknown category")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid entry id")
		return
	}

	sess := s.liveSession(r)
	removed, totals, err := s.service.RemoveEntry(ctx, sess, category, id)
	if err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to remove entry", err,
			log.ComponentLedger, log.OpDelete, log.NewFields().WithSession(sess.ID))
		s.fail(w, r, http.StatusInternalServerError, "Could not remove the entry")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"removed": removed,
			"totals":  newTotalsJSON(totals, s.service.Currency()),
		})
		return
	}

	NewHTMXResponse().
		TriggerEntryRemoved(category, id, removed).
		TriggerTotalsRefresh().
		Write(w)
}

func (s *Server) handleTotalsPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.liveSession(r)
	totals, err := s.service.Totals(ctx, sess)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to compute totals", log.FieldError, err, log.FieldSessionID, sess.ID)
		InternalServerError("Could not load totals").Write(w)
		return
	}

	html, err := s.render("totals", newTotalsView(totals, s.service.Currency()))
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Totals template execution failed", log.FieldError, err, "template", "totals")
		InternalServerError("Could not render totals").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}

func (s *Server) handleAPITotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.liveSession(r)
	totals, err := s.service.Totals(ctx, sess)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to compute totals", log.FieldError, err, log.FieldSessionID, sess.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not compute totals"})
		return
	}
	writeJSON(w, http.StatusOK, newTotalsJSON(totals, s.service.Currency()))
}

func (s *Server) handleAPIEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.liveSession(r)
	incomes, expenses, err := s.service.Entries(ctx, sess)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list entries", log.FieldError, err, log.FieldSessionID, sess.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list entries"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		string(core.Income):  newEntriesJSON(incomes),
		string(core.Expense): newEntriesJSON(expenses),
	})
}

// invalid answers a rejected entry with 422.
func (s *Server) invalid(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  validationMessage,
			"detail": err.Error(),
		})
		return
	}
	UnprocessableEntityError(validationMessage).Write(w)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": message})
		return
	}
	ErrorResponse(status, message).TriggerErrorNotification(message).Write(w)
}
