// Package session maps browser sessions to the ledger each one owns.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budget/internal/cache"
	"budget/internal/ledger"
	"budget/internal/log"
)

// CookieName is the cookie carrying the session identifier.
const CookieName = "budget_session"

const releaseTimeout = 5 * time.Second

// StoreProvider creates and discards the backing store of a session ledger.
type StoreProvider interface {
	Open(sessionID string) ledger.Store
	Release(ctx context.Context, sessionID string) error
}

// Session is one visitor's budget. The ledger lives exactly as long as the
// session does.
type Session struct {
	ID        string
	Ledger    *ledger.Ledger
	CreatedAt time.Time
}

// Registry holds live sessions in a TTL LRU cache. Idle sessions expire and
// their stores are released; the least recently used session is dropped when
// the registry is full.
type Registry struct {
	sessions *cache.LRUCache[*Session]
	stores   StoreProvider
	logger   *slog.Logger
	onChange func(active int)
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	onChange func(active int)
	clock    func() time.Time
}

// WithActiveGauge reports the number of live sessions after every change.
func WithActiveGauge(fn func(active int)) Option {
	return func(o *registryOptions) { o.onChange = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *registryOptions) { o.clock = now }
}

func NewRegistry(stores StoreProvider, maxSessions int, ttl time.Duration, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	o := registryOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		stores:   stores,
		logger:   logger,
		onChange: o.onChange,
		now:      o.clock,
	}
	r.sessions = cache.NewLRUCache[*Session](maxSessions, ttl,
		cache.WithEvictHook(r.release),
		cache.WithClock[*Session](o.clock),
	)
	return r
}

// Cleaner exposes the session cache to a cache.Manager for periodic sweeps.
func (r *Registry) Cleaner() cache.Cleaner {
	return r.sessions
}

// Lookup returns the live session with the given id and extends its expiry.
func (r *Registry) Lookup(id string) (*Session, bool) {
	if !Valid(id) {
		return nil, false
	}
	s, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	r.sessions.Touch(id)
	return s, true
}

// Resolve returns the session for id, creating a fresh one when id is
// unknown, expired or malformed. The boolean reports whether a new session
// was created, in which case the caller must hand its ID to the client.
func (r *Registry) Resolve(id string) (*Session, bool) {
	if s, ok := r.Lookup(id); ok {
		return s, false
	}

	sid := uuid.NewString()
	s := &Session{
		ID:        sid,
		Ledger:    ledger.New(r.stores.Open(sid)),
		CreatedAt: r.now(),
	}
	r.sessions.Set(sid, s)
	r.logger.Debug("Session created", log.FieldComponent, log.ComponentSession, log.FieldSessionID, sid)
	r.changed()
	return s, true
}

// End discards the session and its ledger.
func (r *Registry) End(id string) {
	r.sessions.Delete(id)
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	return r.sessions.Size()
}

// Valid reports whether id is well-formed enough to look up.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *Registry) release(id string, _ *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := r.stores.Release(ctx, id); err != nil {
		r.logger.Error("Failed to release session store",
			log.FieldComponent, log.ComponentSession,
			log.FieldOperation, log.OpExpire,
			log.FieldSessionID, id,
			log.FieldError, err)
	} else {
		r.logger.Debug("Session ended", log.FieldComponent, log.ComponentSession, log.FieldSessionID, id)
	}
	r.changed()
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange(r.sessions.Size())
	}
}
