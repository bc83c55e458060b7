// Package session keeps the single live principal/credential pair of the
// console and persists it across restarts.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devmarvs/schoolgate/auth"
)

// DefaultKey is the storage key holding the persisted session.
const DefaultKey = "school_auth"

var (
	// ErrPrincipalRequired indicates Establish was called without a principal.
	ErrPrincipalRequired = errors.New("session principal is required")
	// ErrCredentialRequired indicates Establish was called without a credential.
	ErrCredentialRequired = errors.New("session credential is required")
)

// EventType names a session lifecycle notification.
type EventType string

const (
	EventEstablished EventType = "session-established"
	EventCleared     EventType = "session-cleared"
)

// Event is delivered to subscribers after every session mutation.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	Reason   string
}

// Snapshot is an immutable view of the session. The zero value is anonymous.
type Snapshot struct {
	principal  *auth.Principal
	credential string
}

// Anonymous reports whether no principal is logged in.
func (s Snapshot) Anonymous() bool {
	return s.credential == ""
}

// Principal returns a copy of the logged-in principal, or nil.
func (s Snapshot) Principal() *auth.Principal {
	return s.principal.Clone()
}

// Credential returns the bearer credential, or "".
func (s Snapshot) Credential() string {
	return s.credential
}

// Fingerprint identifies the credential without revealing it, or "" when
// anonymous.
func (s Snapshot) Fingerprint() string {
	if s.credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.credential))
	return hex.EncodeToString(sum[:8])
}

type record struct {
	Principal  *auth.Principal `json:"principal"`
	Credential string          `json:"credential"`
}

// Options configures a Store.
type Options struct {
	Key    string
	Logger *slog.Logger
	Now    func() time.Time
}

// Store holds the current session. Reads are lock-free snapshot loads; the
// mutex only serializes writers.
type Store struct {
	storage Storage
	key     string
	logger  *slog.Logger
	now     func() time.Time
	// afterFunc schedules the expiry timer and returns its stop function.
	afterFunc func(time.Duration, func()) func() bool

	current atomic.Pointer[Snapshot]

	mu         sync.Mutex
	generation uint64
	// persistMu orders storage writes; a write whose generation has been
	// superseded is dropped.
	persistMu  sync.Mutex
	stopExpiry func() bool
	closed     bool

	listenersMu sync.RWMutex
	listeners   map[int]func(Event)
	nextID      int
}

// NewStore creates an anonymous store backed by storage. Call Restore to
// pick up a persisted session.
func NewStore(storage Storage, options Options) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	key := options.Key
	if key == "" {
		key = DefaultKey
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		storage: storage,
		key:     key,
		logger:  logger,
		now:     now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		listeners: map[int]func(Event){},
	}
	s.current.Store(&Snapshot{})
	return s
}

// Current returns the live snapshot.
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

// Restore loads the persisted session. A missing, malformed or expired
// record leaves the store anonymous; it never fails.
func (s *Store) Restore(ctx context.Context) Snapshot {
	data, err := s.storage.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session restore failed", slog.String("error", err.Error()))
		}
		return s.Current()
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Principal == nil || rec.Credential == "" {
		s.logger.Warn("discarding malformed persisted session")
		s.erase(ctx, s.currentGeneration())
		return s.Current()
	}
	if claims, err := auth.ParseCredential(rec.Credential); err == nil && claims.Expired(s.now()) {
		s.logger.Info("discarding expired persisted session", slog.Int64("user_id", rec.Principal.ID))
		s.erase(ctx, s.currentGeneration())
		return s.Current()
	}

	snap, _, ok := s.swap(rec.Principal, rec.Credential)
	if !ok {
		return s.Current()
	}
	s.logger.Debug("session restored", slog.Int64("user_id", rec.Principal.ID), slog.String("role", string(rec.Principal.Role)))
	s.notify(Event{Type: EventEstablished, Snapshot: snap, Reason: "restored"})
	return snap
}

// Establish replaces the session and persists it. The new session is live
// even when persisting fails; the persistence error is returned.
func (s *Store) Establish(ctx context.Context, principal *auth.Principal, credential string) error {
	if principal == nil {
		return ErrPrincipalRequired
	}
	if credential == "" {
		return ErrCredentialRequired
	}

	snap, generation, ok := s.swap(principal, credential)
	if !ok {
		return errors.New("session store is closed")
	}

	var persistErr error
	payload, err := json.Marshal(record{Principal: snap.principal, Credential: credential})
	if err == nil {
		err = s.persist(generation, func() error {
			return s.storage.Save(ctx, s.key, payload)
		})
	}
	if err != nil {
		persistErr = fmt.Errorf("persist session: %w", err)
		s.logger.Warn("session persist failed", slog.String("error", err.Error()))
	}

	s.logger.Info("session established", slog.Int64("user_id", principal.ID), slog.String("role", string(principal.Role)))
	s.notify(Event{Type: EventEstablished, Snapshot: snap, Reason: "login"})
	return persistErr
}

// Invalidate clears the session and its persisted copy. Invalidating an
// anonymous session still notifies subscribers.
func (s *Store) Invalidate(ctx context.Context, reason string) {
	s.mu.Lock()
	generation := s.clearLocked()
	s.mu.Unlock()

	s.erase(ctx, generation)
	s.logger.Info("session cleared", slog.String("reason", reason))
	s.notify(Event{Type: EventCleared, Reason: reason})
}

// InvalidateIfCurrent clears the session only while credential is still the
// live one, so a late rejection of an old credential cannot end a newer session.
func (s *Store) InvalidateIfCurrent(ctx context.Context, credential, reason string) bool {
	s.mu.Lock()
	if credential == "" || s.current.Load().credential != credential {
		s.mu.Unlock()
		return false
	}
	generation := s.clearLocked()
	s.mu.Unlock()

	s.erase(ctx, generation)
	s.logger.Info("session cleared", slog.String("reason", reason))
	s.notify(Event{Type: EventCleared, Reason: reason})
	return true
}

// Subscribe registers fn for session events and returns its unsubscribe function.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Close stops the expiry timer. The current snapshot stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.stopExpiry != nil {
		s.stopExpiry()
		s.stopExpiry = nil
	}
}

func (s *Store) swap(principal *auth.Principal, credential string) (Snapshot, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, 0, false
	}

	snap := &Snapshot{principal: principal.Clone(), credential: credential}
	s.generation++
	if s.stopExpiry != nil {
		s.stopExpiry()
		s.stopExpiry = nil
	}
	s.current.Store(snap)
	generation := s.generation
	s.scheduleExpiryLocked(credential)
	return *snap, generation, true
}

func (s *Store) clearLocked() uint64 {
	s.generation++
	if s.stopExpiry != nil {
		s.stopExpiry()
		s.stopExpiry = nil
	}
	s.current.Store(&Snapshot{})
	return s.generation
}

func (s *Store) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// persist runs write unless a later establish or clear has already taken
// over; writes are serialized so storage always ends with the newest state.
func (s *Store) persist(generation uint64, write func() error) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.currentGeneration() != generation {
		s.logger.Debug("skipping superseded session write", slog.Uint64("generation", generation))
		return nil
	}
	return write()
}

func (s *Store) scheduleExpiryLocked(credential string) {
	claims, err := auth.ParseCredential(credential)
	if err != nil || claims.ExpiresAt.IsZero() {
		return
	}
	generation := s.generation
	wait := claims.ExpiresAt.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	s.stopExpiry = s.afterFunc(wait, func() {
		s.mu.Lock()
		if s.closed || s.generation != generation {
			s.mu.Unlock()
			return
		}
		cleared := s.clearLocked()
		s.mu.Unlock()

		s.erase(context.Background(), cleared)
		s.logger.Info("session cleared", slog.String("reason", "credential expired"))
		s.notify(Event{Type: EventCleared, Reason: "credential expired"})
	})
}

func (s *Store) erase(ctx context.Context, generation uint64) {
	err := s.persist(generation, func() error {
		return s.storage.Delete(ctx, s.key)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("session erase failed", slog.String("error", err.Error()))
	}
}

func (s *Store) notify(event Event) {
	s.listenersMu.RLock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}
