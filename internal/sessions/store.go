// Package sessions owns the design collection, the active-design pointer and
// each design's version history, and is the only writer of their persisted record.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/studio/internal/models"
	"github.com/lehigh-university-libraries/studio/internal/storage"
)

// StateKey is the storage key holding the session-collection record
const StateKey = "sessionState"

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionNotFound = errors.New("session not found")
)

// PersistenceError reports a failed read or write of the persisted record.
// It is logged and never returned from a Store command.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session state %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// record is the persisted layout. CurrentImage and History mirror the active session.
type record struct {
	Sessions         []models.DesignSession `json:"sessions"`
	CurrentSessionID *string                `json:"currentSessionId"`
	CurrentImage     *string                `json:"currentImage"`
	History          []models.HistoryEntry  `json:"history"`
}

// View is the active design as the presentation layer sees it
type View struct {
	SessionID   string                `json:"currentSessionId,omitempty"`
	LatestImage *string               `json:"currentImage"`
	History     []models.HistoryEntry `json:"history"`
}

// Store is the versioned history of every design
type Store struct {
	kv       storage.Store
	sessions []models.DesignSession
	activeID string
	mu       sync.Mutex

	now   func() time.Time
	newID func() string
}

// Option customizes a Store
type Option func(*Store)

// WithClock overrides the time source used for createdAt and entry timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session id allocation
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Open loads the persisted record from kv. An unreadable record is logged and
// replaced by an empty collection.
func Open(ctx context.Context, kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		slog.Warn("Falling back to empty session state", "err", err)
		s.sessions = nil
		s.activeID = ""
	}
	return s
}

func (s *Store) load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, StateKey)
	if err != nil {
		return &PersistenceError{Op: "read", Err: err}
	}
	if !ok || raw == "" {
		return nil
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return &PersistenceError{Op: "decode", Err: err}
	}

	s.sessions = make([]models.DesignSession, 0, len(rec.Sessions))
	for _, sess := range rec.Sessions {
		if sess.History == nil {
			sess.History = []models.HistoryEntry{}
		}
		if n := len(sess.History); n > 0 {
			img := sess.History[n-1].ImageURL
			sess.LatestImage = &img
		} else {
			sess.LatestImage = nil
		}
		s.sessions = append(s.sessions, sess)
	}

	if rec.CurrentSessionID != nil && s.indexOf(*rec.CurrentSessionID) >= 0 {
		s.activeID = *rec.CurrentSessionID
	}

	slog.Debug("Loaded session state", "sessions", len(s.sessions), "active", s.activeID)
	return nil
}

// persist writes the whole record. Callers hold s.mu. The write outlives a
// cancelled caller so storage matches memory once a mutation returns.
func (s *Store) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	rec := record{
		Sessions: s.sessions,
		History:  []models.HistoryEntry{},
	}
	if rec.Sessions == nil {
		rec.Sessions = []models.DesignSession{}
	}
	if i := s.indexOf(s.activeID); i >= 0 {
		id := s.activeID
		rec.CurrentSessionID = &id
		rec.CurrentImage = s.sessions[i].LatestImage
		rec.History = s.sessions[i].History
	}

	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Unable to persist session state", "err", &PersistenceError{Op: "encode", Err: err})
		return
	}
	if err := s.kv.Set(ctx, StateKey, string(data)); err != nil {
		slog.Error("Unable to persist session state", "err", &PersistenceError{Op: "write", Err: err})
	}
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// List returns every design, most recently created first
func (s *Store) List() []models.DesignSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.DesignSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Get returns a copy of the design with the given id
func (s *Store) Get(id string) (models.DesignSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.DesignSession{}, false
	}
	return s.sessions[i].Clone(), true
}

// Active returns the active design, if any
func (s *Store) Active() (models.DesignSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(s.activeID)
	if i < 0 {
		return models.DesignSession{}, false
	}
	return s.sessions[i].Clone(), true
}

// View returns the active pointer, latest image and history
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{History: []models.HistoryEntry{}}
	if i := s.indexOf(s.activeID); i >= 0 {
		active := s.sessions[i].Clone()
		v.SessionID = active.ID
		v.LatestImage = active.LatestImage
		v.History = active.History
	}
	return v
}

// Create allocates a new active design at the front of the collection.
// It is a no-op returning false while the active design has no history.
func (s *Store) Create(ctx context.Context) (models.DesignSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(s.activeID); i >= 0 && len(s.sessions[i].History) == 0 {
		slog.Debug("Refusing to create a design while the active one is empty", "active", s.activeID)
		return models.DesignSession{}, false
	}

	sess := models.DesignSession{
		ID:        s.newID(),
		Name:      fmt.Sprintf("Design %d", len(s.sessions)+1),
		CreatedAt: s.now(),
		History:   []models.HistoryEntry{},
	}
	s.sessions = append([]models.DesignSession{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persist(ctx)

	slog.Info("Design created", "session_id", sess.ID, "name", sess.Name)
	return sess.Clone(), true
}

// Select makes the given design active. Unknown ids are ignored.
func (s *Store) Select(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return false
	}
	s.activeID = id
	s.persist(ctx)
	return true
}

// Delete removes the design. Deleting the active design leaves none active.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
	if s.activeID == id {
		s.activeID = ""
	}
	s.persist(ctx)

	slog.Info("Design deleted", "session_id", id)
	return true
}

// AppendHistory appends to the active design
func (s *Store) AppendHistory(ctx context.Context, entry models.HistoryEntry) (models.DesignSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(s.activeID) < 0 {
		return models.DesignSession{}, ErrNoActiveSession
	}
	return s.appendLocked(ctx, s.activeID, entry)
}

// AppendHistoryTo appends to a specific design whether or not it is active,
// so a result lands on the design it was requested for.
func (s *Store) AppendHistoryTo(ctx context.Context, id string, entry models.HistoryEntry) (models.DesignSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(ctx, id, entry)
}

func (s *Store) appendLocked(ctx context.Context, id string, entry models.HistoryEntry) (models.DesignSession, error) {
	i := s.indexOf(id)
	if i < 0 {
		return models.DesignSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	sess := &s.sessions[i]
	sess.History = append(models.CloneHistory(sess.History), entry)
	img := entry.ImageURL
	sess.LatestImage = &img
	s.persist(ctx)

	slog.Info("History entry appended", "session_id", id, "versions", len(sess.History), "operation", entry.Operation)
	return sess.Clone(), nil
}
