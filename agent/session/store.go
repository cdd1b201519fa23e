package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

const defaultMaxHistory = 10

type Config struct {
	MaxHistory int `split_words:"true" default:"10"`
}

// SnapshotStore persists session snapshots outside the process.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal session snapshot: %w", err)
	}
	return payload, nil
}

func decodeSnapshot(raw []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session snapshot: %w", err)
	}
	return &snap, nil
}

func snapshotKey(prefix, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + sessionID, nil
}

type Option func(*Store)

func WithMaxHistory(n int) Option {
	return func(s *Store) {
		s.maxHistory = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithConfig(cfg Config) Option {
	return WithMaxHistory(cfg.MaxHistory)
}

type entry struct {
	handle *Handle
	// turn holds one token while a turn for this session is in flight.
	turn chan struct{}
}

// Store owns every session of the process. Sessions are created lazily and
// live until the store is dropped; expiry is the caller's concern.
type Store struct {
	sessions   *xsync.MapOf[string, *entry]
	maxHistory int
	now        func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:   xsync.NewMapOf[string, *entry](),
		maxHistory: defaultMaxHistory,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) entry(sessionID string) *entry {
	e, _ := s.sessions.LoadOrCompute(sessionID, func() *entry {
		return &entry{
			handle: newHandle(sessionID, s.maxHistory, s.now),
			turn:   make(chan struct{}, 1),
		}
	})
	return e
}

// ForSession returns the handle for sessionID, creating it on first use.
func (s *Store) ForSession(sessionID string) *Handle {
	return s.entry(sessionID).handle
}

// Lock serializes turns on one session. It blocks until the session is free
// or ctx is done; sessions never contend with each other.
func (s *Store) Lock(ctx context.Context, sessionID string) (func(), error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	e := s.entry(sessionID)
	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for session %s: %w", sessionID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-e.turn })
	}, nil
}

// Sessions lists known session ids in lexical order.
func (s *Store) Sessions() []string {
	ids := make([]string, 0, s.sessions.Size())
	s.sessions.Range(func(id string, _ *entry) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// Persist saves a snapshot of every session to backend. Each session is
// locked while its snapshot is taken so no turn is captured half-way.
func (s *Store) Persist(ctx context.Context, backend SnapshotStore) error {
	var errs []error
	for _, id := range s.Sessions() {
		unlock, err := s.Lock(ctx, id)
		if err != nil {
			return err
		}
		snap := s.ForSession(id).Snapshot()
		unlock()

		if err := backend.Save(ctx, &snap); err != nil {
			errs = append(errs, fmt.Errorf("save session %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Int("sessions", len(s.Sessions())).Msg("session snapshots persisted")
	return nil
}

// Warm loads the given sessions from backend. Missing snapshots are skipped.
func (s *Store) Warm(ctx context.Context, backend SnapshotStore, sessionIDs ...string) (int, error) {
	loaded := 0
	for _, id := range sessionIDs {
		snap, err := backend.Load(ctx, id)
		if errors.Is(err, ErrSnapshotNotFound) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("load session %s: %w", id, err)
		}
		if err := snap.Validate(); err != nil {
			return loaded, fmt.Errorf("invalid snapshot for session %s: %w", id, err)
		}

		unlock, err := s.Lock(ctx, id)
		if err != nil {
			return loaded, err
		}
		s.ForSession(id).Restore(*snap)
		unlock()
		loaded++
	}
	return loaded, nil
}
