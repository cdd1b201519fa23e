package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrNilSnapshot    = errors.New("session snapshot is nil")
	ErrHistoryOrder   = errors.New("session history is not time-ordered")
)

// Handle is the per-session memory facade. Every method is atomic for its session.
type Handle struct {
	id         string
	maxHistory int
	now        func() time.Time

	mu      sync.RWMutex
	history []contractx.Message
	params  map[string]string
	waiting string
}

func newHandle(id string, maxHistory int, now func() time.Time) *Handle {
	return &Handle{
		id:         id,
		maxHistory: maxHistory,
		now:        now,
		params:     make(map[string]string, 8),
	}
}

func (h *Handle) ID() string {
	return h.id
}

// History returns a copy of the conversation in chronological order.
func (h *Handle) History() []contractx.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneHistory(h.history)
}

// Append stamps msg when it has no timestamp, appends it and drops the oldest
// entries beyond the configured maximum. A timestamp older than the last entry
// is raised to it so history stays time-ordered.
func (h *Handle) Append(msg contractx.Message) {
	msg.Metadata = cloneStrings(msg.Metadata)

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now().UTC()
	}
	if n := len(h.history); n > 0 && msg.Timestamp.Before(h.history[n-1].Timestamp) {
		msg.Timestamp = h.history[n-1].Timestamp
	}
	h.history = append(h.history, msg)
	h.prune()
}

func (h *Handle) prune() {
	if h.maxHistory <= 0 || len(h.history) <= h.maxHistory {
		return
	}
	kept := make([]contractx.Message, h.maxHistory)
	copy(kept, h.history[len(h.history)-h.maxHistory:])
	h.history = kept
}

func (h *Handle) Params() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneStrings(h.params)
}

// Merge overwrites existing keys and adds new ones. The waiting flag is
// cleared when the merge carries a non-empty value for it.
func (h *Handle) Merge(params map[string]string) {
	if len(params) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range params {
		h.params[k] = v
	}
	if h.waiting != "" && params[h.waiting] != "" {
		h.waiting = ""
	}
}

// Waiting returns the parameter the agent asked for, or "" when none.
func (h *Handle) Waiting() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.waiting
}

func (h *Handle) SetWaiting(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waiting = name
}

// Clear drops history, parameters and the waiting flag.
func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
	h.params = make(map[string]string, 8)
	h.waiting = ""
}

/* ------------------------------ Snapshots ------------------------------- */

// Snapshot is a point-in-time copy of one session, used for turn rollback and
// for persistence backends.
type Snapshot struct {
	SessionID string              `json:"session_id"`
	History   []contractx.Message `json:"history,omitempty"`
	Params    map[string]string   `json:"params,omitempty"`
	Waiting   string              `json:"waiting,omitempty"`
	TakenAt   time.Time           `json:"taken_at"`
}

func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrNilSnapshot
	}
	if s.SessionID == "" {
		return ErrInvalidSession
	}
	for i := 1; i < len(s.History); i++ {
		if s.History[i].Timestamp.Before(s.History[i-1].Timestamp) {
			return fmt.Errorf("%w: entry %d", ErrHistoryOrder, i)
		}
	}
	return nil
}

func (h *Handle) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		SessionID: h.id,
		History:   cloneHistory(h.history),
		Params:    cloneStrings(h.params),
		Waiting:   h.waiting,
		TakenAt:   h.now().UTC(),
	}
}

// Restore replaces the session state with snap. The history bound still applies.
func (h *Handle) Restore(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = cloneHistory(snap.History)
	h.params = cloneStrings(snap.Params)
	if h.params == nil {
		h.params = make(map[string]string, 8)
	}
	h.waiting = snap.Waiting
	h.prune()
}

func cloneHistory(in []contractx.Message) []contractx.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]contractx.Message, len(in))
	for i, m := range in {
		m.Metadata = cloneStrings(m.Metadata)
		out[i] = m
	}
	return out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
