// Package session tracks per-session notification state: the latest
// assistant candidate, pending notices, dedup/cooldown bookkeeping, and
// progress-message identifiers. A Store owns all states; nothing here is
// global.
package session

import (
	"sync"
	"time"

	"github.com/Superl3/OpenCode-Discord-Notifier/classify"
)

// Notice describes why a session needs attention. Transient, never
// persisted.
type Notice struct {
	Kind      classify.NoticeKind
	EventType string
	Detail    string
}

// State is the mutable per-session record. It has an internal mutex:
// use the accessor methods for single fields and WithLock for multi-field
// transactions. The Store's lock protects the session map, each State's
// lock protects its own fields.
type State struct {
	mu sync.Mutex

	// SessionID is the external identifier, the primary key.
	SessionID string

	// IsChildSession marks nested sub-agent sessions. Sticky: once true,
	// never reverts.
	IsChildSession bool

	// SessionTitle is the last applied title under the monotonic
	// improvement rule (generic placeholders never overwrite a specific
	// title).
	SessionTitle string

	// Latest non-suppressed assistant output.
	LastAssistantMessageID string
	LastAssistantText      string

	// MutedMessageIDs holds ids classified as intermediate/analysis
	// noise; they never become notification candidates.
	MutedMessageIDs map[string]struct{}

	// DelegationMessageIDs holds ids produced by delegated sub-task
	// calls; excluded from readiness.
	DelegationMessageIDs map[string]struct{}

	// WaitingForInputReady is true iff the last applied assistant text is
	// a new, un-notified, non-delegated message.
	WaitingForInputReady bool

	// At most one of each; interrupts take priority at decision time.
	PendingTermination *Notice
	PendingInterrupt   *Notice

	// Dedup/cooldown bookkeeping. LastNotifiedMessageID only moves
	// forward; LastNotifiedTextKey is only meaningful within the dedupe
	// window.
	LastNotifiedMessageID string
	LastNotifiedTextKey   string
	LastNotifiedAt        time.Time

	// Elapsed-time reporting; reset after each notification.
	ResponseStartedAt      time.Time
	LastAssistantUpdatedAt time.Time

	// Request tracking: one request spans from a user message to the
	// terminal notification.
	CurrentRequestID        string
	CurrentRequestPreview   string
	CurrentRequestStartedAt time.Time
	SubtaskByCallID         map[string]string

	// StatusMessageByTarget maps a delivery target key to the last posted
	// progress-message id, enabling edit-in-place updates.
	StatusMessageByTarget map[string]string
}

func newState(sessionID string) *State {
	return &State{
		SessionID:             sessionID,
		MutedMessageIDs:       make(map[string]struct{}),
		DelegationMessageIDs:  make(map[string]struct{}),
		SubtaskByCallID:       make(map[string]string),
		StatusMessageByTarget: make(map[string]string),
	}
}

// WithLock runs fn while holding the state lock, for operations that
// touch multiple fields atomically.
func (s *State) WithLock(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// MarkChild flags the session as a sub-agent session. Sticky.
func (s *State) MarkChild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsChildSession = true
}

// IsChild reports whether the session is a sub-agent session.
func (s *State) IsChild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsChildSession
}

// ApplyTitle applies next under the monotonic improvement rule and
// reports whether the title changed.
func (s *State) ApplyTitle(next string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ShouldApplyTitle(s.SessionTitle, next) {
		return false
	}
	s.SessionTitle = normalizeTitle(next)
	return true
}

// Title returns the current session title.
func (s *State) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SessionTitle
}

// MuteMessage records a message id as noise. If it was the active
// candidate, the candidate is cleared so noise cannot become notifiable.
func (s *State) MuteMessage(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MutedMessageIDs[id] = struct{}{}
	if s.LastAssistantMessageID == id {
		s.LastAssistantMessageID = ""
		s.LastAssistantText = ""
		s.WaitingForInputReady = false
	}
}

// IsMuted reports whether the message id was classified as noise.
func (s *State) IsMuted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.MutedMessageIDs[id]
	return ok
}

// MarkDelegated records a message id as belonging to a delegated
// sub-task.
func (s *State) MarkDelegated(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DelegationMessageIDs[id] = struct{}{}
}

// IsDelegated reports whether the message id belongs to a delegated
// sub-task.
func (s *State) IsDelegated(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.DelegationMessageIDs[id]
	return ok
}

// StatusMessageID returns the posted progress-message id for a target
// key, if any.
func (s *State) StatusMessageID(targetKey string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.StatusMessageByTarget[targetKey]
	return id, ok
}

// SetStatusMessageID stores the progress-message id for a target key.
func (s *State) SetStatusMessageID(targetKey, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusMessageByTarget[targetKey] = messageID
}

// ClearNotice drops the pending notice matching the consumed one, if it
// is still there. A notice that arrived or was replaced while a
// delivery was in flight stays pending for its own attempt. Interrupt
// and termination kinds never overlap, so kind plus detail identifies
// the slot. Callers must already hold the state lock (call it from
// within WithLock).
func (s *State) ClearNotice(consumed *Notice) {
	if consumed == nil {
		return
	}
	if n := s.PendingInterrupt; n != nil && n.Kind == consumed.Kind && n.Detail == consumed.Detail {
		s.PendingInterrupt = nil
	}
	if n := s.PendingTermination; n != nil && n.Kind == consumed.Kind && n.Detail == consumed.Detail {
		s.PendingTermination = nil
	}
}
