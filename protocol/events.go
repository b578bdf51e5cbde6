// Package protocol defines the inbound event model: the structured
// events delivered by the assistant's plugin runtime and the raw output
// lines captured from its CLI, normalized into one tagged union the
// trigger engine consumes.
package protocol

import "time"

// EventKind discriminates between event kinds.
type EventKind int

const (
	// KindUnknown marks an unrecognized event type; handling it is a no-op.
	KindUnknown EventKind = iota
	// KindSessionIdle fires when a session finishes responding.
	KindSessionIdle
	// KindSessionStatus carries a session status transition (idle, busy, retry).
	KindSessionStatus
	// KindSessionUpdated carries session metadata: title, parent linkage.
	KindSessionUpdated
	// KindSessionError signals an abnormal session termination.
	KindSessionError
	// KindMessageUpdated fires when a complete message is stored.
	KindMessageUpdated
	// KindMessagePartUpdated fires for streaming assistant message parts.
	KindMessagePartUpdated
	// KindPermissionAsked fires when the assistant blocks on a permission prompt.
	KindPermissionAsked
	// KindToolInvoked fires when the assistant starts a tool call.
	KindToolInvoked
	// KindLine is one raw CLI output line.
	KindLine
)

// Event is the interface for all inbound events. Events that carry no
// extractable session identifier report an empty SessionID and are
// ignored by the engine.
type Event interface {
	Kind() EventKind
	SessionID() string
}

// SessionIdleEvent fires when a session finishes responding.
type SessionIdleEvent struct {
	Session   string
	Timestamp time.Time
}

func (e SessionIdleEvent) Kind() EventKind   { return KindSessionIdle }
func (e SessionIdleEvent) SessionID() string { return e.Session }

// SessionStatusEvent carries a session status transition.
type SessionStatusEvent struct {
	Session   string
	Status    string
	Message   string
	Timestamp time.Time
}

func (e SessionStatusEvent) Kind() EventKind   { return KindSessionStatus }
func (e SessionStatusEvent) SessionID() string { return e.Session }

// SessionUpdatedEvent carries session metadata updates.
type SessionUpdatedEvent struct {
	Session         string
	ParentID        string
	TitleCandidates []string
	Timestamp       time.Time
}

func (e SessionUpdatedEvent) Kind() EventKind   { return KindSessionUpdated }
func (e SessionUpdatedEvent) SessionID() string { return e.Session }

// SessionErrorEvent signals an abnormal session termination.
type SessionErrorEvent struct {
	Session   string
	ErrorName string
	Message   string
	Timestamp time.Time
}

func (e SessionErrorEvent) Kind() EventKind   { return KindSessionError }
func (e SessionErrorEvent) SessionID() string { return e.Session }

// MessageUpdatedEvent fires when a complete message is stored.
type MessageUpdatedEvent struct {
	Session   string
	MessageID string
	Role      string
	Text      string
	Timestamp time.Time
}

func (e MessageUpdatedEvent) Kind() EventKind   { return KindMessageUpdated }
func (e MessageUpdatedEvent) SessionID() string { return e.Session }

// MessagePartUpdatedEvent fires for streaming assistant message parts.
// Text holds the accumulated part text, not a delta.
type MessagePartUpdatedEvent struct {
	Session   string
	MessageID string
	Role      string
	Text      string
	Timestamp time.Time
}

func (e MessagePartUpdatedEvent) Kind() EventKind   { return KindMessagePartUpdated }
func (e MessagePartUpdatedEvent) SessionID() string { return e.Session }

// PermissionEvent fires when the assistant blocks on a permission prompt.
type PermissionEvent struct {
	Session      string
	EventType    string
	PermissionID string
	Title        string
	Detail       string
	Timestamp    time.Time
}

func (e PermissionEvent) Kind() EventKind   { return KindPermissionAsked }
func (e PermissionEvent) SessionID() string { return e.Session }

// ToolEvent fires when the assistant starts a tool call.
type ToolEvent struct {
	Session   string
	CallID    string
	Tool      string
	MessageID string
	Timestamp time.Time
}

func (e ToolEvent) Kind() EventKind   { return KindToolInvoked }
func (e ToolEvent) SessionID() string { return e.Session }

// LineEvent is one raw CLI output line. Source is "stdout" or "stderr".
type LineEvent struct {
	Session   string
	Line      string
	Source    string
	Timestamp time.Time
}

func (e LineEvent) Kind() EventKind   { return KindLine }
func (e LineEvent) SessionID() string { return e.Session }

// UnknownEvent preserves the type of an unrecognized event.
type UnknownEvent struct {
	Type      string
	Session   string
	Timestamp time.Time
}

func (e UnknownEvent) Kind() EventKind   { return KindUnknown }
func (e UnknownEvent) SessionID() string { return e.Session }
