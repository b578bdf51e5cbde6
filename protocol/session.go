package protocol

// WithFallbackSession fills in sid on an event that arrived without a
// session identifier. Events that already carry one pass through
// unchanged.
func WithFallbackSession(ev Event, sid string) Event {
	if ev == nil || sid == "" || ev.SessionID() != "" {
		return ev
	}
	switch ev := ev.(type) {
	case SessionIdleEvent:
		ev.Session = sid
		return ev
	case SessionStatusEvent:
		ev.Session = sid
		return ev
	case SessionUpdatedEvent:
		ev.Session = sid
		return ev
	case SessionErrorEvent:
		ev.Session = sid
		return ev
	case MessageUpdatedEvent:
		ev.Session = sid
		return ev
	case MessagePartUpdatedEvent:
		ev.Session = sid
		return ev
	case PermissionEvent:
		ev.Session = sid
		return ev
	case ToolEvent:
		ev.Session = sid
		return ev
	case LineEvent:
		ev.Session = sid
		return ev
	case UnknownEvent:
		ev.Session = sid
		return ev
	}
	return ev
}
