package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rawEvent is the wire shape of a plugin event.
type rawEvent struct {
	Type        string          `json:"type"`
	Properties  json.RawMessage `json:"properties"`
	TimestampMs int64           `json:"timestampMs"`
}

// ParseEvent parses one NDJSON plugin event. Unrecognized types return an
// UnknownEvent rather than an error so the stream keeps flowing; only
// malformed JSON or a missing type field fail.
func ParseEvent(data []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("parse event: missing type field")
	}

	// Some emitters flatten properties into the event object itself.
	props := []byte(raw.Properties)
	if len(props) == 0 {
		props = data
	}

	ts := time.Time{}
	if raw.TimestampMs > 0 {
		ts = time.UnixMilli(raw.TimestampMs)
	}

	sid, _ := ExtractSessionID(props)

	switch {
	case raw.Type == "session.idle":
		return SessionIdleEvent{Session: sid, Timestamp: ts}, nil

	case raw.Type == "session.status":
		return SessionStatusEvent{
			Session:   sid,
			Status:    stringAt(props, statusPaths),
			Message:   stringAt(props, statusMessagePaths),
			Timestamp: ts,
		}, nil

	case raw.Type == "session.updated" || raw.Type == "session.created":
		return SessionUpdatedEvent{
			Session:         sid,
			ParentID:        stringAt(props, parentIDPaths),
			TitleCandidates: ExtractTitleCandidates(props),
			Timestamp:       ts,
		}, nil

	case raw.Type == "session.error":
		return SessionErrorEvent{
			Session:   sid,
			ErrorName: stringAt(props, errorNamePaths),
			Message:   stringAt(props, errorMessagePaths),
			Timestamp: ts,
		}, nil

	case raw.Type == "message.updated":
		return MessageUpdatedEvent{
			Session:   sid,
			MessageID: stringAt(props, messageIDPaths),
			Role:      stringAt(props, rolePaths),
			Text:      stringAt(props, messageTextPaths),
			Timestamp: ts,
		}, nil

	case raw.Type == "message.part.updated":
		return MessagePartUpdatedEvent{
			Session:   sid,
			MessageID: stringAt(props, messageIDPaths),
			Role:      stringAt(props, rolePaths),
			Text:      stringAt(props, partTextPaths),
			Timestamp: ts,
		}, nil

	case strings.HasPrefix(raw.Type, "permission."):
		return PermissionEvent{
			Session:      sid,
			EventType:    raw.Type,
			PermissionID: stringAt(props, permissionIDPaths),
			Title:        stringAt(props, permissionTitlePaths),
			Detail:       stringAt(props, permissionDetailPaths),
			Timestamp:    ts,
		}, nil

	case raw.Type == "tool.execute.before" || raw.Type == "tool.invoked":
		return ToolEvent{
			Session:   sid,
			CallID:    stringAt(props, callIDPaths),
			Tool:      stringAt(props, toolNamePaths),
			MessageID: stringAt(props, messageIDPaths),
			Timestamp: ts,
		}, nil
	}

	return UnknownEvent{Type: raw.Type, Session: sid, Timestamp: ts}, nil
}
