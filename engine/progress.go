package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Superl3/OpenCode-Discord-Notifier/compose"
	"github.com/Superl3/OpenCode-Discord-Notifier/session"
	"github.com/Superl3/OpenCode-Discord-Notifier/textnorm"
)

// requestPreviewChars bounds the user-prompt excerpt shown in progress
// lines.
const requestPreviewChars = 80

var statusGlyphs = map[string]string{
	"started":      "▶",
	"in_progress":  "⏳",
	"waiting_user": "✋",
	"completed":    "✅",
	"failed":       "❌",
	"cancelled":    "⛔",
}

// startRequest opens a new tracked request when the user sends a
// message. Any previous request is implicitly superseded.
func (e *Engine) startRequest(st *session.State, text string) {
	now := e.now()
	preview := textnorm.Truncate(textnorm.Normalize(text), requestPreviewChars)
	st.WithLock(func(s *session.State) {
		s.CurrentRequestID = uuid.NewString()
		s.CurrentRequestPreview = preview
		s.CurrentRequestStartedAt = now
		s.SubtaskByCallID = make(map[string]string)
		s.ResponseStartedAt = now
		s.WaitingForInputReady = false
	})
	e.setStatus(st, "started", "")
}

// setStatus records the desired progress status and queues a sync,
// snapshotting the open request's preview and start time alongside it
// so terminal states keep both after the request fields are cleared.
func (e *Engine) setStatus(st *session.State, status, detail string) {
	var preview string
	var startedAt time.Time
	st.WithLock(func(s *session.State) {
		preview = s.CurrentRequestPreview
		startedAt = s.CurrentRequestStartedAt
	})
	e.applyStatus(st.SessionID, status, detail, preview, startedAt)
}

// applyStatus writes the desired-status cell and queues a sync. Because
// syncStatus reads the cell at run time, a backlog of queued syncs
// collapses to the latest state.
func (e *Engine) applyStatus(sid, status, detail, preview string, startedAt time.Time) {
	rt := e.runtime(sid)
	e.mu.Lock()
	rt.status = status
	rt.statusDetail = detail
	rt.statusPreview = preview
	rt.statusStart = startedAt
	e.mu.Unlock()
	e.queue.Enqueue(sid, func(ctx context.Context) { e.syncStatus(ctx, sid) })
}

// syncStatus pushes the latest desired progress status to every
// target, editing the previous status message in place when one
// exists. Terminal statuses are edit-only: a request that never
// produced a progress message gets no posthumous one.
func (e *Engine) syncStatus(ctx context.Context, sessionID string) {
	e.mu.Lock()
	rt, ok := e.runtimes[sessionID]
	if !ok {
		e.mu.Unlock()
		return
	}
	status := rt.status
	detail := rt.statusDetail
	preview := rt.statusPreview
	startedAt := rt.statusStart
	e.mu.Unlock()
	if status == "" {
		return
	}

	st := e.store.GetOrCreate(sessionID)
	// Sub-agent progress stays quiet for the same reason their
	// notifications do.
	if st.IsChild() {
		return
	}

	line := statusLine(status, detail, preview, e.elapsedSince(startedAt))
	terminal := status == "completed" || status == "failed" || status == "cancelled"
	identity := e.identity(st)

	for _, target := range e.cfg.Discord.Targets {
		key := targetKey(target)
		e.mu.Lock()
		seen := rt.lastStatus[key]
		e.mu.Unlock()
		if seen == line {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Discord.Timeout())
		dest, err := e.resolver.ResolveChannel(callCtx, target, identity, false)
		if err != nil {
			cancel()
			e.log.Warn("status target resolution failed", "target", key, "error", err)
			continue
		}
		if msgID, ok := st.StatusMessageID(key); ok {
			err := e.sender.Edit(callCtx, dest.ChannelID, msgID, line)
			if err == nil {
				cancel()
				e.rememberStatus(rt, key, line)
				continue
			}
			e.log.Warn("status edit failed, reposting", "target", key, "error", err)
		} else if terminal {
			cancel()
			continue
		}
		msgID, err := e.sender.Post(callCtx, dest.ChannelID, line, false)
		cancel()
		if err != nil {
			e.log.Warn("status post failed", "target", key, "error", err)
			continue
		}
		st.SetStatusMessageID(key, msgID)
		e.rememberStatus(rt, key, line)
	}
}

func (e *Engine) rememberStatus(rt *sessionRuntime, key, line string) {
	e.mu.Lock()
	rt.lastStatus[key] = line
	e.mu.Unlock()
}

func (e *Engine) elapsedSince(from time.Time) time.Duration {
	if from.IsZero() {
		return 0
	}
	d := e.now().Sub(from)
	if d < 0 {
		return 0
	}
	return d
}

// statusLine renders one progress message: glyph, status, the request
// excerpt, detail, and elapsed time.
func statusLine(status, detail, preview string, elapsed time.Duration) string {
	glyph, ok := statusGlyphs[status]
	if !ok {
		glyph = "•"
	}
	parts := []string{glyph + " " + status}
	if preview != "" {
		parts = append(parts, preview)
	}
	if detail != "" {
		parts = append(parts, detail)
	}
	line := strings.Join(parts, " · ")
	if elapsed > 0 {
		line += " (" + elapsed.Round(time.Second).String() + ")"
	}
	return textnorm.Truncate(line, compose.ContentCeiling)
}
