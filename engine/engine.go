// Package engine turns inbound session events into Discord
// notifications. It owns the session store, applies the trigger rules,
// and pushes all delivery work through a per-session task queue so
// notifications and progress updates for one session never race.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Superl3/OpenCode-Discord-Notifier/classify"
	"github.com/Superl3/OpenCode-Discord-Notifier/config"
	"github.com/Superl3/OpenCode-Discord-Notifier/discord"
	"github.com/Superl3/OpenCode-Discord-Notifier/protocol"
	"github.com/Superl3/OpenCode-Discord-Notifier/session"
	"github.com/Superl3/OpenCode-Discord-Notifier/textnorm"
)

// MessageSender posts and edits delivery messages.
type MessageSender interface {
	Post(ctx context.Context, channelID, content string, allowMention bool) (string, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
}

// ChannelResolver maps a logical target to a concrete channel for a
// given session identity.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, target discord.Target, identity discord.SessionIdentity, forceRefresh bool) (discord.Destination, error)
}

// tailMaxLines bounds the per-session raw output ring.
const tailMaxLines = 40

// sessionRuntime holds engine-side per-session scratch that the shared
// session.State does not carry: the CLI line debounce, the raw output
// tail, and the desired progress status. Guarded by Engine.mu.
type sessionRuntime struct {
	lineTimer *time.Timer
	lineKind  classify.LineKind
	tail      []string

	status        string
	statusDetail  string
	statusPreview string
	statusStart   time.Time
	// lastStatus remembers the last progress line pushed per target so
	// identical updates are skipped.
	lastStatus map[string]string
}

// Engine consumes one event at a time and decides whether anything
// deserves a notification. A nil or disabled Engine swallows events.
type Engine struct {
	cfg        *config.Config
	classifier *classify.Classifier
	store      *session.Store
	queue      *taskQueue
	sender     MessageSender
	resolver   ChannelResolver
	now        func() time.Time
	log        *slog.Logger
	workspace  string
	disabled   bool

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

// Option configures an Engine.
type Option func(*Engine)

// WithSender overrides the Discord message sender.
func WithSender(s MessageSender) Option { return func(e *Engine) { e.sender = s } }

// WithResolver overrides the channel resolver.
func WithResolver(r ChannelResolver) Option { return func(e *Engine) { e.resolver = r } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option { return func(e *Engine) { e.log = log } }

// WithWorkspace sets the workspace label used in headers and thread
// identity.
func WithWorkspace(ws string) Option { return func(e *Engine) { e.workspace = ws } }

// New builds an Engine from the given config. A config that is not
// usable (placeholder token, no targets, invalid classifier rules)
// yields a disabled engine that ignores every event; the condition is
// logged once here and never treated as fatal.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    session.NewStore(),
		now:      time.Now,
		log:      slog.Default(),
		runtimes: make(map[string]*sessionRuntime),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.queue = newTaskQueue(e.log)

	if cfg == nil {
		e.disabled = true
		return e
	}
	classifier, err := classify.New(cfg.Classify)
	if err != nil {
		e.log.Error("classifier rules invalid; notifications disabled", "error", err)
		e.disabled = true
		return e
	}
	e.classifier = classifier
	if !cfg.Usable() {
		e.log.Info("notifications disabled: config is incomplete (placeholder token or no targets)")
		e.disabled = true
		return e
	}

	if e.sender == nil || e.resolver == nil {
		client := discord.NewClient(cfg.Discord.BotToken, discord.WithClientLogger(e.log))
		if e.sender == nil {
			e.sender = client
		}
		if e.resolver == nil {
			routesPath := cfg.RoutesPath
			if routesPath == "" {
				routesPath = config.DefaultRoutesPath()
			}
			routes := discord.OpenRouteStore(routesPath, discord.WithRouteLogger(e.log))
			ropts := []discord.ResolverOption{discord.WithResolverLogger(e.log)}
			if cfg.Discord.SessionThreadsEnabled {
				ropts = append(ropts, discord.WithSessionThreads(cfg.Discord.SessionThreadAutoArchiveMinutes))
			}
			e.resolver = discord.NewResolver(client, routes, ropts...)
		}
	}
	return e
}

// Disabled reports whether the engine was built in the inert mode.
func (e *Engine) Disabled() bool { return e == nil || e.disabled }

// Close stops pending line timers and waits for queued deliveries to
// drain.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	for _, rt := range e.runtimes {
		if rt.lineTimer != nil {
			rt.lineTimer.Stop()
		}
	}
	e.mu.Unlock()
	e.queue.Wait()
}

// HandleEvent consumes one inbound event. The caller feeds events
// sequentially; the engine updates session state synchronously and
// queues any delivery work, so this returns quickly.
func (e *Engine) HandleEvent(ctx context.Context, ev protocol.Event) {
	if e == nil || e.disabled || ev == nil {
		return
	}
	sid := ev.SessionID()
	if sid == "" {
		return
	}
	st := e.store.GetOrCreate(sid)

	switch ev := ev.(type) {
	case protocol.SessionUpdatedEvent:
		e.handleSessionUpdated(st, ev)
	case protocol.MessageUpdatedEvent:
		e.handleMessage(st, ev.MessageID, ev.Role, ev.Text)
	case protocol.MessagePartUpdatedEvent:
		e.handleMessage(st, ev.MessageID, ev.Role, ev.Text)
	case protocol.ToolEvent:
		e.handleTool(st, ev)
	case protocol.PermissionEvent:
		e.handlePermission(st, ev)
	case protocol.SessionStatusEvent:
		e.handleStatus(st, ev)
	case protocol.SessionIdleEvent:
		if e.cfg.Trigger.NotifyOnSessionIdle {
			e.requestNotify(st, "input_required")
		}
	case protocol.SessionErrorEvent:
		e.handleSessionError(st, ev)
	case protocol.LineEvent:
		e.handleLine(st, ev)
	}
}

func (e *Engine) handleSessionUpdated(st *session.State, ev protocol.SessionUpdatedEvent) {
	if ev.ParentID != "" {
		st.MarkChild()
	}
	title := session.ResolveTitle(ev.TitleCandidates)
	if title == "" {
		return
	}
	if session.LooksLikeSubagentTitle(title) {
		st.MarkChild()
	}
	st.ApplyTitle(title)
}

// handleMessage adopts assistant output as the notification candidate.
// Streaming parts usually omit the role, so anything not explicitly
// from the user counts as assistant output.
func (e *Engine) handleMessage(st *session.State, messageID, role, text string) {
	if role == "user" {
		e.startRequest(st, text)
		return
	}
	normalized := textnorm.Normalize(text)
	if messageID == "" || normalized == "" {
		return
	}
	if e.classifier.IsIntermediateAnalysis(normalized) {
		st.MuteMessage(messageID)
		return
	}
	if st.IsMuted(messageID) {
		return
	}
	now := e.now()
	st.WithLock(func(s *session.State) {
		if _, delegated := s.DelegationMessageIDs[messageID]; delegated {
			return
		}
		s.LastAssistantMessageID = messageID
		s.LastAssistantText = normalized
		s.LastAssistantUpdatedAt = now
		if s.ResponseStartedAt.IsZero() {
			s.ResponseStartedAt = now
		}
		s.WaitingForInputReady = messageID != s.LastNotifiedMessageID
	})
}

func (e *Engine) handleTool(st *session.State, ev protocol.ToolEvent) {
	if !e.classifier.IsDelegationTool(ev.Tool) {
		return
	}
	st.WithLock(func(s *session.State) {
		if ev.CallID != "" {
			s.SubtaskByCallID[ev.CallID] = ev.Tool
		}
		if ev.MessageID != "" {
			s.DelegationMessageIDs[ev.MessageID] = struct{}{}
			if s.LastAssistantMessageID == ev.MessageID {
				s.WaitingForInputReady = false
			}
		}
	})
	e.setStatus(st, "in_progress", ev.Tool)
}

func (e *Engine) handlePermission(st *session.State, ev protocol.PermissionEvent) {
	// A reply means the user already unblocked the session.
	if strings.HasSuffix(ev.EventType, ".replied") {
		st.WithLock(func(s *session.State) { s.PendingInterrupt = nil })
		return
	}
	kind, ok := e.classifier.ClassifyInterrupt(ev.EventType, "", "")
	if !ok {
		return
	}
	detail := strings.TrimSpace(ev.Title)
	if detail == "" {
		detail = textnorm.Normalize(ev.Detail)
	}
	st.WithLock(func(s *session.State) {
		s.PendingInterrupt = &session.Notice{Kind: kind, EventType: ev.EventType, Detail: detail}
		s.WaitingForInputReady = true
	})
	e.setStatus(st, "waiting_user", detail)
	e.requestNotify(st, string(kind))
}

func (e *Engine) handleStatus(st *session.State, ev protocol.SessionStatusEvent) {
	status := strings.ToLower(strings.TrimSpace(ev.Status))
	switch status {
	case "idle", "done", "completed":
		if e.cfg.Trigger.NotifyOnStatusIdle {
			e.requestNotify(st, "input_required")
		}
	case "retry":
		if kind, ok := e.classifier.ClassifyInterrupt("", status, ev.Message); ok {
			detail := textnorm.Normalize(ev.Message)
			st.WithLock(func(s *session.State) {
				s.PendingInterrupt = &session.Notice{Kind: kind, EventType: "session.status:retry", Detail: detail}
				s.WaitingForInputReady = true
			})
			e.setStatus(st, "waiting_user", detail)
			e.requestNotify(st, string(kind))
			return
		}
		// Transient retries re-arm the response timer like any other
		// busy transition.
		e.markBusy(st)
	case "busy", "working", "running", "responding":
		e.markBusy(st)
	}
}

func (e *Engine) markBusy(st *session.State) {
	now := e.now()
	st.WithLock(func(s *session.State) {
		s.ResponseStartedAt = now
		s.PendingInterrupt = nil
		s.PendingTermination = nil
	})
}

func (e *Engine) handleSessionError(st *session.State, ev protocol.SessionErrorEvent) {
	kind, ok := e.classifier.ClassifyTermination(strings.TrimSpace(ev.ErrorName + " " + ev.Message))
	if !ok {
		kind = classify.NoticeFailed
	}
	detail := textnorm.Normalize(ev.Message)
	if detail == "" {
		detail = ev.ErrorName
	}
	st.WithLock(func(s *session.State) {
		s.PendingTermination = &session.Notice{Kind: kind, EventType: "session.error", Detail: detail}
		s.WaitingForInputReady = true
	})
	e.requestNotify(st, string(kind))
}

// handleLine feeds one CLI output line through the tail ring and the
// line classifier. Matches arm (or re-arm) the debounce timer so a
// burst of trigger lines collapses into a single notification.
func (e *Engine) handleLine(st *session.State, ev protocol.LineEvent) {
	line := textnorm.Normalize(ev.Line)
	if line == "" {
		return
	}
	rt := e.runtime(st.SessionID)

	e.mu.Lock()
	rt.tail = append(rt.tail, line)
	if len(rt.tail) > tailMaxLines {
		rt.tail = rt.tail[len(rt.tail)-tailMaxLines:]
	}
	e.mu.Unlock()

	if ev.Source == "stderr" {
		if kind, ok := e.classifier.ClassifyTermination(line); ok {
			st.WithLock(func(s *session.State) {
				s.PendingTermination = &session.Notice{Kind: kind, EventType: "line:stderr", Detail: line}
				s.WaitingForInputReady = true
			})
			e.requestNotify(st, string(kind))
			return
		}
	}

	kind := e.classifier.ClassifyLine(line)
	if kind == classify.LineNone {
		return
	}
	sid := st.SessionID
	e.mu.Lock()
	rt.lineKind = kind
	if rt.lineTimer != nil {
		rt.lineTimer.Stop()
	}
	rt.lineTimer = time.AfterFunc(e.cfg.Trigger.ReadyWindow(), func() { e.fireLineTrigger(sid) })
	e.mu.Unlock()
}

// fireLineTrigger runs when the line debounce window closes. It
// synthesizes a message id for the coalesced tail so the usual
// at-most-once-per-id rule applies to CLI triggers too.
func (e *Engine) fireLineTrigger(sessionID string) {
	e.mu.Lock()
	rt, ok := e.runtimes[sessionID]
	if !ok {
		e.mu.Unlock()
		return
	}
	rt.lineTimer = nil
	kind := rt.lineKind
	rt.lineKind = classify.LineNone
	tail := strings.Join(rt.tail, "\n")
	e.mu.Unlock()

	if kind == classify.LineNone {
		return
	}
	now := e.now()
	st := e.store.GetOrCreate(sessionID)
	st.WithLock(func(s *session.State) {
		s.LastAssistantMessageID = "line_" + uuid.NewString()
		s.LastAssistantText = tail
		s.LastAssistantUpdatedAt = now
		if s.ResponseStartedAt.IsZero() {
			s.ResponseStartedAt = now
		}
		s.WaitingForInputReady = true
	})
	trigger := "build_complete"
	if kind == classify.LineAwaitingInput {
		trigger = "input_required"
	}
	e.requestNotify(st, trigger)
}

// requestNotify queues a notification attempt. Guards run when the
// task executes, against the freshest session state, so a stale queued
// attempt naturally collapses into a no-op.
func (e *Engine) requestNotify(st *session.State, trigger string) {
	sid := st.SessionID
	e.queue.Enqueue(sid, func(ctx context.Context) {
		e.runNotify(ctx, sid, trigger)
	})
}

func (e *Engine) runtime(sessionID string) *sessionRuntime {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.runtimes[sessionID]
	if !ok {
		rt = &sessionRuntime{lastStatus: make(map[string]string)}
		e.runtimes[sessionID] = rt
	}
	return rt
}

// identity builds the thread-affinity identity for a session. Generic
// placeholder titles are withheld so they never become identity keys.
func (e *Engine) identity(st *session.State) discord.SessionIdentity {
	title := st.Title()
	if session.IsGenericTitle(title) {
		title = ""
	}
	return discord.SessionIdentity{
		Workspace: e.workspace,
		SessionID: st.SessionID,
		Title:     title,
	}
}

func targetKey(t discord.Target) string { return t.Type + ":" + t.ID }
