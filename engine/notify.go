package engine

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/Superl3/OpenCode-Discord-Notifier/classify"
	"github.com/Superl3/OpenCode-Discord-Notifier/compose"
	"github.com/Superl3/OpenCode-Discord-Notifier/session"
)

// rawTailLines bounds the verbatim tail appended below a notification.
const rawTailLines = 10

// sendPlan is the snapshot carried from guard evaluation to delivery
// and commit. Evaluation happens under the session lock; delivery does
// network calls and must not.
type sendPlan struct {
	trigger   string
	notice    *session.Notice
	messageID string
	text      string
	title     string
	dedupKey  string
	elapsed   time.Duration
}

// runNotify is the queued notification attempt: evaluate guards under
// the session lock, deliver outside it, then commit bookkeeping.
// The enabled/usable guard never reaches this point because a disabled
// engine drops events in HandleEvent.
func (e *Engine) runNotify(ctx context.Context, sessionID, trigger string) {
	st := e.store.GetOrCreate(sessionID)
	now := e.now()

	var plan *sendPlan
	finalizeOnly := false
	st.WithLock(func(s *session.State) {
		plan, finalizeOnly = e.evaluate(s, trigger, now)
	})
	if finalizeOnly {
		e.finalizeQuietly(st)
		return
	}
	if plan == nil {
		return
	}

	delivered := e.deliver(ctx, st, plan)
	e.commit(st, plan, now, delivered)
}

// evaluate runs the guard sequence against the live state. It returns
// a plan when a notification should be attempted, or finalizeOnly when
// an open request should be closed without sending anything.
// Suppression never consumes pending notices; a cooldown-suppressed
// termination gets another chance on the next trigger.
func (e *Engine) evaluate(s *session.State, trigger string, now time.Time) (plan *sendPlan, finalizeOnly bool) {
	// Sub-agent sessions only surface interrupts; their routine chatter
	// belongs to the parent.
	if s.IsChildSession && s.PendingInterrupt == nil {
		return nil, false
	}

	notice := s.PendingInterrupt
	if notice == nil {
		notice = s.PendingTermination
	}

	if !s.WaitingForInputReady && notice == nil {
		return nil, s.CurrentRequestID != "" && isFinalTrigger(trigger)
	}

	// Interrupts bypass the cooldown; everything else waits it out.
	if s.PendingInterrupt == nil && !s.LastNotifiedAt.IsZero() &&
		now.Sub(s.LastNotifiedAt) < e.cfg.Trigger.Cooldown() {
		return nil, false
	}

	if notice == nil {
		id := s.LastAssistantMessageID
		if id == "" {
			if e.cfg.Trigger.RequireAssistantMessage {
				return nil, false
			}
		} else {
			if _, muted := s.MutedMessageIDs[id]; muted {
				return nil, false
			}
			if _, delegated := s.DelegationMessageIDs[id]; delegated {
				return nil, false
			}
			if id == s.LastNotifiedMessageID {
				return nil, false
			}
			if e.classifier.IsIntermediateAnalysis(s.LastAssistantText) {
				return nil, false
			}
		}
	}

	dedupKey := planDedupKey(notice, s.LastAssistantText)
	if dedupKey == s.LastNotifiedTextKey && !s.LastNotifiedAt.IsZero() &&
		now.Sub(s.LastNotifiedAt) < e.cfg.Trigger.DedupeWindow() {
		return nil, false
	}

	plan = &sendPlan{
		trigger:   trigger,
		messageID: s.LastAssistantMessageID,
		text:      s.LastAssistantText,
		title:     s.SessionTitle,
		dedupKey:  dedupKey,
	}
	if notice != nil {
		n := *notice
		plan.notice = &n
		plan.trigger = string(n.Kind)
		switch {
		case plan.text == "":
			plan.text = n.Detail
		case n.Detail != "" && n.Detail != plan.text:
			plan.text = n.Detail + "\n\n" + plan.text
		}
	}
	if !s.ResponseStartedAt.IsZero() {
		plan.elapsed = now.Sub(s.ResponseStartedAt)
	}
	return plan, false
}

// deliver composes and posts the notification to every configured
// target. Failures are logged per target and never retried here; one
// success is enough for the dedup bookkeeping to advance.
func (e *Engine) deliver(ctx context.Context, st *session.State, plan *sendPlan) bool {
	identity := e.identity(st)
	env := e.cfg.Environment
	msg := e.cfg.Message

	var rawTail string
	if msg.IncludeRawInCodeBlock {
		rawTail = e.rawTail(st.SessionID, plan.text)
	}

	delivered := false
	for _, target := range e.cfg.Discord.Targets {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Discord.Timeout())
		dest, err := e.resolver.ResolveChannel(callCtx, target, identity, false)
		if err != nil {
			cancel()
			e.log.Warn("target resolution failed", "target", targetKey(target), "error", err)
			continue
		}
		content := compose.Build(compose.Input{
			Title:             msg.Title,
			EnvTag:            env.EnvName(),
			EnvLabel:          env.EnvName(),
			EnvNotRegistered:  env.RequiresSetup,
			Workspace:         e.workspace,
			SessionTitle:      plan.title,
			SessionID:         st.SessionID,
			OmitHeader:        dest.InThread,
			TriggerKind:       plan.trigger,
			Mode:              compose.Mode(msg.Mode),
			IncludeMetadata:   msg.IncludeMetadata,
			Timestamp:         e.now(),
			Elapsed:           plan.elapsed,
			Body:              plan.text,
			RawTail:           rawTail,
			MentionUserID:     e.cfg.Discord.MentionUserID,
			MaxChars:          msg.MaxChars,
			SummaryMaxBullets: msg.SummaryMaxBullets,
		})
		_, err = e.sender.Post(callCtx, dest.ChannelID, content, e.cfg.Discord.MentionUserID != "")
		cancel()
		if err != nil {
			e.log.Warn("notification delivery failed", "target", targetKey(target), "error", err)
			continue
		}
		delivered = true
	}
	return delivered
}

// commit applies post-send bookkeeping. Dedup fields only advance on a
// confirmed delivery; the response timer resets either way so elapsed
// reporting cannot stick across attempts. Only the notice the plan
// actually carried is cleared: one that arrived while the delivery was
// in flight stays pending, and its own queued attempt decides the
// request's terminal state.
func (e *Engine) commit(st *session.State, plan *sendPlan, now time.Time, delivered bool) {
	terminal := ""
	closeRequest := false
	var preview string
	var startedAt time.Time
	st.WithLock(func(s *session.State) {
		s.ResponseStartedAt = time.Time{}
		if !delivered {
			return
		}
		s.LastNotifiedAt = now
		s.LastNotifiedTextKey = plan.dedupKey
		if plan.messageID != "" {
			s.LastNotifiedMessageID = plan.messageID
		}
		if s.LastAssistantMessageID == plan.messageID {
			s.WaitingForInputReady = false
		}
		s.ClearNotice(plan.notice)
		if s.PendingInterrupt != nil || s.PendingTermination != nil {
			return
		}

		terminal = terminalStatus(plan.notice)
		if terminal != "" && s.CurrentRequestID != "" {
			closeRequest = true
			preview = s.CurrentRequestPreview
			startedAt = s.CurrentRequestStartedAt
			clearRequest(s)
		}
	})
	if closeRequest {
		e.applyStatus(st.SessionID, terminal, "", preview, startedAt)
	}
}

// finalizeQuietly closes an open request when an idle or termination
// trigger found nothing to say. The progress message still moves to
// its terminal state so it cannot stay on "in progress" forever.
func (e *Engine) finalizeQuietly(st *session.State) {
	open := false
	var preview string
	var startedAt time.Time
	st.WithLock(func(s *session.State) {
		s.ResponseStartedAt = time.Time{}
		if s.CurrentRequestID != "" {
			open = true
			preview = s.CurrentRequestPreview
			startedAt = s.CurrentRequestStartedAt
			clearRequest(s)
		}
	})
	if open {
		e.applyStatus(st.SessionID, "completed", "", preview, startedAt)
	}
}

func clearRequest(s *session.State) {
	s.CurrentRequestID = ""
	s.CurrentRequestPreview = ""
	s.CurrentRequestStartedAt = time.Time{}
	s.SubtaskByCallID = make(map[string]string)
}

// terminalStatus maps the consumed notice onto the request's final
// progress status. Interrupt notices keep the request open.
func terminalStatus(notice *session.Notice) string {
	if notice == nil {
		return "completed"
	}
	switch notice.Kind {
	case classify.NoticeCancelled, classify.NoticeInterrupted:
		return "cancelled"
	case classify.NoticeFailed:
		return "failed"
	}
	return ""
}

func isFinalTrigger(trigger string) bool {
	switch trigger {
	case "input_required", "build_complete",
		string(classify.NoticeCancelled), string(classify.NoticeInterrupted), string(classify.NoticeFailed):
		return true
	}
	return false
}

// planDedupKey derives the duplicate-suppression key: notices dedupe
// on kind plus detail, plain notifications on a hash of the body.
func planDedupKey(notice *session.Notice, text string) string {
	if notice != nil {
		return string(notice.Kind) + "|" + notice.Detail
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	return "text:" + strconv.FormatUint(h.Sum64(), 16)
}

// rawTail returns the last raw output lines for the verbatim code
// block. CLI sessions use the line ring; plugin sessions fall back to
// the tail of the notification body itself.
func (e *Engine) rawTail(sessionID, body string) string {
	e.mu.Lock()
	var tail []string
	if rt, ok := e.runtimes[sessionID]; ok && len(rt.tail) > 0 {
		tail = append(tail, rt.tail...)
	}
	e.mu.Unlock()

	if len(tail) == 0 {
		tail = strings.Split(body, "\n")
	}
	if len(tail) > rawTailLines {
		tail = tail[len(tail)-rawTailLines:]
	}
	return strings.Join(tail, "\n")
}
