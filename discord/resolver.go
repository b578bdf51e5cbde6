package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Target is one configured delivery destination.
type Target struct {
	Type string `yaml:"type" json:"type" jsonschema:"enum=user,enum=channel"`
	ID   string `yaml:"id" json:"id"`
}

// Destination is a resolved concrete channel. InThread is set when the
// channel is a per-session thread, which lets the composer drop the
// redundant header.
type Destination struct {
	ChannelID string
	InThread  bool
}

// SessionIdentity is the composite identity used for thread affinity.
// Title must be empty unless it is a specific (non-generic) session
// title; the resolver trusts the caller on that.
type SessionIdentity struct {
	Workspace string
	SessionID string
	Title     string
}

// ThreadAPI is the slice of the REST client the resolver needs.
type ThreadAPI interface {
	ResolveDmChannel(ctx context.Context, userID string) (string, error)
	CreateThread(ctx context.Context, parentChannelID, name, starterText string, autoArchiveMinutes int) (string, error)
}

// Resolver maps logical targets to concrete Discord channels, with
// optional per-session thread affinity for channel targets. Thread
// resolution is best-effort: any failure falls back to the parent
// channel, and permission or validation failures disable thread
// attempts for that parent for the rest of the process.
type Resolver struct {
	api    ThreadAPI
	routes *RouteStore
	log    *slog.Logger

	threadsEnabled     bool
	autoArchiveMinutes int

	mu          sync.Mutex
	dmCache     map[string]string
	threadCache map[string]string
	broken      map[string]bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSessionThreads enables per-session threads for channel targets.
func WithSessionThreads(autoArchiveMinutes int) ResolverOption {
	return func(r *Resolver) {
		r.threadsEnabled = true
		r.autoArchiveMinutes = autoArchiveMinutes
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = l }
}

// NewResolver returns a resolver over the given API and route store.
func NewResolver(api ThreadAPI, routes *RouteStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		api:         api,
		routes:      routes,
		log:         slog.Default(),
		dmCache:     make(map[string]string),
		threadCache: make(map[string]string),
		broken:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.routes == nil {
		r.routes = OpenRouteStore("")
	}
	return r
}

// ResolveChannel turns a logical target into a concrete channel id.
// forceRefresh bypasses the caches, used after a delivery failure that
// suggests a stale destination.
func (r *Resolver) ResolveChannel(ctx context.Context, target Target, id SessionIdentity, forceRefresh bool) (Destination, error) {
	switch target.Type {
	case "user":
		channelID, err := r.dmChannel(ctx, target.ID, forceRefresh)
		if err != nil {
			return Destination{}, err
		}
		return Destination{ChannelID: channelID}, nil
	case "channel":
		if !r.threadsEnabled {
			return Destination{ChannelID: target.ID}, nil
		}
		if dest, ok := r.sessionThread(ctx, target.ID, id, forceRefresh); ok {
			return dest, nil
		}
		return Destination{ChannelID: target.ID}, nil
	default:
		return Destination{}, fmt.Errorf("discord: unknown target type %q", target.Type)
	}
}

func (r *Resolver) dmChannel(ctx context.Context, userID string, forceRefresh bool) (string, error) {
	r.mu.Lock()
	if channelID, ok := r.dmCache[userID]; ok && !forceRefresh {
		r.mu.Unlock()
		return channelID, nil
	}
	r.mu.Unlock()

	channelID, err := r.api.ResolveDmChannel(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve dm for %s: %w", userID, err)
	}
	r.mu.Lock()
	r.dmCache[userID] = channelID
	r.mu.Unlock()
	return channelID, nil
}

// sessionThread finds or creates the thread for a session under a
// parent channel. The second return is false when the caller should
// use the parent channel instead.
func (r *Resolver) sessionThread(ctx context.Context, parentID string, id SessionIdentity, forceRefresh bool) (Destination, bool) {
	keys := identityKeys(id)
	if len(keys) == 0 {
		return Destination{}, false
	}

	r.mu.Lock()
	if r.broken[parentID] {
		r.mu.Unlock()
		return Destination{}, false
	}
	if !forceRefresh {
		for _, key := range keys {
			if threadID, ok := r.threadCache[routeKey(parentID, key)]; ok {
				r.mu.Unlock()
				return Destination{ChannelID: threadID, InThread: true}, true
			}
		}
	}
	r.mu.Unlock()

	if !forceRefresh {
		for _, key := range keys {
			if threadID, ok := r.routes.Lookup(parentID, key); ok {
				r.adopt(parentID, keys, threadID)
				return Destination{ChannelID: threadID, InThread: true}, true
			}
		}
	}

	name := threadName(id)
	threadID, err := r.api.CreateThread(ctx, parentID, name, "Session thread: "+name, r.autoArchiveMinutes)
	if err != nil {
		if IsPermissionError(err) || IsWrongEndpoint(err) {
			r.mu.Lock()
			r.broken[parentID] = true
			r.mu.Unlock()
			r.log.Warn("thread creation rejected; disabling threads for channel",
				"channel", parentID, "error", err)
		} else {
			r.log.Warn("thread creation failed", "channel", parentID, "error", err)
		}
		return Destination{}, false
	}
	r.adopt(parentID, keys, threadID)
	return Destination{ChannelID: threadID, InThread: true}, true
}

// adopt records a resolved thread under every identity key, in memory
// and in the persisted store.
func (r *Resolver) adopt(parentID string, keys []string, threadID string) {
	r.mu.Lock()
	for _, key := range keys {
		r.threadCache[routeKey(parentID, key)] = threadID
	}
	r.mu.Unlock()
	for _, key := range keys {
		r.routes.Put(parentID, key, threadID)
	}
}

func identityKeys(id SessionIdentity) []string {
	var keys []string
	if id.SessionID != "" {
		keys = append(keys, id.Workspace+"::sid::"+id.SessionID)
	}
	if title := strings.TrimSpace(id.Title); title != "" {
		keys = append(keys, id.Workspace+"::title::"+title)
	}
	return keys
}

func threadName(id SessionIdentity) string {
	if title := strings.TrimSpace(id.Title); title != "" {
		return clipThreadName(title)
	}
	sid := id.SessionID
	if len(sid) > 8 {
		sid = sid[:8]
	}
	return clipThreadName(strings.TrimSpace(id.Workspace + " " + sid))
}
