package discord

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	routeFileVersion = 1
	routeMaxAge      = 21 * 24 * time.Hour
)

type routeEntry struct {
	ThreadID  string    `json:"threadId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type routeFile struct {
	Version int                   `json:"version"`
	Routes  map[string]routeEntry `json:"routes"`
}

// RouteStore persists session-to-thread routes across restarts so a
// restarted process keeps posting into the same threads. Every
// mutation is written through immediately; a load failure degrades to
// an empty store rather than an error.
type RouteStore struct {
	mu     sync.Mutex
	path   string
	routes map[string]routeEntry
	now    func() time.Time
	log    *slog.Logger
}

// RouteStoreOption configures a RouteStore.
type RouteStoreOption func(*RouteStore)

// WithRouteClock overrides the clock, for tests.
func WithRouteClock(now func() time.Time) RouteStoreOption {
	return func(s *RouteStore) { s.now = now }
}

// WithRouteLogger sets the logger.
func WithRouteLogger(l *slog.Logger) RouteStoreOption {
	return func(s *RouteStore) { s.log = l }
}

// OpenRouteStore loads the route file at path, pruning entries older
// than three weeks. An empty path gives an in-memory store.
func OpenRouteStore(path string, opts ...RouteStoreOption) *RouteStore {
	s := &RouteStore{
		path:   path,
		routes: make(map[string]routeEntry),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

func (s *RouteStore) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("route store unreadable; starting empty", "path", s.path, "error", err)
		}
		return
	}
	var f routeFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn("route store corrupt; starting empty", "path", s.path, "error", err)
		return
	}
	if f.Version != routeFileVersion {
		s.log.Warn("route store version mismatch; starting empty",
			"path", s.path, "version", f.Version)
		return
	}
	cutoff := s.now().Add(-routeMaxAge)
	for key, entry := range f.Routes {
		if entry.ThreadID == "" || entry.UpdatedAt.Before(cutoff) {
			continue
		}
		s.routes[key] = entry
	}
}

func routeKey(parentChannelID, identityKey string) string {
	return parentChannelID + "::" + identityKey
}

// Lookup returns the stored thread id for a parent channel and
// identity key.
func (s *RouteStore) Lookup(parentChannelID, identityKey string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.routes[routeKey(parentChannelID, identityKey)]
	return entry.ThreadID, ok
}

// Put stores a thread route and writes the file through.
func (s *RouteStore) Put(parentChannelID, identityKey, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(parentChannelID, identityKey)] = routeEntry{
		ThreadID:  threadID,
		UpdatedAt: s.now(),
	}
	s.persistLocked()
}

// Len reports the number of live routes.
func (s *RouteStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

func (s *RouteStore) persistLocked() {
	if s.path == "" {
		return
	}
	f := routeFile{Version: routeFileVersion, Routes: s.routes}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		s.log.Warn("route store encode failed", "error", err)
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Warn("route store dir create failed", "dir", dir, "error", err)
		return
	}
	tmp, err := os.CreateTemp(dir, ".routes-*")
	if err != nil {
		s.log.Warn("route store temp file failed", "error", err)
		return
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		s.log.Warn("route store write failed", "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		s.log.Warn("route store rename failed", "error", err)
	}
}
