package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// Registry keeps one Session per viewer and drops sessions idle longer than the TTL.
type Registry struct {
	collab Collaborator
	cfg    SessionConfig
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry whose sessions share collab.
func NewRegistry(collab Collaborator, cfg SessionConfig, ttl time.Duration) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		collab:   collab,
		cfg:      cfg,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Session returns the viewer's session, creating it on first use. The stored viewer is
// refreshed so a renewed token is used for later calls.
func (r *Registry) Session(viewer models.Viewer) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	key := sessionKey(viewer)
	if s, ok := r.sessions[key]; ok {
		s.touch(viewer)
		return s
	}
	s := NewSession(viewer, r.collab, r.cfg)
	r.sessions[key] = s
	r.cfg.Logger.Debug("calendar session created", zap.String("viewer_id", viewer.ID))
	return s
}

// Drop discards the viewer's session.
func (r *Registry) Drop(viewer models.Viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey(viewer))
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweepLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.cfg.Now().Add(-r.ttl)
	for key, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, key)
		}
	}
}

func sessionKey(viewer models.Viewer) string {
	return string(viewer.Role) + ":" + viewer.ID
}

func sortClassrooms(rooms []models.Classroom) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})
}
