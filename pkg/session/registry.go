package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry maintains the live userID→connection mapping and room membership.
// At most one connection is held per user: a new registration for the same
// user silently supersedes the previous one. The registry never closes or
// notifies a superseded handle; its own keep-alive failure cleans it up.
//
// Constructed at server start and passed by reference; all methods are safe
// for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Conn
	rooms    map[string]map[string]Conn // roomID -> userID -> conn
	joined   map[string]map[string]struct{}

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]Conn),
		rooms:    make(map[string]map[string]Conn),
		joined:   make(map[string]map[string]struct{}),
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

// Register inserts or replaces the entry for userID and returns the superseded
// connection, if any. Room membership belongs to the connection, not the user,
// so a supersede clears it; the replacement starts with no rooms.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[userID]
	if prev != nil {
		r.leaveAllLocked(userID)
		r.logger.Debug("Superseding existing session", "userID", userID, "prevConnID", prev.ID().String())
	}
	r.sessions[userID] = conn
	r.logger.Debug("Session registered", "userID", userID, "connID", conn.ID().String())
	return prev
}

// Unregister removes the entry for userID only if it is still owned by connID,
// and reports whether a removal happened. A disconnect arriving late, after
// the user reconnected and the entry was superseded, must not evict the
// replacement; matching on the connection ID makes it a no-op instead.
func (r *Registry) Unregister(userID string, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if cur.ID() != connID {
		r.logger.Debug("Ignoring stale unregister", "userID", userID, "connID", connID.String())
		return false
	}
	delete(r.sessions, userID)
	r.leaveAllLocked(userID)
	r.logger.Debug("Session unregistered", "userID", userID, "connID", connID.String())
	return true
}

// Lookup resolves the live connection for userID. Absence means the user is
// currently offline, not an error.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return conn, ok
}

// ListOnline returns a snapshot of the currently registered user IDs.
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		users = append(users, id)
	}
	return users
}

// Snapshot returns a copy of the full userID→connection map, used for global
// broadcast and for draining connections on shutdown.
func (r *Registry) Snapshot() map[string]Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Conn, len(r.sessions))
	for id, conn := range r.sessions {
		out[id] = conn
	}
	return out
}

// Join adds the user's current connection to a room, creating the room if it
// doesn't exist. Joining without a live session is dropped.
func (r *Registry) Join(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.sessions[userID]
	if !ok {
		r.logger.Warn("failed to join room: no live session", "userID", userID, "roomID", roomID)
		return
	}

	room, exists := r.rooms[roomID]
	if !exists {
		room = make(map[string]Conn)
		r.rooms[roomID] = room
	}
	room[userID] = conn

	memberships, exists := r.joined[userID]
	if !exists {
		memberships = make(map[string]struct{})
		r.joined[userID] = memberships
	}
	memberships[roomID] = struct{}{}

	r.logger.Debug("User joined room", "userID", userID, "roomID", roomID)
}

// Leave removes the user from a room. Leaving a room the user is not in is a
// no-op.
func (r *Registry) Leave(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		r.logger.Warn("failed to leave room: room doesn't exist", "userID", userID, "roomID", roomID)
		return
	}

	delete(room, userID)
	if memberships, ok := r.joined[userID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(r.joined, userID)
		}
	}

	// For memory hygiene, remove the room if it's now empty.
	if len(room) == 0 {
		delete(r.rooms, roomID)
		r.logger.Debug("Removed empty room", "roomID", roomID)
	}

	r.logger.Debug("User left room", "userID", userID, "roomID", roomID)
}

// RoomMembers returns a snapshot of the connections joined to a room, keyed by
// userID. An unknown room yields an empty map.
func (r *Registry) RoomMembers(roomID string) map[string]Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	out := make(map[string]Conn, len(room))
	for id, conn := range room {
		out[id] = conn
	}
	return out
}

func (r *Registry) leaveAllLocked(userID string) {
	for roomID := range r.joined[userID] {
		if room, ok := r.rooms[roomID]; ok {
			delete(room, userID)
			if len(room) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.joined, userID)
}
