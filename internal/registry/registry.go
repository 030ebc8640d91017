// Package registry maps users to their live connection handles.
package registry

import "sync"

// Conn is a live connection handle. ID must be unique per physical connection.
type Conn interface {
	ID() string
	Send(data []byte) error
}

type Registry struct {
	mu     sync.RWMutex
	byUser map[string][]Conn
	owner  map[string]string // conn id -> user id
}

func New() *Registry {
	return &Registry{
		byUser: make(map[string][]Conn),
		owner:  make(map[string]string),
	}
}

// Register adds conn to userID's set. Registering the same handle again is a
// no-op; registering it under another user moves it there.
func (r *Registry) Register(userID string, conn Conn) {
	if userID == "" || conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[conn.ID()]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(prev, conn.ID())
	}
	r.byUser[userID] = append(r.byUser[userID], conn)
	r.owner[conn.ID()] = userID
}

// Unregister removes conn from userID and drops the entry once empty.
// Unknown users or handles are ignored.
func (r *Registry) Unregister(userID string, conn Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owner[conn.ID()] != userID {
		return
	}
	r.removeLocked(userID, conn.ID())
}

// must hold r.mu
func (r *Registry) removeLocked(userID, connID string) {
	delete(r.owner, connID)
	conns := r.byUser[userID]
	for i, c := range conns {
		if c.ID() == connID {
			conns = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.byUser, userID)
		return
	}
	r.byUser[userID] = conns
}

// ConnectionsOf returns a copy of userID's handles in registration order.
func (r *Registry) ConnectionsOf(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Conn, len(conns))
	copy(out, conns)
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) OnlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// OnlineUsers returns a snapshot of every online user id.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		users = append(users, id)
	}
	return users
}
