package main

import (
	"sync"
	"time"
)

// hubEvent is pushed to live sessions. Exactly one field group is set.
type hubEvent struct {
	// open conversation changed for this user ("" when closed)
	setOpen     bool
	counterpart string

	// presence change of any user
	presence bool
	uid      string
	online   bool
	lastSeen time.Time
}

const sessionBuffer = 32

// Session is one live server stream of a signed-in user.
type Session struct {
	id     int64
	uid    string
	events chan hubEvent
	done   chan struct{}
	once   sync.Once
	reason error
}

// Events delivers hub events addressed to this session.
func (s *Session) Events() <-chan hubEvent { return s.events }

// Done is closed when the hub ends the session (sign-out or a full buffer).
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the session was ended; nil while it is live.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.reason
	default:
		return nil
	}
}

func (s *Session) end(reason error) {
	s.once.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

// ConnectionHub tracks every live session per user. It tells callers when a
// user's first session starts and last session ends, which drives presence.
type ConnectionHub struct {
	mu       sync.RWMutex
	sessions map[string]map[int64]*Session
	nextID   int64
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{sessions: make(map[string]map[int64]*Session)}
}

// Join registers a session for uid. first is true when uid had none.
func (h *ConnectionHub) Join(uid string) (s *Session, first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.sessions[uid]
	if !ok {
		conns = make(map[int64]*Session)
		h.sessions[uid] = conns
	}

	h.nextID++
	s = &Session{
		id:     h.nextID,
		uid:    uid,
		events: make(chan hubEvent, sessionBuffer),
		done:   make(chan struct{}),
	}
	conns[s.id] = s
	return s, len(conns) == 1
}

// Leave removes a session. last is true when it was uid's final session.
// Leaving twice is harmless and reports false the second time.
func (h *ConnectionHub) Leave(s *Session) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.sessions[s.uid]
	if !ok {
		return false
	}
	if _, ok := conns[s.id]; !ok {
		return false
	}
	delete(conns, s.id)
	if len(conns) == 0 {
		delete(h.sessions, s.uid)
		return true
	}
	return false
}

// Online reports whether uid has a live session.
func (h *ConnectionHub) Online(uid string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[uid]) > 0
}

// SetOpen tells every session of uid which conversation is open.
func (h *ConnectionHub) SetOpen(uid, counterpart string) {
	h.deliver(h.snapshot(uid), hubEvent{setOpen: true, counterpart: counterpart})
}

// Presence tells every session of every user about uid's presence.
func (h *ConnectionHub) Presence(uid string, online bool, lastSeen time.Time) {
	h.deliver(h.snapshot(""), hubEvent{presence: true, uid: uid, online: online, lastSeen: lastSeen})
}

// SignOut ends every session of uid and returns how many were ended.
func (h *ConnectionHub) SignOut(uid string) int {
	targets := h.snapshot(uid)
	for _, s := range targets {
		s.end(errSignedOut)
	}
	return len(targets)
}

// snapshot copies the sessions of uid, or of everyone when uid is "".
func (h *ConnectionHub) snapshot(uid string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Session
	for u, conns := range h.sessions {
		if uid != "" && u != uid {
			continue
		}
		for _, s := range conns {
			out = append(out, s)
		}
	}
	return out
}

// deliver never blocks. A session whose buffer is full has stopped keeping
// up; it is ended so its client reconnects with fresh state. The stream
// owning it still calls Leave, which keeps presence accounting in one place.
func (h *ConnectionHub) deliver(targets []*Session, ev hubEvent) {
	for _, s := range targets {
		select {
		case <-s.done:
		case s.events <- ev:
		default:
			s.end(errSlowConsumer)
		}
	}
}
