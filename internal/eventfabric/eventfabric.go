// Package eventfabric is the per-duel session registry and message bus
// that the session gateway and AI opponent publish through. Its locking
// shape, a mutex guarding connection state with sends serialized per
// session, keeps one writer at a time per connection.
package eventfabric

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType is the `type` discriminator of the wire envelope.
type MessageType string

const (
	TypeCodeUpdate   MessageType = "code_update"
	TypeTypingStatus MessageType = "typing_status"
	TypeTestCode     MessageType = "test_code"
	TypeTestResult   MessageType = "test_result"
	TypeDuelStarted  MessageType = "duel_started"
	TypeDuelComplete MessageType = "duel_complete"
	TypeUserStatus   MessageType = "user_status"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
	TypeDuelState    MessageType = "duel_state"
)

// Envelope is the JSON wire format for every message exchanged over a
// duel's streaming sessions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Close codes.
const (
	CloseAuthFailed            = 4001
	CloseNotParticipant        = 4003
	CloseDuelNotFound          = 4004
	CloseReplaced              = 4000
	CloseConcurrentConnAttempt = 4429
	CloseInternalError         = 1011
)

// Sender abstracts the underlying transport (the real implementation is
// *websocket.Conn, wrapped by internal/ws) so this package stays
// transport-agnostic and unit-testable.
type Sender interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// Session is one attached client connection for a duel.
type Session struct {
	DuelRef       uuid.UUID
	ParticipantID uuid.UUID
	Conn          Sender
	lastHealthAt  time.Time
	mu            sync.Mutex // serializes writes on this session
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastHealthAt = time.Now()
	s.mu.Unlock()
}

// send serializes the envelope once and writes it, guarded so a single
// session never has two concurrent writers.
func (s *Session) send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("eventfabric: marshal envelope: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.Send(data)
}

// duelRegistry holds every attached session for one duel, guarded by its
// own RWMutex: broadcasts take a read lock, attach/detach take a write
// lock.
type duelRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session // keyed by participant id

	debounceMu  sync.Mutex
	lastCodeAt  map[uuid.UUID]time.Time
}

func newDuelRegistry() *duelRegistry {
	return &duelRegistry{
		sessions:   make(map[uuid.UUID]*Session),
		lastCodeAt: make(map[uuid.UUID]time.Time),
	}
}

// Fabric is the process-wide event fabric: one registry per active duel.
type Fabric struct {
	mu               sync.Mutex
	registries       map[uuid.UUID]*duelRegistry
	codeUpdateDebounce time.Duration
}

// New constructs a Fabric. debounce is CODE_UPDATE_DEBOUNCE_MS from config.
func New(debounce time.Duration) *Fabric {
	return &Fabric{registries: make(map[uuid.UUID]*duelRegistry), codeUpdateDebounce: debounce}
}

func (f *Fabric) registryFor(duelRef uuid.UUID) *duelRegistry {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registries[duelRef]
	if !ok {
		reg = newDuelRegistry()
		f.registries[duelRef] = reg
	}
	return reg
}

// Attach registers session for (duel, participant), evicting any
// pre-existing session for the same participant first.
func (f *Fabric) Attach(duelRef, participant uuid.UUID, conn Sender) *Session {
	reg := f.registryFor(duelRef)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.sessions[participant]; ok {
		_ = existing.Conn.Close(CloseReplaced, "replaced by new connection")
	}

	session := &Session{DuelRef: duelRef, ParticipantID: participant, Conn: conn, lastHealthAt: time.Now()}
	reg.sessions[participant] = session
	return session
}

// Detach removes session from its duel's registry and notifies the
// remaining sessions that the participant disconnected.
func (f *Fabric) Detach(session *Session) {
	reg := f.registryFor(session.DuelRef)

	reg.mu.Lock()
	current, ok := reg.sessions[session.ParticipantID]
	if ok && current == session {
		delete(reg.sessions, session.ParticipantID)
	}
	reg.mu.Unlock()

	if ok && current == session {
		f.broadcastLocked(reg, UserStatusMessage(session.ParticipantID, "disconnected"), uuid.Nil)
	}
}

// Broadcast fans Envelope out to every session attached to duelRef,
// except exclude (pass uuid.Nil to exclude none). Dead sessions are
// detached synchronously.
func (f *Fabric) Broadcast(duelRef uuid.UUID, env Envelope, exclude uuid.UUID) {
	reg := f.registryFor(duelRef)
	f.broadcastLocked(reg, env, exclude)
}

func (f *Fabric) broadcastLocked(reg *duelRegistry, env Envelope, exclude uuid.UUID) {
	reg.mu.RLock()
	targets := make([]*Session, 0, len(reg.sessions))
	for participant, s := range reg.sessions {
		if participant == exclude {
			continue
		}
		targets = append(targets, s)
	}
	reg.mu.RUnlock()

	var dead []*Session
	for _, s := range targets {
		if err := s.send(env); err != nil {
			dead = append(dead, s)
		}
	}

	for _, s := range dead {
		f.Detach(s)
	}
}

// SendToParticipant delivers env only to participant's session, if attached.
func (f *Fabric) SendToParticipant(duelRef, participant uuid.UUID, env Envelope) error {
	reg := f.registryFor(duelRef)

	reg.mu.RLock()
	s, ok := reg.sessions[participant]
	reg.mu.RUnlock()

	if !ok {
		return fmt.Errorf("eventfabric: no attached session for participant %s", participant)
	}
	if err := s.send(env); err != nil {
		f.Detach(s)
		return err
	}
	return nil
}

// SendCodeUpdate delivers a code_update, debounced per (duel,user) at
// the configured interval to suppress keystroke-rate spam.
func (f *Fabric) SendCodeUpdate(duelRef, author uuid.UUID, env Envelope) {
	reg := f.registryFor(duelRef)

	reg.debounceMu.Lock()
	last, seen := reg.lastCodeAt[author]
	now := time.Now()
	if seen && now.Sub(last) < f.codeUpdateDebounce {
		reg.debounceMu.Unlock()
		return
	}
	reg.lastCodeAt[author] = now
	reg.debounceMu.Unlock()

	f.broadcastLocked(reg, env, author)
}

// Close closes every session of duelRef after a short grace period (so
// in-flight completion payloads land) and drops the registry entry.
func (f *Fabric) Close(duelRef uuid.UUID, code int, reason string, grace time.Duration) {
	time.Sleep(grace)

	f.mu.Lock()
	reg, ok := f.registries[duelRef]
	delete(f.registries, duelRef)
	f.mu.Unlock()
	if !ok {
		return
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, s := range reg.sessions {
		_ = s.Conn.Close(code, reason)
	}
}

// Touch refreshes a session's last-health timestamp, used by the
// gateway's ping/pong handler to detect stale connections.
func (s *Session) Touch() { s.touch() }
