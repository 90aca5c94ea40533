// Package recording tracks which rooms currently have an active capture
// session. A room holds at most one [Session] at a time, whether it is a
// full recording or a microphone test.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxrecap/internal/capture"
	"github.com/MrWong99/voxrecap/pkg/audio"
)

var (
	// ErrAlreadyRecording is returned by [Registry.Begin] when the room
	// already holds a session.
	ErrAlreadyRecording = errors.New("recording: room already has an active session")

	// ErrNoActiveSession is returned by [Registry.End] when the room holds
	// no session.
	ErrNoActiveSession = errors.New("recording: no active session in room")

	// ErrModeMismatch is returned by [Registry.EndMode] when the room's
	// session has a different mode.
	ErrModeMismatch = errors.New("recording: session has a different mode")
)

// Mode distinguishes a full recording from a microphone test.
type Mode int

const (
	// ModeRecording captures until explicitly stopped.
	ModeRecording Mode = iota

	// ModeMicTest captures for a fixed window and reports signal levels.
	ModeMicTest
)

// String returns "recording" or "mic-test".
func (m Mode) String() string {
	switch m {
	case ModeRecording:
		return "recording"
	case ModeMicTest:
		return "mic-test"
	default:
		return "unknown"
	}
}

// BeginOptions describes the session being started.
type BeginOptions struct {
	ChannelID string
	StartedBy string
	Mode      Mode
}

// Session is the state of one active capture in a room. The identifying
// fields are immutable; the connection and recorder are attached once the
// voice channel has been joined.
type Session struct {
	ID        string
	RoomID    string
	ChannelID string
	StartedBy string
	Mode      Mode
	StartedAt time.Time

	mu       sync.Mutex
	conn     audio.Connection
	recorder *capture.Recorder
}

// attach records the live connection and recorder for the session.
func (s *Session) attach(conn audio.Connection, rec *capture.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.recorder = rec
}

// Connection returns the attached connection, or nil.
func (s *Session) Connection() audio.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Recorder returns the attached recorder, or nil.
func (s *Session) Recorder() *capture.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder
}

// Elapsed returns the time since the session began.
func (s *Session) Elapsed() time.Duration { return time.Since(s.StartedAt) }

// slot guards one room. The registry map lock is only held to find, create
// or drop a slot, so work on one room never blocks another. refs counts the
// callers between lock and unlock; a slot with no session and no refs is
// dropped from the map.
type slot struct {
	mu      sync.Mutex
	refs    int
	session *Session
}

// Registry maps room identifiers to their active session.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*slot

	now func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*slot),
		now:   time.Now,
	}
}

// lock returns the room's slot with its mutex held. Every lock must be paired
// with [Registry.unlock].
func (r *Registry) lock(roomID string) *slot {
	r.mu.Lock()
	sl, ok := r.rooms[roomID]
	if !ok {
		sl = &slot{}
		r.rooms[roomID] = sl
	}
	sl.refs++
	r.mu.Unlock()

	sl.mu.Lock()
	return sl
}

func (r *Registry) unlock(roomID string, sl *slot) {
	r.mu.Lock()
	sl.refs--
	if sl.refs == 0 && sl.session == nil {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()
	sl.mu.Unlock()
}

// Len returns the number of rooms the registry currently tracks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Begin reserves the room for a new session. Of several concurrent Begin
// calls on one room exactly one succeeds; the others get
// [ErrAlreadyRecording].
func (r *Registry) Begin(roomID string, opts BeginOptions) (*Session, error) {
	if roomID == "" {
		return nil, errors.New("recording: room ID must not be empty")
	}
	sl := r.lock(roomID)
	defer r.unlock(roomID, sl)

	if sl.session != nil {
		return nil, fmt.Errorf("%w (room=%s mode=%s)", ErrAlreadyRecording, roomID, sl.session.Mode)
	}
	s := &Session{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		ChannelID: opts.ChannelID,
		StartedBy: opts.StartedBy,
		Mode:      opts.Mode,
		StartedAt: r.now(),
	}
	sl.session = s
	return s, nil
}

// Attach stores the live connection and recorder on s if s is still the
// room's session. It reports false when s was ended or released in the
// meantime; the caller then owns conn and rec and must tear them down.
func (r *Registry) Attach(s *Session, conn audio.Connection, rec *capture.Recorder) bool {
	sl := r.lock(s.RoomID)
	defer r.unlock(s.RoomID, sl)
	if sl.session != s {
		return false
	}
	s.attach(conn, rec)
	return true
}

// End removes and returns the room's session.
func (r *Registry) End(roomID string) (*Session, error) {
	sl := r.lock(roomID)
	defer r.unlock(roomID, sl)

	if sl.session == nil {
		return nil, fmt.Errorf("%w (room=%s)", ErrNoActiveSession, roomID)
	}
	s := sl.session
	sl.session = nil
	return s, nil
}

// EndMode is [Registry.End] restricted to sessions of the given mode. A
// session of another mode stays in place and [ErrModeMismatch] is returned.
func (r *Registry) EndMode(roomID string, mode Mode) (*Session, error) {
	sl := r.lock(roomID)
	defer r.unlock(roomID, sl)

	s := sl.session
	if s == nil {
		return nil, fmt.Errorf("%w (room=%s)", ErrNoActiveSession, roomID)
	}
	if s.Mode != mode {
		return nil, fmt.Errorf("%w (room=%s mode=%s)", ErrModeMismatch, roomID, s.Mode)
	}
	sl.session = nil
	return s, nil
}

// Get returns the room's session, if any.
func (r *Registry) Get(roomID string) (*Session, bool) {
	sl := r.lock(roomID)
	defer r.unlock(roomID, sl)
	return sl.session, sl.session != nil
}

// Release removes s only if it is still the active session of its room. It
// reports whether s was removed. Used when a connection ends on its own or
// when a Begin has to be rolled back.
func (r *Registry) Release(s *Session) bool {
	if s == nil {
		return false
	}
	sl := r.lock(s.RoomID)
	defer r.unlock(s.RoomID, sl)
	if sl.session != s {
		return false
	}
	sl.session = nil
	return true
}

// Active returns a snapshot of all active sessions.
func (r *Registry) Active() []*Session {
	r.mu.Lock()
	rooms := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		rooms = append(rooms, id)
	}
	r.mu.Unlock()

	var out []*Session
	for _, id := range rooms {
		sl := r.lock(id)
		if sl.session != nil {
			out = append(out, sl.session)
		}
		r.unlock(id, sl)
	}
	return out
}
