// Package mock provides in-memory implementations of [audio.Platform] and
// [audio.Connection] for use in unit tests.
//
// All mocks are safe for concurrent use. They record method calls so tests
// can assert on call counts and arguments.
//
// Typical usage:
//
//	conn := mock.NewConnection()
//	platform := &mock.Platform{ConnectResult: conn}
//	frames := conn.AddStream("user-1", "Alice", audio.CodecPCM)
//	frames <- audio.AudioFrame{...}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxrecap/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a scriptable [audio.Connection]. Create it with
// [NewConnection]; the zero value is not usable.
type Connection struct {
	mu sync.Mutex

	streams chan audio.Stream
	frames  []chan audio.AudioFrame
	done    chan struct{}
	closed  bool

	// DisconnectError is returned by the first [Connection.Disconnect] call.
	DisconnectError error

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int
}

// NewConnection returns an open mock connection.
func NewConnection() *Connection {
	return &Connection{
		streams: make(chan audio.Stream, 64),
		done:    make(chan struct{}),
	}
}

// AddStream announces a new participant and returns the channel the test
// writes frames to. It returns nil if the connection has already ended.
func (c *Connection) AddStream(participantID, displayName string, codec audio.Codec) chan<- audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	ch := make(chan audio.AudioFrame, 256)
	c.frames = append(c.frames, ch)
	c.streams <- audio.Stream{
		ParticipantID: participantID,
		DisplayName:   displayName,
		Codec:         codec,
		Frames:        ch,
	}
	return ch
}

// Streams implements [audio.Connection].
func (c *Connection) Streams() <-chan audio.Stream { return c.streams }

// Done implements [audio.Connection].
func (c *Connection) Done() <-chan struct{} { return c.done }

// Disconnect implements [audio.Connection]. Every call is counted;
// DisconnectError is returned on the first one only.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	c.CallCountDisconnect++
	first := !c.closed
	c.mu.Unlock()
	c.End()
	if first {
		return c.DisconnectError
	}
	return nil
}

// End simulates the platform dropping the session: every channel is closed
// without a Disconnect call being recorded.
func (c *Connection) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.frames {
		close(ch)
	}
	close(c.streams)
	close(c.done)
}

// Disconnects returns CallCountDisconnect under the lock.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountDisconnect
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	// ChannelID is the channelID argument passed to Connect.
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectFunc, when set, produces the result of every Connect call and
	// takes precedence over ConnectResult.
	ConnectFunc func(channelID string) (audio.Connection, error)

	// ConnectResult is the [audio.Connection] returned by Connect.
	ConnectResult audio.Connection

	// ConnectError is the error returned by Connect.
	ConnectError error

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall
}

// Connect implements [audio.Platform].
func (p *Platform) Connect(_ context.Context, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{ChannelID: channelID})
	fn := p.ConnectFunc
	res, err := p.ConnectResult, p.ConnectError
	p.mu.Unlock()
	if fn != nil {
		return fn(channelID)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Calls returns a copy of ConnectCalls.
func (p *Platform) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ConnectCall(nil), p.ConnectCalls...)
}
