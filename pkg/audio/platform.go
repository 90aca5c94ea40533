// Package audio defines the interfaces and types voxrecap uses to receive
// audio from a voice channel.
//
// The two primary abstractions are:
//
//   - [Platform] joins a voice channel and returns a [Connection].
//   - [Connection] delivers one [Stream] per participant that starts speaking
//     and reports when the underlying voice session ends.
//
// Implementations live in adapter packages (audio/discord for the Discord
// voice gateway, audio/local for the host microphone). The interfaces stay
// narrow so the recorder never sees provider details.
package audio

import (
	"context"
)

// Stream is the audio of a single participant. A participant has at most one
// Stream per [Connection]; pauses in speech are signalled by gaps between
// frames, not by a new Stream.
type Stream struct {
	// ParticipantID is the platform-specific user identifier.
	ParticipantID string

	// DisplayName is the human-readable participant name, if known.
	DisplayName string

	// Codec is the encoding of every frame delivered on Frames.
	Codec Codec

	// Frames delivers audio as it arrives. It is closed when the
	// connection terminates.
	Frames <-chan AudioFrame
}

// Connection represents an active receive session on a voice channel.
//
// A Connection is obtained by calling [Platform.Connect] and remains valid
// until [Connection.Disconnect] is called or the platform drops the session.
// All channels returned by a Connection are closed when it terminates.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// Streams delivers a [Stream] the first time each participant is heard.
	// The channel is closed when the connection terminates.
	Streams() <-chan Stream

	// Done is closed once the connection has terminated, whether through
	// Disconnect or because the platform ended the voice session.
	Done() <-chan struct{}

	// Disconnect leaves the voice channel and closes all channels. It is
	// safe to call more than once; subsequent calls return nil.
	Disconnect() error
}

// Platform joins voice channels.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by channelID and returns an
	// active [Connection]. ctx bounds the join attempt only.
	Connect(ctx context.Context, channelID string) (Connection, error)
}
