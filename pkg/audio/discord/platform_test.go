package discord

import (
	"testing"
	"time"

	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// newTestConnection creates a Connection over fake gateway channels without
// registering session handlers.
func newTestConnection(t *testing.T) (*Connection, chan *discordgo.Packet) {
	t.Helper()
	recv := make(chan *discordgo.Packet, 16)
	vc := &discordgo.VoiceConnection{
		UserID:    "bot",
		GuildID:   "guild-test",
		ChannelID: "voice-1",
		OpusRecv:  recv,
	}
	c := &Connection{
		vc:           vc,
		session:      &discordgo.Session{},
		guildID:      "guild-test",
		channelID:    "voice-1",
		selfID:       "bot",
		ssrcUser:     make(map[uint32]string),
		outputs:      make(map[string]chan audio.AudioFrame),
		streams:      make(chan audio.Stream, streamChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: func() error { return nil },
	}
	go c.recvLoop()
	t.Cleanup(func() { _ = c.Disconnect() })
	return c, recv
}

func receiveStream(t *testing.T, c *Connection) audio.Stream {
	t.Helper()
	select {
	case s, ok := <-c.Streams():
		if !ok {
			t.Fatal("streams channel closed")
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream")
	}
	return audio.Stream{}
}

func TestNewPlatform(t *testing.T) {
	t.Parallel()

	s := &discordgo.Session{}
	p := New(s, "guild-123")
	if p.session != s {
		t.Error("session not stored correctly")
	}
	if p.guildID != "guild-123" {
		t.Errorf("guildID = %q, want %q", p.guildID, "guild-123")
	}
}

func TestConnection_StreamPerSpeaker(t *testing.T) {
	t.Parallel()

	c, recv := newTestConnection(t)
	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "alice", SSRC: 11, Speaking: true})
	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "bob", SSRC: 22, Speaking: true})

	recv <- &discordgo.Packet{SSRC: 11, Opus: []byte{0xf8, 0xff, 0xfe}, Timestamp: 960}
	recv <- &discordgo.Packet{SSRC: 22, Opus: []byte{0xf8, 0xff, 0xfe}}
	recv <- &discordgo.Packet{SSRC: 11, Opus: []byte{0xf8, 0xff, 0xfe}}

	first := receiveStream(t, c)
	second := receiveStream(t, c)
	got := map[string]audio.Stream{first.ParticipantID: first, second.ParticipantID: second}
	alice, ok := got["alice"]
	if !ok {
		t.Fatalf("no stream for alice, got %v", got)
	}
	if _, ok := got["bob"]; !ok {
		t.Fatalf("no stream for bob, got %v", got)
	}
	if alice.Codec != audio.CodecOpus {
		t.Errorf("Codec = %v, want opus", alice.Codec)
	}

	for i := range 2 {
		select {
		case f := <-alice.Frames:
			if f.SampleRate != 48000 || f.Channels != 2 {
				t.Errorf("frame %d format = %d/%d, want 48000/2", i, f.SampleRate, f.Channels)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	select {
	case s := <-c.Streams():
		t.Errorf("unexpected extra stream for %q", s.ParticipantID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnection_IgnoresSelfAndUnmapped(t *testing.T) {
	t.Parallel()

	c, recv := newTestConnection(t)
	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "bot", SSRC: 1, Speaking: true})
	recv <- &discordgo.Packet{SSRC: 1, Opus: []byte{1}}
	recv <- &discordgo.Packet{SSRC: 99, Opus: []byte{1}}

	select {
	case s := <-c.Streams():
		t.Errorf("unexpected stream for %q", s.ParticipantID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnection_DisconnectClosesEverything(t *testing.T) {
	t.Parallel()

	c, recv := newTestConnection(t)
	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "alice", SSRC: 5})
	recv <- &discordgo.Packet{SSRC: 5, Opus: []byte{1}}
	s := receiveStream(t, c)

	for i := range 3 {
		if err := c.Disconnect(); err != nil {
			t.Fatalf("Disconnect[%d]: %v", i, err)
		}
	}

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Disconnect")
	}
	for range s.Frames {
	}
	if _, ok := <-c.Streams(); ok {
		t.Error("Streams still open after Disconnect")
	}
}

func TestConnection_GatewayCloseTerminates(t *testing.T) {
	t.Parallel()

	c, recv := newTestConnection(t)
	close(recv)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after gateway channel closed")
	}
}

func TestConnection_BotMovedOutTerminates(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnection(t)
	c.handleVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "guild-test", UserID: "someone", ChannelID: ""},
	})
	select {
	case <-c.Done():
		t.Fatal("connection ended for another user's voice state")
	case <-time.After(50 * time.Millisecond):
	}

	c.handleVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "guild-test", UserID: "bot", ChannelID: ""},
	})
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after bot left the channel")
	}
}

func TestDisplayName_NoState(t *testing.T) {
	t.Parallel()
	c := &Connection{session: &discordgo.Session{}, guildID: "g"}
	if got := c.displayName("u"); got != "" {
		t.Errorf("displayName = %q, want empty", got)
	}
}
