package discord

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/MrWong99/voxrecap/pkg/audio/opus"
	"github.com/bwmarrin/discordgo"
)

var _ audio.Connection = (*Connection)(nil)

const (
	frameChannelBuffer  = 64
	streamChannelBuffer = 16
)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. Incoming Opus packets are demuxed by SSRC;
// the SSRC to user mapping comes from the voice gateway's speaking updates.
// Packets from an SSRC that has not been mapped yet are dropped.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc        *discordgo.VoiceConnection
	session   *discordgo.Session
	guildID   string
	channelID string
	selfID    string

	mu       sync.Mutex
	ssrcUser map[uint32]string
	outputs  map[string]chan audio.AudioFrame // keyed by user ID

	streams chan audio.Stream

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func()

	// disconnectVC tears down the voice connection. Defaults to
	// vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newConnection starts receiving on an already-joined voice channel.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) *Connection {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		channelID:    vc.ChannelID,
		selfID:       vc.UserID,
		ssrcUser:     make(map[uint32]string),
		outputs:      make(map[string]chan audio.AudioFrame),
		streams:      make(chan audio.Stream, streamChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	vc.AddHandler(c.handleSpeakingUpdate)
	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)

	go c.recvLoop()
	return c
}

// Streams delivers one [audio.Stream] per participant, the first time the
// participant is heard.
func (c *Connection) Streams() <-chan audio.Stream { return c.streams }

// Done is closed once the connection has terminated.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Disconnect leaves the voice channel and closes every stream. It is safe to
// call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
		c.terminate()
	})
	return err
}

// terminate closes all channels. Callers must hold closeOnce or be the
// receive loop exiting on a closed gateway channel.
func (c *Connection) terminate() {
	if c.removeHandler != nil {
		c.removeHandler()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	for id, ch := range c.outputs {
		close(ch)
		delete(c.outputs, id)
	}
	close(c.streams)
}

// handleSpeakingUpdate records which user owns an SSRC.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" || vs.UserID == c.selfID {
		return
	}
	c.mu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.mu.Unlock()
}

// handleVoiceStateUpdate ends the connection when the bot itself is removed
// from the channel.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu == nil || vsu.VoiceState == nil || vsu.GuildID != c.guildID || vsu.UserID != c.selfID {
		return
	}
	if vsu.ChannelID == c.channelID {
		return
	}
	slog.Info("discord: bot left voice channel, ending connection",
		"guild_id", c.guildID,
		"channel_id", c.channelID,
	)
	go func() { _ = c.Disconnect() }()
}

// recvLoop forwards Opus packets to the per-user frame channel.
func (c *Connection) recvLoop() {
	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				c.closeOnce.Do(c.terminate)
				return
			}
			if pkt == nil || len(pkt.Opus) == 0 {
				continue
			}
			c.deliver(pkt)
		}
	}
}

func (c *Connection) deliver(pkt *discordgo.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	userID, ok := c.ssrcUser[pkt.SSRC]
	if !ok {
		slog.Debug("discord: packet from unmapped ssrc", "ssrc", strconv.FormatUint(uint64(pkt.SSRC), 10))
		return
	}

	ch, exists := c.outputs[userID]
	if !exists {
		ch = make(chan audio.AudioFrame, frameChannelBuffer)
		c.outputs[userID] = ch
		stream := audio.Stream{
			ParticipantID: userID,
			DisplayName:   c.displayName(userID),
			Codec:         audio.CodecOpus,
			Frames:        ch,
		}
		select {
		case c.streams <- stream:
		default:
			slog.Warn("discord: stream channel full, dropping participant", "user_id", userID)
			delete(c.outputs, userID)
			close(ch)
			return
		}
	}

	frame := audio.AudioFrame{
		Data:       pkt.Opus,
		Codec:      audio.CodecOpus,
		SampleRate: opus.SampleRate,
		Channels:   opus.Channels,
		Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opus.SampleRate),
	}
	select {
	case ch <- frame:
	default:
		// Consumer is behind; drop rather than stall every other speaker.
	}
}

// displayName resolves the guild nickname or username from the state cache.
func (c *Connection) displayName(userID string) string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	m, err := c.session.State.Member(c.guildID, userID)
	if err != nil || m == nil || (m.Nick == "" && m.User == nil) {
		return ""
	}
	return m.DisplayName()
}
