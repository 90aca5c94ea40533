// Package discord provides an [audio.Platform] backed by Discord voice
// channels via the bwmarrin/discordgo library. Connections are receive-only:
// the bot joins muted and forwards each speaker's Opus packets untouched, so
// decoding happens on the capture side.
//
// The platform requires an active *discordgo.Session (owned by the bot layer)
// and a guild ID. Each call to [Platform.Connect] joins the specified voice
// channel and returns a [Connection] that demuxes audio per participant.
package discord

import (
	"context"
	"fmt"

	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] using a discordgo voice connection.
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	guildID string
}

// New creates a new Discord Platform for the given session and guild.
func New(session *discordgo.Session, guildID string) *Platform {
	return &Platform{
		session: session,
		guildID: guildID,
	}
}

// Connect joins the voice channel identified by channelID and returns an
// active [audio.Connection]. ctx bounds the join only; the returned
// Connection lives until Disconnect or until Discord drops the bot.
func (p *Platform) Connect(ctx context.Context, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	// mute=true (never sends audio), deaf=false (must receive).
	vc, err := p.session.ChannelVoiceJoin(p.guildID, channelID, true, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	return newConnection(vc, p.session, p.guildID), nil
}
