// Package discord provides the Discord bot layer for voxrecap. It owns
// the discordgo.Session lifecycle, routes slash command interactions to
// registered handlers, and checks recorder role permissions.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/voxrecap/pkg/audio"
	discordaudio "github.com/MrWong99/voxrecap/pkg/audio/discord"
)

// ErrNotInVoice is returned by [Bot.VoiceChannel] when the user is not in a
// voice channel of the guild.
var ErrNotInVoice = errors.New("discord: user is not in a voice channel")

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token, without the "Bot " prefix.
	Token string

	// GuildID scopes command registration to one guild. Empty registers the
	// commands globally.
	GuildID string

	// RecorderRoleID restricts recording commands to members with the role.
	RecorderRoleID string
}

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platforms map[string]*discordaudio.Platform
	router    *CommandRouter
	perms     *PermissionChecker
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction handler.
func New(_ context.Context, cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token must not be empty")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		session:   session,
		platforms: make(map[string]*discordaudio.Platform),
		router:    NewCommandRouter(),
		perms:     NewPermissionChecker(cfg.RecorderRoleID),
		guildID:   cfg.GuildID,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord: connected", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Platform returns the audio platform for voice channels of guildID. One
// platform is created per guild and reused.
func (b *Bot) Platform(guildID string) audio.Platform {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.platforms[guildID]
	if !ok {
		p = discordaudio.New(b.session, guildID)
		b.platforms[guildID] = p
	}
	return p
}

// PlatformFor adapts [Bot.Platform] to a room lookup; rooms are guild IDs.
func (b *Bot) PlatformFor(roomID string) (audio.Platform, error) {
	if roomID == "" {
		return nil, errors.New("discord: guild ID must not be empty")
	}
	return b.Platform(roomID), nil
}

// VoiceChannel returns the voice channel userID is connected to in guildID.
func (b *Bot) VoiceChannel(guildID, userID string) (string, error) {
	b.mu.RLock()
	s := b.session
	b.mu.RUnlock()
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrNotInVoice
	}
	return vs.ChannelID, nil
}

// Ready reports whether the gateway session has received its initial state.
func (b *Bot) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session != nil && b.session.DataReady
}

// GuildID returns the guild commands are registered in, if any.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord: commands registered", "count", len(registered), "guild_id", b.guildID)
	}

	<-ctx.Done()
	return nil
}

// Close unregisters the commands and disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord: bot closed")
	})
	return closeErr
}
