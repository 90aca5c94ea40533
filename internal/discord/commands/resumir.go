// Package commands implements Discord slash command handlers for voxrecap.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/voxrecap/internal/app"
	"github.com/MrWong99/voxrecap/internal/discord"
	"github.com/MrWong99/voxrecap/internal/recording"
	"github.com/MrWong99/voxrecap/internal/summary"
)

// Replies shown to Discord users.
const (
	msgNotInVoice       = "Você precisa estar em um canal de voz para usar este comando!"
	msgAlreadyRecording = "Já existe uma gravação em andamento neste servidor!"
	msgStarting         = "🎙️ Iniciando gravação da conversa..."
	msgStartFailed      = "Ocorreu um erro ao iniciar a gravação."
	msgNoRecording      = "Não há gravação em andamento neste servidor!"
	msgTranscribing     = "🔄 Transcrevendo o áudio..."
	msgSummaryHeader    = "✅ Resumo da conversa:\n\n"
	msgProcessFailed    = "Ocorreu um erro ao processar a gravação."
	msgMicTestRunning   = "Um teste de microfone está em andamento. Aguarde a conclusão antes de parar."
	msgTranscriptAttach = "📝 Transcrição completa em anexo."
	msgGuildOnly        = "Este comando só pode ser usado em um servidor."
	msgNoPermission     = "Você não tem permissão para controlar gravações neste servidor."
)

// transcriptFile is the name of the transcript attachment.
const transcriptFile = "transcricao.txt"

const (
	startTimeout   = 30 * time.Second
	processTimeout = 30 * time.Minute
)

// Recorder runs recording sessions. *app.SessionManager implements it.
type Recorder interface {
	IsActive(roomID string) bool
	Start(ctx context.Context, req app.StartRequest) (*recording.Session, error)
	Stop(ctx context.Context, roomID string, style summary.Style) (*app.Outcome, error)
	MicTest(ctx context.Context, req app.StartRequest) (*app.MicReport, error)
}

// VoiceLocator finds the voice channel a member is connected to.
// *discord.Bot implements it.
type VoiceLocator interface {
	VoiceChannel(guildID, userID string) (string, error)
}

// ResumirConfig holds the dependencies of [ResumirCommands].
type ResumirConfig struct {
	Recorder Recorder
	Voice    VoiceLocator
	Perms    *discord.PermissionChecker

	// DefaultStyle is used in guilds that never ran /resumir modo.
	DefaultStyle summary.Style

	// MicTestWindow is announced to the user; the recorder enforces it.
	MicTestWindow time.Duration
}

// ResumirCommands handles the /resumir command group. Destination channels
// and summary styles are kept per guild, in memory.
type ResumirCommands struct {
	recorder      Recorder
	voice         VoiceLocator
	perms         *discord.PermissionChecker
	defaultStyle  summary.Style
	micTestWindow time.Duration

	mu           sync.Mutex
	destinations map[string]string
	styles       map[string]summary.Style
}

// NewResumirCommands creates a ResumirCommands.
func NewResumirCommands(cfg ResumirConfig) *ResumirCommands {
	rc := &ResumirCommands{
		recorder:      cfg.Recorder,
		voice:         cfg.Voice,
		perms:         cfg.Perms,
		defaultStyle:  cfg.DefaultStyle,
		micTestWindow: cfg.MicTestWindow,
		destinations:  make(map[string]string),
		styles:        make(map[string]summary.Style),
	}
	if rc.perms == nil {
		rc.perms = discord.NewPermissionChecker("")
	}
	if rc.defaultStyle == "" {
		rc.defaultStyle = summary.StyleSimple
	}
	if rc.micTestWindow <= 0 {
		rc.micTestWindow = 5 * time.Second
	}
	return rc
}

// Register registers the /resumir command group with the router.
func (rc *ResumirCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("resumir", rc.Definition(), func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Use um subcomando: `/resumir iniciar`, `/resumir parar`, `/resumir testar-microfone`, `/resumir enviar-para` ou `/resumir modo`.")
	})
	router.RegisterHandler("resumir/iniciar", rc.handleStart)
	router.RegisterHandler("resumir/parar", rc.handleStop)
	router.RegisterHandler("resumir/testar-microfone", rc.handleMicTest)
	router.RegisterHandler("resumir/enviar-para", rc.handleSetChannel)
	router.RegisterHandler("resumir/modo", rc.handleSetMode)
}

// Definition returns the ApplicationCommand definition for Discord.
func (rc *ResumirCommands) Definition() *discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(summary.Styles))
	for _, st := range summary.Styles {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: st.Label(), Value: string(st)})
	}
	return &discordgo.ApplicationCommand{
		Name:        "resumir",
		Description: "Gerencia a gravação e resumo de conversas em canais de voz",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "iniciar",
				Description: "Inicia a gravação da conversa",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "parar",
				Description: "Para a gravação e gera o resumo",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "testar-microfone",
				Description: "Testa se o microfone está funcionando corretamente",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "enviar-para",
				Description: "Define o canal para enviar o resumo",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "canal",
						Description:  "O canal onde o resumo será enviado",
						Required:     true,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "modo",
				Description: "Define o tipo de resumo",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "tipo",
						Description: "O tipo de resumo a ser gerado",
						Required:    true,
						Choices:     choices,
					},
				},
			},
		},
	}
}

// Destination returns the channel summaries of guildID are copied to.
func (rc *ResumirCommands) Destination(guildID string) (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	ch, ok := rc.destinations[guildID]
	return ch, ok
}

// Style returns the summary style configured for guildID.
func (rc *ResumirCommands) Style(guildID string) summary.Style {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if st, ok := rc.styles[guildID]; ok {
		return st
	}
	return rc.defaultStyle
}

// SetDefaultStyle replaces the style used by guilds without an override.
func (rc *ResumirCommands) SetDefaultStyle(st summary.Style) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.defaultStyle = st
}

// guard answers and returns false when the interaction may not proceed.
func (rc *ResumirCommands) guard(s discord.Responder, i *discordgo.InteractionCreate, needRole bool) bool {
	if i.GuildID == "" {
		discord.RespondEphemeral(s, i, msgGuildOnly)
		return false
	}
	if needRole && !rc.perms.CanRecord(i) {
		discord.RespondEphemeral(s, i, msgNoPermission)
		return false
	}
	return true
}

// handleStart handles /resumir iniciar.
func (rc *ResumirCommands) handleStart(s discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.guard(s, i, true) {
		return
	}
	userID := interactionUserID(i)
	channelID, err := rc.voice.VoiceChannel(i.GuildID, userID)
	if err != nil {
		discord.RespondEphemeral(s, i, msgNotInVoice)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	_, err = rc.recorder.Start(ctx, app.StartRequest{RoomID: i.GuildID, ChannelID: channelID, UserID: userID})
	switch {
	case errors.Is(err, recording.ErrAlreadyRecording):
		discord.RespondEphemeral(s, i, msgAlreadyRecording)
	case err != nil:
		slog.Error("discord: start recording failed", "guild_id", i.GuildID, "channel_id", channelID, "err", err)
		discord.RespondEphemeral(s, i, msgStartFailed)
	default:
		discord.Respond(s, i, msgStarting)
	}
}

// handleStop handles /resumir parar.
func (rc *ResumirCommands) handleStop(s discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.guard(s, i, true) {
		return
	}
	if !rc.recorder.IsActive(i.GuildID) {
		discord.RespondEphemeral(s, i, msgNoRecording)
		return
	}

	discord.DeferReply(s, i)
	discord.EditReply(s, i, msgTranscribing)

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	out, err := rc.recorder.Stop(ctx, i.GuildID, rc.Style(i.GuildID))
	switch {
	case errors.Is(err, recording.ErrNoActiveSession):
		discord.EditReply(s, i, msgNoRecording)
		return
	case errors.Is(err, app.ErrMicTestRunning):
		discord.EditReply(s, i, msgMicTestRunning)
		return
	case err != nil:
		slog.Error("discord: stop recording failed", "guild_id", i.GuildID, "err", err)
		discord.EditReply(s, i, msgProcessFailed)
		return
	}

	body := msgSummaryHeader + out.Summary.Body
	attachment := discord.Attachment{Name: transcriptFile, Content: out.Transcript.String()}
	discord.EditReply(s, i, body)
	discord.FollowUp(s, i, msgTranscriptAttach, attachment)

	if dest, ok := rc.Destination(i.GuildID); ok {
		if err := discord.SendChannel(s, dest, body, attachment); err != nil {
			slog.Warn("discord: failed to deliver summary to destination", "guild_id", i.GuildID, "channel_id", dest, "err", err)
		}
	}
}

// handleMicTest handles /resumir testar-microfone.
func (rc *ResumirCommands) handleMicTest(s discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.guard(s, i, false) {
		return
	}
	userID := interactionUserID(i)
	channelID, err := rc.voice.VoiceChannel(i.GuildID, userID)
	if err != nil {
		discord.RespondEphemeral(s, i, msgMicNotInVoice)
		return
	}
	if rc.recorder.IsActive(i.GuildID) {
		discord.RespondEphemeral(s, i, msgMicBusy)
		return
	}

	discord.DeferReply(s, i)
	discord.EditReply(s, i, fmt.Sprintf(msgMicStarting, int(rc.micTestWindow.Round(time.Second)/time.Second)))

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	report, err := rc.recorder.MicTest(ctx, app.StartRequest{RoomID: i.GuildID, ChannelID: channelID, UserID: userID})
	switch {
	case errors.Is(err, recording.ErrAlreadyRecording):
		discord.EditReply(s, i, msgMicBusy)
		return
	case err != nil:
		slog.Error("discord: microphone test failed", "guild_id", i.GuildID, "err", err)
		discord.EditReply(s, i, msgMicFailed)
		return
	}
	discord.EditReply(s, i, MicTestMessage(report))
}

// handleSetChannel handles /resumir enviar-para.
func (rc *ResumirCommands) handleSetChannel(s discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.guard(s, i, true) {
		return
	}
	channelID := subcommandOption(i, "canal")
	if channelID == "" {
		discord.RespondEphemeral(s, i, "Informe um canal de texto.")
		return
	}
	rc.mu.Lock()
	rc.destinations[i.GuildID] = channelID
	rc.mu.Unlock()
	discord.Respond(s, i, fmt.Sprintf("✅ Os resumos serão enviados para <#%s>", channelID))
}

// handleSetMode handles /resumir modo.
func (rc *ResumirCommands) handleSetMode(s discord.Responder, i *discordgo.InteractionCreate) {
	if !rc.guard(s, i, true) {
		return
	}
	style, err := summary.ParseStyle(subcommandOption(i, "tipo"))
	if err != nil {
		discord.RespondEphemeral(s, i, "Tipo de resumo inválido. Use simples, detalhado ou topicos.")
		return
	}
	rc.mu.Lock()
	rc.styles[i.GuildID] = style
	rc.mu.Unlock()
	discord.Respond(s, i, fmt.Sprintf("✅ Modo de resumo definido para: %s", style))
}

// subcommandOption returns the value of the named option of the first
// subcommand, or "" when absent.
func subcommandOption(i *discordgo.InteractionCreate, name string) string {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 || data.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return ""
	}
	for _, opt := range data.Options[0].Options {
		if opt.Name == name && opt.Value != nil {
			return fmt.Sprint(opt.Value)
		}
	}
	return ""
}

// interactionUserID extracts the user ID from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
