package discord

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// MessageLimit is the maximum length of a Discord message, in characters.
const MessageLimit = 2000

// Responder is the subset of [discordgo.Session] used to answer
// interactions. *discordgo.Session satisfies it; tests use mock.Responder.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, params *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Responder = (*discordgo.Session)(nil)

// Attachment is a text file sent along with a message.
type Attachment struct {
	Name    string
	Content string
}

func (a Attachment) file() *discordgo.File {
	return &discordgo.File{
		Name:        a.Name,
		ContentType: "text/plain; charset=utf-8",
		Reader:      bytes.NewReader([]byte(a.Content)),
	}
}

// Respond sends a public text response to an interaction.
func Respond(s Responder, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		slog.Warn("discord: failed to send response", "err", err)
	}
}

// RespondEphemeral sends an ephemeral text response to an interaction.
func RespondEphemeral(s Responder, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to send ephemeral response", "err", err)
	}
}

// RespondError sends a formatted error response (ephemeral).
func RespondError(s Responder, i *discordgo.InteractionCreate, err error) {
	RespondEphemeral(s, i, fmt.Sprintf("Erro: %v", err))
}

// DeferReply sends a public deferred response (for long-running commands).
func DeferReply(s Responder, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Warn("discord: failed to defer reply", "err", err)
	}
}

// EditReply replaces the content of the original response. Content longer
// than [MessageLimit] is cut and the rest sent as follow-ups.
func EditReply(s Responder, i *discordgo.InteractionCreate, content string) {
	parts := SplitMessage(content, MessageLimit)
	if len(parts) == 0 {
		return
	}
	first := parts[0]
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &first}); err != nil {
		slog.Warn("discord: failed to edit reply", "err", err)
	}
	for _, p := range parts[1:] {
		followUp(s, i, p, nil)
	}
}

// FollowUp sends content as one or more follow-up messages. Attachments go
// with the last message.
func FollowUp(s Responder, i *discordgo.InteractionCreate, content string, files ...Attachment) {
	parts := SplitMessage(content, MessageLimit)
	if len(parts) == 0 {
		parts = []string{""}
	}
	for n, p := range parts {
		var att []Attachment
		if n == len(parts)-1 {
			att = files
		}
		followUp(s, i, p, att)
	}
}

func followUp(s Responder, i *discordgo.InteractionCreate, content string, files []Attachment) {
	params := &discordgo.WebhookParams{Content: content}
	for _, f := range files {
		params.Files = append(params.Files, f.file())
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		slog.Warn("discord: failed to send follow-up", "err", err)
	}
}

// SendChannel posts content to a text channel, split as needed. Attachments
// go with the last message.
func SendChannel(s Responder, channelID, content string, files ...Attachment) error {
	parts := SplitMessage(content, MessageLimit)
	if len(parts) == 0 {
		parts = []string{""}
	}
	for n, p := range parts {
		msg := &discordgo.MessageSend{Content: p}
		if n == len(parts)-1 {
			for _, f := range files {
				msg.Files = append(msg.Files, f.file())
			}
		}
		if _, err := s.ChannelMessageSendComplex(channelID, msg); err != nil {
			return fmt.Errorf("discord: send to channel %s: %w", channelID, err)
		}
	}
	return nil
}

// SplitMessage cuts content into chunks of at most limit characters. Cuts
// fall on line breaks where possible, then on spaces, and only split a
// word that is longer than limit on its own.
func SplitMessage(content string, limit int) []string {
	if content == "" || limit <= 0 {
		return nil
	}
	var out []string
	for utf8.RuneCountInString(content) > limit {
		head := prefixRunes(content, limit)
		cut := strings.LastIndexByte(head, '\n')
		if cut <= 0 {
			cut = strings.LastIndexByte(head, ' ')
		}
		if cut <= 0 {
			cut = len(head)
		}
		if chunk := strings.TrimRight(content[:cut], " \n"); chunk != "" {
			out = append(out, chunk)
		}
		content = strings.TrimLeft(content[cut:], " \n")
	}
	if content != "" {
		out = append(out, content)
	}
	return out
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
