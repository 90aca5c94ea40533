// Package mock provides test doubles for Discord interaction testing.
package mock

import (
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage is a message recorded by [Responder], with attachment
// contents read out.
type SentMessage struct {
	ChannelID string
	Content   string
	Files     map[string]string
}

// Responder records interaction responses for test assertions. It
// implements discord.Responder and is safe for concurrent use.
type Responder struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// Edits records the content of every InteractionResponseEdit call.
	Edits []string

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []SentMessage

	// ChannelMessages records all ChannelMessageSendComplex calls.
	ChannelMessages []SentMessage

	// Err is returned by every method when non-nil, allowing error
	// injection.
	Err error
}

// InteractionRespond records the response and returns the configured error.
func (m *Responder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// InteractionResponseEdit records the new content.
func (m *Responder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	m.Edits = append(m.Edits, content)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-original", Content: content}, nil
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *Responder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, SentMessage{Content: params.Content, Files: readFiles(params.Files)})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// ChannelMessageSendComplex records the message and returns a stub message.
func (m *Responder) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChannelMessages = append(m.ChannelMessages, SentMessage{
		ChannelID: channelID,
		Content:   data.Content,
		Files:     readFiles(data.Files),
	})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-message", ChannelID: channelID}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Responder) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastEdit returns the most recent edited content, or "".
func (m *Responder) LastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Edits) == 0 {
		return ""
	}
	return m.Edits[len(m.Edits)-1]
}

// Reset clears all recorded interactions and errors.
func (m *Responder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = nil
	m.Edits = nil
	m.FollowUps = nil
	m.ChannelMessages = nil
	m.Err = nil
}

func readFiles(files []*discordgo.File) map[string]string {
	if len(files) == 0 {
		return nil
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		data, _ := io.ReadAll(f.Reader)
		out[f.Name] = string(data)
	}
	return out
}
