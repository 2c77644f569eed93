package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/tmc/langchaingo/llms"
)

const converseSystemPrompt = `You are Altron, a helpful assistant. Continue the conversation with a
single reply to the last user message. Structured data and attachments in
earlier messages are shown in brackets.`

// Converse writes the assistant's next turn for a thread. Each message of
// history becomes one chat message with its role preserved.
func (m *Model) Converse(ctx context.Context, history []models.Message) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, converseSystemPrompt))

	var prompt strings.Builder
	prompt.WriteString(converseSystemPrompt)
	for _, msg := range history {
		text := RenderContent(msg.Content)
		kind := llms.ChatMessageTypeHuman
		if msg.Role == models.RoleAssistant {
			kind = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(kind, text))
		prompt.WriteString(text)
	}
	return m.generate(ctx, messages, prompt.String())
}

// RenderContent flattens message content to prompt text. JSON is inlined in
// compact form and attachments are listed by media type only.
func RenderContent(c models.MessageContent) string {
	var parts []string
	if c.Text != nil && *c.Text != "" {
		parts = append(parts, *c.Text)
	}
	if len(c.JSON) > 0 {
		if b, err := json.Marshal(c.JSON); err == nil {
			parts = append(parts, "[json "+string(b)+"]")
		}
	}
	for _, f := range c.Files {
		parts = append(parts, fmt.Sprintf("[attachment %s]", f.MediaType))
	}
	if len(parts) == 0 {
		return "[empty message]"
	}
	return strings.Join(parts, "\n")
}
