package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// Conversant writes the assistant's next turn from a thread's history.
// *llm.Model satisfies it.
type Conversant interface {
	Converse(ctx context.Context, history []models.Message) (string, error)
}

// CannedConversant always answers with the same text.
type CannedConversant struct {
	Text string
}

// Converse implements Conversant.
func (c CannedConversant) Converse(context.Context, []models.Message) (string, error) {
	if c.Text == "" {
		return DefaultReply, nil
	}
	return c.Text, nil
}

// Exchange is one conversation turn: the user's message and the reply.
type Exchange struct {
	Message models.Message `json:"message"`
	Reply   models.Message `json:"reply"`
}

// WithConversant sets what answers Converse. A nil c restores the canned
// reply.
func (s *ThreadService) WithConversant(c Conversant) *ThreadService {
	if c == nil {
		c = CannedConversant{}
	}
	s.conversant = c
	return s
}

// Converse appends a user message, generates the assistant's reply from the
// whole thread and appends that too. Both messages are published to
// subscribers. If generation fails the user message stays in the thread.
func (s *ThreadService) Converse(ctx context.Context, threadID string, m models.Message) (*Exchange, error) {
	if m.Role != models.RoleUser {
		return nil, &models.ValidationError{
			Field:  "role",
			Reason: fmt.Sprintf("must be %q to start a turn", models.RoleUser),
			Err:    models.ErrInvalidRole,
		}
	}

	sent, err := s.Append(ctx, threadID, m)
	if err != nil {
		return nil, err
	}
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.conversant.Converse(ctx, thread.Messages)
	s.metrics.Record(metrics.OpConverse, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	reply, err := s.Append(ctx, threadID, models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleAssistant,
		Content: models.TextContent(clipText(text, models.MaxTextLength)),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("conversation turn", "thread_id", threadID, "message_id", sent.ID, "reply_id", reply.ID)
	return &Exchange{Message: *sent, Reply: *reply}, nil
}

// clipText cuts s to at most n characters.
func clipText(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
