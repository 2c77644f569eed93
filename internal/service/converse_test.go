package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// historyConversant answers with the number of messages it was shown and
// the text of the last one.
type historyConversant struct {
	seen []models.Message
}

func (h *historyConversant) Converse(_ context.Context, history []models.Message) (string, error) {
	h.seen = history
	last := history[len(history)-1]
	return "you said: " + *last.Content.Text, nil
}

type failingConversant struct{}

func (failingConversant) Converse(context.Context, []models.Message) (string, error) {
	return "", errors.New("model offline")
}

func TestConverseCanned(t *testing.T) {
	svc, collector := newThreadService(t)
	ctx := context.Background()
	thread, err := svc.Create(ctx, "chat")
	require.NoError(t, err)

	ex, err := svc.Converse(ctx, thread.ID, models.Message{Role: models.RoleUser, Content: models.TextContent("hi")})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, ex.Message.Role)
	assert.Equal(t, models.RoleAssistant, ex.Reply.Role)
	assert.Equal(t, DefaultReply, *ex.Reply.Content.Text)
	assert.True(t, ex.Reply.Timestamp.After(ex.Message.Timestamp))

	got, err := svc.Get(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, ex.Message.ID, got.Messages[0].ID)
	assert.Equal(t, ex.Reply.ID, got.Messages[1].ID)

	op := collector.Snapshot().Operations[metrics.OpConverse]
	require.NotNil(t, op)
	assert.Equal(t, int64(1), op.Count)
}

func TestConverseUsesHistoryAndPublishes(t *testing.T) {
	svc, _ := newThreadService(t)
	conv := &historyConversant{}
	svc.WithConversant(conv)
	ctx := context.Background()

	thread, err := svc.Create(ctx, "chat")
	require.NoError(t, err)
	_, err = svc.Append(ctx, thread.ID, models.Message{Role: models.RoleAssistant, Content: models.TextContent("welcome")})
	require.NoError(t, err)

	events, cancel, err := svc.Subscribe(ctx, thread.ID)
	require.NoError(t, err)
	defer cancel()

	ex, err := svc.Converse(ctx, thread.ID, models.Message{Role: models.RoleUser, Content: models.TextContent("ping")})
	require.NoError(t, err)
	assert.Equal(t, "you said: ping", *ex.Reply.Content.Text)
	require.Len(t, conv.seen, 2)
	assert.Equal(t, "welcome", *conv.seen[0].Content.Text)

	first := <-events
	second := <-events
	assert.Equal(t, ex.Message.ID, first.Message.ID)
	assert.Equal(t, ex.Reply.ID, second.Message.ID)
}

func TestConverseErrors(t *testing.T) {
	svc, _ := newThreadService(t)
	ctx := context.Background()
	thread, err := svc.Create(ctx, "chat")
	require.NoError(t, err)

	_, err = svc.Converse(ctx, thread.ID, models.Message{Role: models.RoleAssistant, Content: models.TextContent("x")})
	assert.ErrorIs(t, err, models.ErrInvalidRole)

	_, err = svc.Converse(ctx, "missing", models.Message{Role: models.RoleUser})
	assert.ErrorIs(t, err, db.ErrNotFound)

	svc.WithConversant(failingConversant{})
	_, err = svc.Converse(ctx, thread.ID, models.Message{Role: models.RoleUser, Content: models.TextContent("hello")})
	assert.ErrorContains(t, err, "model offline")

	got, err := svc.Get(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1, "user message kept without a reply")
}

func TestConverseClipsLongReplies(t *testing.T) {
	svc, _ := newThreadService(t)
	svc.WithConversant(CannedConversant{Text: strings.Repeat("é", models.MaxTextLength+10)})
	ctx := context.Background()
	thread, err := svc.Create(ctx, "chat")
	require.NoError(t, err)

	ex, err := svc.Converse(ctx, thread.ID, models.Message{Role: models.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, models.MaxTextLength, len([]rune(*ex.Reply.Content.Text)))
}
