package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// DefaultBotName is the sender name used on relay replies.
const DefaultBotName = "Altron"

// DefaultReply is what CannedResponder answers with when Text is empty.
const DefaultReply = "Hello from Altron!"

// Responder writes the bot's reply to a batch of chat messages. *llm.Model
// satisfies it.
type Responder interface {
	Reply(ctx context.Context, botName string, msgs []models.RelayMessage) (string, error)
}

// CannedResponder always answers with the same text.
type CannedResponder struct {
	Text string
}

// Reply implements Responder.
func (r CannedResponder) Reply(context.Context, string, []models.RelayMessage) (string, error) {
	if r.Text == "" {
		return DefaultReply, nil
	}
	return r.Text, nil
}

// RelayService answers messages forwarded from a chat platform.
type RelayService struct {
	botName   string
	responder Responder
	metrics   *metrics.Collector
}

// NewRelayService creates a relay. An empty botName becomes "Altron" and a
// nil responder answers with DefaultReply.
func NewRelayService(botName string, responder Responder, collector *metrics.Collector) *RelayService {
	if botName == "" {
		botName = DefaultBotName
	}
	if responder == nil {
		responder = CannedResponder{}
	}
	return &RelayService{botName: botName, responder: responder, metrics: collector}
}

// BotName returns the sender name used on replies.
func (s *RelayService) BotName() string {
	return s.botName
}

// Ping is the relay liveness check.
func (s *RelayService) Ping() string {
	return "pong"
}

// Handle validates a non-empty batch and returns the bot's reply.
func (s *RelayService) Handle(ctx context.Context, msgs []models.RelayMessage) ([]models.RelayMessage, error) {
	if err := models.ValidateRelayMessages(msgs); err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.responder.Reply(ctx, s.botName, msgs)
	s.metrics.Record(metrics.OpRelayReply, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("relay reply: %w", err)
	}
	for range msgs {
		s.metrics.Inc(metrics.CounterRelayMessages)
	}

	slog.Debug("relay replied", "messages", len(msgs), "last_sender", msgs[len(msgs)-1].Sender)
	return []models.RelayMessage{{Sender: s.botName, Text: text}}, nil
}
