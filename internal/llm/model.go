// Package llm wraps langchaingo for text generation and token counting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/altron-go/internal/config"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoProvider is returned by NewModel when the provider is "none".
var ErrNoProvider = errors.New("no LLM provider configured")

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration. collector may be nil.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderNone, "":
		return nil, ErrNoProvider

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
		metrics:   collector,
	}, nil
}

// NewModelFrom wraps an existing langchaingo model.
func NewModelFrom(model llms.Model, name string, collector *metrics.Collector) *Model {
	return &Model{llm: model, modelName: name, metrics: collector}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}, systemPrompt+userPrompt)
}

// generate runs one completion. prompt is the concatenated input text, used
// to estimate input tokens when the provider reports none.
func (m *Model) generate(ctx context.Context, messages []llms.MessageContent, prompt string) (string, error) {
	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	duration := time.Since(start)
	if err != nil {
		m.metrics.Record(metrics.OpLLMGenerate, duration, err)
		slog.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		m.metrics.Record(metrics.OpLLMGenerate, duration, errors.New("no choices"))
		return "", fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	if in == 0 {
		in = int64(llms.CountTokens(m.modelName, prompt))
	}
	if out == 0 {
		out = int64(llms.CountTokens(m.modelName, choice.Content))
	}
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)

	slog.Debug("generation complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)
	return choice.Content, nil
}

// tokenUsage reads provider-reported token counts. Key names differ per
// provider.
func tokenUsage(info map[string]any) (in, out int64) {
	for _, k := range []string{"PromptTokens", "InputTokens", "input_tokens"} {
		if v, ok := asInt(info[k]); ok {
			in = v
			break
		}
	}
	for _, k := range []string{"CompletionTokens", "OutputTokens", "output_tokens"} {
		if v, ok := asInt(info[k]); ok {
			out = v
			break
		}
	}
	return in, out
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// RunJob asks the model to carry out a job and returns its answer.
func (m *Model) RunJob(ctx context.Context, title, description string) (string, error) {
	systemPrompt := `You are Altron, a background worker. Complete the task you are given.
Reply with the result only, without preamble.`

	userPrompt := fmt.Sprintf("Task: %s\n\n%s", title, description)
	return m.GenerateWithSystem(ctx, systemPrompt, userPrompt)
}

// Reply writes the bot's answer to a batch of chat messages.
func (m *Model) Reply(ctx context.Context, botName string, msgs []models.RelayMessage) (string, error) {
	systemPrompt := fmt.Sprintf(`You are %s, a friendly assistant in a group chat.
Reply to the conversation below in one short message.`, botName)

	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s: %s", msg.Sender, msg.Text)
		if msg.Image != nil {
			b.WriteString(" [image attached]")
		}
		b.WriteByte('\n')
	}
	return m.GenerateWithSystem(ctx, systemPrompt, b.String())
}
