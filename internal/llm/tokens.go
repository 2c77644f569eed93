package llm

import (
	"github.com/tmc/langchaingo/llms"
)

// TiktokenCounter counts tokens with the tokenizer of Model. Unknown models
// fall back to langchaingo's character estimate.
type TiktokenCounter struct {
	Model string
}

// NewTokenCounter returns a counter for model.
func NewTokenCounter(model string) TiktokenCounter {
	return TiktokenCounter{Model: model}
}

// CountTokens implements models.TokenCounter.
func (c TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return llms.CountTokens(c.Model, text)
}
