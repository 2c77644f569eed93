// Package models defines the thread, message and job data contracts and
// their validation.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultThreadTitle is used when a thread is created without a title.
const DefaultThreadTitle = "New Thread"

// Thread is an ordered, append-only conversation. It exclusively owns its
// messages; message ids are unique within the thread.
type Thread struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// Validate checks an already-constructed Thread, including message id
// uniqueness.
func (t Thread) Validate() error {
	if t.ID == "" {
		return required("id")
	}
	seen := make(map[string]int, len(t.Messages))
	for i, m := range t.Messages {
		path := indexPath("messages", i)
		if err := m.validate(path); err != nil {
			return err
		}
		if first, ok := seen[m.ID]; ok {
			return duplicateID(first, i, m.ID)
		}
		seen[m.ID] = i
	}
	return nil
}

// HasMessage reports whether a message with the given id exists.
func (t Thread) HasMessage(id string) bool {
	for _, m := range t.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// LastMessage returns the most recently appended message, if any.
func (t Thread) LastMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

func duplicateID(first, second int, id string) *ValidationError {
	return &ValidationError{
		Field:  indexPath("messages", second) + ".id",
		Reason: fmt.Sprintf("id %q already used by messages[%d]", id, first),
		Err:    ErrDuplicateID,
	}
}

// ParseThread validates a decoded JSON value and constructs a Thread.
// Message order is preserved exactly.
func ParseThread(v any) (Thread, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Thread{}, wrongType("", "object", v)
	}

	id, err := stringField(obj, "", "id")
	if err != nil {
		return Thread{}, err
	}
	if id == "" {
		return Thread{}, required("id")
	}

	title, err := stringField(obj, "", "title")
	if err != nil {
		return Thread{}, err
	}

	t := Thread{ID: id, Title: title, Messages: []Message{}}

	raw, ok := obj["messages"]
	if !ok || raw == nil {
		return Thread{}, required("messages")
	}
	arr, ok := raw.([]any)
	if !ok {
		return Thread{}, wrongType("messages", "array", raw)
	}

	seen := make(map[string]int, len(arr))
	for i, el := range arr {
		m, err := parseMessage(el, indexPath("messages", i))
		if err != nil {
			return Thread{}, err
		}
		if first, ok := seen[m.ID]; ok {
			return Thread{}, duplicateID(first, i, m.ID)
		}
		seen[m.ID] = i
		t.Messages = append(t.Messages, m)
	}

	return t, nil
}

// DecodeThread parses and validates Thread JSON.
func DecodeThread(data []byte) (Thread, error) {
	v, err := decodeValue(data)
	if err != nil {
		return Thread{}, err
	}
	return ParseThread(v)
}

// MarshalJSON always emits messages as an array, never null.
func (t Thread) MarshalJSON() ([]byte, error) {
	type plain Thread
	p := plain(t)
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON validates while decoding.
func (t *Thread) UnmarshalJSON(data []byte) error {
	parsed, err := DecodeThread(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ThreadInfo is a read-only summary of a Thread. It is always derived from
// the current thread and never stored.
type ThreadInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	TokenCount   int       `json:"tokenCount"`
	MessageCount int       `json:"messageCount"`
}

// TokenCounter counts tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// DeriveThreadInfo summarizes t. UpdatedAt is the timestamp of the last
// message, or createdAt for an empty thread, and never precedes createdAt.
// A nil counter yields a zero token count.
func DeriveThreadInfo(t Thread, createdAt time.Time, counter TokenCounter) ThreadInfo {
	updatedAt := createdAt
	if last, ok := t.LastMessage(); ok && last.Timestamp.After(createdAt) {
		updatedAt = last.Timestamp
	}

	return ThreadInfo{
		ID:           t.ID,
		Title:        t.Title,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		TokenCount:   CountThreadTokens(t, counter),
		MessageCount: len(t.Messages),
	}
}

// CountThreadTokens sums token counts over every message: the text plus the
// compact encoding of the json payload. Attachments are not counted.
func CountThreadTokens(t Thread, counter TokenCounter) int {
	if counter == nil {
		return 0
	}
	total := 0
	for _, m := range t.Messages {
		total += CountContentTokens(m.Content, counter)
	}
	return total
}

// CountContentTokens counts the tokens of a single message payload.
func CountContentTokens(c MessageContent, counter TokenCounter) int {
	if counter == nil {
		return 0
	}
	n := 0
	if c.Text != nil && *c.Text != "" {
		n += counter.CountTokens(*c.Text)
	}
	if len(c.JSON) > 0 {
		if b, err := json.Marshal(c.JSON); err == nil {
			n += counter.CountTokens(string(b))
		}
	}
	if n < 0 {
		return 0
	}
	return n
}
