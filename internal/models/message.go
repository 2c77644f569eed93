package models

import (
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable turn in a Thread.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   MessageContent `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate checks an already-constructed Message.
// Fields are checked in order id, role, content, timestamp and the first
// violation is returned.
func (m Message) Validate() error {
	return m.validate("")
}

func (m Message) validate(path string) error {
	if m.ID == "" {
		return required(fieldPath(path, "id"))
	}
	if !m.Role.Valid() {
		return invalidRole(fieldPath(path, "role"), string(m.Role))
	}
	if err := m.Content.validate(fieldPath(path, "content")); err != nil {
		return err
	}
	if m.Timestamp.IsZero() {
		return zeroTimestamp(fieldPath(path, "timestamp"))
	}
	return nil
}

// zeroTimestamp rejects the zero time, which marks an unset timestamp.
func zeroTimestamp(path string) *ValidationError {
	return invalid(path, ErrRequired, "is required and cannot be the zero time")
}

func invalidRole(path, got string) *ValidationError {
	return invalid(path, ErrInvalidRole, "role %q is not one of %q, %q", got, RoleUser, RoleAssistant)
}

// ParseMessage validates a decoded JSON value and constructs a Message.
func ParseMessage(v any) (Message, error) {
	return parseMessage(v, "")
}

// DecodeMessage parses and validates Message JSON.
func DecodeMessage(data []byte) (Message, error) {
	v, err := decodeValue(data)
	if err != nil {
		return Message{}, err
	}
	return ParseMessage(v)
}

// DecodeNewMessage parses a message submitted for appending. A missing or
// null id is set to id and a missing timestamp to now.
func DecodeNewMessage(data []byte, id string, now time.Time) (Message, error) {
	v, err := decodeValue(data)
	if err != nil {
		return Message{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, wrongType("", "object", v)
	}
	if raw, ok := obj["id"]; !ok || raw == nil {
		obj["id"] = id
	}
	if raw, ok := obj["timestamp"]; !ok || raw == nil {
		obj["timestamp"] = now.UTC().Format(time.RFC3339Nano)
	}
	return ParseMessage(obj)
}

// UnmarshalJSON validates while decoding.
func (m *Message) UnmarshalJSON(data []byte) error {
	parsed, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func parseMessage(v any, path string) (Message, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, wrongType(path, "object", v)
	}

	id, err := stringField(obj, path, "id")
	if err != nil {
		return Message{}, err
	}
	if id == "" {
		return Message{}, required(fieldPath(path, "id"))
	}

	role, err := stringField(obj, path, "role")
	if err != nil {
		return Message{}, err
	}
	if !Role(role).Valid() {
		return Message{}, invalidRole(fieldPath(path, "role"), role)
	}

	contentPath := fieldPath(path, "content")
	rawContent, ok := obj["content"]
	if !ok || rawContent == nil {
		return Message{}, required(contentPath)
	}
	content, err := parseContent(rawContent, contentPath)
	if err != nil {
		return Message{}, err
	}

	rawTS, err := stringField(obj, path, "timestamp")
	if err != nil {
		return Message{}, err
	}
	ts, err := ParseTimestamp(rawTS)
	if err != nil {
		return Message{}, invalid(fieldPath(path, "timestamp"), ErrInvalidTimestamp, "%q is not a valid RFC 3339 date-time", rawTS)
	}
	if ts.IsZero() {
		return Message{}, zeroTimestamp(fieldPath(path, "timestamp"))
	}

	return Message{
		ID:        id,
		Role:      Role(role),
		Content:   content,
		Timestamp: ts,
	}, nil
}

// ParseTimestamp parses an RFC 3339 date-time and normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
