package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"
)

// MaxTextLength is the maximum number of characters in MessageContent.Text.
const MaxTextLength = 8192

// MediaType is the declared type of a file attachment.
type MediaType string

// Allowed attachment media types. Anything else is rejected.
const (
	MediaTypeTextPlain    MediaType = "text/plain"
	MediaTypeTextMarkdown MediaType = "text/markdown"
	MediaTypePDF          MediaType = "application/pdf"
	MediaTypeJPEG         MediaType = "image/jpeg"
	MediaTypePNG          MediaType = "image/png"
)

// MediaTypes lists every allowed media type.
var MediaTypes = []MediaType{
	MediaTypeTextPlain,
	MediaTypeTextMarkdown,
	MediaTypePDF,
	MediaTypeJPEG,
	MediaTypePNG,
}

// Valid reports whether m is one of the allowed media types.
func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeTextPlain, MediaTypeTextMarkdown, MediaTypePDF, MediaTypeJPEG, MediaTypePNG:
		return true
	}
	return false
}

// File is a base64-encoded attachment.
type File struct {
	MediaType MediaType `json:"mediaType"`
	Data      string    `json:"data"`
}

// Bytes returns the decoded attachment payload.
func (f File) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// NewFile encodes raw bytes as an attachment.
func NewFile(mediaType MediaType, data []byte) File {
	return File{MediaType: mediaType, Data: base64.StdEncoding.EncodeToString(data)}
}

// MessageContent is the payload of a message. All fields are optional and
// empty content is valid. Empty collections are normalized to nil.
type MessageContent struct {
	Text  *string        `json:"text,omitempty"`
	JSON  map[string]any `json:"json,omitempty"`
	Files []File         `json:"files,omitempty"`
}

// TextContent is a convenience constructor for text-only content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: &text}
}

// IsEmpty reports whether no payload field is populated.
func (c MessageContent) IsEmpty() bool {
	return c.Text == nil && len(c.JSON) == 0 && len(c.Files) == 0
}

// Validate checks an already-constructed MessageContent.
func (c MessageContent) Validate() error {
	return c.validate("")
}

func (c MessageContent) validate(path string) error {
	if c.Text != nil {
		if err := validateText(fieldPath(path, "text"), *c.Text); err != nil {
			return err
		}
	}
	filesPath := fieldPath(path, "files")
	for i, f := range c.Files {
		if err := validateFile(indexPath(filesPath, i), f); err != nil {
			return err
		}
	}
	return nil
}

func validateText(path, text string) error {
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return invalid(path, ErrTooLong, "length %d exceeds maximum of %d characters", n, MaxTextLength)
	}
	return nil
}

func validateFile(path string, f File) error {
	if !f.MediaType.Valid() {
		return invalid(fieldPath(path, "mediaType"), ErrMediaType, "media type %q is not allowed", string(f.MediaType))
	}
	if _, err := base64.StdEncoding.DecodeString(f.Data); err != nil {
		return invalid(fieldPath(path, "data"), ErrInvalidBase64, "invalid base64 encoding: %v", err)
	}
	return nil
}

// ParseMessageContent validates a decoded JSON value and constructs a
// MessageContent from it.
func ParseMessageContent(v any) (MessageContent, error) {
	return parseContent(v, "")
}

// DecodeMessageContent parses and validates MessageContent JSON.
func DecodeMessageContent(data []byte) (MessageContent, error) {
	v, err := decodeValue(data)
	if err != nil {
		return MessageContent{}, err
	}
	return ParseMessageContent(v)
}

// UnmarshalJSON validates while decoding.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	parsed, err := DecodeMessageContent(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseContent(v any, path string) (MessageContent, error) {
	var c MessageContent

	obj, ok := v.(map[string]any)
	if !ok {
		return c, wrongType(path, "object", v)
	}

	if raw, ok := obj["text"]; ok && raw != nil {
		text, ok := raw.(string)
		if !ok {
			return c, wrongType(fieldPath(path, "text"), "string", raw)
		}
		if err := validateText(fieldPath(path, "text"), text); err != nil {
			return c, err
		}
		c.Text = &text
	}

	if raw, ok := obj["json"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return c, invalid(fieldPath(path, "json"), ErrWrongType, "must be a JSON object, got %s", jsonKind(raw))
		}
		if len(m) > 0 {
			c.JSON = m
		}
	}

	if raw, ok := obj["files"]; ok && raw != nil {
		filesPath := fieldPath(path, "files")
		arr, ok := raw.([]any)
		if !ok {
			return c, wrongType(filesPath, "array", raw)
		}
		for i, el := range arr {
			f, err := parseFile(el, indexPath(filesPath, i))
			if err != nil {
				return MessageContent{}, err
			}
			c.Files = append(c.Files, f)
		}
	}

	return c, nil
}

func parseFile(v any, path string) (File, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return File{}, wrongType(path, "object", v)
	}

	mt, err := stringField(obj, path, "mediaType")
	if err != nil {
		return File{}, err
	}
	data, err := stringField(obj, path, "data")
	if err != nil {
		return File{}, err
	}

	f := File{MediaType: MediaType(mt), Data: data}
	if err := validateFile(path, f); err != nil {
		return File{}, err
	}
	return f, nil
}

// stringField extracts a required string member of obj.
func stringField(obj map[string]any, parent, name string) (string, error) {
	path := fieldPath(parent, name)
	raw, ok := obj[name]
	if !ok || raw == nil {
		return "", required(path)
	}
	s, ok := raw.(string)
	if !ok {
		return "", wrongType(path, "string", raw)
	}
	return s, nil
}

// decodeValue decodes JSON into a generic value, keeping numbers exact.
func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalid("", ErrMalformed, "malformed JSON: %v", err)
	}
	if dec.More() {
		return nil, invalid("", ErrMalformed, "malformed JSON: trailing data after value")
	}
	return v, nil
}
