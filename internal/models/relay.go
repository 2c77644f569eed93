package models

// RelayMessage is one chat message forwarded by the messaging bridge.
type RelayMessage struct {
	Sender string  `json:"sender"`
	Text   string  `json:"text"`
	Image  *string `json:"image,omitempty"` // base64 payload or URL
}

// ValidateRelayMessages checks a relay batch: it must be non-empty and
// every element needs a sender.
func ValidateRelayMessages(msgs []RelayMessage) error {
	if len(msgs) == 0 {
		return invalid("messages", ErrRequired, "must contain at least one message")
	}
	for i, m := range msgs {
		if m.Sender == "" {
			return required(fieldPath(indexPath("messages", i), "sender"))
		}
	}
	return nil
}

// DecodeRelayBatch parses a {"messages": [...]} body. Every element needs
// string sender and text members; image is optional and may be null.
func DecodeRelayBatch(data []byte) ([]RelayMessage, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, wrongType("", "object", v)
	}
	raw, ok := obj["messages"]
	if !ok || raw == nil {
		return nil, required("messages")
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, wrongType("messages", "array", raw)
	}

	msgs := make([]RelayMessage, 0, len(arr))
	for i, el := range arr {
		path := indexPath("messages", i)
		m, ok := el.(map[string]any)
		if !ok {
			return nil, wrongType(path, "object", el)
		}
		sender, err := stringField(m, path, "sender")
		if err != nil {
			return nil, err
		}
		text, err := stringField(m, path, "text")
		if err != nil {
			return nil, err
		}
		msg := RelayMessage{Sender: sender, Text: text}
		if img, ok := m["image"]; ok && img != nil {
			s, ok := img.(string)
			if !ok {
				return nil, wrongType(fieldPath(path, "image"), "string", img)
			}
			msg.Image = &s
		}
		msgs = append(msgs, msg)
	}
	return msgs, ValidateRelayMessages(msgs)
}
