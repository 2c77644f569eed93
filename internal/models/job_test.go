package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestUnixSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"whole seconds", time.Unix(1712345678, 0), "1712345678"},
		{"fraction", time.Unix(1712345678, 500_000_000), "1712345678.5"},
		{"microseconds", time.Unix(1712345678, 123456000), "1712345678.123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnixSeconds(tt.in); got != tt.want {
				t.Errorf("UnixSeconds() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobStatusTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusPending:    false,
		JobStatusRunning:    false,
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
		JobStatusTerminated: true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestValidateRelayMessages(t *testing.T) {
	if err := ValidateRelayMessages(nil); err == nil {
		t.Error("expected error for empty batch")
	}
	err := ValidateRelayMessages([]RelayMessage{{Sender: "a", Text: "x"}, {Text: "y"}})
	if err == nil || err.Error() != "messages[1].sender: is required" {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRelayMessages([]RelayMessage{{Sender: "a"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDecodeRelayBatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []RelayMessage
		wantErr string
	}{
		{
			name:  "text and image",
			input: `{"messages":[{"sender":"ann","text":"hi"},{"sender":"bob","text":"","image":null}]}`,
			want:  []RelayMessage{{Sender: "ann", Text: "hi"}, {Sender: "bob"}},
		},
		{name: "missing text", input: `{"messages":[{"sender":"bob"}]}`, wantErr: "messages[0].text: is required"},
		{name: "missing sender", input: `{"messages":[{"text":"x"}]}`, wantErr: "messages[0].sender: is required"},
		{name: "numeric text", input: `{"messages":[{"sender":"a","text":3}]}`, wantErr: "messages[0].text"},
		{name: "no messages", input: `{}`, wantErr: "messages: is required"},
		{name: "empty batch", input: `{"messages":[]}`, wantErr: "messages"},
		{name: "not an object", input: `[]`, wantErr: "expected object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRelayBatch([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("DecodeRelayBatch() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRelayBatch() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeRelayBatch() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
