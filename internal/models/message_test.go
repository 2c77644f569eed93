package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   error
		wantField string
	}{
		{
			name:  "valid user",
			input: `{"id":"m1","role":"user","content":{"text":"hi"},"timestamp":"2024-01-01T00:00:00Z"}`,
		},
		{
			name:  "valid assistant with offset",
			input: `{"id":"m2","role":"assistant","content":{},"timestamp":"2024-01-01T02:00:00+02:00"}`,
		},
		{
			name:      "system role rejected",
			input:     `{"id":"m1","role":"system","content":{"text":"hi"},"timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr:   ErrInvalidRole,
			wantField: "role",
		},
		{
			name:      "empty id",
			input:     `{"id":"","role":"user","content":{},"timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr:   ErrRequired,
			wantField: "id",
		},
		{
			name:      "missing content",
			input:     `{"id":"m1","role":"user","timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr:   ErrRequired,
			wantField: "content",
		},
		{
			name:      "bad timestamp",
			input:     `{"id":"m1","role":"user","content":{},"timestamp":"yesterday"}`,
			wantErr:   ErrInvalidTimestamp,
			wantField: "timestamp",
		},
		{
			name:      "zero timestamp",
			input:     `{"id":"m1","role":"user","content":{},"timestamp":"0001-01-01T00:00:00Z"}`,
			wantErr:   ErrRequired,
			wantField: "timestamp",
		},
		{
			name:      "numeric id",
			input:     `{"id":7,"role":"user","content":{},"timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr:   ErrWrongType,
			wantField: "id",
		},
		{
			name:      "nested content error",
			input:     `{"id":"m1","role":"user","content":{"json":5},"timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr:   ErrWrongType,
			wantField: "content.json",
		},
		{
			name:      "first error wins",
			input:     `{"id":"m1","role":"robot","content":{"json":5},"timestamp":"nope"}`,
			wantErr:   ErrInvalidRole,
			wantField: "role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeMessage([]byte(tt.input))
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotEmpty(t, m.ID)
				assert.Equal(t, time.UTC, m.Timestamp.Location())
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestInvalidRoleNamesValue(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"id":"m1","role":"system","content":{},"timestamp":"2024-01-01T00:00:00Z"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"system"`)
}

func TestMessageValidate(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := Message{ID: "m1", Role: RoleUser, Content: TextContent("hi"), Timestamp: ts}
	assert.NoError(t, valid.Validate())

	noTS := valid
	noTS.Timestamp = time.Time{}
	assert.ErrorIs(t, noTS.Validate(), ErrRequired)

	badRole := valid
	badRole.Role = "system"
	assert.ErrorIs(t, badRole.Validate(), ErrInvalidRole)
}

func TestMessageUnmarshalValidates(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":"m1","role":"tool","content":{},"timestamp":"2024-01-01T00:00:00Z"}`), &m)
	assert.ErrorIs(t, err, ErrInvalidRole)

	err = json.Unmarshal([]byte(`{"id":"m1","role":"user","content":{"text":"ok"},"timestamp":"2024-01-01T00:00:00Z"}`), &m)
	require.NoError(t, err)
	assert.Equal(t, "ok", *m.Content.Text)
}

func TestDecodeNewMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m, err := DecodeNewMessage([]byte(`{"role":"user","content":{"text":"hi"}}`), "gen-1", now)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", m.ID)
	assert.True(t, m.Timestamp.Equal(now))

	m, err = DecodeNewMessage([]byte(`{"id":"own","role":"assistant","content":{},"timestamp":"2024-01-01T00:00:00Z"}`), "gen-2", now)
	require.NoError(t, err)
	assert.Equal(t, "own", m.ID)
	assert.Equal(t, 2024, m.Timestamp.Year())
	assert.Equal(t, time.January, m.Timestamp.Month())

	_, err = DecodeNewMessage([]byte(`{"role":"system","content":{}}`), "gen-3", now)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = DecodeNewMessage([]byte(`[1]`), "gen-4", now)
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = DecodeNewMessage([]byte(`{`), "gen-5", now)
	assert.ErrorIs(t, err, ErrMalformed)
}
