package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParseError(t *testing.T) {
	_, err := Decode([]byte("not json at all"))

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "invalid message format", parseErr.Error())
}

func TestDecodeClassification(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{
			name: "channel join",
			in:   `{"type":"join","channel_id":"c1","sender":"u1"}`,
			want: KindJoin,
		},
		{
			name: "registration only",
			in:   `{"sender":"u1"}`,
			want: KindJoin,
		},
		{
			name: "channel single",
			in:   `{"channel_id":"c1","sender":"u1","message":"hi"}`,
			want: KindSingle,
		},
		{
			name: "batch",
			in:   `{"channel_id":"c1","sender":"u1","items":[{"message":"a"}]}`,
			want: KindBatch,
		},
		{
			name: "direct",
			in:   `{"sender":"u1","target_id":"u2","message":"psst"}`,
			want: KindDirect,
		},
		{
			name: "admin trigger",
			in:   `{"session_role":"admin","trigger_target":"u9"}`,
			want: KindAdminTrigger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.EnvelopeKind())
		})
	}
}

func TestDecodeValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantField string
		wantMsg   string
	}{
		{
			name:      "single without channel",
			in:        `{"sender":"u1","message":"hi","channel_id":""}`,
			wantField: "channel_id",
			wantMsg:   "Missing required properties: channel_id/sender",
		},
		{
			name:      "join without sender",
			in:        `{"type":"join","channel_id":"c1"}`,
			wantField: "sender",
			wantMsg:   "Missing required properties: channel_id/sender",
		},
		{
			name:      "text single with blank message",
			in:        `{"channel_id":"c1","sender":"u1","message":"   "}`,
			wantField: "message",
			wantMsg:   "message is required for type2=text",
		},
		{
			name:      "image single without file_url",
			in:        `{"channel_id":"c1","sender":"u1","type2":"image"}`,
			wantField: "file_url",
			wantMsg:   "file_url is required when type2=image",
		},
		{
			name:      "direct without message",
			in:        `{"sender":"u1","target_id":"u2"}`,
			wantField: "message",
		},
		{
			name:      "batch without sender",
			in:        `{"channel_id":"c1","items":[{"message":"a"}]}`,
			wantField: "sender",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.wantField, valErr.Field)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, valErr.Error())
			}
		})
	}
}

func TestDecodeSingleDefaultsToText(t *testing.T) {
	env, err := Decode([]byte(`{"channel_id":"c1","sender":"u1","message":"hi","seed":"42"}`))
	require.NoError(t, err)

	single, ok := env.(*Single)
	require.True(t, ok)
	assert.Equal(t, PayloadText, single.Kind)
	assert.Equal(t, "hi", single.Message)
	assert.Equal(t, json.RawMessage(`"42"`), single.Seed)
}

func TestDecodeImageSingle(t *testing.T) {
	env, err := Decode([]byte(`{"channel_id":"c1","sender":"u1","type2":"image","file_url":"https://x/y.png"}`))
	require.NoError(t, err)

	single, ok := env.(*Single)
	require.True(t, ok)
	assert.Equal(t, "image", single.Kind)
	assert.Equal(t, "https://x/y.png", single.FileURL)
}

func TestNormalizeItem(t *testing.T) {
	envelopeSeed := []byte(`"env-seed"`)

	t.Run("valid text item inherits envelope seed", func(t *testing.T) {
		item, ok := NormalizeItem(Item{Message: "hello"}, envelopeSeed)
		require.True(t, ok)
		assert.Equal(t, PayloadText, item.Kind)
		assert.Equal(t, PayloadText, item.Type)
		assert.Equal(t, json.RawMessage(envelopeSeed), item.Seed)
	})

	t.Run("own seed wins over envelope seed", func(t *testing.T) {
		item, ok := NormalizeItem(Item{Message: "hello", Seed: json.RawMessage(`"mine"`)}, envelopeSeed)
		require.True(t, ok)
		assert.Equal(t, json.RawMessage(`"mine"`), item.Seed)
	})

	t.Run("kind falls back to type field", func(t *testing.T) {
		item, ok := NormalizeItem(Item{Type: "image", FileURL: "https://x/a.png"}, nil)
		require.True(t, ok)
		assert.Equal(t, "image", item.Kind)
	})

	t.Run("blank text dropped", func(t *testing.T) {
		_, ok := NormalizeItem(Item{Message: "   "}, envelopeSeed)
		assert.False(t, ok)
	})

	t.Run("attachment without file_url dropped", func(t *testing.T) {
		_, ok := NormalizeItem(Item{Kind: "image"}, envelopeSeed)
		assert.False(t, ok)
	})
}

func TestNewErrorFrame(t *testing.T) {
	frame := NewErrorFrame(&ValidationError{Field: "message", Reason: "message is required for type2=text"})
	assert.False(t, frame.Success)
	assert.Equal(t, "message is required for type2=text", frame.Error)

	frame = NewErrorFrame(errors.New("Failed to process message"))
	assert.Equal(t, "Failed to process message", frame.Error)
}
