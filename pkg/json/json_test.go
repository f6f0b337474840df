package json

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNotification struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestMarshalUnmarshal(t *testing.T) {
	original := testNotification{
		ID:        7,
		Type:      "new_message",
		IsRead:    true,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":7`)
	assert.Contains(t, string(data), `"type":"new_message"`)
	assert.Contains(t, string(data), `"isRead":true`)

	var decoded testNotification
	err = Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	err = Unmarshal([]byte(`{"invalid`), &decoded)
	assert.Error(t, err)
}

func TestEncoderDecoder(t *testing.T) {
	original := testNotification{ID: 3, Type: "message_read"}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(original))

	var decoded testNotification
	require.NoError(t, NewDecoder(&buf).Decode(&decoded))
	assert.Equal(t, original, decoded)
}
