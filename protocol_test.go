package termchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  Message
		expected string
	}{
		{
			name:     "unit variant encodes as bare string",
			message:  Connected{},
			expected: `"Connected"`,
		},
		{
			name:     "leave encodes as bare string",
			message:  Leave{},
			expected: `"Leave"`,
		},
		{
			name:     "struct variant encodes as single-key object",
			message:  Chat{Content: "hello"},
			expected: `{"Chat":{"content":"hello"}}`,
		},
		{
			name:     "create room carries snake_case fields",
			message:  CreateRoom{RoomName: "general", MaxUsers: 4},
			expected: `{"CreateRoom":{"room_name":"general","max_users":4}}`,
		},
		{
			name:     "error carries kind and message",
			message:  ErrorMessage{ErrKind: ErrorKindRoomFull, Message: "room is full"},
			expected: `{"Error":{"kind":"room_full","message":"room is full"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeMessage(tt.message)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Message
	}{
		{
			name:     "bare string decodes unit variant",
			input:    `"GetRoomInfo"`,
			expected: GetRoomInfo{},
		},
		{
			name:     "leave round trips",
			input:    `"Leave"`,
			expected: Leave{},
		},
		{
			name:     "tagged object decodes struct variant",
			input:    `{"JoinRoom":{"room_id":"abc","username":"alice"}}`,
			expected: JoinRoom{RoomID: "abc", Username: "alice"},
		},
		{
			name:     "surrounding whitespace is tolerated",
			input:    "  {\"Chat\":{\"content\":\"hi\"}}\t",
			expected: Chat{Content: "hi"},
		},
		{
			name:     "room info with user list",
			input:    `{"RoomInfo":{"room_name":"general","users":["alice","bob"],"current_count":2,"max_users":4}}`,
			expected: RoomInfo{RoomName: "general", Users: []string{"alice", "bob"}, CurrentCount: 2, MaxUsers: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeMessage([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m)
		})
	}
}

func TestDecodeMessageMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty frame", ""},
		{"whitespace only", "   "},
		{"not json", "hello there"},
		{"unknown unit kind", `"SelfDestruct"`},
		{"unknown tagged kind", `{"SelfDestruct":{}}`},
		{"two variant tags", `{"Chat":{"content":"a"},"Leave":null}`},
		{"unknown field in payload", `{"Chat":{"content":"a","color":"red"}}`},
		{"array instead of object", `[1,2,3]`},
		{"truncated json", `{"Chat":{"content":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestEncodeDecodeAllServerVariants(t *testing.T) {
	messages := []Message{
		Connected{},
		RoomCreated{RoomID: "id1", RoomName: "general", MaxUsers: 3},
		JoinedRoom{RoomID: "id1", RoomName: "general"},
		UserJoined{Username: "alice"},
		UserMessage{Username: "alice", Content: "hi all"},
		UserLeft{Username: "alice"},
		ErrorMessage{ErrKind: ErrorKindUsernameTaken, Message: "taken"},
	}

	for _, original := range messages {
		data, err := EncodeMessage(original)
		require.NoError(t, err)

		decoded, err := DecodeMessage(data)
		require.NoError(t, err)
		assert.Equal(t, original, decoded, "variant %s", original.Kind())
	}
}
