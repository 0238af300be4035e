// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageKind is the wire tag of a protocol message variant.
type MessageKind string

const (
	// Client -> Server
	KindCreateRoom  MessageKind = "CreateRoom"
	KindJoinRoom    MessageKind = "JoinRoom"
	KindChat        MessageKind = "Chat"
	KindGetRoomInfo MessageKind = "GetRoomInfo"
	KindLeave       MessageKind = "Leave"

	// Server -> Client
	KindConnected   MessageKind = "Connected"
	KindRoomCreated MessageKind = "RoomCreated"
	KindJoinedRoom  MessageKind = "JoinedRoom"
	KindUserJoined  MessageKind = "UserJoined"
	KindUserMessage MessageKind = "UserMessage"
	KindUserLeft    MessageKind = "UserLeft"
	KindRoomInfo    MessageKind = "RoomInfo"
	KindError       MessageKind = "Error"
)

// Error kinds carried in ErrorMessage.Kind.
const (
	ErrorKindInvalidCapacity  = "invalid_capacity"
	ErrorKindRoomNotFound     = "room_not_found"
	ErrorKindRoomFull         = "room_full"
	ErrorKindUsernameEmpty    = "username_empty"
	ErrorKindUsernameTaken    = "username_taken"
	ErrorKindRoomNameEmpty    = "room_name_empty"
	ErrorKindMalformedMessage = "malformed_message"
	ErrorKindRateLimited      = "rate_limited"
)

// Message is the closed union of protocol messages. Every message is a value
// type tagged with its MessageKind on the wire.
type Message interface {
	Kind() MessageKind
}

type CreateRoom struct {
	RoomName string `json:"room_name"`
	MaxUsers int    `json:"max_users"`
}

type JoinRoom struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

type Chat struct {
	Content string `json:"content"`
}

type GetRoomInfo struct{}

type Leave struct{}

type Connected struct{}

type RoomCreated struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	MaxUsers int    `json:"max_users"`
}

type JoinedRoom struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
}

type UserJoined struct {
	Username string `json:"username"`
}

type UserMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

type UserLeft struct {
	Username string `json:"username"`
}

type RoomInfo struct {
	RoomName     string   `json:"room_name"`
	Users        []string `json:"users"`
	CurrentCount int      `json:"current_count"`
	MaxUsers     int      `json:"max_users"`
}

type ErrorMessage struct {
	ErrKind string `json:"kind"`
	Message string `json:"message"`
}

func (CreateRoom) Kind() MessageKind   { return KindCreateRoom }
func (JoinRoom) Kind() MessageKind     { return KindJoinRoom }
func (Chat) Kind() MessageKind         { return KindChat }
func (GetRoomInfo) Kind() MessageKind  { return KindGetRoomInfo }
func (Leave) Kind() MessageKind        { return KindLeave }
func (Connected) Kind() MessageKind    { return KindConnected }
func (RoomCreated) Kind() MessageKind  { return KindRoomCreated }
func (JoinedRoom) Kind() MessageKind   { return KindJoinedRoom }
func (UserJoined) Kind() MessageKind   { return KindUserJoined }
func (UserMessage) Kind() MessageKind  { return KindUserMessage }
func (UserLeft) Kind() MessageKind     { return KindUserLeft }
func (RoomInfo) Kind() MessageKind     { return KindRoomInfo }
func (ErrorMessage) Kind() MessageKind { return KindError }

func isUnitKind(kind MessageKind) bool {
	switch kind {
	case KindGetRoomInfo, KindLeave, KindConnected:
		return true
	}
	return false
}

// EncodeMessage serializes a message to its externally tagged JSON form:
// unit variants become bare strings ("Connected"), struct variants become
// single-key objects ({"Chat":{"content":"hi"}}).
func EncodeMessage(m Message) ([]byte, error) {
	kind := m.Kind()
	if isUnitKind(kind) {
		return json.Marshal(string(kind))
	}
	return json.Marshal(map[MessageKind]Message{kind: m})
}

// DecodeMessage parses a single externally tagged JSON message. Any input
// that is not exactly one known variant fails with ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, newMalformedMessageError(fmt.Errorf("empty frame"))
	}

	if trimmed[0] == '"' {
		var kind string
		if err := json.Unmarshal(trimmed, &kind); err != nil {
			return nil, newMalformedMessageError(err)
		}
		switch MessageKind(kind) {
		case KindGetRoomInfo:
			return GetRoomInfo{}, nil
		case KindLeave:
			return Leave{}, nil
		case KindConnected:
			return Connected{}, nil
		}
		return nil, newMalformedMessageError(fmt.Errorf("unknown message kind %q", kind))
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &tagged); err != nil {
		return nil, newMalformedMessageError(err)
	}
	if len(tagged) != 1 {
		return nil, newMalformedMessageError(fmt.Errorf("expected exactly one variant tag, got %d", len(tagged)))
	}

	for kind, payload := range tagged {
		return decodeVariant(MessageKind(kind), payload)
	}
	return nil, newMalformedMessageError(fmt.Errorf("empty variant tag"))
}

func decodeVariant(kind MessageKind, payload json.RawMessage) (Message, error) {
	var target Message
	switch kind {
	case KindCreateRoom:
		target = &CreateRoom{}
	case KindJoinRoom:
		target = &JoinRoom{}
	case KindChat:
		target = &Chat{}
	case KindRoomCreated:
		target = &RoomCreated{}
	case KindJoinedRoom:
		target = &JoinedRoom{}
	case KindUserJoined:
		target = &UserJoined{}
	case KindUserMessage:
		target = &UserMessage{}
	case KindUserLeft:
		target = &UserLeft{}
	case KindRoomInfo:
		target = &RoomInfo{}
	case KindError:
		target = &ErrorMessage{}
	default:
		return nil, newMalformedMessageError(fmt.Errorf("unknown message kind %q", kind))
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, newMalformedMessageError(err)
	}
	return deref(target), nil
}

// deref unwraps the pointer used for decoding so callers always see the
// value form of a message.
func deref(m Message) Message {
	switch v := m.(type) {
	case *CreateRoom:
		return *v
	case *JoinRoom:
		return *v
	case *Chat:
		return *v
	case *RoomCreated:
		return *v
	case *JoinedRoom:
		return *v
	case *UserJoined:
		return *v
	case *UserMessage:
		return *v
	case *UserLeft:
		return *v
	case *RoomInfo:
		return *v
	case *ErrorMessage:
		return *v
	}
	return m
}
