// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"errors"
	"fmt"
)

var (
	// Registry errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrInvalidCapacity = errors.New("room must allow at least 2 users")
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrUsernameEmpty   = errors.New("username cannot be empty")
	ErrUsernameTaken   = errors.New("username already taken in room")

	// Protocol errors
	ErrMalformedMessage  = errors.New("malformed message")
	ErrFrameTooLarge     = errors.New("frame exceeds maximum size")
	ErrUnexpectedMessage = errors.New("unexpected message for session state")

	// Server configuration errors
	ErrMaxConnectionsLessThanOne = errors.New("max connections must be greater than 0")
	ErrFrameSizeLessThanOne      = errors.New("max frame size must be greater than 0")
	ErrQueueSizeLessThanOne      = errors.New("outbound queue size must be greater than 0")
	ErrAddrEmpty                 = errors.New("bind address cannot be empty")
	ErrServerAlreadyRunning      = errors.New("server is already running")
	ErrServerNotRunning          = errors.New("server is not running")

	// Connection errors
	ErrMaxConnReached    = errors.New("maximum connections reached")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrSessionClosed     = errors.New("session is closed")
	ErrClientClosed      = errors.New("client connection is closed")
)

func newRoomFullError(current, max int) error {
	return fmt.Errorf("%w (%d/%d users)", ErrRoomFull, current, max)
}

func newRoomNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
}

func newUsernameTakenError(username string) error {
	return fmt.Errorf("%w: %s", ErrUsernameTaken, username)
}

func newMalformedMessageError(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
}

func newUnexpectedMessageError(kind MessageKind, state SessionState) error {
	return fmt.Errorf("%w: %s in state %s", ErrUnexpectedMessage, kind, state)
}

func newMaxConnPerIPReachedError(ip string) error {
	return fmt.Errorf("%w for IP %s", ErrMaxConnReached, ip)
}
