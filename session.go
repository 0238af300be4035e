// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"errors"
	"io"
	"net"
	"sync"
)

// SessionState tracks where a connection is in the menu → room-membership →
// chat → leave protocol.
type SessionState int

const (
	StateAwaitingMenuChoice SessionState = iota
	StateAwaitingRoomParams
	StateAwaitingUsername
	StateInRoom
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingMenuChoice:
		return "awaiting_menu_choice"
	case StateAwaitingRoomParams:
		return "awaiting_room_params"
	case StateAwaitingUsername:
		return "awaiting_username"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session owns exactly one connection and drives its protocol state machine.
// Inbound frames are handled on the read loop; outbound delivery runs on a
// separate goroutine draining a bounded queue, so one slow peer never stalls
// another's broadcasts.
type Session struct {
	id       string
	conn     FrameConn
	registry *Registry
	logger   *LoggerConfig
	limiter  *RateLimiterManager

	out  chan Message
	done chan struct{}

	mu       sync.Mutex
	state    SessionState
	roomID   string
	username string

	violations int
	closeOnce  sync.Once
	onClose    func(*Session)
}

func NewSession(conn FrameConn, registry *Registry, logger *LoggerConfig, queueSize int) *Session {
	if logger == nil {
		logger = DefaultLoggerConfig()
	}
	return &Session{
		id:       generateSessionID(),
		conn:     conn,
		registry: registry,
		logger:   logger,
		out:      make(chan Message, queueSize),
		done:     make(chan struct{}),
		state:    StateAwaitingMenuChoice,
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current protocol state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run services the connection until it closes. It blocks; the caller runs it
// on its own goroutine (one per connection).
func (s *Session) Run() {
	defer s.Close()

	safeGoroutine("SessionWrite", s.writeLoop)

	if err := s.send(Connected{}); err != nil {
		return
	}

	for {
		msg, err := readMessage(s.conn)
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrFrameTooLarge) {
				// Protocol error: fatal to this connection only. Written
				// synchronously so it reaches the peer before the close.
				s.logger.log(LogTypeSession, LogLevelInfo, "%s closing on malformed input: %v", s.id, err)
				_ = writeMessage(s.conn, ErrorMessage{ErrKind: ErrorKindMalformedMessage, Message: ErrMalformedMessage.Error()})
				return
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.log(LogTypeSession, LogLevelDebug, "%s read error: %v", s.id, err)
			}
			return
		}

		if s.limiter != nil && !s.limiter.AllowSession(s.id) {
			s.violations++
			s.logger.log(LogTypeRateLimit, LogLevelInfo, "%s rate limited (%d violations)", s.id, s.violations)
			if s.violations >= s.limiter.config.MaxViolations {
				_ = writeMessage(s.conn, ErrorMessage{ErrKind: ErrorKindRateLimited, Message: ErrRateLimitExceeded.Error()})
				return
			}
			_ = s.send(ErrorMessage{ErrKind: ErrorKindRateLimited, Message: ErrRateLimitExceeded.Error()})
			continue
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.log(LogTypeSession, LogLevelInfo, "%s closing: %v", s.id, err)
			return
		}
	}
}

// handleMessage applies one inbound message to the state machine. A non-nil
// return closes the connection; recoverable errors are reported to the
// client and the session returns to (or stays in) a live state.
func (s *Session) handleMessage(msg Message) error {
	switch s.State() {
	case StateAwaitingMenuChoice:
		switch m := msg.(type) {
		case CreateRoom:
			return s.handleCreateRoom(m)
		case JoinRoom:
			return s.handleJoinRoom(m)
		}

	case StateAwaitingUsername:
		switch m := msg.(type) {
		case JoinRoom:
			return s.handleJoinRoom(m)
		}

	case StateInRoom:
		switch m := msg.(type) {
		case Chat:
			return s.handleChat(m)
		case GetRoomInfo:
			return s.handleGetRoomInfo()
		case Leave:
			s.leaveRoom()
			s.setState(StateAwaitingMenuChoice)
			return nil
		}
	}

	return newUnexpectedMessageError(msg.Kind(), s.State())
}

// handleCreateRoom validates the requested parameters and creates the room.
// An out-of-range capacity is reported as invalid_capacity and clamped to
// the minimum of 2; the request still succeeds. The registry itself only
// accepts or rejects, so the clamp is applied here.
func (s *Session) handleCreateRoom(m CreateRoom) error {
	s.setState(StateAwaitingRoomParams)

	if m.RoomName == "" {
		s.setState(StateAwaitingMenuChoice)
		return s.send(ErrorMessage{ErrKind: ErrorKindRoomNameEmpty, Message: ErrRoomNameEmpty.Error()})
	}

	maxUsers := m.MaxUsers
	if maxUsers < 2 {
		if err := s.send(ErrorMessage{ErrKind: ErrorKindInvalidCapacity, Message: ErrInvalidCapacity.Error()}); err != nil {
			return err
		}
		maxUsers = 2
	}

	roomID, err := s.registry.Create(m.RoomName, maxUsers)
	if err != nil {
		s.setState(StateAwaitingMenuChoice)
		return s.sendRegistryError(err)
	}

	s.setState(StateAwaitingUsername)
	return s.send(RoomCreated{RoomID: roomID, RoomName: m.RoomName, MaxUsers: maxUsers})
}

func (s *Session) handleJoinRoom(m JoinRoom) error {
	snap, err := s.registry.Join(m.RoomID, m.Username, s.out, s.Close)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameEmpty), errors.Is(err, ErrUsernameTaken):
			// Validation error: re-prompt without losing the pending room.
			s.setState(StateAwaitingUsername)
		default:
			// Lookup/capacity error: return-to-menu policy.
			s.setState(StateAwaitingMenuChoice)
		}
		return s.sendRegistryError(err)
	}

	s.mu.Lock()
	s.state = StateInRoom
	s.roomID = m.RoomID
	s.username = m.Username
	s.mu.Unlock()

	if err := s.send(JoinedRoom{RoomID: m.RoomID, RoomName: snap.Name}); err != nil {
		return err
	}
	return s.registry.Broadcast(m.RoomID, UserJoined{Username: m.Username}, m.Username)
}

func (s *Session) handleChat(m Chat) error {
	if m.Content == "" {
		return nil
	}

	s.mu.Lock()
	roomID, username := s.roomID, s.username
	s.mu.Unlock()

	if err := s.registry.BroadcastChat(roomID, username, m.Content); err != nil {
		// The room vanished under us; treat like an ungraceful eviction.
		s.setState(StateAwaitingMenuChoice)
		return s.sendRegistryError(err)
	}
	return nil
}

func (s *Session) handleGetRoomInfo() error {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()

	snap, err := s.registry.Snapshot(roomID)
	if err != nil {
		s.setState(StateAwaitingMenuChoice)
		return s.sendRegistryError(err)
	}

	return s.send(RoomInfo{
		RoomName:     snap.Name,
		Users:        snap.Users,
		CurrentCount: snap.CurrentCount(),
		MaxUsers:     snap.MaxUsers,
	})
}

// leaveRoom removes the session from its room and notifies the remaining
// members. Called at most once per membership: either for an explicit Leave
// or for an abrupt disconnect, never both.
func (s *Session) leaveRoom() {
	s.mu.Lock()
	roomID, username := s.roomID, s.username
	s.roomID, s.username = "", ""
	s.mu.Unlock()

	if roomID == "" {
		return
	}

	s.registry.Leave(roomID, username)
	_ = s.registry.Broadcast(roomID, UserLeft{Username: username}, "")
}

// sendRegistryError maps a registry error onto the wire and keeps the
// connection open; only transport failures propagate.
func (s *Session) sendRegistryError(err error) error {
	kind := ErrorKindMalformedMessage
	switch {
	case errors.Is(err, ErrRoomNotFound):
		kind = ErrorKindRoomNotFound
	case errors.Is(err, ErrRoomFull):
		kind = ErrorKindRoomFull
	case errors.Is(err, ErrInvalidCapacity):
		kind = ErrorKindInvalidCapacity
	case errors.Is(err, ErrRoomNameEmpty):
		kind = ErrorKindRoomNameEmpty
	case errors.Is(err, ErrUsernameEmpty):
		kind = ErrorKindUsernameEmpty
	case errors.Is(err, ErrUsernameTaken):
		kind = ErrorKindUsernameTaken
	}
	return s.send(ErrorMessage{ErrKind: kind, Message: err.Error()})
}

// send enqueues a message for delivery to this session's peer. It fails with
// ErrSessionClosed once the session is shut down, and ErrClientClosed when
// the outbound queue is saturated.
func (s *Session) send(m Message) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.out <- m:
		return nil
	default:
		return ErrClientClosed
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := writeMessage(s.conn, msg); err != nil {
				s.logger.log(LogTypeSession, LogLevelDebug, "%s write error: %v", s.id, err)
				s.Close()
				return
			}
		}
	}
}

// Close releases everything the session holds: its room slot (broadcasting
// UserLeft to the remaining members, exactly as an explicit leave would),
// the connection, and the server's session table entry. Idempotent and safe
// to call from any goroutine, including the registry's overflow-drop path.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.leaveRoom()
		s.setState(StateClosed)
		close(s.done)
		_ = s.conn.Close()

		if s.onClose != nil {
			s.onClose(s)
		}
		s.logger.log(LogTypeSession, LogLevelInfo, "%s closed", s.id)
	})
}
