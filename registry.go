// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// RoomSnapshot is a consistent point-in-time view of a room, with usernames
// in join order.
type RoomSnapshot struct {
	ID       string
	Name     string
	MaxUsers int
	Users    []string
}

func (s RoomSnapshot) CurrentCount() int { return len(s.Users) }

// Registry is the authoritative map of live rooms. All mutations
// (create/join/leave/destroy) are atomic with respect to each other; a room
// is destroyed in the same critical section in which its last member leaves.
//
// Lock ordering is always registry then room, never the reverse.
type Registry struct {
	logger   *LoggerConfig
	chatEcho bool

	mu    sync.RWMutex
	rooms map[string]*Room

	relayed atomic.Uint64
	dropped atomic.Uint64
}

func NewRegistry(logger *LoggerConfig, chatEcho bool) *Registry {
	if logger == nil {
		logger = DefaultLoggerConfig()
	}
	return &Registry{
		logger:   logger,
		chatEcho: chatEcho,
		rooms:    make(map[string]*Room),
	}
}

// Create inserts a new empty room and returns its id. The id is a v4 UUID:
// 128 bits of cryptographically strong randomness, and the sole admission
// credential for the room. Collisions in that space are treated as
// negligible. The registry never substitutes values: an out-of-range
// capacity is rejected, not clamped.
func (reg *Registry) Create(name string, maxUsers int) (string, error) {
	if name == "" {
		return "", ErrRoomNameEmpty
	}
	if maxUsers < 2 {
		return "", ErrInvalidCapacity
	}

	id := uuid.NewString()
	room := newRoom(id, name, maxUsers)

	reg.mu.Lock()
	reg.rooms[id] = room
	reg.mu.Unlock()

	reg.logger.log(LogTypeRoom, LogLevelInfo, "room %q created with id %s (max %d users)", name, id, maxUsers)
	return id, nil
}

// Join adds a member to a room. The capacity check and the insertion happen
// under the room lock, so N concurrent joins against K free slots yield
// exactly min(N, K) successes; the rest observe ErrRoomFull. out receives
// broadcasts for this member; drop is called if the queue overflows.
func (reg *Registry) Join(roomID, username string, out chan<- Message, drop func()) (RoomSnapshot, error) {
	if username == "" {
		return RoomSnapshot{}, ErrUsernameEmpty
	}

	reg.mu.RLock()
	room, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return RoomSnapshot{}, newRoomNotFoundError(roomID)
	}

	member := &Member{Username: username, out: out, drop: drop}
	if err := room.join(member); err != nil {
		return RoomSnapshot{}, err
	}

	snap := room.snapshot()
	reg.logger.log(LogTypeRoom, LogLevelInfo, "user %q joined room %q (%d/%d users)",
		username, room.name, snap.CurrentCount(), room.maxUsers)
	return snap, nil
}

// Leave removes a member from a room. If the room becomes empty it is
// removed from the registry in the same operation: there is no window in
// which an empty room is still joinable. Leaving a room or username that is
// not present is a no-op.
func (reg *Registry) Leave(roomID, username string) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return
	}

	removed, empty := room.leave(username)
	if empty {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()

	if removed {
		reg.logger.log(LogTypeRoom, LogLevelInfo, "user %q left room %q", username, room.name)
	}
	if empty {
		reg.logger.log(LogTypeRoom, LogLevelInfo, "room %q (id %s) is empty and was removed", room.name, roomID)
	}
}

// Snapshot returns the room's state at a single consistent instant, never a
// partial view of an in-flight join or leave.
func (reg *Registry) Snapshot(roomID string) (RoomSnapshot, error) {
	reg.mu.RLock()
	room, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return RoomSnapshot{}, newRoomNotFoundError(roomID)
	}
	return room.snapshot(), nil
}

// BroadcastChat fans a chat line out to the room. Whether the sender
// receives its own line back is the registry's echo policy.
func (reg *Registry) BroadcastChat(roomID, sender, content string) error {
	exclude := sender
	if reg.chatEcho {
		exclude = ""
	}
	return reg.broadcast(roomID, UserMessage{Username: sender, Content: content}, exclude)
}

// Broadcast fans a message out to every member of the room except exclude
// (empty string excludes nobody). Each member sees broadcasts in submission
// order; members whose queues are saturated are dropped asynchronously
// rather than blocking the room.
func (reg *Registry) Broadcast(roomID string, m Message, exclude string) error {
	return reg.broadcast(roomID, m, exclude)
}

func (reg *Registry) broadcast(roomID string, m Message, exclude string) error {
	reg.mu.RLock()
	room, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return newRoomNotFoundError(roomID)
	}

	overflowed := room.broadcast(m, exclude)
	reg.relayed.Add(1)

	for _, member := range overflowed {
		reg.dropped.Add(1)
		reg.logger.log(LogTypeBroadcast, LogLevelWarn, "member %q queue full in room %q, dropping", member.Username, room.name)
		if member.drop != nil {
			safeGoroutine("MemberDrop", member.drop)
		}
	}
	return nil
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// RoomStats returns a per-room statistics snapshot keyed by room id.
func (reg *Registry) RoomStats() map[string]RoomStat {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	stats := make(map[string]RoomStat, len(rooms))
	for _, room := range rooms {
		stats[room.id] = RoomStat{
			ID:          room.id,
			Name:        room.name,
			MemberCount: room.memberCount(),
			MaxUsers:    room.maxUsers,
			CreatedAt:   room.createdAt,
		}
	}
	return stats
}

// MessagesRelayed reports how many broadcasts the registry has fanned out.
func (reg *Registry) MessagesRelayed() uint64 { return reg.relayed.Load() }

// DroppedMembers reports how many members were dropped for saturated queues.
func (reg *Registry) DroppedMembers() uint64 { return reg.dropped.Load() }

// IsRecoverable reports whether a registry error should return the session
// to its menu state instead of closing the connection.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrRoomNameEmpty) ||
		errors.Is(err, ErrUsernameEmpty) ||
		errors.Is(err, ErrUsernameTaken)
}
